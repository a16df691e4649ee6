package recordsbun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/uptrace/bun"
)

// Store persists generated-document records and serves stored template
// descriptors from a Bun-backed database.
type Store struct {
	DB  *bun.DB
	Now func() time.Time
}

var _ docgen.Backend = (*Store)(nil)

// NewStore creates a Bun-backed persistence collaborator.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// CreateTables creates the record and template tables when missing.
func (s *Store) CreateTables(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	for _, model := range []any{(*recordModel)(nil), (*templateModel)(nil)} {
		if _, err := s.DB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return docgen.NewError(docgen.KindInternal, "create records tables", err)
		}
	}
	return nil
}

// SubmitRecord inserts a generated-document record.
func (s *Store) SubmitRecord(ctx context.Context, record docgen.GeneratedRecord) error {
	if s == nil || s.DB == nil {
		return docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	if record.ArtifactID == "" {
		return docgen.NewError(docgen.KindValidation, "artifact ID is required", nil)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	model, err := modelFromRecord(record)
	if err != nil {
		return err
	}
	if _, err := s.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return docgen.NewError(docgen.KindInternal, fmt.Sprintf("insert record %q", record.ArtifactID), err)
	}
	return nil
}

// RecordFilter narrows record listings.
type RecordFilter struct {
	DocumentType docgen.DocumentType
	DocumentKey  string
	ActorID      string
	Since        time.Time
	Until        time.Time
	Limit        int
}

// Record returns one record by artifact ID.
func (s *Store) Record(ctx context.Context, artifactID string) (docgen.GeneratedRecord, error) {
	if s == nil || s.DB == nil {
		return docgen.GeneratedRecord{}, docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	if artifactID == "" {
		return docgen.GeneratedRecord{}, docgen.NewError(docgen.KindValidation, "artifact ID is required", nil)
	}
	model := new(recordModel)
	err := s.DB.NewSelect().Model(model).Where("artifact_id = ?", artifactID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docgen.GeneratedRecord{}, docgen.NewError(docgen.KindNotFound, fmt.Sprintf("record %q not found", artifactID), nil)
		}
		return docgen.GeneratedRecord{}, docgen.NewError(docgen.KindInternal, "select record", err)
	}
	return model.toRecord()
}

// Records lists records newest first.
func (s *Store) Records(ctx context.Context, filter RecordFilter) ([]docgen.GeneratedRecord, error) {
	if s == nil || s.DB == nil {
		return nil, docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	models := make([]recordModel, 0)
	query := s.DB.NewSelect().Model(&models)
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", string(filter.DocumentType))
	}
	if filter.DocumentKey != "" {
		query = query.Where("document_key = ?", filter.DocumentKey)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at <= ?", filter.Until)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "list records", err)
	}

	out := make([]docgen.GeneratedRecord, 0, len(models))
	for _, model := range models {
		record, err := model.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// ListTemplates returns the enabled stored descriptors.
func (s *Store) ListTemplates(ctx context.Context) ([]docgen.TemplateDescriptor, error) {
	if s == nil || s.DB == nil {
		return nil, docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	models := make([]templateModel, 0)
	err := s.DB.NewSelect().Model(&models).
		Where("enabled = ?", true).
		Order("document_type ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "list templates", err)
	}
	out := make([]docgen.TemplateDescriptor, 0, len(models))
	for _, model := range models {
		var desc docgen.TemplateDescriptor
		if err := json.Unmarshal(model.Descriptor, &desc); err != nil {
			return nil, docgen.NewError(docgen.KindInternal, fmt.Sprintf("decode template %q", model.ID), err)
		}
		out = append(out, desc)
	}
	return out, nil
}

// SaveTemplate inserts or replaces a stored descriptor.
func (s *Store) SaveTemplate(ctx context.Context, desc docgen.TemplateDescriptor) error {
	if s == nil || s.DB == nil {
		return docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	desc.ID = strings.TrimSpace(desc.ID)
	if desc.ID == "" {
		return docgen.NewError(docgen.KindValidation, "template ID is required", nil)
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		return docgen.NewError(docgen.KindInternal, "encode template", err)
	}
	model := templateModel{
		ID:           desc.ID,
		DocumentType: string(desc.DocumentType),
		Version:      desc.Version,
		Descriptor:   payload,
		Enabled:      true,
		UpdatedAt:    s.now(),
	}
	_, err = s.DB.NewInsert().Model(&model).
		On("CONFLICT (id) DO UPDATE").
		Set("document_type = EXCLUDED.document_type").
		Set("version = EXCLUDED.version").
		Set("descriptor = EXCLUDED.descriptor").
		Set("enabled = EXCLUDED.enabled").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return docgen.NewError(docgen.KindInternal, fmt.Sprintf("save template %q", desc.ID), err)
	}
	return nil
}

// DisableTemplate hides a stored descriptor from ListTemplates.
func (s *Store) DisableTemplate(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return docgen.NewError(docgen.KindNotImpl, "records database not configured", nil)
	}
	if id == "" {
		return docgen.NewError(docgen.KindValidation, "template ID is required", nil)
	}
	res, err := s.DB.NewUpdate().Model((*templateModel)(nil)).
		Set("enabled = ?", false).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return docgen.NewError(docgen.KindInternal, fmt.Sprintf("disable template %q", id), err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return docgen.NewError(docgen.KindNotFound, fmt.Sprintf("template %q not found", id), nil)
	}
	return nil
}

type recordModel struct {
	bun.BaseModel `bun:"table:generated_documents,alias:gd"`

	ArtifactID      string    `bun:"artifact_id,pk"`
	DocumentType    string    `bun:"document_type,notnull"`
	DocumentKey     string    `bun:"document_key,notnull"`
	TemplateID      string    `bun:"template_id"`
	TemplateVersion string    `bun:"template_version"`
	Filename        string    `bun:"filename,notnull"`
	Size            int64     `bun:"size"`
	Orientation     string    `bun:"orientation"`
	Pages           int       `bun:"pages"`
	ActorID         string    `bun:"actor_id"`
	ActorTenantID   string    `bun:"actor_tenant_id"`
	ActorOrgID      string    `bun:"actor_org_id"`
	Identity        []byte    `bun:"identity"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

type templateModel struct {
	bun.BaseModel `bun:"table:document_templates,alias:dt"`

	ID           string    `bun:"id,pk"`
	DocumentType string    `bun:"document_type,notnull"`
	Version      string    `bun:"version"`
	Descriptor   []byte    `bun:"descriptor,notnull"`
	Enabled      bool      `bun:"enabled,notnull"`
	UpdatedAt    time.Time `bun:"updated_at"`
}

func modelFromRecord(record docgen.GeneratedRecord) (recordModel, error) {
	identity, err := json.Marshal(record.Identity)
	if err != nil {
		return recordModel{}, docgen.NewError(docgen.KindInternal, "encode record identity", err)
	}
	return recordModel{
		ArtifactID:      record.ArtifactID,
		DocumentType:    string(record.DocumentType),
		DocumentKey:     record.DocumentKey,
		TemplateID:      record.TemplateID,
		TemplateVersion: record.TemplateVersion,
		Filename:        record.Filename,
		Size:            record.Size,
		Orientation:     string(record.Orientation),
		Pages:           record.Pages,
		ActorID:         record.Actor.ID,
		ActorTenantID:   record.Actor.TenantID,
		ActorOrgID:      record.Actor.OrgID,
		Identity:        identity,
		CreatedAt:       record.CreatedAt,
	}, nil
}

func (m recordModel) toRecord() (docgen.GeneratedRecord, error) {
	record := docgen.GeneratedRecord{
		ArtifactID:      m.ArtifactID,
		DocumentType:    docgen.DocumentType(m.DocumentType),
		DocumentKey:     m.DocumentKey,
		TemplateID:      m.TemplateID,
		TemplateVersion: m.TemplateVersion,
		Filename:        m.Filename,
		Size:            m.Size,
		Orientation:     docgen.Orientation(m.Orientation),
		Pages:           m.Pages,
		Actor: docgen.Actor{
			ID:       m.ActorID,
			TenantID: m.ActorTenantID,
			OrgID:    m.ActorOrgID,
		},
		CreatedAt: m.CreatedAt,
	}
	if len(m.Identity) > 0 && string(m.Identity) != "null" {
		if err := json.Unmarshal(m.Identity, &record.Identity); err != nil {
			return docgen.GeneratedRecord{}, docgen.NewError(docgen.KindInternal, "decode record identity", err)
		}
	}
	return record, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
