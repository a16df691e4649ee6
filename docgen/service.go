package docgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SheetWriter writes the tabular part of a document as a spreadsheet.
type SheetWriter interface {
	WriteSheet(ctx context.Context, schema Schema, model DocumentModel, locale string, w io.Writer) (int64, error)
}

// ValidateFieldInput requests validation of one field path.
type ValidateFieldInput struct {
	Input DocumentInput `json:"input"`
	Path  string        `json:"path"`
}

// PreviewResult is a rendered preview with the validation state next to it.
type PreviewResult struct {
	Preview    RenderedPreview  `json:"preview"`
	HTML       string           `json:"html"`
	Validation ValidationResult `json:"validation"`
}

// Download is an artifact opened for reading.
type Download struct {
	Key    string
	Meta   ArtifactMeta
	Reader io.ReadCloser
}

// Service coordinates validation, preview and export across collaborators.
type Service interface {
	Schema(ctx context.Context, docType DocumentType) (Schema, error)
	Templates(ctx context.Context, docType DocumentType) (CatalogListing, error)
	Descriptor(ctx context.Context, input DocumentInput) (TemplateDescriptor, error)
	Validate(ctx context.Context, input DocumentInput) (ValidationResult, error)
	ValidateField(ctx context.Context, req ValidateFieldInput) ([]FieldError, error)
	Progress(ctx context.Context, input DocumentInput, step string) (Progress, error)
	Preview(ctx context.Context, input DocumentInput) (PreviewResult, error)
	Export(ctx context.Context, actor Actor, input DocumentInput) (ExportResult, error)
	ExportSheet(ctx context.Context, actor Actor, input DocumentInput) (Artifact, error)
	Status(ctx context.Context, key string) (SessionStatus, error)
	Dismiss(ctx context.Context, key string) (SessionStatus, error)
	Download(ctx context.Context, key string) (Download, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Schemas     *SchemaRegistry
	Catalog     *Catalog
	Renderer    Renderer
	Pipeline    *Pipeline
	Sheets      SheetWriter
	Store       ArtifactStore
	Validator   Validator
	Logger      Logger
	Now         func() time.Time
	IDGenerator func() string
}

type service struct {
	schemas   *SchemaRegistry
	catalog   *Catalog
	renderer  Renderer
	pipeline  *Pipeline
	sheets    SheetWriter
	store     ArtifactStore
	validator Validator
	logger    Logger
	now       func() time.Time
	nextID    func() string
}

// NewService creates a Service. Missing schemas and catalog default to the
// built-in sets; a missing pipeline disables PDF export.
func NewService(cfg ServiceConfig) (Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}

	schemas := cfg.Schemas
	if schemas == nil {
		reg, err := NewBuiltinRegistry()
		if err != nil {
			return nil, err
		}
		schemas = reg
	}
	catalog := cfg.Catalog
	if catalog == nil {
		c, err := NewCatalog(nil, logger)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	validator := cfg.Validator
	if validator.Translator == nil {
		validator = NewValidator()
	}

	store := cfg.Store
	pipeline := cfg.Pipeline
	if pipeline != nil {
		if store == nil {
			store = pipeline.Store
		}
		if pipeline.Store == nil {
			pipeline.Store = store
		}
		if pipeline.Logger == nil {
			pipeline.Logger = logger
		}
	}
	if store == nil {
		store = NewMemoryStore()
		if pipeline != nil && pipeline.Store == nil {
			pipeline.Store = store
		}
	}

	return &service{
		schemas:   schemas,
		catalog:   catalog,
		renderer:  cfg.Renderer,
		pipeline:  pipeline,
		sheets:    cfg.Sheets,
		store:     store,
		validator: validator,
		logger:    logger,
		now:       nowFn,
		nextID:    idGen,
	}, nil
}

func (s *service) Schema(ctx context.Context, docType DocumentType) (Schema, error) {
	_ = ctx
	if s == nil {
		return Schema{}, NewError(KindInternal, "service is nil", nil)
	}
	return s.schemas.Resolve(docType)
}

func (s *service) Templates(ctx context.Context, docType DocumentType) (CatalogListing, error) {
	if s == nil {
		return CatalogListing{}, NewError(KindInternal, "service is nil", nil)
	}
	if docType != "" {
		if _, err := s.schemas.Resolve(docType); err != nil {
			return CatalogListing{}, err
		}
	}
	return s.catalog.List(ctx, docType)
}

// Descriptor returns the template the input would render with.
func (s *service) Descriptor(ctx context.Context, input DocumentInput) (TemplateDescriptor, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return TemplateDescriptor{}, err
	}
	return s.resolveDescriptor(ctx, schema, input, input.Model)
}

func (s *service) Validate(ctx context.Context, input DocumentInput) (ValidationResult, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.validator.Validate(schema, input.Model, input.Locale), nil
}

func (s *service) ValidateField(ctx context.Context, req ValidateFieldInput) ([]FieldError, error) {
	schema, err := s.Schema(ctx, req.Input.Type)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, NewError(KindValidation, "field path is required", nil)
	}
	if _, ok := schema.FieldAt(path); !ok {
		return nil, NewError(KindNotFound, fmt.Sprintf("field %q not found in %s", path, schema.Type), nil)
	}
	return s.validator.ValidateField(schema, req.Input.Model, path, req.Input.Locale), nil
}

func (s *service) Progress(ctx context.Context, input DocumentInput, step string) (Progress, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return Progress{}, err
	}
	nav := Navigator{Schema: schema, Validator: s.validator}
	return nav.Progress(input.Model, step, input.Locale)
}

// Preview renders regardless of validity so the form can show live output.
func (s *service) Preview(ctx context.Context, input DocumentInput) (PreviewResult, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return PreviewResult{}, err
	}
	model := input.Model.Clone()
	validation := s.validator.Validate(schema, model, input.Locale)

	preview, err := s.render(ctx, schema, input, model)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{
		Preview:    preview,
		HTML:       string(preview.HTML),
		Validation: validation,
	}, nil
}

func (s *service) Export(ctx context.Context, actor Actor, input DocumentInput) (ExportResult, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return ExportResult{}, err
	}
	if s.pipeline == nil {
		return ExportResult{}, NewError(KindNotImpl, "pdf export not configured", nil)
	}

	model := input.Model.Clone()
	validation := s.validator.Validate(schema, model, input.Locale)
	if !validation.CanExport {
		return ExportResult{}, &ValidationError{Result: validation}
	}

	preview, err := s.render(ctx, schema, input, model)
	if err != nil {
		return ExportResult{}, err
	}

	filename, err := Filename(schema, model, "pdf", s.now())
	if err != nil {
		return ExportResult{}, err
	}

	input.Model = model
	return s.pipeline.Run(ctx, ExportRequest{
		Key:      DocumentKey(schema, input),
		Schema:   schema,
		Model:    model,
		Preview:  preview,
		Filename: filename,
		Actor:    actor,
	})
}

func (s *service) ExportSheet(ctx context.Context, actor Actor, input DocumentInput) (Artifact, error) {
	schema, err := s.Schema(ctx, input.Type)
	if err != nil {
		return Artifact{}, err
	}
	if s.sheets == nil {
		return Artifact{}, NewError(KindNotImpl, "sheet export not configured", nil)
	}
	if _, ok := schema.TableField(); !ok {
		return Artifact{}, NewError(KindValidation, fmt.Sprintf("%s has no table to export", schema.Type), nil)
	}

	model := input.Model.Clone()
	validation := s.validator.Validate(schema, model, input.Locale)
	if !validation.CanExport {
		return Artifact{}, &ValidationError{Result: validation}
	}

	var buf bytes.Buffer
	if _, err := s.sheets.WriteSheet(ctx, schema, model, input.Locale, &buf); err != nil {
		return Artifact{}, NewError(KindExport, "sheet export failed", err)
	}

	now := s.now()
	filename, err := Filename(schema, model, "xlsx", now)
	if err != nil {
		return Artifact{}, err
	}
	id := s.nextID()
	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	payload := buf.Bytes()
	ref, err := s.store.Put(ctx, id+".xlsx", bytes.NewReader(payload), ArtifactMeta{
		Filename:    filename,
		ContentType: contentType,
		CreatedAt:   now,
	})
	if err != nil {
		return Artifact{}, NewError(KindExport, "artifact store failed", err)
	}
	s.logger.Infof("sheet export %s by %s: %s (%d bytes)", schema.Type, actor.ID, filename, len(payload))

	return Artifact{
		ID:          id,
		Key:         ref.Key,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(payload)),
		CreatedAt:   now,
		Bytes:       append([]byte(nil), payload...),
	}, nil
}

func (s *service) Status(ctx context.Context, key string) (SessionStatus, error) {
	_ = ctx
	if s == nil {
		return SessionStatus{}, NewError(KindInternal, "service is nil", nil)
	}
	if strings.TrimSpace(key) == "" {
		return SessionStatus{}, NewError(KindValidation, "document key is required", nil)
	}
	if s.pipeline == nil {
		return SessionStatus{Key: key, State: StateIdle}, nil
	}
	return s.pipeline.Status(key), nil
}

func (s *service) Dismiss(ctx context.Context, key string) (SessionStatus, error) {
	_ = ctx
	if s == nil {
		return SessionStatus{}, NewError(KindInternal, "service is nil", nil)
	}
	if strings.TrimSpace(key) == "" {
		return SessionStatus{}, NewError(KindValidation, "document key is required", nil)
	}
	if s.pipeline == nil {
		return SessionStatus{Key: key, State: StateIdle}, nil
	}
	return s.pipeline.Dismiss(key)
}

func (s *service) Download(ctx context.Context, key string) (Download, error) {
	if s == nil {
		return Download{}, NewError(KindInternal, "service is nil", nil)
	}
	if strings.TrimSpace(key) == "" {
		return Download{}, NewError(KindValidation, "artifact key is required", nil)
	}
	reader, meta, err := s.store.Open(ctx, key)
	if err != nil {
		return Download{}, err
	}
	return Download{Key: key, Meta: meta, Reader: reader}, nil
}

func (s *service) render(ctx context.Context, schema Schema, input DocumentInput, model DocumentModel) (RenderedPreview, error) {
	if s.renderer == nil {
		return RenderedPreview{}, NewError(KindNotImpl, "renderer not configured", nil)
	}
	desc, err := s.resolveDescriptor(ctx, schema, input, model)
	if err != nil {
		return RenderedPreview{}, err
	}
	preview, err := s.renderer.Render(ctx, RenderInput{
		Schema:     schema,
		Model:      model,
		Descriptor: desc,
		Locale:     input.Locale,
	})
	if err != nil {
		if KindFromError(err) == KindInternal {
			return RenderedPreview{}, NewError(KindRender, "render failed", err)
		}
		return RenderedPreview{}, err
	}
	for _, warning := range preview.Warnings {
		s.logger.Debugf("render %s: %s %s", schema.Type, warning.Field, warning.Message)
	}
	return preview, nil
}

// resolveDescriptor applies explicit descriptor, then template id, then the
// model's templateType layout, then the schema default.
func (s *service) resolveDescriptor(ctx context.Context, schema Schema, input DocumentInput, model DocumentModel) (TemplateDescriptor, error) {
	layout := Layout(model.String("templateType"))
	if !knownLayout(layout) {
		layout = ""
	}

	if input.Descriptor != nil {
		desc, err := NormalizeDescriptor(*input.Descriptor)
		if err != nil {
			return TemplateDescriptor{}, err
		}
		if desc.DocumentType != schema.Type {
			return TemplateDescriptor{}, NewError(KindValidation, fmt.Sprintf("descriptor %q is for %s, not %s", desc.ID, desc.DocumentType, schema.Type), nil)
		}
		return desc, nil
	}

	desc, err := s.catalog.Resolve(ctx, schema.Type, TemplateQuery{
		ID:        strings.TrimSpace(input.TemplateID),
		Layout:    layout,
		DefaultID: schema.DefaultTemplate,
	})
	if err != nil {
		return TemplateDescriptor{}, err
	}
	if layout != "" && desc.Layout != layout {
		return NormalizeDescriptor(desc.WithLayout(layout))
	}
	return desc, nil
}

func knownLayout(layout Layout) bool {
	switch layout {
	case LayoutPortraitSingle, LayoutPortraitCompact, LayoutLandscapeDual:
		return true
	default:
		return false
	}
}
