package docactivity

import (
	"context"
	"strings"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/goliatone/go-users/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Config configures the activity emitter adapter.
type Config struct {
	Sink       types.ActivitySink
	Channel    string
	ObjectType string
}

// Emitter records document export lifecycle events as go-users activity.
type Emitter struct {
	sink       types.ActivitySink
	channel    string
	objectType string
}

var _ docgen.ChangeEmitter = (*Emitter)(nil)

// NewEmitter creates an activity emitter. Channel defaults to "docgen" and
// the object type to "document".
func NewEmitter(cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "docgen"
	}
	objectType := strings.TrimSpace(cfg.ObjectType)
	if objectType == "" {
		objectType = "document"
	}
	return &Emitter{sink: cfg.Sink, channel: channel, objectType: objectType}
}

// Emit logs one lifecycle event. Events without an artifact (requested,
// failed) are keyed by the document key.
func (e *Emitter) Emit(ctx context.Context, evt docgen.ChangeEvent) error {
	if e == nil {
		return docgen.NewError(docgen.KindInternal, "activity emitter is nil", nil)
	}
	if e.sink == nil {
		return docgen.NewError(docgen.KindNotImpl, "activity sink not configured", nil)
	}
	verb := strings.TrimSpace(evt.Name)
	if verb == "" {
		return docgen.NewError(docgen.KindValidation, "activity verb is required", nil)
	}
	objectID := strings.TrimSpace(evt.ArtifactID)
	if objectID == "" {
		objectID = strings.TrimSpace(evt.DocumentKey)
	}
	if objectID == "" {
		return docgen.NewError(docgen.KindValidation, "activity object ID is required", nil)
	}

	record, err := activity.BuildRecordFromUUID(
		parseUUID(evt.Actor.ID),
		verb,
		e.objectType,
		objectID,
		metadataFor(evt),
		activity.WithChannel(e.channel),
		activity.WithOccurredAt(evt.Timestamp),
		activity.WithTenant(parseUUID(evt.Actor.TenantID)),
		activity.WithOrg(parseUUID(evt.Actor.OrgID)),
	)
	if err != nil {
		return err
	}
	return e.sink.Log(ctx, record)
}

func metadataFor(evt docgen.ChangeEvent) map[string]any {
	meta := make(map[string]any, len(evt.Metadata)+3)
	if evt.DocumentType != "" {
		meta["document_type"] = string(evt.DocumentType)
	}
	if evt.DocumentKey != "" {
		meta["document_key"] = evt.DocumentKey
	}
	if evt.TemplateID != "" {
		meta["template_id"] = evt.TemplateID
	}
	for k, v := range evt.Metadata {
		meta[k] = v
	}
	return meta
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
