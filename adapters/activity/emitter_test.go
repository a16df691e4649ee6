package docactivity

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
	"github.com/google/uuid"
)

func TestEmitterRequiresSink(t *testing.T) {
	err := NewEmitter(Config{}).Emit(context.Background(), docgen.ChangeEvent{Name: "document.export.ready", ArtifactID: "a1"})
	if docgen.KindFromError(err) != docgen.KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
	var nilEmitter *Emitter
	if docgen.KindFromError(nilEmitter.Emit(context.Background(), docgen.ChangeEvent{})) != docgen.KindInternal {
		t.Fatalf("expected internal error for nil emitter")
	}
}

func TestMetadataForMergesEventFields(t *testing.T) {
	meta := metadataFor(docgen.ChangeEvent{
		DocumentType: docgen.TypeAdmitCard,
		DocumentKey:  "admit_card:rollNumber=42",
		TemplateID:   "admit-classic",
		Timestamp:    time.Now(),
		Metadata:     map[string]any{"pages": 1},
	})
	if meta["document_type"] != "admit_card" || meta["template_id"] != "admit-classic" || meta["pages"] != 1 {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	if parseUUID(" "+id.String()+" ") != id {
		t.Fatalf("expected uuid to parse")
	}
	if parseUUID("teacher-7") != uuid.Nil {
		t.Fatalf("expected nil uuid for non-uuid actor")
	}
}
