package storefs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
)

func TestStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	ref, err := store.Put(ctx, "exports/abc.pdf", bytes.NewBufferString("%PDF-1.7"), docgen.ArtifactMeta{
		Filename: "admit_card_42_2024.pdf",
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 8 {
		t.Fatalf("expected size 8, got %d", ref.Meta.Size)
	}
	if ref.Meta.ContentType != "application/pdf" {
		t.Fatalf("expected content type from extension, got %q", ref.Meta.ContentType)
	}

	reader, meta, err := store.Open(ctx, "exports/abc.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Fatalf("unexpected payload %q", data)
	}
	if meta.Filename != "admit_card_42_2024.pdf" {
		t.Fatalf("expected filename from sidecar, got %q", meta.Filename)
	}

	if err := store.Delete(ctx, "exports/abc.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(ctx, "exports/abc.pdf"); docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	store := NewStore(t.TempDir())
	for _, key := range []string{"", "../../etc/passwd.pdf", "a.pdf.meta.json"} {
		_, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), docgen.ArtifactMeta{})
		if key == "../../etc/passwd.pdf" {
			// Cleaned into the root rather than escaping it.
			if err != nil {
				t.Fatalf("expected %q to be confined to root, got %v", key, err)
			}
			if _, statErr := os.Stat(filepath.Join(store.Root, "etc", "passwd.pdf")); statErr != nil {
				t.Fatalf("expected confined file: %v", statErr)
			}
			continue
		}
		if docgen.KindFromError(err) != docgen.KindValidation {
			t.Fatalf("expected validation error for %q, got %v", key, err)
		}
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(t.TempDir())
	store.Now = func() time.Time { return now }

	if _, err := store.Put(ctx, "old.pdf", bytes.NewBufferString("old"), docgen.ArtifactMeta{CreatedAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if _, err := store.Put(ctx, "new.pdf", bytes.NewBufferString("new"), docgen.ArtifactMeta{}); err != nil {
		t.Fatalf("put new: %v", err)
	}

	removed, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, _, err := store.Open(ctx, "old.pdf"); docgen.KindFromError(err) != docgen.KindNotFound {
		t.Fatalf("expected old artifact gone, got %v", err)
	}
	if _, _, err := store.Open(ctx, "new.pdf"); err != nil {
		t.Fatalf("expected new artifact kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root, "old.pdf"+metaSuffix)); !os.IsNotExist(err) {
		t.Fatalf("expected sidecar removed")
	}
}
