package docgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]storedArtifact
}

type storedArtifact struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]storedArtifact)}
}

// Put stores an artifact under key.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if s == nil {
		return ArtifactRef{}, NewError(KindInternal, "memory store is nil", nil)
	}
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	if r == nil {
		return ArtifactRef{}, NewError(KindValidation, "artifact reader is nil", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, NewError(KindExport, "read artifact", err)
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if s.objects == nil {
		s.objects = make(map[string]storedArtifact)
	}
	s.objects[key] = storedArtifact{data: data, meta: meta}
	s.mu.Unlock()
	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open returns a reader over a stored artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	if s == nil {
		return nil, ArtifactMeta{}, NewError(KindInternal, "memory store is nil", nil)
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact. Missing keys are ignored.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	if s == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// MemoryBackend is an in-memory persistence collaborator (test/dev only).
type MemoryBackend struct {
	mu        sync.RWMutex
	templates []TemplateDescriptor
	records   []GeneratedRecord
	err       error
}

// NewMemoryBackend creates a backend serving the given remote templates.
func NewMemoryBackend(templates ...TemplateDescriptor) *MemoryBackend {
	return &MemoryBackend{templates: append([]TemplateDescriptor(nil), templates...)}
}

// ListTemplates returns the configured templates.
func (b *MemoryBackend) ListTemplates(ctx context.Context) ([]TemplateDescriptor, error) {
	_ = ctx
	if b == nil {
		return nil, NewError(KindInternal, "memory backend is nil", nil)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	return append([]TemplateDescriptor(nil), b.templates...), nil
}

// SubmitRecord appends a generated-document record.
func (b *MemoryBackend) SubmitRecord(ctx context.Context, record GeneratedRecord) error {
	_ = ctx
	if b == nil {
		return NewError(KindInternal, "memory backend is nil", nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.records = append(b.records, record)
	return nil
}

// SetTemplates replaces the served templates.
func (b *MemoryBackend) SetTemplates(templates ...TemplateDescriptor) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.templates = append([]TemplateDescriptor(nil), templates...)
	b.mu.Unlock()
}

// SetError makes every call fail with err until cleared with nil.
func (b *MemoryBackend) SetError(err error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Records returns submitted records ordered by creation time.
func (b *MemoryBackend) Records() []GeneratedRecord {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	out := append([]GeneratedRecord(nil), b.records...)
	b.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
