package docapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultIdempotencyTTL is used when Config.IdempotencyTTL is zero.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore maps idempotency signatures to artifact keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, artifactKey string, ttl time.Duration) error
}

// MemoryIdempotencyStore stores idempotency keys in memory.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
	clock   func() time.Time
}

type idempotencyEntry struct {
	artifactKey string
	expiresAt   time.Time
}

// NewMemoryIdempotencyStore creates an in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		clock:   time.Now,
	}
}

// Get returns the artifact key stored for an idempotency signature.
func (s *MemoryIdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	if s == nil {
		return "", false, docgen.NewError(docgen.KindInternal, "idempotency store is nil", nil)
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.artifactKey, true, nil
}

// Set stores the artifact key for an idempotency signature.
func (s *MemoryIdempotencyStore) Set(ctx context.Context, key, artifactKey string, ttl time.Duration) error {
	_ = ctx
	if s == nil {
		return docgen.NewError(docgen.KindInternal, "idempotency store is nil", nil)
	}
	if key == "" {
		return docgen.NewError(docgen.KindValidation, "idempotency key is required", nil)
	}
	if artifactKey == "" {
		return docgen.NewError(docgen.KindValidation, "artifact key is required", nil)
	}
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = idempotencyEntry{artifactKey: artifactKey, expiresAt: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// buildIdempotencyKey scopes a client key to the actor, action and full
// document content so a reused header with a different model or inline
// descriptor runs a fresh export.
func buildIdempotencyKey(key, action string, actor docgen.Actor, input docgen.DocumentInput) string {
	content, err := docgen.InputFingerprint(input)
	if err != nil {
		model, _ := json.Marshal(input.Model)
		content = fmt.Sprintf("raw:%x", sha256.Sum256(model))
	}
	raw, _ := json.Marshal(idempotencyPayload{
		Key:      key,
		Action:   action,
		ActorID:  actor.ID,
		TenantID: actor.TenantID,
		Content:  content,
	})
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("docgen:%x", sum[:])
}

type idempotencyPayload struct {
	Key      string `json:"key"`
	Action   string `json:"action"`
	ActorID  string `json:"actor_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Content  string `json:"content"`
}
