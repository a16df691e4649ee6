package docjob

import (
	"context"
	"sync"

	"github.com/goliatone/go-schooldocs/docgen"
)

// CancelRegistry tracks running export jobs by document key. Canceling a
// job stops its pending retries; a capture already in flight finishes.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[string]context.CancelFunc)}
}

// Register associates cancel with key and returns its release func.
func (r *CancelRegistry) Register(key string, cancel context.CancelFunc) func() {
	if r == nil || key == "" || cancel == nil {
		return func() {}
	}
	r.mu.Lock()
	r.cancels[key] = cancel
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.cancels, key)
		r.mu.Unlock()
	}
}

// Cancel stops the job exporting key.
func (r *CancelRegistry) Cancel(key string) error {
	if r == nil {
		return docgen.NewError(docgen.KindInternal, "cancel registry is nil", nil)
	}
	if key == "" {
		return docgen.NewError(docgen.KindValidation, "document key is required", nil)
	}

	r.mu.Lock()
	cancel, ok := r.cancels[key]
	r.mu.Unlock()
	if !ok {
		return docgen.NewError(docgen.KindNotFound, "export not running", nil)
	}
	cancel()
	return nil
}

// Running reports whether a job for key is registered.
func (r *CancelRegistry) Running(key string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[key]
	return ok
}
