package dochttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-schooldocs/docgen"
)

type actorContextKey struct{}

// WithActor stores an actor in context for HTTP handlers.
func WithActor(ctx context.Context, actor docgen.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ContextActorProvider reads actors from request contexts.
type ContextActorProvider struct {
	Key any
}

// FromContext returns the actor stored in context.
func (p ContextActorProvider) FromContext(ctx context.Context) (docgen.Actor, error) {
	key := p.Key
	if key == nil {
		key = actorContextKey{}
	}
	actor, ok := ctx.Value(key).(docgen.Actor)
	if !ok {
		return docgen.Actor{}, docgen.NewError(docgen.KindAuthz, "actor not found in context", nil)
	}
	return actor, nil
}

// StaticActorProvider always returns the configured actor.
type StaticActorProvider struct {
	Actor docgen.Actor
}

// FromContext returns the configured actor.
func (p StaticActorProvider) FromContext(ctx context.Context) (docgen.Actor, error) {
	_ = ctx
	return p.Actor, nil
}

// Actor headers read by HeaderActorMiddleware.
const (
	HeaderActorID  = "X-Actor-Id"
	HeaderTenantID = "X-Tenant-Id"
	HeaderOrgID    = "X-Org-Id"
)

// HeaderActorMiddleware places the actor named by request headers into the
// context. It is meant for deployments behind a trusted gateway.
func HeaderActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if id != "" {
			r = r.WithContext(WithActor(r.Context(), docgen.Actor{
				ID:       id,
				TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
				OrgID:    strings.TrimSpace(r.Header.Get(HeaderOrgID)),
			}))
		}
		next.ServeHTTP(w, r)
	})
}
