package docgen

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Template origins reported on catalog entries.
const (
	OriginBuiltin = "builtin"
	OriginRemote  = "remote"
)

// DefaultCatalogTTL bounds how long remote templates are reused.
const DefaultCatalogTTL = 5 * time.Minute

// DefaultCatalogFailureBackoff is how long a failed remote fetch is
// remembered before the remote is tried again.
const DefaultCatalogFailureBackoff = 30 * time.Second

// CatalogListing is the merged template list for one document type.
type CatalogListing struct {
	Templates      []TemplateDescriptor `json:"templates"`
	BuiltinVersion string               `json:"builtin_version"`
	RemoteUsed     bool                 `json:"remote_used"`
	Fallback       bool                 `json:"fallback"`
}

// TemplateQuery selects a descriptor from the catalog.
type TemplateQuery struct {
	ID        string
	Layout    Layout
	DefaultID string
}

// Catalog resolves templates from a remote source with a built-in fallback.
//
// Precedence: a valid remote descriptor replaces the built-in with the same
// ID; remote IDs unknown to the built-in set are appended; built-ins absent
// remotely stay available. Invalid remote descriptors are dropped. When the
// remote source fails the built-in set is served unchanged.
type Catalog struct {
	Remote  TemplateSource
	Builtin BuiltinTemplateSet
	TTL     time.Duration
	// FailureBackoff skips the remote after a failed fetch.
	FailureBackoff time.Duration
	Logger         Logger
	Now            func() time.Time

	mu       sync.Mutex
	cached   []TemplateDescriptor
	cachedAt time.Time
	hasCache bool
	failedAt time.Time
}

// NewCatalog creates a catalog over the embedded built-in set.
func NewCatalog(remote TemplateSource, logger Logger) (*Catalog, error) {
	builtin, err := BuiltinTemplates()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return &Catalog{
		Remote:         remote,
		Builtin:        builtin,
		TTL:            DefaultCatalogTTL,
		FailureBackoff: DefaultCatalogFailureBackoff,
		Logger:         logger,
		Now:            time.Now,
	}, nil
}

// List returns the merged templates for docType. An empty docType lists all.
func (c *Catalog) List(ctx context.Context, docType DocumentType) (CatalogListing, error) {
	if c == nil {
		return CatalogListing{}, NewError(KindInternal, "catalog is nil", nil)
	}
	listing := CatalogListing{BuiltinVersion: c.Builtin.Version}

	remote, ok := c.remoteTemplates(ctx)
	listing.RemoteUsed = ok
	listing.Fallback = c.Remote != nil && !ok

	merged := mergeTemplates(c.Builtin.Templates, remote)
	for _, desc := range merged {
		if docType == "" || desc.DocumentType == docType {
			listing.Templates = append(listing.Templates, desc)
		}
	}
	return listing, nil
}

// Resolve picks one descriptor. An explicit ID must exist for docType.
// Without an ID the default template is used, switched to q.Layout when set.
func (c *Catalog) Resolve(ctx context.Context, docType DocumentType, q TemplateQuery) (TemplateDescriptor, error) {
	listing, err := c.List(ctx, docType)
	if err != nil {
		return TemplateDescriptor{}, err
	}
	if len(listing.Templates) == 0 {
		return TemplateDescriptor{}, NewError(KindNotFound, fmt.Sprintf("no templates for %q", docType), nil)
	}

	if q.ID != "" {
		for _, desc := range listing.Templates {
			if desc.ID == q.ID {
				return desc, nil
			}
		}
		return TemplateDescriptor{}, NewError(KindNotFound, fmt.Sprintf("template %q not found for %q", q.ID, docType), nil)
	}

	base := listing.Templates[0]
	if q.DefaultID != "" {
		for _, desc := range listing.Templates {
			if desc.ID == q.DefaultID {
				base = desc
				break
			}
		}
	}
	if q.Layout != "" && q.Layout != base.Layout {
		return NormalizeDescriptor(base.WithLayout(q.Layout))
	}
	return base, nil
}

// Invalidate drops cached remote templates.
func (c *Catalog) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.hasCache = false
	c.cached = nil
	c.failedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Catalog) remoteTemplates(ctx context.Context) ([]TemplateDescriptor, bool) {
	if c.Remote == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	if c.hasCache && now.Sub(c.cachedAt) < ttl {
		return c.cached, true
	}
	if !c.failedAt.IsZero() && now.Sub(c.failedAt) < c.failureBackoff() {
		if c.hasCache {
			return c.cached, true
		}
		return nil, false
	}

	fetched, err := c.Remote.ListTemplates(ctx)
	if err != nil {
		c.failedAt = now
		c.logger().Errorf("template catalog: remote fetch failed, using builtin set %s: %v", c.Builtin.Version, NewError(KindNetwork, "remote templates unavailable", err))
		if c.hasCache {
			return c.cached, true
		}
		return nil, false
	}

	valid := make([]TemplateDescriptor, 0, len(fetched))
	for _, desc := range fetched {
		normalized, err := NormalizeDescriptor(desc)
		if err != nil {
			c.logger().Infof("template catalog: dropping remote template %q: %v", desc.ID, err)
			continue
		}
		normalized.Origin = OriginRemote
		valid = append(valid, normalized)
	}
	c.cached = valid
	c.cachedAt = now
	c.hasCache = true
	c.failedAt = time.Time{}
	return valid, true
}

func (c *Catalog) failureBackoff() time.Duration {
	if c.FailureBackoff > 0 {
		return c.FailureBackoff
	}
	return DefaultCatalogFailureBackoff
}

func mergeTemplates(builtin, remote []TemplateDescriptor) []TemplateDescriptor {
	byID := make(map[string]TemplateDescriptor, len(remote))
	for _, desc := range remote {
		byID[desc.ID] = desc
	}

	out := make([]TemplateDescriptor, 0, len(builtin)+len(remote))
	seen := make(map[string]struct{}, len(builtin))
	for _, desc := range builtin {
		seen[desc.ID] = struct{}{}
		if override, ok := byID[desc.ID]; ok {
			out = append(out, override)
			continue
		}
		desc.Origin = OriginBuiltin
		out = append(out, desc)
	}
	for _, desc := range remote {
		if _, ok := seen[desc.ID]; ok {
			continue
		}
		seen[desc.ID] = struct{}{}
		out = append(out, desc)
	}
	return out
}

func (c *Catalog) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Catalog) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return NopLogger{}
}
