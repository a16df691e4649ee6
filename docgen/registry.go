package docgen

import (
	"fmt"
	"sort"
	"sync"
)

// SchemaRegistry stores document schemas by type.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[DocumentType]Schema
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[DocumentType]Schema)}
}

// NewBuiltinRegistry creates a registry preloaded with the embedded schemas.
func NewBuiltinRegistry() (*SchemaRegistry, error) {
	schemas, err := BuiltinSchemas()
	if err != nil {
		return nil, err
	}
	reg := NewSchemaRegistry()
	for _, schema := range schemas {
		if err := reg.Register(schema); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a schema.
func (r *SchemaRegistry) Register(schema Schema) error {
	if err := schema.Compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[schema.Type]; exists {
		return NewError(KindValidation, fmt.Sprintf("schema %q already registered", schema.Type), nil)
	}
	r.schemas[schema.Type] = schema
	return nil
}

// Resolve returns the schema for a document type.
func (r *SchemaRegistry) Resolve(docType DocumentType) (Schema, error) {
	r.mu.RLock()
	schema, ok := r.schemas[docType]
	r.mu.RUnlock()
	if !ok {
		return Schema{}, NewError(KindNotFound, fmt.Sprintf("document type %q not found", docType), nil)
	}
	return schema, nil
}

// Types lists registered document types in sorted order.
func (r *SchemaRegistry) Types() []DocumentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DocumentType, 0, len(r.schemas))
	for docType := range r.schemas {
		out = append(out, docType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
