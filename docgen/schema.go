package docgen

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a locale has no messages or labels.
const DefaultLocale = "en"

// LocalizedText maps locale codes to text.
type LocalizedText map[string]string

// Get returns the text for locale, falling back to the default locale.
func (t LocalizedText) Get(locale string) string {
	if len(t) == 0 {
		return ""
	}
	if value, ok := t[normalizeLocale(locale)]; ok && value != "" {
		return value
	}
	if value, ok := t[DefaultLocale]; ok {
		return value
	}
	for _, value := range t {
		return value
	}
	return ""
}

// UnmarshalYAML accepts either a plain string or a locale map.
func (t *LocalizedText) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = LocalizedText{DefaultLocale: node.Value}
		return nil
	}
	var values map[string]string
	if err := node.Decode(&values); err != nil {
		return err
	}
	*t = LocalizedText(values)
	return nil
}

// FieldKind is the value type of a schema field.
type FieldKind string

const (
	KindString   FieldKind = "string"
	KindText     FieldKind = "text"
	KindRichText FieldKind = "richtext"
	KindNumber   FieldKind = "number"
	KindInteger  FieldKind = "integer"
	KindEnum     FieldKind = "enum"
	KindDate     FieldKind = "date"
	KindImage    FieldKind = "image"
	KindList     FieldKind = "list"
)

// EnumOption is one allowed value of an enum field.
type EnumOption struct {
	Value string        `json:"value" yaml:"value"`
	Label LocalizedText `json:"label,omitempty" yaml:"label"`
}

// FieldSpec declares one field and its rules.
type FieldSpec struct {
	Name      string        `json:"name" yaml:"name"`
	Label     LocalizedText `json:"label,omitempty" yaml:"label"`
	Kind      FieldKind     `json:"kind" yaml:"kind"`
	Required  bool          `json:"required,omitempty" yaml:"required"`
	MinLength int           `json:"min_length,omitempty" yaml:"min_length"`
	MaxLength int           `json:"max_length,omitempty" yaml:"max_length"`
	Min       *float64      `json:"min,omitempty" yaml:"min"`
	Max       *float64      `json:"max,omitempty" yaml:"max"`
	Pattern   string        `json:"pattern,omitempty" yaml:"pattern"`
	Enum      []EnumOption  `json:"enum,omitempty" yaml:"enum"`
	MinItems  int           `json:"min_items,omitempty" yaml:"min_items"`
	Fields    []FieldSpec   `json:"fields,omitempty" yaml:"fields"`
	Section   string        `json:"section,omitempty" yaml:"section"`
	Identity  bool          `json:"identity,omitempty" yaml:"identity"`
	Image     ImageKind     `json:"image,omitempty" yaml:"image"`
	Sum       bool          `json:"sum,omitempty" yaml:"sum"`

	pattern *regexp.Regexp
}

// EnumLabel returns the localized label of an enum value.
func (f FieldSpec) EnumLabel(value, locale string) string {
	for _, opt := range f.Enum {
		if opt.Value == value {
			if label := opt.Label.Get(locale); label != "" {
				return label
			}
			return opt.Value
		}
	}
	return value
}

// Step is a named group of fields in the guided form.
type Step struct {
	Name   string        `json:"name" yaml:"name"`
	Label  LocalizedText `json:"label,omitempty" yaml:"label"`
	Fields []string      `json:"fields,omitempty" yaml:"fields"`
}

// Section groups rendered fields under a heading.
type Section struct {
	Name  string        `json:"name" yaml:"name"`
	Label LocalizedText `json:"label,omitempty" yaml:"label"`
}

// Schema declares the fields, steps and naming of one document type.
type Schema struct {
	Type            DocumentType  `json:"type" yaml:"type"`
	Version         string        `json:"version" yaml:"version"`
	Title           LocalizedText `json:"title" yaml:"title"`
	DefaultTemplate string        `json:"default_template,omitempty" yaml:"default_template"`
	Filename        string        `json:"filename,omitempty" yaml:"filename"`
	Table           string        `json:"table,omitempty" yaml:"table"`
	Sections        []Section     `json:"sections,omitempty" yaml:"sections"`
	Steps           []Step        `json:"steps" yaml:"steps"`
	Fields          []FieldSpec   `json:"fields" yaml:"fields"`
}

// Field returns the top-level field spec by name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// FieldAt resolves a dotted path ("subjects.2.marks") to its spec.
func (s Schema) FieldAt(path string) (FieldSpec, bool) {
	parts := strings.Split(path, ".")
	fields := s.Fields
	var current FieldSpec
	found := false
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		found = false
		for _, field := range fields {
			if field.Name == part {
				current = field
				found = true
				break
			}
		}
		if !found {
			return FieldSpec{}, false
		}
		if current.Kind == KindList && i+1 < len(parts) {
			i++
			fields = current.Fields
			continue
		}
		fields = current.Fields
	}
	return current, found
}

// IdentityFields returns the names of fields marked as identity.
func (s Schema) IdentityFields() []string {
	out := []string{}
	for _, field := range s.Fields {
		if field.Identity {
			out = append(out, field.Name)
		}
	}
	return out
}

// TableField returns the list field rendered as the document table.
func (s Schema) TableField() (FieldSpec, bool) {
	if s.Table == "" {
		return FieldSpec{}, false
	}
	field, ok := s.Field(s.Table)
	if !ok || field.Kind != KindList {
		return FieldSpec{}, false
	}
	return field, true
}

// Compile checks the schema and prepares patterns.
func (s *Schema) Compile() error {
	if s == nil {
		return NewError(KindValidation, "schema is nil", nil)
	}
	if s.Type == "" {
		return NewError(KindValidation, "schema type is required", nil)
	}
	if len(s.Fields) == 0 {
		return NewError(KindValidation, fmt.Sprintf("schema %q has no fields", s.Type), nil)
	}
	if err := compileFields(s.Type, s.Fields); err != nil {
		return err
	}
	for _, step := range s.Steps {
		if step.Name == "" {
			return NewError(KindValidation, fmt.Sprintf("schema %q has an unnamed step", s.Type), nil)
		}
		for _, name := range step.Fields {
			if _, ok := s.Field(name); !ok {
				return NewError(KindValidation, fmt.Sprintf("schema %q step %q references unknown field %q", s.Type, step.Name, name), nil)
			}
		}
	}
	if s.Table != "" {
		if _, ok := s.TableField(); !ok {
			return NewError(KindValidation, fmt.Sprintf("schema %q table %q is not a list field", s.Type, s.Table), nil)
		}
	}
	return nil
}

func compileFields(docType DocumentType, fields []FieldSpec) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		field := &fields[i]
		if field.Name == "" {
			return NewError(KindValidation, fmt.Sprintf("schema %q has an unnamed field", docType), nil)
		}
		if _, dup := seen[field.Name]; dup {
			return NewError(KindValidation, fmt.Sprintf("schema %q field %q declared twice", docType, field.Name), nil)
		}
		seen[field.Name] = struct{}{}
		if field.Kind == "" {
			field.Kind = KindString
		}
		if field.Kind == KindEnum && len(field.Enum) == 0 {
			return NewError(KindValidation, fmt.Sprintf("schema %q enum field %q has no options", docType, field.Name), nil)
		}
		if field.Kind == KindImage && field.Image == "" {
			field.Image = ImagePhoto
		}
		if field.Pattern != "" {
			re, err := regexp.Compile(field.Pattern)
			if err != nil {
				return NewError(KindValidation, fmt.Sprintf("schema %q field %q has invalid pattern", docType, field.Name), err)
			}
			field.pattern = re
		}
		if field.Kind == KindList {
			if len(field.Fields) == 0 {
				return NewError(KindValidation, fmt.Sprintf("schema %q list field %q has no item fields", docType, field.Name), nil)
			}
			if err := compileFields(docType, field.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseSchema decodes and compiles a YAML schema document.
func ParseSchema(data []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return Schema{}, NewError(KindValidation, "invalid schema document", err)
	}
	if err := schema.Compile(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if base, _, ok := strings.Cut(locale, "-"); ok {
		return base
	}
	if base, _, ok := strings.Cut(locale, "_"); ok {
		return base
	}
	return locale
}
