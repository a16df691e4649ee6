package docgen

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/schemas/*.yaml builtin/templates.yaml
var builtinFS embed.FS

// BuiltinTemplateSet is the versioned template set compiled into the binary.
type BuiltinTemplateSet struct {
	Version   string               `yaml:"version" json:"version"`
	Templates []TemplateDescriptor `yaml:"templates" json:"templates"`
}

var (
	builtinOnce      sync.Once
	builtinSchemas   []Schema
	builtinTemplates BuiltinTemplateSet
	builtinErr       error
)

// BuiltinSchemas returns the embedded per-type schemas.
func BuiltinSchemas() ([]Schema, error) {
	loadBuiltins()
	if builtinErr != nil {
		return nil, builtinErr
	}
	out := make([]Schema, len(builtinSchemas))
	copy(out, builtinSchemas)
	return out, nil
}

// BuiltinTemplates returns the embedded template set.
func BuiltinTemplates() (BuiltinTemplateSet, error) {
	loadBuiltins()
	if builtinErr != nil {
		return BuiltinTemplateSet{}, builtinErr
	}
	set := BuiltinTemplateSet{Version: builtinTemplates.Version}
	set.Templates = make([]TemplateDescriptor, len(builtinTemplates.Templates))
	copy(set.Templates, builtinTemplates.Templates)
	return set, nil
}

func loadBuiltins() {
	builtinOnce.Do(func() {
		entries, err := builtinFS.ReadDir("builtin/schemas")
		if err != nil {
			builtinErr = err
			return
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := builtinFS.ReadFile(path.Join("builtin/schemas", name))
			if err != nil {
				builtinErr = err
				return
			}
			schema, err := ParseSchema(data)
			if err != nil {
				builtinErr = fmt.Errorf("builtin schema %s: %w", name, err)
				return
			}
			builtinSchemas = append(builtinSchemas, schema)
		}

		data, err := builtinFS.ReadFile("builtin/templates.yaml")
		if err != nil {
			builtinErr = err
			return
		}
		if err := yaml.Unmarshal(data, &builtinTemplates); err != nil {
			builtinErr = fmt.Errorf("builtin templates: %w", err)
			return
		}
		for i := range builtinTemplates.Templates {
			desc, err := NormalizeDescriptor(builtinTemplates.Templates[i])
			if err != nil {
				builtinErr = fmt.Errorf("builtin template %s: %w", builtinTemplates.Templates[i].ID, err)
				return
			}
			builtinTemplates.Templates[i] = desc
		}
	})
}
