package docformgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-schooldocs/docgen"
)

// Validation rule kinds emitted on fields.
const (
	RuleMin       = "min"
	RuleMax       = "max"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
	RuleMinItems  = "minItems"
)

// Rule is one client-side validation constraint.
type Rule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Option is one selectable enum value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one input of the guided form.
type Field struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Type        string            `json:"type"`
	Widget      string            `json:"widget"`
	Required    bool              `json:"required"`
	Section     string            `json:"section,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	Items       []Field           `json:"items,omitempty"`
	Validations []Rule            `json:"validations,omitempty"`
	Value       any               `json:"value,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Step groups the fields shown on one page of the form.
type Step struct {
	docgen.StepStatus
	Fields []Field `json:"fields"`
}

// Action maps a form button to an HTTP endpoint.
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Accept string `json:"accept,omitempty"`
}

// Theme carries style tokens derived from the selected template.
type Theme struct {
	Name   string            `json:"name"`
	Tokens map[string]string `json:"tokens"`
}

// Form is the JSON form contract a front end renders.
type Form struct {
	ID            string   `json:"id"`
	DocumentType  string   `json:"document_type"`
	SchemaVersion string   `json:"schema_version"`
	Title         string   `json:"title"`
	Locale        string   `json:"locale"`
	TemplateID    string   `json:"template_id,omitempty"`
	Layout        string   `json:"layout,omitempty"`
	Current       string   `json:"current"`
	Percent       int      `json:"percent"`
	CanExport     bool     `json:"can_export"`
	Steps         []Step   `json:"steps"`
	Actions       []Action `json:"actions"`
	Theme         Theme    `json:"theme"`
}

// Input is the state a form is built from.
type Input struct {
	Schema     docgen.Schema
	Model      docgen.DocumentModel
	Descriptor docgen.TemplateDescriptor
	Progress   docgen.Progress
	Validation docgen.ValidationResult
	Locale     string
	BasePath   string
}

// Build assembles the form contract. Fields not listed in any step are
// appended to the last step.
func Build(in Input) Form {
	schema := in.Schema
	locale := in.Locale
	if locale == "" {
		locale = docgen.DefaultLocale
	}
	base := strings.TrimRight(in.BasePath, "/")
	if base == "" {
		base = "/api/docgen"
	}

	form := Form{
		ID:            fmt.Sprintf("%s-form", schema.Type),
		DocumentType:  string(schema.Type),
		SchemaVersion: schema.Version,
		Title:         schema.Title.Get(locale),
		Locale:        locale,
		TemplateID:    in.Descriptor.ID,
		Layout:        string(in.Descriptor.Layout),
		Current:       in.Progress.Current,
		Percent:       in.Progress.Percent,
		CanExport:     in.Validation.CanExport,
		Actions:       DocumentActions(base, schema.Type, schema.Table != ""),
		Theme:         ThemeFor(in.Descriptor),
	}

	placed := map[string]bool{}
	statusByName := map[string]docgen.StepStatus{}
	for _, status := range in.Progress.Steps {
		statusByName[status.Name] = status
	}
	for i, step := range schema.Steps {
		status, ok := statusByName[step.Name]
		if !ok {
			status = docgen.StepStatus{Name: step.Name, Label: step.Label.Get(locale), Index: i}
		}
		out := Step{StepStatus: status, Fields: []Field{}}
		for _, name := range step.Fields {
			spec, ok := schema.Field(name)
			if !ok {
				continue
			}
			placed[name] = true
			out.Fields = append(out.Fields, buildField(spec, name, in.Model, in.Validation, locale))
		}
		form.Steps = append(form.Steps, out)
	}

	var rest []Field
	for _, spec := range schema.Fields {
		if !placed[spec.Name] {
			rest = append(rest, buildField(spec, spec.Name, in.Model, in.Validation, locale))
		}
	}
	if len(rest) > 0 {
		if len(form.Steps) == 0 {
			form.Steps = append(form.Steps, Step{StepStatus: docgen.StepStatus{Name: "fields", Label: form.Title}})
		}
		last := &form.Steps[len(form.Steps)-1]
		last.Fields = append(last.Fields, rest...)
	}
	return form
}

func buildField(spec docgen.FieldSpec, path string, model docgen.DocumentModel, result docgen.ValidationResult, locale string) Field {
	field := Field{
		Name:        path,
		Label:       spec.Label.Get(locale),
		Type:        fieldType(spec.Kind),
		Widget:      widgetFor(spec),
		Required:    spec.Required,
		Section:     spec.Section,
		Validations: rulesFor(spec),
	}
	if field.Label == "" {
		field.Label = spec.Name
	}
	for _, opt := range spec.Enum {
		field.Options = append(field.Options, Option{Value: opt.Value, Label: spec.EnumLabel(opt.Value, locale)})
	}
	if spec.Kind == docgen.KindList {
		for _, item := range spec.Fields {
			field.Items = append(field.Items, buildField(item, item.Name, nil, docgen.ValidationResult{}, locale))
		}
	}
	if spec.Kind == docgen.KindImage {
		field.Metadata = map[string]string{"image_kind": string(spec.Image), "accept": "image/png,image/jpeg"}
	}
	if spec.Sum {
		field.Metadata = map[string]string{"aggregate": "sum"}
	}
	if model != nil {
		if value, ok := model.Lookup(path); ok {
			field.Value = value
		}
	}
	for _, fe := range result.Errors {
		if fe.Path == path || strings.HasPrefix(fe.Path, path+".") {
			field.Errors = append(field.Errors, fe.Message)
		}
	}
	return field
}

func fieldType(kind docgen.FieldKind) string {
	switch kind {
	case docgen.KindNumber:
		return "number"
	case docgen.KindInteger:
		return "integer"
	case docgen.KindList:
		return "array"
	default:
		return "string"
	}
}

func widgetFor(spec docgen.FieldSpec) string {
	switch spec.Kind {
	case docgen.KindText:
		return "textarea"
	case docgen.KindRichText:
		return "richtext"
	case docgen.KindEnum:
		if len(spec.Enum) <= 3 {
			return "radio"
		}
		return "select"
	case docgen.KindDate:
		return "date"
	case docgen.KindImage:
		return "image-upload"
	case docgen.KindList:
		return "repeater"
	case docgen.KindNumber, docgen.KindInteger:
		return "number"
	default:
		return "text"
	}
}

func rulesFor(spec docgen.FieldSpec) []Rule {
	var rules []Rule
	value := func(kind string, v string) Rule {
		return Rule{Kind: kind, Params: map[string]string{"value": v}}
	}
	if spec.MinLength > 0 {
		rules = append(rules, value(RuleMinLength, strconv.Itoa(spec.MinLength)))
	}
	if spec.MaxLength > 0 {
		rules = append(rules, value(RuleMaxLength, strconv.Itoa(spec.MaxLength)))
	}
	if spec.Min != nil {
		rules = append(rules, value(RuleMin, docgen.FormatValue(*spec.Min)))
	}
	if spec.Max != nil {
		rules = append(rules, value(RuleMax, docgen.FormatValue(*spec.Max)))
	}
	if spec.Pattern != "" {
		rules = append(rules, Rule{Kind: RulePattern, Params: map[string]string{"pattern": spec.Pattern}})
	}
	if spec.MinItems > 0 {
		rules = append(rules, value(RuleMinItems, strconv.Itoa(spec.MinItems)))
	}
	return rules
}

// DocumentActions lists the endpoints a document form calls.
func DocumentActions(base string, docType docgen.DocumentType, hasTable bool) []Action {
	prefix := fmt.Sprintf("%s/documents/%s", base, docType)
	actions := []Action{
		{ID: "validate", Label: "Validate", Method: "POST", URL: prefix + "/validate"},
		{ID: "progress", Label: "Progress", Method: "POST", URL: prefix + "/progress"},
		{ID: "preview", Label: "Preview", Method: "POST", URL: prefix + "/preview", Accept: "text/html"},
		{ID: "export", Label: "Download PDF", Method: "POST", URL: prefix + "/export", Accept: "application/pdf"},
	}
	if hasTable {
		actions = append(actions, Action{
			ID: "sheet", Label: "Download XLSX", Method: "POST", URL: prefix + "/sheet",
			Accept: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		})
	}
	return actions
}

// ThemeFor derives theme tokens from the template palette.
func ThemeFor(desc docgen.TemplateDescriptor) Theme {
	p := docgen.ResolvePalette(desc)
	name := desc.ID
	if name == "" {
		name = "docgen"
	}
	return Theme{
		Name: name,
		Tokens: map[string]string{
			"primary":      p.Primary,
			"accent":       p.Accent,
			"text":         p.Text,
			"surface":      p.Background,
			"font-body":    p.BodyFont,
			"font-heading": p.HeadingFont,
			"muted":        "#6b7280",
			"danger":       "#b91c1c",
			"success":      "#15803d",
			"border":       "#e5e7eb",
		},
	}
}
