package docgen

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the accepted date format for date fields.
const DateLayout = "2006-01-02"

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// FieldError describes one failed rule on one field.
type FieldError struct {
	Path    string         `json:"path"`
	Rule    string         `json:"rule"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// ValidationResult is the outcome of validating a model against its schema.
type ValidationResult struct {
	Errors    []FieldError `json:"errors,omitempty"`
	CanExport bool         `json:"can_export"`
}

// HasError reports whether path, or any path nested below it, failed.
func (r ValidationResult) HasError(path string) bool {
	for _, fe := range r.Errors {
		if fe.Path == path || strings.HasPrefix(fe.Path, path+".") {
			return true
		}
	}
	return false
}

// ErrorsFor returns errors recorded for an exact path.
func (r ValidationResult) ErrorsFor(path string) []FieldError {
	var out []FieldError
	for _, fe := range r.Errors {
		if fe.Path == path {
			out = append(out, fe)
		}
	}
	return out
}

// Validator checks document models against schemas.
type Validator struct {
	Translator Translator
}

// NewValidator creates a validator using the built-in message catalogs.
func NewValidator() Validator {
	return Validator{Translator: DefaultTranslator()}
}

// Validate validates a model with the default validator.
func Validate(schema Schema, model DocumentModel, locale string) ValidationResult {
	return NewValidator().Validate(schema, model, locale)
}

// Validate checks every schema field and derives CanExport.
func (v Validator) Validate(schema Schema, model DocumentModel, locale string) ValidationResult {
	result := ValidationResult{}
	for _, field := range schema.Fields {
		result.Errors = append(result.Errors, v.checkField(field, field.Name, model, locale)...)
	}
	result.CanExport = len(result.Errors) == 0
	return result
}

// ValidateField validates a single top-level or nested path.
func (v Validator) ValidateField(schema Schema, model DocumentModel, path, locale string) []FieldError {
	field, ok := schema.FieldAt(path)
	if !ok {
		return []FieldError{{
			Path:    path,
			Rule:    "unknown",
			Message: "unknown field " + path,
		}}
	}
	return v.checkField(field, path, model, locale)
}

func (v Validator) checkField(field FieldSpec, path string, model DocumentModel, locale string) []FieldError {
	label := field.Label.Get(locale)
	if label == "" {
		label = field.Name
	}

	value, present := model.Lookup(path)
	if !present || isBlank(value) {
		if field.Required {
			return []FieldError{v.fail(locale, path, "required", MsgRequired, nil, label)}
		}
		return nil
	}

	switch field.Kind {
	case KindNumber, KindInteger:
		return v.checkNumber(field, path, value, label, locale)
	case KindEnum:
		text := FormatValue(value)
		values := make([]string, 0, len(field.Enum))
		for _, opt := range field.Enum {
			if opt.Value == text {
				return nil
			}
			values = append(values, opt.Value)
		}
		joined := strings.Join(values, ", ")
		return []FieldError{v.fail(locale, path, "enum", MsgEnum, map[string]any{"options": values}, label, joined)}
	case KindDate:
		if _, err := time.Parse(DateLayout, FormatValue(value)); err != nil {
			return []FieldError{v.fail(locale, path, "date", MsgDate, nil, label)}
		}
		return nil
	case KindList:
		return v.checkList(field, path, value, label, model, locale)
	default:
		return v.checkText(field, path, value, label, locale)
	}
}

func (v Validator) checkText(field FieldSpec, path string, value any, label, locale string) []FieldError {
	text := FormatValue(value)
	if field.Kind == KindRichText {
		text = strings.TrimSpace(markupPattern.ReplaceAllString(text, ""))
	}
	length := utf8.RuneCountInString(text)

	var errs []FieldError
	if field.MinLength > 0 && length < field.MinLength {
		errs = append(errs, v.fail(locale, path, "min_length", MsgMinLength, map[string]any{"min": field.MinLength}, label, field.MinLength))
	}
	if field.MaxLength > 0 && length > field.MaxLength {
		errs = append(errs, v.fail(locale, path, "max_length", MsgMaxLength, map[string]any{"max": field.MaxLength}, label, field.MaxLength))
	}
	if field.pattern != nil && !field.pattern.MatchString(text) {
		errs = append(errs, v.fail(locale, path, "pattern", MsgPattern, map[string]any{"pattern": field.Pattern}, label))
	}
	return errs
}

func (v Validator) checkNumber(field FieldSpec, path string, value any, label, locale string) []FieldError {
	number, ok := asNumber(value)
	if !ok {
		return []FieldError{v.fail(locale, path, "number", MsgNumber, nil, label)}
	}
	if field.Kind == KindInteger && number != math.Trunc(number) {
		return []FieldError{v.fail(locale, path, "integer", MsgInteger, nil, label)}
	}
	var errs []FieldError
	if field.Min != nil && number < *field.Min {
		errs = append(errs, v.fail(locale, path, "min", MsgMin, map[string]any{"min": *field.Min}, label, formatBound(*field.Min)))
	}
	if field.Max != nil && number > *field.Max {
		errs = append(errs, v.fail(locale, path, "max", MsgMax, map[string]any{"max": *field.Max}, label, formatBound(*field.Max)))
	}
	return errs
}

func (v Validator) checkList(field FieldSpec, path string, value any, label string, model DocumentModel, locale string) []FieldError {
	items := asRecords(value)
	if items == nil {
		return []FieldError{v.fail(locale, path, "list", MsgList, nil, label)}
	}
	var errs []FieldError
	if field.MinItems > 0 && len(items) < field.MinItems {
		errs = append(errs, v.fail(locale, path, "min_items", MsgMinItems, map[string]any{"min": field.MinItems}, label, field.MinItems))
	}
	for i := range items {
		prefix := path + "." + strconv.Itoa(i)
		for _, item := range field.Fields {
			errs = append(errs, v.checkField(item, prefix+"."+item.Name, model, locale)...)
		}
	}
	return errs
}

func (v Validator) fail(locale, path, rule, key string, params map[string]any, args ...any) FieldError {
	return FieldError{
		Path:    path,
		Rule:    rule,
		Message: translate(v.Translator, locale, key, args...),
		Params:  params,
	}
}

func formatBound(value float64) string {
	return FormatValue(value)
}
