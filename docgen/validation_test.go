package docgen

import (
	"strings"
	"testing"
)

func admitSchema(t *testing.T) Schema {
	t.Helper()
	reg, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("builtin registry: %v", err)
	}
	schema, err := reg.Resolve(TypeAdmitCard)
	if err != nil {
		t.Fatalf("resolve admit card: %v", err)
	}
	return schema
}

func validAdmitModel() DocumentModel {
	return DocumentModel{
		"studentName": "Rahim Uddin",
		"rollNumber":  "42",
		"className":   "9",
		"examName":    "Half Yearly Examination",
		"year":        float64(2024),
		"subjects": []any{
			map[string]any{"subject": "Bangla", "date": "2024-06-01", "time": "10:00"},
			map[string]any{"subject": "English", "date": "2024-06-03", "time": "10:00"},
		},
	}
}

func TestValidateAcceptsCompleteModel(t *testing.T) {
	result := Validate(admitSchema(t), validAdmitModel(), "en")
	if !result.CanExport {
		t.Fatalf("expected exportable model, got errors %+v", result.Errors)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %d", len(result.Errors))
	}
}

func TestValidateRequiredFieldsBlockExport(t *testing.T) {
	model := validAdmitModel()
	delete(model, "studentName")
	model["rollNumber"] = "   "

	result := Validate(admitSchema(t), model, "en")
	if result.CanExport {
		t.Fatalf("expected export to be blocked")
	}
	for _, path := range []string{"studentName", "rollNumber"} {
		errs := result.ErrorsFor(path)
		if len(errs) != 1 || errs[0].Rule != "required" {
			t.Fatalf("expected one required error for %s, got %+v", path, errs)
		}
	}
	if got := result.ErrorsFor("studentName")[0].Message; got != "Student name is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value any
		rule  string
	}{
		{"min length", "studentName", "Al", "min_length"},
		{"pattern", "rollNumber", "A-12", "pattern"},
		{"enum", "className", "5", "enum"},
		{"integer", "year", 2024.5, "integer"},
		{"number", "year", "twenty", "number"},
		{"max", "year", float64(2200), "max"},
		{"min", "year", "1999", "min"},
		{"date", "dateOfBirth", "01/02/2010", "date"},
		{"list", "subjects", "Bangla", "list"},
	}

	schema := admitSchema(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := validAdmitModel()
			model[tc.field] = tc.value
			result := Validate(schema, model, "en")
			errs := result.ErrorsFor(tc.field)
			if len(errs) != 1 {
				t.Fatalf("expected one error for %s, got %+v", tc.field, result.Errors)
			}
			if errs[0].Rule != tc.rule {
				t.Fatalf("expected rule %s, got %s", tc.rule, errs[0].Rule)
			}
			if result.CanExport {
				t.Fatalf("expected export to be blocked")
			}
		})
	}
}

func TestValidateNestedListItems(t *testing.T) {
	model := validAdmitModel()
	model["subjects"] = []any{
		map[string]any{"subject": "Bangla"},
		map[string]any{"subject": "", "date": "soon"},
	}

	result := Validate(admitSchema(t), model, "en")
	if !result.HasError("subjects") {
		t.Fatalf("expected nested errors to surface under subjects")
	}
	if errs := result.ErrorsFor("subjects.1.subject"); len(errs) != 1 || errs[0].Rule != "required" {
		t.Fatalf("expected required error on second subject, got %+v", errs)
	}
	if errs := result.ErrorsFor("subjects.1.date"); len(errs) != 1 || errs[0].Rule != "date" {
		t.Fatalf("expected date error on second subject, got %+v", errs)
	}
	if result.HasError("subjects.0") {
		t.Fatalf("expected first subject to be valid")
	}
}

func TestValidateLocalizedMessages(t *testing.T) {
	model := validAdmitModel()
	delete(model, "studentName")

	result := Validate(admitSchema(t), model, "bn-BD")
	errs := result.ErrorsFor("studentName")
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %+v", result.Errors)
	}
	if !strings.Contains(errs[0].Message, "আবশ্যক") {
		t.Fatalf("expected bangla message, got %q", errs[0].Message)
	}
	if !strings.Contains(errs[0].Message, "শিক্ষার্থীর নাম") {
		t.Fatalf("expected bangla label, got %q", errs[0].Message)
	}
}

func TestValidateRichTextCountsVisibleText(t *testing.T) {
	reg, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	schema, err := reg.Resolve(TypeOfficeOrder)
	if err != nil {
		t.Fatalf("resolve office order: %v", err)
	}
	field, ok := schema.Field("body")
	if !ok || field.Kind != KindRichText {
		t.Fatalf("expected richtext body field")
	}

	errs := NewValidator().ValidateField(schema, DocumentModel{"body": "<p><strong>Short</strong></p>"}, "body", "en")
	if len(errs) != 1 || errs[0].Rule != "min_length" {
		t.Fatalf("expected min_length on stripped text, got %+v", errs)
	}
}

func TestValidateFieldUnknownPath(t *testing.T) {
	errs := NewValidator().ValidateField(admitSchema(t), validAdmitModel(), "nickname", "en")
	if len(errs) != 1 || errs[0].Rule != "unknown" {
		t.Fatalf("expected unknown field error, got %+v", errs)
	}
}

func TestValidateFieldListItem(t *testing.T) {
	model := validAdmitModel()
	model["subjects"] = []any{map[string]any{"subject": "B"}}

	errs := NewValidator().ValidateField(admitSchema(t), model, "subjects.0.subject", "en")
	if len(errs) != 1 || errs[0].Rule != "min_length" {
		t.Fatalf("expected min_length for list item, got %+v", errs)
	}
}
