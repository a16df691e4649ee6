package query

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DocumentSchema requests the schema of a document type.
type DocumentSchema struct {
	DocumentType docgen.DocumentType
}

func (DocumentSchema) Type() string { return "document:schema" }

func (msg DocumentSchema) Validate() error {
	return requireType(msg.DocumentType)
}

// ListTemplates requests the template catalog for a document type. An empty
// type lists every template.
type ListTemplates struct {
	DocumentType docgen.DocumentType
}

func (ListTemplates) Type() string { return "document:templates" }

func (ListTemplates) Validate() error { return nil }

// ValidateDocument validates a whole model.
type ValidateDocument struct {
	Input docgen.DocumentInput
}

func (ValidateDocument) Type() string { return "document:validate" }

func (msg ValidateDocument) Validate() error {
	return requireType(msg.Input.Type)
}

// ValidateField validates one field path of a model.
type ValidateField struct {
	Input docgen.DocumentInput
	Path  string
}

func (ValidateField) Type() string { return "document:validate-field" }

func (msg ValidateField) Validate() error {
	if err := requireType(msg.Input.Type); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Path) == "" {
		return errors.New("field path is required", errors.CategoryValidation).
			WithTextCode("FIELD_PATH_REQUIRED")
	}
	return nil
}

// DocumentProgress requests step progress for a model.
type DocumentProgress struct {
	Input docgen.DocumentInput
	Step  string
}

func (DocumentProgress) Type() string { return "document:progress" }

func (msg DocumentProgress) Validate() error {
	return requireType(msg.Input.Type)
}

// PreviewDocument renders a preview without exporting.
type PreviewDocument struct {
	Input docgen.DocumentInput
}

func (PreviewDocument) Type() string { return "document:preview" }

func (msg PreviewDocument) Validate() error {
	return requireType(msg.Input.Type)
}

// ExportStatus requests the export session state of a document key.
type ExportStatus struct {
	DocumentKey string
}

func (ExportStatus) Type() string { return "document:status" }

func (msg ExportStatus) Validate() error {
	if strings.TrimSpace(msg.DocumentKey) == "" {
		return errors.New("document key is required", errors.CategoryValidation).
			WithTextCode("DOCUMENT_KEY_REQUIRED")
	}
	return nil
}

func requireType(docType docgen.DocumentType) error {
	if strings.TrimSpace(string(docType)) == "" {
		return errors.New("document type is required", errors.CategoryValidation).
			WithTextCode("DOCUMENT_TYPE_REQUIRED")
	}
	return nil
}
