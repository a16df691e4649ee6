package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-schooldocs/docgen"
)

func serviceRequired() error {
	return errors.New("document service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}

// DocumentSchemaHandler returns document schemas.
type DocumentSchemaHandler struct {
	Service docgen.Service
}

func NewDocumentSchemaHandler(svc docgen.Service) *DocumentSchemaHandler {
	return &DocumentSchemaHandler{Service: svc}
}

func (h *DocumentSchemaHandler) Query(ctx context.Context, msg DocumentSchema) (docgen.Schema, error) {
	if h == nil || h.Service == nil {
		return docgen.Schema{}, serviceRequired()
	}
	return h.Service.Schema(ctx, msg.DocumentType)
}

// ListTemplatesHandler returns the merged template catalog.
type ListTemplatesHandler struct {
	Service docgen.Service
}

func NewListTemplatesHandler(svc docgen.Service) *ListTemplatesHandler {
	return &ListTemplatesHandler{Service: svc}
}

func (h *ListTemplatesHandler) Query(ctx context.Context, msg ListTemplates) (docgen.CatalogListing, error) {
	if h == nil || h.Service == nil {
		return docgen.CatalogListing{}, serviceRequired()
	}
	return h.Service.Templates(ctx, msg.DocumentType)
}

// ValidateDocumentHandler validates models. A rejected model is reported in
// the result, not as an error.
type ValidateDocumentHandler struct {
	Service docgen.Service
}

func NewValidateDocumentHandler(svc docgen.Service) *ValidateDocumentHandler {
	return &ValidateDocumentHandler{Service: svc}
}

func (h *ValidateDocumentHandler) Query(ctx context.Context, msg ValidateDocument) (docgen.ValidationResult, error) {
	if h == nil || h.Service == nil {
		return docgen.ValidationResult{}, serviceRequired()
	}
	return h.Service.Validate(ctx, msg.Input)
}

// ValidateFieldHandler validates one field.
type ValidateFieldHandler struct {
	Service docgen.Service
}

func NewValidateFieldHandler(svc docgen.Service) *ValidateFieldHandler {
	return &ValidateFieldHandler{Service: svc}
}

func (h *ValidateFieldHandler) Query(ctx context.Context, msg ValidateField) ([]docgen.FieldError, error) {
	if h == nil || h.Service == nil {
		return nil, serviceRequired()
	}
	return h.Service.ValidateField(ctx, docgen.ValidateFieldInput{Input: msg.Input, Path: msg.Path})
}

// DocumentProgressHandler returns per-step completion.
type DocumentProgressHandler struct {
	Service docgen.Service
}

func NewDocumentProgressHandler(svc docgen.Service) *DocumentProgressHandler {
	return &DocumentProgressHandler{Service: svc}
}

func (h *DocumentProgressHandler) Query(ctx context.Context, msg DocumentProgress) (docgen.Progress, error) {
	if h == nil || h.Service == nil {
		return docgen.Progress{}, serviceRequired()
	}
	return h.Service.Progress(ctx, msg.Input, msg.Step)
}

// PreviewDocumentHandler renders previews.
type PreviewDocumentHandler struct {
	Service docgen.Service
}

func NewPreviewDocumentHandler(svc docgen.Service) *PreviewDocumentHandler {
	return &PreviewDocumentHandler{Service: svc}
}

func (h *PreviewDocumentHandler) Query(ctx context.Context, msg PreviewDocument) (docgen.PreviewResult, error) {
	if h == nil || h.Service == nil {
		return docgen.PreviewResult{}, serviceRequired()
	}
	return h.Service.Preview(ctx, msg.Input)
}

// ExportStatusHandler returns export session state.
type ExportStatusHandler struct {
	Service docgen.Service
}

func NewExportStatusHandler(svc docgen.Service) *ExportStatusHandler {
	return &ExportStatusHandler{Service: svc}
}

func (h *ExportStatusHandler) Query(ctx context.Context, msg ExportStatus) (docgen.SessionStatus, error) {
	if h == nil || h.Service == nil {
		return docgen.SessionStatus{}, serviceRequired()
	}
	return h.Service.Status(ctx, msg.DocumentKey)
}
