package docapi

import (
	"io"

	"github.com/goliatone/go-schooldocs/docgen"
)

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	DelHeader(name string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
	Writer() (io.Writer, bool)
}

// ExportResponse describes a finished export for JSON clients.
type ExportResponse struct {
	ArtifactID  string              `json:"artifact_id"`
	Filename    string              `json:"filename"`
	ContentType string              `json:"content_type"`
	Size        int64               `json:"size"`
	State       docgen.ExportState  `json:"state,omitempty"`
	Collapsed   bool                `json:"collapsed"`
	Replayed    bool                `json:"replayed,omitempty"`
	Geometry    docgen.PageGeometry `json:"geometry"`
	DocumentKey string              `json:"document_key,omitempty"`
	StatusURL   string              `json:"status_url,omitempty"`
	DownloadURL string              `json:"download_url"`
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details. Fields lists per-field validation
// failures when a model is rejected.
type ErrorBody struct {
	Message   string              `json:"message"`
	Code      string              `json:"code,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
	Fields    []docgen.FieldError `json:"fields,omitempty"`
}
