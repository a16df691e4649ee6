package docapi

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultMaxBodyBytes bounds a decoded request body. Models carry inline
// images, so the limit is well above a plain form payload.
const DefaultMaxBodyBytes int64 = 16 * 1024 * 1024

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// ActorProvider resolves the acting user from a request context.
type ActorProvider interface {
	FromContext(ctx context.Context) (docgen.Actor, error)
}

// DocumentRequest is a decoded document action.
type DocumentRequest struct {
	Input docgen.DocumentInput
	Step  string
	Path  string
}

// RequestDecoder parses a request body into a document action.
type RequestDecoder interface {
	Decode(req Request, docType docgen.DocumentType) (DocumentRequest, error)
}

// JSONRequestDecoder decodes JSON document payloads.
type JSONRequestDecoder struct {
	MaxBodyBytes int64
}

// Decode reads the body and fills the locale from the query or the
// Accept-Language header when the payload omits it.
func (d JSONRequestDecoder) Decode(req Request, docType docgen.DocumentType) (DocumentRequest, error) {
	if req == nil {
		return DocumentRequest{}, docgen.NewError(docgen.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return DocumentRequest{}, docgen.NewError(docgen.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	payload, err := decodePayload(io.LimitReader(body, limit+1), limit)
	if err != nil {
		return DocumentRequest{}, err
	}

	locale := strings.TrimSpace(payload.Locale)
	if locale == "" {
		locale = strings.TrimSpace(req.Query("locale"))
	}
	if locale == "" {
		locale = localeFromHeader(req.Header("Accept-Language"))
	}
	model := payload.Model
	if model == nil {
		model = docgen.DocumentModel{}
	}

	return DocumentRequest{
		Input: docgen.DocumentInput{
			Type:       docType,
			Key:        payload.Key,
			Model:      model,
			TemplateID: payload.TemplateID,
			Descriptor: payload.Descriptor,
			Locale:     locale,
		},
		Step: payload.Step,
		Path: payload.Path,
	}, nil
}

type documentPayload struct {
	Key        string                     `json:"key,omitempty"`
	Model      docgen.DocumentModel       `json:"model"`
	TemplateID string                     `json:"template_id,omitempty"`
	Descriptor *docgen.TemplateDescriptor `json:"descriptor,omitempty"`
	Locale     string                     `json:"locale,omitempty"`
	Step       string                     `json:"step,omitempty"`
	Path       string                     `json:"path,omitempty"`
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func decodePayload(body io.Reader, limit int64) (documentPayload, error) {
	var payload documentPayload
	counter := &countingReader{r: body}
	decoder := json.NewDecoder(counter)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		if counter.n > limit {
			return documentPayload{}, docgen.NewError(docgen.KindValidation, "request body too large", err)
		}
		return documentPayload{}, docgen.NewError(docgen.KindValidation, "invalid request payload", err)
	}
	return payload, nil
}

// localeFromHeader picks the primary language of the first Accept-Language tag.
func localeFromHeader(value string) string {
	first, _, _ := strings.Cut(value, ",")
	first, _, _ = strings.Cut(first, ";")
	first, _, _ = strings.Cut(strings.TrimSpace(first), "-")
	first = strings.ToLower(strings.TrimSpace(first))
	if first == "*" {
		return ""
	}
	return first
}
