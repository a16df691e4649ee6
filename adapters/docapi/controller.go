package docapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	errorslib "github.com/goliatone/go-errors"
	docformgen "github.com/goliatone/go-schooldocs/adapters/formgen"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultBasePath is the route prefix when Config.BasePath is empty.
const DefaultBasePath = "/api/docgen"

// Document actions served under /documents/:type/.
const (
	ActionSchema        = "schema"
	ActionValidate      = "validate"
	ActionValidateField = "validate-field"
	ActionProgress      = "progress"
	ActionForm          = "form"
	ActionPreview       = "preview"
	ActionExport        = "export"
	ActionSheet         = "sheet"
)

// Config configures the shared document API controller.
type Config struct {
	Service          docgen.Service
	ActorProvider    ActorProvider
	BasePath         string
	RequestDecoder   RequestDecoder
	IdempotencyStore IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           docgen.Logger
}

// Controller exposes document API handlers for multiple transports.
type Controller struct {
	service          docgen.Service
	actorProvider    ActorProvider
	basePath         string
	requestDecoder   RequestDecoder
	idempotencyStore IdempotencyStore
	idempotencyTTL   time.Duration
	logger           docgen.Logger
}

// NewController creates a shared document API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = docgen.NopLogger{}
	}
	decoder := cfg.RequestDecoder
	if decoder == nil {
		decoder = JSONRequestDecoder{}
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Controller{
		service:          cfg.Service,
		actorProvider:    cfg.ActorProvider,
		basePath:         basePath,
		requestDecoder:   decoder,
		idempotencyStore: cfg.IdempotencyStore,
		idempotencyTTL:   ttl,
		logger:           logger,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes document endpoints.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, docgen.NewError(docgen.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, docgen.NewError(docgen.KindInternal, "request is nil", nil))
		return
	}
	if c.service == nil {
		WriteError(res, docgen.NewError(docgen.KindNotImpl, "document service not configured", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	suffix := strings.Trim(strings.TrimPrefix(req.Path(), c.basePath), "/")
	parts := []string{}
	if suffix != "" {
		parts = strings.Split(suffix, "/")
	}
	if len(parts) == 0 {
		writeNotFound(res)
		return
	}

	switch {
	case parts[0] == "templates" && len(parts) == 1:
		if !allow(req, res, http.MethodGet) {
			return
		}
		c.handleTemplates(req, res)
	case parts[0] == "documents" && len(parts) == 3:
		docType := docgen.DocumentType(parts[1])
		if parts[2] == ActionSchema {
			if !allow(req, res, http.MethodGet) {
				return
			}
			c.handleSchema(req, res, docType)
			return
		}
		if !allow(req, res, http.MethodPost) {
			return
		}
		c.handleDocument(req, res, docType, parts[2])
	case parts[0] == "exports" && len(parts) == 2:
		key := unescape(parts[1])
		switch req.Method() {
		case http.MethodGet:
			c.handleStatus(req, res, key)
		case http.MethodDelete:
			c.handleDismiss(req, res, key)
		default:
			res.SetHeader("Allow", "GET,DELETE")
			res.WriteHeader(http.StatusMethodNotAllowed)
		}
	case parts[0] == "artifacts" && len(parts) >= 2:
		if !allow(req, res, http.MethodGet) {
			return
		}
		c.handleDownload(req, res, unescape(strings.Join(parts[1:], "/")))
	default:
		writeNotFound(res)
	}
}

func (c *Controller) handleTemplates(req Request, res Response) {
	listing, err := c.service.Templates(req.Context(), docgen.DocumentType(req.Query("type")))
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, listing)
}

func (c *Controller) handleSchema(req Request, res Response, docType docgen.DocumentType) {
	schema, err := c.service.Schema(req.Context(), docType)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, schema)
}

func (c *Controller) handleDocument(req Request, res Response, docType docgen.DocumentType, action string) {
	switch action {
	case ActionValidate, ActionValidateField, ActionProgress, ActionForm, ActionPreview, ActionExport, ActionSheet:
	default:
		writeNotFound(res)
		return
	}
	if _, err := c.service.Schema(req.Context(), docType); err != nil {
		WriteError(res, err)
		return
	}
	decoded, err := c.requestDecoder.Decode(req, docType)
	if err != nil {
		WriteError(res, err)
		return
	}

	switch action {
	case ActionValidate:
		c.handleValidate(req, res, decoded)
	case ActionValidateField:
		c.handleValidateField(req, res, decoded)
	case ActionProgress:
		c.handleProgress(req, res, decoded)
	case ActionForm:
		c.handleForm(req, res, decoded)
	case ActionPreview:
		c.handlePreview(req, res, decoded)
	case ActionExport:
		c.handleExport(req, res, decoded)
	case ActionSheet:
		c.handleSheet(req, res, decoded)
	}
}

func (c *Controller) handleValidate(req Request, res Response, decoded DocumentRequest) {
	result, err := c.service.Validate(req.Context(), decoded.Input)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, result)
}

func (c *Controller) handleValidateField(req Request, res Response, decoded DocumentRequest) {
	errs, err := c.service.ValidateField(req.Context(), docgen.ValidateFieldInput{Input: decoded.Input, Path: decoded.Path})
	if err != nil {
		WriteError(res, err)
		return
	}
	if errs == nil {
		errs = []docgen.FieldError{}
	}
	writeJSON(res, http.StatusOK, map[string]any{"path": decoded.Path, "errors": errs})
}

func (c *Controller) handleProgress(req Request, res Response, decoded DocumentRequest) {
	progress, err := c.service.Progress(req.Context(), decoded.Input, decoded.Step)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, progress)
}

func (c *Controller) handleForm(req Request, res Response, decoded DocumentRequest) {
	ctx := req.Context()
	input := decoded.Input
	schema, err := c.service.Schema(ctx, input.Type)
	if err != nil {
		WriteError(res, err)
		return
	}
	validation, err := c.service.Validate(ctx, input)
	if err != nil {
		WriteError(res, err)
		return
	}
	progress, err := c.service.Progress(ctx, input, decoded.Step)
	if err != nil {
		WriteError(res, err)
		return
	}
	desc, err := c.service.Descriptor(ctx, input)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, docformgen.Build(docformgen.Input{
		Schema:     schema,
		Model:      input.Model,
		Descriptor: desc,
		Progress:   progress,
		Validation: validation,
		Locale:     input.Locale,
		BasePath:   c.basePath,
	}))
}

func (c *Controller) handlePreview(req Request, res Response, decoded DocumentRequest) {
	result, err := c.service.Preview(req.Context(), decoded.Input)
	if err != nil {
		WriteError(res, err)
		return
	}
	if !acceptsHTML(req.Header("Accept")) {
		writeJSON(res, http.StatusOK, result)
		return
	}
	res.SetHeader("Content-Type", "text/html; charset=utf-8")
	res.SetHeader("X-Can-Export", fmt.Sprintf("%t", result.Validation.CanExport))
	res.SetHeader("X-Render-Warnings", fmt.Sprintf("%d", len(result.Preview.Warnings)))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(result.Preview.HTML); err != nil {
		c.logger.Errorf("preview write failed: %v", err)
	}
}

func (c *Controller) handleExport(req Request, res Response, decoded DocumentRequest) {
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	if c.replay(req, res, ActionExport, actor, decoded.Input) {
		return
	}

	result, err := c.service.Export(req.Context(), actor, decoded.Input)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.remember(req, ActionExport, actor, decoded.Input, result.Artifact.Key)

	schema, _ := c.service.Schema(req.Context(), decoded.Input.Type)
	docKey := docgen.DocumentKey(schema, decoded.Input)
	if wantsJSON(req.Header("Accept")) {
		writeJSON(res, http.StatusOK, c.exportResponse(result.Artifact, result.State, result.Collapsed, docKey))
		return
	}
	res.SetHeader("X-Document-Key", docKey)
	if result.Collapsed {
		res.SetHeader("X-Export-Collapsed", "true")
	}
	c.writeArtifact(req, res, result.Artifact)
}

func (c *Controller) handleSheet(req Request, res Response, decoded DocumentRequest) {
	actor, err := c.actorFromRequest(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	if c.replay(req, res, ActionSheet, actor, decoded.Input) {
		return
	}

	artifact, err := c.service.ExportSheet(req.Context(), actor, decoded.Input)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.remember(req, ActionSheet, actor, decoded.Input, artifact.Key)

	if wantsJSON(req.Header("Accept")) {
		writeJSON(res, http.StatusOK, c.exportResponse(artifact, "", false, ""))
		return
	}
	c.writeArtifact(req, res, artifact)
}

func (c *Controller) handleStatus(req Request, res Response, key string) {
	status, err := c.service.Status(req.Context(), key)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, status)
}

func (c *Controller) handleDismiss(req Request, res Response, key string) {
	status, err := c.service.Dismiss(req.Context(), key)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, status)
}

func (c *Controller) handleDownload(req Request, res Response, key string) {
	download, err := c.service.Download(req.Context(), key)
	if err != nil {
		WriteError(res, err)
		return
	}
	c.streamDownload(res, download)
}

func (c *Controller) streamDownload(res Response, download docgen.Download) {
	defer download.Reader.Close()

	meta := download.Meta
	filename := meta.Filename
	if filename == "" {
		filename = path.Base(download.Key)
	}
	setDownloadHeaders(res, artifactID(download.Key), sanitizeFilename(filename), meta.ContentType)
	if meta.Size > 0 {
		res.SetHeader("Content-Length", fmt.Sprintf("%d", meta.Size))
	}

	if writer, ok := res.Writer(); ok {
		res.WriteHeader(http.StatusOK)
		if _, err := io.Copy(writer, download.Reader); err != nil {
			c.logger.Errorf("download copy failed: %v", err)
		}
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, download.Reader); err != nil {
		clearDownloadHeaders(res)
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(buf.Bytes()); err != nil {
		c.logger.Errorf("download buffer write failed: %v", err)
	}
}

// writeArtifact sends the produced bytes, reading them back from the store
// when the result did not carry them.
func (c *Controller) writeArtifact(req Request, res Response, artifact docgen.Artifact) {
	if len(artifact.Bytes) == 0 {
		download, err := c.service.Download(req.Context(), artifact.Key)
		if err != nil {
			WriteError(res, err)
			return
		}
		c.streamDownload(res, download)
		return
	}
	setDownloadHeaders(res, artifact.ID, sanitizeFilename(artifact.Filename), artifact.ContentType)
	res.SetHeader("Content-Length", fmt.Sprintf("%d", len(artifact.Bytes)))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(artifact.Bytes); err != nil {
		c.logger.Errorf("artifact write failed: %v", err)
	}
}

// replay serves a stored artifact for a repeated Idempotency-Key.
func (c *Controller) replay(req Request, res Response, action string, actor docgen.Actor, input docgen.DocumentInput) bool {
	key := strings.TrimSpace(req.Header("Idempotency-Key"))
	if key == "" || c.idempotencyStore == nil {
		return false
	}
	signature := buildIdempotencyKey(key, action, actor, input)
	artifactKey, ok, err := c.idempotencyStore.Get(req.Context(), signature)
	if err != nil {
		c.logger.Errorf("idempotency store get failed: %v", err)
		return false
	}
	if !ok {
		return false
	}
	download, err := c.service.Download(req.Context(), artifactKey)
	if err != nil {
		// Artifact pruned or removed; run the export again.
		return false
	}
	res.SetHeader("X-Idempotent-Replay", "true")
	if wantsJSON(req.Header("Accept")) {
		_ = download.Reader.Close()
		writeJSON(res, http.StatusOK, ExportResponse{
			ArtifactID:  artifactID(artifactKey),
			Filename:    download.Meta.Filename,
			ContentType: download.Meta.ContentType,
			Size:        download.Meta.Size,
			Replayed:    true,
			DownloadURL: c.downloadURL(artifactKey),
		})
		return true
	}
	c.streamDownload(res, download)
	return true
}

func (c *Controller) remember(req Request, action string, actor docgen.Actor, input docgen.DocumentInput, artifactKey string) {
	key := strings.TrimSpace(req.Header("Idempotency-Key"))
	if key == "" || c.idempotencyStore == nil || artifactKey == "" {
		return
	}
	signature := buildIdempotencyKey(key, action, actor, input)
	if err := c.idempotencyStore.Set(req.Context(), signature, artifactKey, c.idempotencyTTL); err != nil {
		c.logger.Errorf("idempotency store set failed: %v", err)
	}
}

func (c *Controller) exportResponse(artifact docgen.Artifact, state docgen.ExportState, collapsed bool, docKey string) ExportResponse {
	out := ExportResponse{
		ArtifactID:  artifact.ID,
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
		Size:        artifact.Size,
		State:       state,
		Collapsed:   collapsed,
		Geometry:    artifact.Geometry,
		DocumentKey: docKey,
		DownloadURL: c.downloadURL(artifact.Key),
	}
	if docKey != "" {
		out.StatusURL = c.statusURL(docKey)
	}
	return out
}

func (c *Controller) actorFromRequest(req Request) (docgen.Actor, error) {
	if c.actorProvider == nil {
		return docgen.Actor{}, nil
	}
	actor, err := c.actorProvider.FromContext(req.Context())
	if err != nil {
		return docgen.Actor{}, docgen.NewError(docgen.KindAuthz, "actor resolution failed", err)
	}
	return actor, nil
}

func (c *Controller) statusURL(docKey string) string {
	return c.basePath + "/exports/" + url.PathEscape(docKey)
}

func (c *Controller) downloadURL(artifactKey string) string {
	return c.basePath + "/artifacts/" + artifactKey
}

func allow(req Request, res Response, method string) bool {
	if req.Method() == method {
		return true
	}
	res.SetHeader("Allow", method)
	res.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func unescape(value string) string {
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}

func writeNotFound(res Response) {
	res.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.SetHeader("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusNotFound)
	_, _ = res.Write([]byte("404 page not found\n"))
}

// WriteError writes err as a JSON error body. Rejected models list their
// field errors so the form can highlight them.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := docgen.AsGoError(err)
	payload := ErrorResponse{
		Error: ErrorBody{
			Message:   ge.Message,
			Code:      ge.TextCode,
			Retryable: docgen.IsRetryable(err),
		},
	}
	status := statusForError(ge)
	if valErr, ok := asValidationError(err); ok {
		payload.Error.Fields = valErr.Result.Errors
		status = http.StatusUnprocessableEntity
	}
	writeJSON(res, status, payload)
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case "not_implemented":
		return http.StatusNotImplemented
	case "conflict", "canceled":
		return http.StatusConflict
	case "network":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryAuthz:
		return http.StatusForbidden
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func acceptsHTML(accept string) bool {
	return strings.Contains(strings.ToLower(accept), "text/html")
}

func wantsJSON(accept string) bool {
	accept = strings.ToLower(accept)
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "application/pdf")
}

func artifactID(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

func sanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "document"
	}
	return name
}

func setDownloadHeaders(res Response, id, filename, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if id != "" {
		res.SetHeader("X-Artifact-Id", id)
	}
}

func clearDownloadHeaders(res Response) {
	res.DelHeader("Content-Disposition")
	res.DelHeader("Content-Type")
	res.DelHeader("Content-Length")
	res.DelHeader("X-Artifact-Id")
}

func asValidationError(err error) (*docgen.ValidationError, bool) {
	var valErr *docgen.ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}
