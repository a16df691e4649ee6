package docgen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ExportState is the state of a document's export pipeline.
type ExportState string

const (
	StateIdle      ExportState = "idle"
	StateCapturing ExportState = "capturing"
	StateEncoding  ExportState = "encoding"
	StateReady     ExportState = "ready"
	StateFailed    ExportState = "failed"
)

// DefaultCaptureScale is the device scale used when rasterizing previews.
const DefaultCaptureScale = 2.0

const maxStateHistory = 16

var exportTransitions = map[ExportState][]ExportState{
	StateIdle:      {StateCapturing},
	StateCapturing: {StateEncoding, StateFailed},
	StateEncoding:  {StateReady, StateFailed},
	StateReady:     {StateIdle},
	StateFailed:    {StateIdle},
}

// CanTransition reports whether the pipeline may move from one state to another.
func CanTransition(from, to ExportState) bool {
	for _, next := range exportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Pending reports whether an export is in flight in this state.
func (s ExportState) Pending() bool {
	return s == StateCapturing || s == StateEncoding
}

// ExportRequest is one trigger of the export pipeline.
type ExportRequest struct {
	Key      string
	Schema   Schema
	Model    DocumentModel
	Preview  RenderedPreview
	Filename string
	Actor    Actor
}

// ExportResult is returned to every caller of a trigger.
type ExportResult struct {
	Artifact  Artifact    `json:"artifact"`
	State     ExportState `json:"state"`
	Collapsed bool        `json:"collapsed"`
}

// SessionStatus describes the export state of one document key.
type SessionStatus struct {
	Key            string        `json:"key"`
	State          ExportState   `json:"state"`
	Pending        bool          `json:"pending"`
	Attempts       int           `json:"attempts"`
	LastArtifactID string        `json:"last_artifact_id,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	Retryable      bool          `json:"retryable,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at,omitempty"`
	History        []ExportState `json:"history,omitempty"`
}

type exportSession struct {
	mu     sync.Mutex
	status SessionStatus
}

func (s *exportSession) transition(to ExportState, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.status.State
	if !CanTransition(from, to) {
		return NewError(KindInternal, fmt.Sprintf("invalid export transition %s -> %s", from, to), nil)
	}
	s.status.State = to
	s.status.Pending = to.Pending()
	s.status.UpdatedAt = now
	s.status.History = append(s.status.History, to)
	if len(s.status.History) > maxStateHistory {
		s.status.History = s.status.History[len(s.status.History)-maxStateHistory:]
	}
	return nil
}

func (s *exportSession) snapshot() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.status
	out.History = append([]ExportState(nil), s.status.History...)
	return out
}

// Pipeline runs the capture and encode state machine per document key.
// A trigger joins the pending export for its key only when it carries the
// same content; a different model or template gets a conflict error.
type Pipeline struct {
	Capturer    Capturer
	Encoder     Encoder
	Inspector   Inspector
	Store       ArtifactStore
	Records     RecordSink
	Emitter     ChangeEmitter
	Logger      Logger
	Scale       float64
	Now         func() time.Time
	IDGenerator func() string

	mu       sync.Mutex
	sessions map[string]*exportSession
	flights  singleflight.Group
}

// NewPipeline creates a pipeline with in-memory artifact storage.
func NewPipeline(capturer Capturer, encoder Encoder) *Pipeline {
	return &Pipeline{
		Capturer:    capturer,
		Encoder:     encoder,
		Store:       NewMemoryStore(),
		Logger:      NopLogger{},
		Scale:       DefaultCaptureScale,
		Now:         time.Now,
		IDGenerator: uuid.NewString,
	}
}

// Run triggers an export. The export is not canceled by ctx once started.
func (p *Pipeline) Run(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if p == nil {
		return ExportResult{}, NewError(KindInternal, "pipeline is nil", nil)
	}
	if req.Key == "" {
		return ExportResult{}, NewError(KindValidation, "document key is required", nil)
	}
	if p.Capturer == nil {
		return ExportResult{}, NewError(KindNotImpl, "capturer not configured", nil)
	}
	if p.Encoder == nil {
		return ExportResult{}, NewError(KindNotImpl, "encoder not configured", nil)
	}
	if p.Store == nil {
		return ExportResult{}, NewError(KindNotImpl, "artifact store not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := context.WithoutCancel(ctx)

	flight, err := flightKey(req)
	if err != nil {
		return ExportResult{}, NewError(KindValidation, "document model cannot be fingerprinted", err)
	}

	executed := false
	value, err, _ := p.flights.Do(flight, func() (any, error) {
		executed = true
		return p.run(runCtx, req)
	})
	if err != nil {
		return ExportResult{State: StateFailed, Collapsed: !executed}, err
	}
	result := value.(ExportResult)
	result.Collapsed = !executed
	return result, nil
}

// ContentFingerprint hashes what an export would put on the page: the model,
// the rendered preview, its descriptor and page, and the filename.
func ContentFingerprint(req ExportRequest) (string, error) {
	payload, err := json.Marshal(struct {
		Model      DocumentModel      `json:"model"`
		HTML       []byte             `json:"html"`
		Target     string             `json:"target"`
		Page       PageSpec           `json:"page"`
		Descriptor TemplateDescriptor `json:"descriptor"`
		Filename   string             `json:"filename"`
	}{req.Model, req.Preview.HTML, req.Preview.Target, req.Preview.Page, req.Preview.Descriptor, req.Filename})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func flightKey(req ExportRequest) (string, error) {
	fingerprint, err := ContentFingerprint(req)
	if err != nil {
		return "", err
	}
	return req.Key + "#" + fingerprint, nil
}

// Status returns the export status for key. Unknown keys are idle.
func (p *Pipeline) Status(key string) SessionStatus {
	if p == nil {
		return SessionStatus{Key: key, State: StateIdle}
	}
	p.mu.Lock()
	sess, ok := p.sessions[key]
	p.mu.Unlock()
	if !ok {
		return SessionStatus{Key: key, State: StateIdle}
	}
	return sess.snapshot()
}

// Dismiss returns a ready or failed session to idle.
func (p *Pipeline) Dismiss(key string) (SessionStatus, error) {
	if p == nil {
		return SessionStatus{}, NewError(KindInternal, "pipeline is nil", nil)
	}
	p.mu.Lock()
	sess, ok := p.sessions[key]
	p.mu.Unlock()
	if !ok {
		return SessionStatus{Key: key, State: StateIdle}, nil
	}
	current := sess.snapshot()
	switch current.State {
	case StateIdle:
		return current, nil
	case StateReady, StateFailed:
		if err := sess.transition(StateIdle, p.now()); err != nil {
			return SessionStatus{}, err
		}
		return sess.snapshot(), nil
	default:
		return current, NewError(KindConflict, "export is in progress", nil)
	}
}

func (p *Pipeline) run(ctx context.Context, req ExportRequest) (ExportResult, error) {
	sess := p.session(req.Key)
	if state := sess.snapshot().State; state == StateReady || state == StateFailed {
		if err := sess.transition(StateIdle, p.now()); err != nil {
			return ExportResult{}, err
		}
	}
	if err := sess.transition(StateCapturing, p.now()); err != nil {
		return ExportResult{}, NewError(KindConflict, "another export with different content is in progress for "+req.Key, err)
	}
	sess.mu.Lock()
	sess.status.Attempts++
	sess.status.LastError = ""
	sess.status.Retryable = false
	sess.mu.Unlock()

	page := req.Preview.Page
	p.emit(ctx, "document.export.requested", req, "", nil)
	p.logger().Debugf("export %s: capturing %s page", req.Key, page.Orientation)

	scale := p.Scale
	if scale <= 0 {
		scale = DefaultCaptureScale
	}
	capture, err := p.Capturer.Capture(ctx, CaptureRequest{
		HTML:   req.Preview.HTML,
		Target: req.Preview.Target,
		Page:   page,
		Scale:  scale,
	})
	if err != nil {
		return ExportResult{}, p.fail(ctx, sess, req, "capture failed", err)
	}
	if len(capture.Image) == 0 && len(capture.HTML) == 0 {
		return ExportResult{}, p.fail(ctx, sess, req, "capture produced no output", nil)
	}
	if err := sess.transition(StateEncoding, p.now()); err != nil {
		return ExportResult{}, p.fail(ctx, sess, req, "export state error", err)
	}

	pdf, err := p.Encoder.Encode(ctx, capture, page)
	if err != nil {
		return ExportResult{}, p.fail(ctx, sess, req, "encode failed", err)
	}
	if len(pdf) == 0 {
		return ExportResult{}, p.fail(ctx, sess, req, "encoder produced no output", nil)
	}

	geometry := PageGeometry{Pages: 1, Width: page.WidthPoints(), Height: page.HeightPoints()}
	if p.Inspector != nil {
		inspected, err := p.Inspector.Inspect(ctx, pdf)
		if err != nil {
			return ExportResult{}, p.fail(ctx, sess, req, "pdf inspection failed", err)
		}
		if inspected.Pages == 0 {
			return ExportResult{}, p.fail(ctx, sess, req, "pdf has no pages", nil)
		}
		if !page.Matches(inspected) {
			return ExportResult{}, p.fail(ctx, sess, req,
				fmt.Sprintf("pdf page geometry %.0fx%.0f does not match %s %s (%.0fx%.0f)",
					inspected.Width, inspected.Height, page.Size, page.Orientation, page.WidthPoints(), page.HeightPoints()), nil)
		}
		geometry = inspected
	}

	artifactID := p.nextID()
	storeKey := artifactID + ".pdf"
	now := p.now()
	ref, err := p.Store.Put(ctx, storeKey, bytes.NewReader(pdf), ArtifactMeta{
		Filename:    req.Filename,
		ContentType: "application/pdf",
		CreatedAt:   now,
	})
	if err != nil {
		return ExportResult{}, p.fail(ctx, sess, req, "artifact store failed", err)
	}

	artifact := Artifact{
		ID:          artifactID,
		Key:         ref.Key,
		Filename:    req.Filename,
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
		Page:        page,
		Geometry:    geometry,
		CreatedAt:   now,
		Bytes:       append([]byte(nil), pdf...),
	}

	if err := sess.transition(StateReady, p.now()); err != nil {
		return ExportResult{}, p.fail(ctx, sess, req, "export state error", err)
	}
	sess.mu.Lock()
	sess.status.LastArtifactID = artifactID
	sess.mu.Unlock()

	p.submitRecord(ctx, req, artifact)
	p.emit(ctx, "document.export.ready", req, artifactID, map[string]any{
		"filename": artifact.Filename,
		"size":     artifact.Size,
		"pages":    geometry.Pages,
	})
	p.logger().Infof("export %s: ready %s (%d bytes)", req.Key, artifact.Filename, artifact.Size)

	return ExportResult{Artifact: artifact, State: StateReady}, nil
}

func (p *Pipeline) fail(ctx context.Context, sess *exportSession, req ExportRequest, msg string, cause error) error {
	exportErr := NewError(KindExport, msg, cause)
	if kind := KindFromError(cause); kind == KindExport {
		if existing, ok := cause.(*Error); ok {
			exportErr = existing
		}
	}
	if err := sess.transition(StateFailed, p.now()); err != nil {
		p.logger().Errorf("export %s: %v", req.Key, err)
	}
	sess.mu.Lock()
	sess.status.LastError = exportErr.Error()
	sess.status.Retryable = true
	sess.mu.Unlock()

	p.emit(ctx, "document.export.failed", req, "", map[string]any{"error": exportErr.Error()})
	p.logger().Errorf("export %s: %v", req.Key, exportErr)
	return exportErr
}

func (p *Pipeline) submitRecord(ctx context.Context, req ExportRequest, artifact Artifact) {
	if p.Records == nil {
		return
	}
	record := GeneratedRecord{
		ArtifactID:      artifact.ID,
		DocumentType:    req.Schema.Type,
		DocumentKey:     req.Key,
		TemplateID:      req.Preview.Descriptor.ID,
		TemplateVersion: req.Preview.Descriptor.Version,
		Filename:        artifact.Filename,
		Size:            artifact.Size,
		Orientation:     artifact.Page.Orientation,
		Pages:           artifact.Geometry.Pages,
		Actor:           req.Actor,
		Identity:        IdentityOf(req.Schema, req.Model),
		CreatedAt:       artifact.CreatedAt,
	}
	if err := p.Records.SubmitRecord(ctx, record); err != nil {
		p.logger().Errorf("export %s: record submission failed: %v", req.Key, NewError(KindNetwork, "record submission failed", err))
	}
}

func (p *Pipeline) emit(ctx context.Context, name string, req ExportRequest, artifactID string, meta map[string]any) {
	if p.Emitter == nil {
		return
	}
	evt := ChangeEvent{
		Name:         name,
		ArtifactID:   artifactID,
		DocumentKey:  req.Key,
		DocumentType: req.Schema.Type,
		TemplateID:   req.Preview.Descriptor.ID,
		Actor:        req.Actor,
		Timestamp:    p.now(),
		Metadata:     meta,
	}
	if err := p.Emitter.Emit(ctx, evt); err != nil {
		p.logger().Errorf("export %s: emit %s failed: %v", req.Key, name, err)
	}
}

func (p *Pipeline) session(key string) *exportSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = make(map[string]*exportSession)
	}
	sess, ok := p.sessions[key]
	if !ok {
		sess = &exportSession{status: SessionStatus{Key: key, State: StateIdle}}
		p.sessions[key] = sess
	}
	return sess
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) nextID() string {
	if p.IDGenerator != nil {
		if id := p.IDGenerator(); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func (p *Pipeline) logger() Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return NopLogger{}
}
