package docjob

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	doctemplate "github.com/goliatone/go-schooldocs/adapters/template"
	doccmd "github.com/goliatone/go-schooldocs/command"
	"github.com/goliatone/go-schooldocs/docgen"
)

type flakyCapturer struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (c *flakyCapturer) Capture(ctx context.Context, req docgen.CaptureRequest) (docgen.Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return docgen.Capture{}, errors.New("browser crashed")
	}
	return docgen.Capture{Image: []byte("png"), HTML: req.HTML, Scale: req.Scale}, nil
}

func newTestService(t *testing.T, capturer docgen.Capturer) (docgen.Service, *docgen.MemoryStore) {
	t.Helper()
	store := docgen.NewMemoryStore()
	pipeline := docgen.NewPipeline(capturer, docgen.EncoderFunc(func(ctx context.Context, capture docgen.Capture, page docgen.PageSpec) ([]byte, error) {
		return []byte("%PDF-1.7"), nil
	}))
	pipeline.Store = store
	svc, err := docgen.NewService(docgen.ServiceConfig{
		Renderer: doctemplate.NewRenderer(nil),
		Pipeline: pipeline,
		Store:    store,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, store
}

func directDispatch(svc docgen.Service) ExportDispatch {
	handler := doccmd.NewExportDocumentHandler(svc)
	return func(ctx context.Context, msg doccmd.ExportDocument) error {
		return handler.Execute(ctx, msg)
	}
}

func admitInput(roll string) docgen.DocumentInput {
	model := docgen.DocumentModel{
		"studentName": "Rahim Uddin",
		"className":   "9",
		"examName":    "Half Yearly",
		"year":        2024,
		"subjects":    []any{map[string]any{"subject": "Bangla", "date": "2024-06-01"}},
	}
	if roll != "" {
		model["rollNumber"] = roll
	}
	return docgen.DocumentInput{Type: docgen.TypeAdmitCard, Model: model}
}

func TestExportTask_ExecutesQueuedMessage(t *testing.T) {
	svc, store := newTestService(t, &flakyCapturer{})

	var queued []*job.ExecutionMessage
	scheduler := NewScheduler(Config{
		Service: svc,
		Enqueuer: EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
			queued = append(queued, msg)
			return nil
		}),
	})

	actor := docgen.Actor{ID: "teacher-1"}
	ticket, err := scheduler.Enqueue(context.Background(), actor, admitInput("42"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(queued) != 1 || ticket.JobID != DefaultExportTaskID {
		t.Fatalf("expected one queued message, got %d (%+v)", len(queued), ticket)
	}
	if queued[0].DedupPolicy != job.DedupPolicyMerge || queued[0].IdempotencyKey == "" {
		t.Fatalf("expected merge dedup with idempotency key, got %+v", queued[0])
	}

	task := NewExportTask(TaskConfig{Dispatch: directDispatch(svc)})
	if err := task.Execute(context.Background(), queued[0]); err != nil {
		t.Fatalf("execute: %v", err)
	}

	status, err := svc.Status(context.Background(), ticket.DocumentKey)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != docgen.StateReady {
		t.Fatalf("expected ready state, got %s", status.State)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one artifact, got %d", store.Len())
	}
}

func TestExportTask_RetriesFailedCapture(t *testing.T) {
	capturer := &flakyCapturer{failures: 1}
	svc, _ := newTestService(t, capturer)

	builder := NewMessageBuilder(MessageBuilderConfig{Service: svc})
	task := NewExportTask(TaskConfig{
		Dispatch: directDispatch(svc),
		RetryPolicy: RetryPolicy{
			MaxRetries: 2,
			Backoff:    job.BackoffConfig{Strategy: job.BackoffFixed, Interval: time.Millisecond},
		},
	})

	exporter := NewBatchExporter(task, builder)
	result, err := exporter.Export(context.Background(), docgen.Actor{ID: "teacher-1"}, admitInput("7"))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.State != docgen.StateReady {
		t.Fatalf("expected ready result, got %s", result.State)
	}
	if capturer.calls != 2 {
		t.Fatalf("expected one retry, got %d captures", capturer.calls)
	}
}

func TestExportTask_GivesUpWithoutRetries(t *testing.T) {
	capturer := &flakyCapturer{failures: 5}
	svc, _ := newTestService(t, capturer)

	builder := NewMessageBuilder(MessageBuilderConfig{Service: svc})
	built, err := builder.Build(context.Background(), docgen.Actor{ID: "teacher-1"}, admitInput("7"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	task := NewExportTask(TaskConfig{Dispatch: directDispatch(svc)})
	err = task.Execute(context.Background(), built.Message)
	if docgen.KindFromError(err) != docgen.KindExport {
		t.Fatalf("expected export error, got %v", err)
	}
	if capturer.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", capturer.calls)
	}
}

func TestMessageBuilder_RejectsInvalidModel(t *testing.T) {
	svc, _ := newTestService(t, &flakyCapturer{})
	builder := NewMessageBuilder(MessageBuilderConfig{Service: svc})

	_, err := builder.Build(context.Background(), docgen.Actor{ID: "teacher-1"}, admitInput(""))
	var valErr *docgen.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !valErr.Result.HasError("rollNumber") {
		t.Fatalf("expected rollNumber error, got %+v", valErr.Result.Errors)
	}

	if _, err := builder.Build(context.Background(), docgen.Actor{}, admitInput("1")); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected actor validation error, got %v", err)
	}
}

func TestMessageBuilder_KeepsDifferentStudentsApart(t *testing.T) {
	svc, _ := newTestService(t, &flakyCapturer{})
	builder := NewMessageBuilder(MessageBuilderConfig{Service: svc})
	actor := docgen.Actor{ID: "teacher-1"}

	rahim, err := builder.Build(context.Background(), actor, admitInput("5"))
	if err != nil {
		t.Fatalf("build rahim: %v", err)
	}
	karimInput := admitInput("5")
	karimInput.Model["studentName"] = "Karim Hossain"
	karimInput.Model["className"] = "10"
	karim, err := builder.Build(context.Background(), actor, karimInput)
	if err != nil {
		t.Fatalf("build karim: %v", err)
	}

	if rahim.DocumentKey != karim.DocumentKey {
		t.Fatalf("expected a shared document key, got %q and %q", rahim.DocumentKey, karim.DocumentKey)
	}
	if rahim.Message.IdempotencyKey == karim.Message.IdempotencyKey {
		t.Fatalf("different students must not merge in the queue: %q", rahim.Message.IdempotencyKey)
	}

	again, err := builder.Build(context.Background(), actor, admitInput("5"))
	if err != nil {
		t.Fatalf("build again: %v", err)
	}
	if again.Message.IdempotencyKey != rahim.Message.IdempotencyKey {
		t.Fatalf("expected identical input to merge, got %q and %q", again.Message.IdempotencyKey, rahim.Message.IdempotencyKey)
	}
}

func TestDecodePayload_AcceptsMapParameters(t *testing.T) {
	msg := &job.ExecutionMessage{Parameters: map[string]any{
		"payload": map[string]any{
			"document_key": "admit_card:rollNumber=1",
			"actor":        map[string]any{"id": "teacher-1"},
			"input":        map[string]any{"type": "admit_card", "model": map[string]any{"rollNumber": "1"}},
		},
	}}
	payload, err := decodePayload(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Actor.ID != "teacher-1" || payload.Input.Type != docgen.TypeAdmitCard {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if _, err := decodePayload(&job.ExecutionMessage{}); docgen.KindFromError(err) != docgen.KindValidation {
		t.Fatalf("expected validation error for empty message, got %v", err)
	}
}

func TestComputeBackoffDelay(t *testing.T) {
	cfg := job.BackoffConfig{Strategy: job.BackoffExponential, Interval: 100 * time.Millisecond, MaxInterval: 300 * time.Millisecond}
	if got := computeBackoffDelay(1, cfg); got != 100*time.Millisecond {
		t.Fatalf("attempt 1: got %s", got)
	}
	if got := computeBackoffDelay(2, cfg); got != 200*time.Millisecond {
		t.Fatalf("attempt 2: got %s", got)
	}
	if got := computeBackoffDelay(5, cfg); got != 300*time.Millisecond {
		t.Fatalf("attempt 5: expected cap, got %s", got)
	}
	if got := computeBackoffDelay(1, job.BackoffConfig{}); got != 0 {
		t.Fatalf("expected no delay without strategy, got %s", got)
	}
}
