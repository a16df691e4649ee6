package docjob

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	errorslib "github.com/goliatone/go-errors"
	job "github.com/goliatone/go-job"
	doccmd "github.com/goliatone/go-schooldocs/command"
	"github.com/goliatone/go-schooldocs/docgen"
)

const (
	DefaultExportTaskID   = "documents:export"
	DefaultExportTaskPath = "documents:export"
)

var (
	backoffRand   = rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffRandMu sync.Mutex
)

// Payload is the job input for one document export.
type Payload struct {
	DocumentKey string               `json:"document_key"`
	Actor       docgen.Actor         `json:"actor"`
	Input       docgen.DocumentInput `json:"input"`
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// ExportDispatch dispatches a document export command.
type ExportDispatch func(ctx context.Context, msg doccmd.ExportDocument) error

// TaskConfig configures the export task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	RetryPolicy    RetryPolicy
	CancelRegistry *CancelRegistry
	Logger         docgen.Logger
	Dispatch       ExportDispatch
	MessageBuilder MessageBuilderFunc
}

// ExportTask runs queued document exports.
type ExportTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	retryPolicy    RetryPolicy
	cancelRegistry *CancelRegistry
	logger         docgen.Logger
	dispatch       ExportDispatch
	messageBuilder MessageBuilderFunc
}

// NewExportTask creates an export task. Without a Dispatch the task goes
// through the global command dispatcher.
func NewExportTask(cfg TaskConfig) *ExportTask {
	logger := cfg.Logger
	if logger == nil {
		logger = docgen.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultExportTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultExportTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg doccmd.ExportDocument) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}

	return &ExportTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		retryPolicy:    cfg.RetryPolicy,
		cancelRegistry: cfg.CancelRegistry,
		logger:         logger,
		dispatch:       dispatch,
		messageBuilder: cfg.MessageBuilder,
	}
}

func (t *ExportTask) GetID() string { return t.id }

// GetHandler returns a handler for scheduled runs that build their own
// message.
func (t *ExportTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return docgen.NewError(docgen.KindInternal, "task is nil", nil)
		}
		if t.messageBuilder == nil {
			return docgen.NewError(docgen.KindNotImpl, "job message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return docgen.NewError(docgen.KindValidation, "execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

func (t *ExportTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

func (t *ExportTask) GetConfig() job.Config { return t.config }

func (t *ExportTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *ExportTask) GetEngine() job.Engine { return nil }

// Execute exports the document carried by msg.
func (t *ExportTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return docgen.NewError(docgen.KindInternal, "task is nil", nil)
	}
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	_, err = t.run(ctx, payload)
	return err
}

func (t *ExportTask) run(ctx context.Context, payload Payload) (docgen.ExportResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if payload.Actor.ID == "" {
		return docgen.ExportResult{}, docgen.NewError(docgen.KindValidation, "actor ID is required", nil)
	}

	execCtx := ctx
	if t.cancelRegistry != nil && payload.DocumentKey != "" {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithCancel(ctx)
		release := t.cancelRegistry.Register(payload.DocumentKey, cancel)
		defer func() {
			release()
			cancel()
		}()
	}

	policy := t.retryPolicy
	attempt := 0
	for {
		if err := execCtx.Err(); err != nil {
			return docgen.ExportResult{}, err
		}

		var result docgen.ExportResult
		err := t.dispatch(execCtx, doccmd.ExportDocument{
			Actor:  payload.Actor,
			Input:  payload.Input,
			Result: &result,
		})
		if err == nil {
			return result, nil
		}

		if !policy.shouldRetry(err) || attempt >= policy.MaxRetries {
			return docgen.ExportResult{}, err
		}

		attempt++
		t.logger.Infof("export %s failed, retry %d/%d: %v", payload.DocumentKey, attempt, policy.MaxRetries, err)
		if delay := policy.backoffDelay(attempt); delay > 0 {
			if serr := sleepWithContext(execCtx, delay); serr != nil {
				return docgen.ExportResult{}, serr
			}
		}
	}
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, docgen.NewError(docgen.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, docgen.NewError(docgen.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, docgen.NewError(docgen.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, docgen.NewError(docgen.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		// Queues that round-trip through JSON hand back a map.
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, docgen.NewError(docgen.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, docgen.NewError(docgen.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, docgen.NewError(docgen.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}

// RetryPolicy decides whether a failed export is attempted again.
type RetryPolicy struct {
	MaxRetries int
	Backoff    job.BackoffConfig
	Retryable  func(error) bool
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if err == nil || p.MaxRetries <= 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return defaultRetryable(err)
}

func (p RetryPolicy) backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return computeBackoffDelay(attempt, p.Backoff)
}

// defaultRetryable never retries a rejected model.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	var valErr *docgen.ValidationError
	if errors.As(err, &valErr) {
		return false
	}
	if docgen.IsRetryable(err) {
		return true
	}
	if errorslib.IsRetryableError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func computeBackoffDelay(attempt int, cfg job.BackoffConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 10 * time.Second
	}

	switch cfg.Strategy {
	case job.BackoffFixed:
		return applyJitter(interval, cfg.Jitter)
	case job.BackoffExponential:
		delay := interval
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxInterval {
				delay = maxInterval
				break
			}
		}
		return applyJitter(delay, cfg.Jitter)
	default:
		return 0
	}
}

func applyJitter(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay <= 0 {
		return delay
	}
	half := float64(delay) * 0.5
	backoffRandMu.Lock()
	offset := (backoffRand.Float64()*2 - 1) * half
	backoffRandMu.Unlock()
	if jittered := float64(delay) + offset; jittered > 0 {
		return time.Duration(jittered)
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
