package docjob

import (
	"context"
	"errors"

	job "github.com/goliatone/go-job"
	doccmd "github.com/goliatone/go-schooldocs/command"
	"github.com/goliatone/go-schooldocs/docgen"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return docgen.NewError(docgen.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// Config configures the go-job export scheduler.
type Config struct {
	Service   docgen.Service
	Enqueuer  Enqueuer
	TaskID    string
	TaskPath  string
	JobConfig job.Config
	Logger    docgen.Logger
}

// Scheduler queues document exports for background execution.
type Scheduler struct {
	builder  *MessageBuilder
	enqueuer Enqueuer
	logger   docgen.Logger
}

// Ticket identifies a queued export. Poll its DocumentKey through the
// export status query.
type Ticket struct {
	DocumentKey string `json:"document_key"`
	JobID       string `json:"job_id"`
}

// QueueReport summarizes a queued batch.
type QueueReport struct {
	Queued  []Ticket              `json:"queued"`
	Skipped []doccmd.BatchFailure `json:"skipped,omitempty"`
}

func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = docgen.NopLogger{}
	}
	return &Scheduler{
		builder: NewMessageBuilder(MessageBuilderConfig{
			Service:  cfg.Service,
			TaskID:   cfg.TaskID,
			TaskPath: cfg.TaskPath,
			Config:   cfg.JobConfig,
		}),
		enqueuer: cfg.Enqueuer,
		logger:   logger,
	}
}

// Enqueue validates input and queues its export.
func (s *Scheduler) Enqueue(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (Ticket, error) {
	if s == nil {
		return Ticket{}, docgen.NewError(docgen.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return Ticket{}, docgen.NewError(docgen.KindNotImpl, "job enqueuer not configured", nil)
	}

	result, err := s.builder.Build(ctx, actor, input)
	if err != nil {
		return Ticket{}, err
	}
	if err := s.enqueuer.Enqueue(ctx, result.Message); err != nil {
		s.logger.Errorf("enqueue %s failed: %v", result.DocumentKey, err)
		return Ticket{DocumentKey: result.DocumentKey}, docgen.NewError(docgen.KindInternal, "enqueue export", err)
	}
	return Ticket{DocumentKey: result.DocumentKey, JobID: result.Message.JobID}, nil
}

// EnqueueBatch queues every request. Rejected models are skipped and
// reported; any other failure stops the batch.
func (s *Scheduler) EnqueueBatch(ctx context.Context, requests []doccmd.BatchRequest) (QueueReport, error) {
	var report QueueReport
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ticket, err := s.Enqueue(ctx, req.Actor, req.Input)
		if err != nil {
			var valErr *docgen.ValidationError
			if errors.As(err, &valErr) {
				report.Skipped = append(report.Skipped, doccmd.BatchFailure{
					Index:       i,
					DocumentKey: req.Input.Key,
					Fields:      valErr.Result.Errors,
					Message:     valErr.Error(),
				})
				continue
			}
			return report, err
		}
		report.Queued = append(report.Queued, ticket)
	}
	return report, nil
}
