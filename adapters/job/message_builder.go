package docjob

import (
	"context"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-schooldocs/docgen"
)

// MessageBuilderConfig configures message building for document exports.
type MessageBuilderConfig struct {
	Service  docgen.Service
	TaskID   string
	TaskPath string
	Config   job.Config
}

// MessageBuilder turns a document input into an execution message. Models
// that would be rejected at export time are rejected here instead, so a
// queue never carries work that cannot succeed.
type MessageBuilder struct {
	service  docgen.Service
	taskID   string
	taskPath string
	config   job.Config
}

// BuildResult carries the message and the document key it exports.
type BuildResult struct {
	DocumentKey string
	Message     *job.ExecutionMessage
}

func NewMessageBuilder(cfg MessageBuilderConfig) *MessageBuilder {
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultExportTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultExportTaskPath
	}
	return &MessageBuilder{
		service:  cfg.Service,
		taskID:   taskID,
		taskPath: taskPath,
		config:   cfg.Config,
	}
}

// Build validates input and prepares its execution message. Only messages
// with the same document key and the same content share an idempotency key
// and merge in the queue.
func (b *MessageBuilder) Build(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (BuildResult, error) {
	if b == nil {
		return BuildResult{}, docgen.NewError(docgen.KindInternal, "message builder is nil", nil)
	}
	if b.service == nil {
		return BuildResult{}, docgen.NewError(docgen.KindNotImpl, "document service not configured", nil)
	}
	if actor.ID == "" {
		return BuildResult{}, docgen.NewError(docgen.KindValidation, "actor ID is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	schema, err := b.service.Schema(ctx, input.Type)
	if err != nil {
		return BuildResult{}, err
	}
	validation, err := b.service.Validate(ctx, input)
	if err != nil {
		return BuildResult{}, err
	}
	if !validation.CanExport {
		return BuildResult{}, &docgen.ValidationError{Result: validation}
	}

	key := docgen.DocumentKey(schema, input)
	fingerprint, err := docgen.InputFingerprint(input)
	if err != nil {
		return BuildResult{}, docgen.NewError(docgen.KindValidation, "document input cannot be fingerprinted", err)
	}
	input.Key = key
	encoded, err := encodePayload(Payload{DocumentKey: key, Actor: actor, Input: input})
	if err != nil {
		return BuildResult{}, err
	}

	msg := &job.ExecutionMessage{
		JobID:          b.taskID,
		ScriptPath:     b.taskPath,
		Config:         b.config,
		Parameters:     map[string]any{"payload": encoded},
		IdempotencyKey: b.taskID + ":" + key + ":" + fingerprint,
		DedupPolicy:    job.DedupPolicyMerge,
	}
	return BuildResult{DocumentKey: key, Message: msg}, nil
}
