package command

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-schooldocs/docgen"
)

// BatchRequest is one document in a bulk export.
type BatchRequest struct {
	Actor docgen.Actor         `json:"actor"`
	Input docgen.DocumentInput `json:"input"`
}

// BatchLoader loads batch requests from a source.
type BatchLoader func(ctx context.Context) ([]BatchRequest, error)

// BatchExporter exports one document. docgen.Service satisfies it.
type BatchExporter interface {
	Export(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error)
}

// BatchExporterFunc adapts a function to a BatchExporter.
type BatchExporterFunc func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error)

func (f BatchExporterFunc) Export(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error) {
	if f == nil {
		return docgen.ExportResult{}, errors.New("batch exporter is required", errors.CategoryInternal).
			WithTextCode("BATCH_EXPORTER_NIL")
	}
	return f(ctx, actor, input)
}

// BatchFailure records a document that was skipped because its model was
// rejected.
type BatchFailure struct {
	Index       int                 `json:"index"`
	DocumentKey string              `json:"document_key,omitempty"`
	Fields      []docgen.FieldError `json:"fields,omitempty"`
	Message     string              `json:"message"`
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	Exported  int               `json:"exported"`
	Artifacts []docgen.Artifact `json:"artifacts,omitempty"`
	Failed    []BatchFailure    `json:"failed,omitempty"`
}

// BatchCommand wires CLI/Cron execution for bulk document exports.
type BatchCommand struct {
	exporter   BatchExporter
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// NewBatchExportCommand creates the bulk export CLI/Cron command.
func NewBatchExportCommand(exporter BatchExporter, loader BatchLoader, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		exporter: exporter,
		loader:   loader,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"documents-batch"},
			Description: "Export a batch of documents",
			Group:       "documents",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "0 1 * * *"},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler executes the configured batch.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.Run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// Run exports every loaded request. Requests whose model is rejected are
// reported and skipped; any other error stops the batch.
func (c *BatchCommand) Run(ctx context.Context, from string) (BatchReport, error) {
	var report BatchReport
	if c == nil {
		return report, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.exporter == nil {
		return report, errors.New("batch exporter is required", errors.CategoryValidation).
			WithTextCode("EXPORTER_REQUIRED")
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return report, err
	}

	for i, item := range requests {
		if c.limits.MaxRequests > 0 && report.Exported >= c.limits.MaxRequests {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := c.exporter.Export(ctx, item.Actor, item.Input)
		if err != nil {
			var verr *docgen.ValidationError
			if stderrors.As(err, &verr) {
				report.Failed = append(report.Failed, BatchFailure{
					Index:       i,
					DocumentKey: item.Input.Key,
					Fields:      verr.Result.Errors,
					Message:     verr.Error(),
				})
				continue
			}
			return report, err
		}
		report.Exported++
		report.Artifacts = append(report.Artifacts, result.Artifact)
		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return report, nil
}

func (c *BatchCommand) loadRequests(ctx context.Context, from string) ([]BatchRequest, error) {
	if strings.TrimSpace(from) != "" {
		return loadBatchRequestsFromFile(from)
	}
	if c.loader == nil {
		return nil, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	return c.loader(ctx)
}

type batchCLI struct {
	cmd  *BatchCommand
	From string `kong:"name='from',help='Path to JSON batch document requests'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	_, err := c.cmd.Run(context.Background(), c.From)
	return err
}

func loadBatchRequestsFromFile(path string) ([]BatchRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read batch file failed").
			WithTextCode("BATCH_FILE_READ")
	}

	var requests []BatchRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "batch file invalid JSON").
			WithTextCode("BATCH_FILE_INVALID")
	}
	return requests, nil
}

// ClassBatch describes one document per student sharing common fields, such
// as admit cards for every student of a class sitting the same exam.
type ClassBatch struct {
	Actor      docgen.Actor
	Type       docgen.DocumentType
	TemplateID string
	Locale     string
	Shared     docgen.DocumentModel
	Students   []docgen.DocumentModel
}

// BuildClassBatchRequests merges the shared fields into each student model.
// Student values win over shared ones.
func BuildClassBatchRequests(batch ClassBatch) []BatchRequest {
	if len(batch.Students) == 0 {
		return nil
	}
	docType := batch.Type
	if docType == "" {
		docType = docgen.TypeAdmitCard
	}

	requests := make([]BatchRequest, 0, len(batch.Students))
	for _, student := range batch.Students {
		if len(student) == 0 {
			continue
		}
		model := batch.Shared.Clone()
		if model == nil {
			model = docgen.DocumentModel{}
		}
		for k, v := range student.Clone() {
			model[k] = v
		}
		requests = append(requests, BatchRequest{
			Actor: batch.Actor,
			Input: docgen.DocumentInput{
				Type:       docType,
				Model:      model,
				TemplateID: batch.TemplateID,
				Locale:     batch.Locale,
			},
		})
	}
	return requests
}

// CLIHandler exposes pruning via CLI.
func (h *PruneArtifactsHandler) CLIHandler() any {
	return &pruneCLI{handler: h}
}

// CLIOptions describes pruning CLI metadata.
func (h *PruneArtifactsHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"artifacts-prune"},
		Description: "Remove document artifacts past retention",
		Group:       "documents",
	}
}

type pruneCLI struct {
	handler *PruneArtifactsHandler
	MaxAge  time.Duration `kong:"name='max-age',help='Remove artifacts older than this age'"`
}

func (c *pruneCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("prune handler is required", errors.CategoryInternal).
			WithTextCode("PRUNE_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), PruneArtifacts{MaxAge: c.MaxAge})
}
