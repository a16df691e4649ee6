package docjob

import (
	"context"

	doccmd "github.com/goliatone/go-schooldocs/command"
	"github.com/goliatone/go-schooldocs/docgen"
)

// NewBatchExporter runs each batch item through task inline, so batch
// commands get the task's retry policy without a queue.
func NewBatchExporter(task *ExportTask, builder *MessageBuilder) doccmd.BatchExporter {
	return doccmd.BatchExporterFunc(func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error) {
		if task == nil {
			return docgen.ExportResult{}, docgen.NewError(docgen.KindInternal, "export task is nil", nil)
		}
		if builder == nil {
			return docgen.ExportResult{}, docgen.NewError(docgen.KindNotImpl, "message builder not configured", nil)
		}

		built, err := builder.Build(ctx, actor, input)
		if err != nil {
			return docgen.ExportResult{}, err
		}
		payload, err := decodePayload(built.Message)
		if err != nil {
			return docgen.ExportResult{}, err
		}
		return task.run(ctx, payload)
	})
}
