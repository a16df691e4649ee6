package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-schooldocs/docgen"
)

// DefaultRetention is how long artifacts are kept when PruneArtifacts does
// not name an age.
const DefaultRetention = 7 * 24 * time.Hour

func serviceRequired() error {
	return errors.New("document service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}

// ExportDocumentHandler handles PDF exports.
type ExportDocumentHandler struct {
	Service docgen.Service
}

func NewExportDocumentHandler(svc docgen.Service) *ExportDocumentHandler {
	return &ExportDocumentHandler{Service: svc}
}

func (h *ExportDocumentHandler) Execute(ctx context.Context, msg ExportDocument) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.Export(ctx, msg.Actor, msg.Input)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[docgen.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// ExportSheetHandler handles spreadsheet exports.
type ExportSheetHandler struct {
	Service docgen.Service
}

func NewExportSheetHandler(svc docgen.Service) *ExportSheetHandler {
	return &ExportSheetHandler{Service: svc}
}

func (h *ExportSheetHandler) Execute(ctx context.Context, msg ExportSheet) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	artifact, err := h.Service.ExportSheet(ctx, msg.Actor, msg.Input)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = artifact
	}
	if res := gcmd.ResultFromContext[docgen.Artifact](ctx); res != nil {
		res.Store(artifact)
	}
	return nil
}

// DismissExportHandler clears terminal export sessions.
type DismissExportHandler struct {
	Service docgen.Service
}

func NewDismissExportHandler(svc docgen.Service) *DismissExportHandler {
	return &DismissExportHandler{Service: svc}
}

func (h *DismissExportHandler) Execute(ctx context.Context, msg DismissExport) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	status, err := h.Service.Dismiss(ctx, msg.DocumentKey)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = status
	}
	if res := gcmd.ResultFromContext[docgen.SessionStatus](ctx); res != nil {
		res.Store(status)
	}
	return nil
}

// Pruner removes artifacts older than maxAge. The filesystem store
// implements it.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// PruneArtifactsHandler enforces artifact retention.
type PruneArtifactsHandler struct {
	Pruner    Pruner
	Retention time.Duration
	Config    gcmd.HandlerConfig
}

func NewPruneArtifactsHandler(pruner Pruner, retention time.Duration) *PruneArtifactsHandler {
	return &PruneArtifactsHandler{
		Pruner:    pruner,
		Retention: retention,
		Config:    gcmd.HandlerConfig{Expression: "30 2 * * *"},
	}
}

func (h *PruneArtifactsHandler) Execute(ctx context.Context, msg PruneArtifacts) error {
	if h == nil || h.Pruner == nil {
		return errors.New("artifact pruner is required", errors.CategoryInternal).
			WithTextCode("PRUNER_REQUIRED")
	}
	maxAge := msg.MaxAge
	if maxAge == 0 {
		maxAge = h.Retention
	}
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	count, err := h.Pruner.Prune(ctx, maxAge)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *PruneArtifactsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), PruneArtifacts{})
	}
}

func (h *PruneArtifactsHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}
