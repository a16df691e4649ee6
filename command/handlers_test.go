package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-schooldocs/docgen"
)

type stubService struct {
	export      func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error)
	exportSheet func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.Artifact, error)
	dismiss     func(ctx context.Context, key string) (docgen.SessionStatus, error)
}

func (s *stubService) Schema(ctx context.Context, docType docgen.DocumentType) (docgen.Schema, error) {
	return docgen.Schema{}, nil
}

func (s *stubService) Templates(ctx context.Context, docType docgen.DocumentType) (docgen.CatalogListing, error) {
	return docgen.CatalogListing{}, nil
}

func (s *stubService) Descriptor(ctx context.Context, input docgen.DocumentInput) (docgen.TemplateDescriptor, error) {
	return docgen.TemplateDescriptor{}, nil
}

func (s *stubService) Validate(ctx context.Context, input docgen.DocumentInput) (docgen.ValidationResult, error) {
	return docgen.ValidationResult{CanExport: true}, nil
}

func (s *stubService) ValidateField(ctx context.Context, req docgen.ValidateFieldInput) ([]docgen.FieldError, error) {
	return nil, nil
}

func (s *stubService) Progress(ctx context.Context, input docgen.DocumentInput, step string) (docgen.Progress, error) {
	return docgen.Progress{}, nil
}

func (s *stubService) Preview(ctx context.Context, input docgen.DocumentInput) (docgen.PreviewResult, error) {
	return docgen.PreviewResult{}, nil
}

func (s *stubService) Export(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error) {
	if s.export != nil {
		return s.export(ctx, actor, input)
	}
	return docgen.ExportResult{}, nil
}

func (s *stubService) ExportSheet(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.Artifact, error) {
	if s.exportSheet != nil {
		return s.exportSheet(ctx, actor, input)
	}
	return docgen.Artifact{}, nil
}

func (s *stubService) Status(ctx context.Context, key string) (docgen.SessionStatus, error) {
	return docgen.SessionStatus{Key: key, State: docgen.StateIdle}, nil
}

func (s *stubService) Dismiss(ctx context.Context, key string) (docgen.SessionStatus, error) {
	if s.dismiss != nil {
		return s.dismiss(ctx, key)
	}
	return docgen.SessionStatus{Key: key, State: docgen.StateIdle}, nil
}

func (s *stubService) Download(ctx context.Context, key string) (docgen.Download, error) {
	return docgen.Download{}, nil
}

var _ docgen.Service = (*stubService)(nil)

type stubPruner struct {
	maxAge time.Duration
	count  int
	err    error
}

func (p *stubPruner) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	p.maxAge = maxAge
	return p.count, p.err
}

func admitInput() docgen.DocumentInput {
	return docgen.DocumentInput{
		Type:  docgen.TypeAdmitCard,
		Model: docgen.DocumentModel{"studentName": "Rahim Uddin", "rollNumber": "42"},
	}
}

func TestExportDocumentHandler_StoresResults(t *testing.T) {
	want := docgen.ExportResult{
		Artifact: docgen.Artifact{ID: "art-1", Filename: "admit_card_42.pdf"},
		State:    docgen.StateReady,
	}
	var gotActor docgen.Actor
	svc := &stubService{
		export: func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error) {
			gotActor = actor
			return want, nil
		},
	}

	handler := NewExportDocumentHandler(svc)
	var got docgen.ExportResult
	result := gcmd.NewResult[docgen.ExportResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	err := handler.Execute(ctx, ExportDocument{
		Actor:  docgen.Actor{ID: "teacher-1"},
		Input:  admitInput(),
		Result: &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotActor.ID != "teacher-1" {
		t.Fatalf("expected actor to reach service, got %+v", gotActor)
	}
	if got.Artifact.ID != want.Artifact.ID {
		t.Fatalf("expected result pointer %q, got %q", want.Artifact.ID, got.Artifact.ID)
	}

	stored, ok := result.Load()
	if !ok {
		t.Fatalf("expected context result")
	}
	if stored.Artifact.Filename != want.Artifact.Filename {
		t.Fatalf("expected context result %q, got %q", want.Artifact.Filename, stored.Artifact.Filename)
	}
}

func TestExportDocumentHandler_PropagatesErrors(t *testing.T) {
	svc := &stubService{
		export: func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.ExportResult, error) {
			return docgen.ExportResult{}, &docgen.ValidationError{}
		},
	}
	err := NewExportDocumentHandler(svc).Execute(context.Background(), ExportDocument{Actor: docgen.Actor{ID: "a"}, Input: admitInput()})
	var verr *docgen.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	var nilHandler *ExportDocumentHandler
	if err := nilHandler.Execute(context.Background(), ExportDocument{}); err == nil {
		t.Fatalf("expected service required error")
	}
}

func TestExportSheetHandler_StoresArtifact(t *testing.T) {
	svc := &stubService{
		exportSheet: func(ctx context.Context, actor docgen.Actor, input docgen.DocumentInput) (docgen.Artifact, error) {
			return docgen.Artifact{ID: "sheet-1", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, nil
		},
	}
	result := gcmd.NewResult[docgen.Artifact]()
	ctx := gcmd.ContextWithResult(context.Background(), result)
	if err := NewExportSheetHandler(svc).Execute(ctx, ExportSheet{Actor: docgen.Actor{ID: "a"}, Input: admitInput()}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, ok := result.Load()
	if !ok || stored.ID != "sheet-1" {
		t.Fatalf("expected stored sheet artifact, got %+v", stored)
	}
}

func TestDismissExportHandler(t *testing.T) {
	var key string
	svc := &stubService{
		dismiss: func(ctx context.Context, k string) (docgen.SessionStatus, error) {
			key = k
			return docgen.SessionStatus{Key: k, State: docgen.StateIdle}, nil
		},
	}
	var got docgen.SessionStatus
	err := NewDismissExportHandler(svc).Execute(context.Background(), DismissExport{
		DocumentKey: "admit_card:rollNumber=42",
		Result:      &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if key != "admit_card:rollNumber=42" || got.State != docgen.StateIdle {
		t.Fatalf("unexpected dismiss result %q %+v", key, got)
	}
}

func TestPruneArtifactsHandler_AgeDefaults(t *testing.T) {
	pruner := &stubPruner{count: 3}
	handler := NewPruneArtifactsHandler(pruner, 0)

	var removed int
	if err := handler.Execute(context.Background(), PruneArtifacts{Result: &removed}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if pruner.maxAge != DefaultRetention {
		t.Fatalf("expected default retention, got %s", pruner.maxAge)
	}

	handler.Retention = time.Hour
	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron: %v", err)
	}
	if pruner.maxAge != time.Hour {
		t.Fatalf("expected configured retention, got %s", pruner.maxAge)
	}

	if err := handler.Execute(context.Background(), PruneArtifacts{MaxAge: time.Minute}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if pruner.maxAge != time.Minute {
		t.Fatalf("expected message age to win, got %s", pruner.maxAge)
	}
	if handler.CronOptions().Expression == "" {
		t.Fatalf("expected cron expression")
	}

	pruner.err = errors.New("disk")
	if err := handler.Execute(context.Background(), PruneArtifacts{}); err == nil {
		t.Fatalf("expected pruner error")
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{"export ok", ExportDocument{Actor: docgen.Actor{ID: "a"}, Input: admitInput()}, true},
		{"export no actor", ExportDocument{Input: admitInput()}, false},
		{"export no type", ExportDocument{Actor: docgen.Actor{ID: "a"}, Input: docgen.DocumentInput{Model: docgen.DocumentModel{}}}, false},
		{"sheet no model", ExportSheet{Actor: docgen.Actor{ID: "a"}, Input: docgen.DocumentInput{Type: docgen.TypeMarksheet}}, false},
		{"dismiss blank key", DismissExport{DocumentKey: " "}, false},
		{"dismiss ok", DismissExport{DocumentKey: "k"}, true},
		{"prune negative", PruneArtifacts{MaxAge: -time.Second}, false},
		{"prune default", PruneArtifacts{}, true},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
