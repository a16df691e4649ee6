package docgen

import "testing"

func TestProgressDerivesStepCompletion(t *testing.T) {
	schema := admitSchema(t)
	model := validAdmitModel()
	delete(model, "studentName")
	model["year"] = "soon"

	progress, err := NewNavigator(schema).Progress(model, "", "en")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Current != "info" {
		t.Fatalf("expected first step to be current, got %s", progress.Current)
	}
	if progress.CanExport {
		t.Fatalf("expected export to be blocked")
	}

	info := progress.Steps[0]
	if info.Complete || len(info.Missing) != 1 || info.Missing[0] != "studentName" {
		t.Fatalf("unexpected info step %+v", info)
	}
	setup := progress.Steps[1]
	if setup.Complete || len(setup.Invalid) != 1 || setup.Invalid[0] != "year" {
		t.Fatalf("unexpected setup step %+v", setup)
	}
	if !progress.Steps[2].Complete {
		t.Fatalf("expected content step complete, got %+v", progress.Steps[2])
	}
	if progress.Steps[3].Complete {
		t.Fatalf("expected preview step to wait for an exportable model")
	}
	if progress.FirstIncomplete != "info" {
		t.Fatalf("expected first incomplete info, got %s", progress.FirstIncomplete)
	}
	if progress.Percent != 25 {
		t.Fatalf("expected 25 percent, got %d", progress.Percent)
	}
}

func TestProgressCompleteModel(t *testing.T) {
	progress, err := NewNavigator(admitSchema(t)).Progress(validAdmitModel(), "preview", "bn")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !progress.CanExport || progress.Percent != 100 || progress.FirstIncomplete != "" {
		t.Fatalf("unexpected progress %+v", progress)
	}
	if !progress.Steps[3].Current {
		t.Fatalf("expected preview to be current")
	}
	if progress.Steps[0].Label != "শিক্ষার্থীর তথ্য" {
		t.Fatalf("expected localized step label, got %q", progress.Steps[0].Label)
	}
}

func TestNavigationIsUngated(t *testing.T) {
	nav := NewNavigator(admitSchema(t))

	step, err := nav.Goto("preview")
	if err != nil || step != "preview" {
		t.Fatalf("expected jump to preview with empty model, got %q %v", step, err)
	}
	if step, _ = nav.Next("preview"); step != "preview" {
		t.Fatalf("expected next on last step to stay, got %s", step)
	}
	if step, _ = nav.Prev("info"); step != "info" {
		t.Fatalf("expected prev on first step to stay, got %s", step)
	}
	if step, _ = nav.Next("info"); step != "setup" {
		t.Fatalf("expected setup after info, got %s", step)
	}
	if _, err := nav.Goto("payment"); KindFromError(err) != KindValidation {
		t.Fatalf("expected unknown step to fail, got %v", err)
	}
	if _, err := nav.Progress(DocumentModel{}, "payment", "en"); err == nil {
		t.Fatalf("expected progress on unknown step to fail")
	}
}
