package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-schooldocs/docgen"
)

// ExportDocument renders and exports one document as PDF.
type ExportDocument struct {
	Actor  docgen.Actor
	Input  docgen.DocumentInput
	Result *docgen.ExportResult
}

func (ExportDocument) Type() string { return "document:export" }

func (msg ExportDocument) Validate() error {
	if err := validateActor(msg.Actor); err != nil {
		return err
	}
	return validateInput(msg.Input)
}

// ExportSheet exports the tabular part of a document as a spreadsheet.
type ExportSheet struct {
	Actor  docgen.Actor
	Input  docgen.DocumentInput
	Result *docgen.Artifact
}

func (ExportSheet) Type() string { return "document:export-sheet" }

func (msg ExportSheet) Validate() error {
	if err := validateActor(msg.Actor); err != nil {
		return err
	}
	return validateInput(msg.Input)
}

// DismissExport clears a terminal export session so the document can be
// exported again.
type DismissExport struct {
	DocumentKey string
	Result      *docgen.SessionStatus
}

func (DismissExport) Type() string { return "document:dismiss" }

func (msg DismissExport) Validate() error {
	if strings.TrimSpace(msg.DocumentKey) == "" {
		return errors.New("document key is required", errors.CategoryValidation).
			WithTextCode("DOCUMENT_KEY_REQUIRED")
	}
	return nil
}

// PruneArtifacts removes stored artifacts older than MaxAge.
type PruneArtifacts struct {
	MaxAge time.Duration
	Result *int
}

func (PruneArtifacts) Type() string { return "artifacts:prune" }

func (msg PruneArtifacts) Validate() error {
	if msg.MaxAge < 0 {
		return errors.New("max age must not be negative", errors.CategoryValidation).
			WithTextCode("MAX_AGE_INVALID")
	}
	return nil
}

func validateActor(actor docgen.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return errors.New("actor ID is required", errors.CategoryValidation).
			WithTextCode("ACTOR_REQUIRED")
	}
	return nil
}

func validateInput(input docgen.DocumentInput) error {
	if strings.TrimSpace(string(input.Type)) == "" {
		return errors.New("document type is required", errors.CategoryValidation).
			WithTextCode("DOCUMENT_TYPE_REQUIRED")
	}
	if input.Model == nil {
		return errors.New("document model is required", errors.CategoryValidation).
			WithTextCode("MODEL_REQUIRED")
	}
	return nil
}
