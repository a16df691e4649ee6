package docgen

import (
	"context"
	"errors"
	"fmt"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines document pipeline error kinds.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindRender     ErrorKind = "render"
	KindExport     ErrorKind = "export"
	KindNetwork    ErrorKind = "network"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindTimeout    ErrorKind = "timeout"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
	KindNotImpl    ErrorKind = "not_implemented"
	KindAuthz      ErrorKind = "authz"
)

// Error wraps errors with a kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new pipeline error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ValidationError reports a model that failed schema validation.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Result.Errors) == 0 {
		return "document is invalid"
	}
	return fmt.Sprintf("document is invalid: %d field error(s)", len(e.Result.Errors))
}

// FieldMessages returns the localized message per field path.
func (e *ValidationError) FieldMessages() map[string]string {
	if e == nil {
		return nil
	}
	out := make(map[string]string, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		if _, ok := out[fe.Path]; ok {
			continue
		}
		out[fe.Path] = fe.Message
	}
	return out
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var docErr *Error
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		msg = valErr.Error()
	case errors.As(err, &docErr):
		if docErr.Msg != "" {
			msg = docErr.Msg
		}
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindConflict:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("conflict")
	case KindExport:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("export_failed")
	case KindRender:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("render_failed")
	case KindNetwork:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("network")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	case KindAuthz:
		return errorslib.New(msg, errorslib.CategoryAuthz).WithTextCode("forbidden")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its pipeline error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	var docErr *Error
	if errors.As(err, &docErr) {
		return docErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// IsRetryable reports whether repeating the same action may succeed.
func IsRetryable(err error) bool {
	switch KindFromError(err) {
	case KindExport, KindNetwork, KindTimeout, KindConflict:
		return true
	default:
		return false
	}
}
