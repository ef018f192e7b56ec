package supply

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrStage        = errors.New("pipeline stage failed")
	ErrAgentTimeout = errors.New("supply agent deadline exceeded")
	ErrEnrichment   = errors.New("history enrichment failed")
	ErrPersistence  = errors.New("persistence failed")
	ErrNotification = errors.New("notification failed")
)

// Collaborator failures.
var (
	ErrTranslation = errors.New("translation failed")
	ErrAnalysis    = errors.New("message analysis failed")
	ErrDelivery    = errors.New("message delivery failed")
)

// Error is a classified failure from one operation.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewError builds an Error of the given kind.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsStageFailure reports whether err halts the pipeline.
func IsStageFailure(err error) bool {
	return errors.Is(err, ErrStage) || errors.Is(err, ErrAgentTimeout) || errors.Is(err, ErrValidation)
}
