package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable machine-readable code exposed at every boundary
// (CLI, dashboard, tool adapters). Adapters map on codes, never on message
// text.
type ErrorCode string

// Boundary error codes
const (
	CodeValidation        ErrorCode = "validation_error"
	CodeNotFound          ErrorCode = "not_found"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeCycleDetected     ErrorCode = "cycle_detected"
	CodeMigration         ErrorCode = "migration_error"
)

// Coder is implemented by all core error types.
type Coder interface {
	Code() ErrorCode
}

// CodeOf extracts the boundary code from an error chain. Unrecognized
// errors report as validation errors rather than leaking internals.
func CodeOf(err error) ErrorCode {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeValidation
}

// ValidationError reports malformed input: bad actor, out-of-range
// priority, wrong field type, schema violation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string   { return e.Msg }
func (e *ValidationError) Code() ErrorCode { return CodeValidation }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown issue or template id, echoing the id.
type NotFoundError struct {
	Kind string // "issue", "template", "event"
	ID   string
}

func (e *NotFoundError) Error() string   { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFoundError) Code() ErrorCode { return CodeNotFound }

// InvalidTransitionError reports a rejected state change together with the
// transitions currently available from the issue's state.
type InvalidTransitionError struct {
	IssueID string
	From    string
	To      string
	Valid   []TransitionHint
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for %s", e.From, e.To, e.IssueID)
}

func (e *InvalidTransitionError) Code() ErrorCode { return CodeInvalidTransition }

// Hint renders the valid transition set as a human-readable suggestion.
func (e *InvalidTransitionError) Hint() string {
	if len(e.Valid) == 0 {
		return fmt.Sprintf("no transitions are available from %q", e.From)
	}
	targets := make([]string, len(e.Valid))
	for i, t := range e.Valid {
		targets[i] = t.To
	}
	return fmt.Sprintf("valid transitions from %q: %s", e.From, strings.Join(targets, ", "))
}

// CycleDetectedError reports a dependency edge that would close a cycle.
// The edge set is left unmodified.
type CycleDetectedError struct {
	FromID string
	ToID   string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s -> %s -> ... -> %s", e.FromID, e.ToID, e.FromID)
}

func (e *CycleDetectedError) Code() ErrorCode { return CodeCycleDetected }

// MigrationError reports a schema migration that cannot proceed. Fatal for
// store initialization.
type MigrationError struct {
	Msg string
}

func (e *MigrationError) Error() string   { return e.Msg }
func (e *MigrationError) Code() ErrorCode { return CodeMigration }
