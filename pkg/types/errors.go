package types

import (
	"errors"
	"fmt"
	"strings"
)

// Workbook errors.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrRowOutOfRange = errors.New("row out of range")
	ErrInvalidTable  = errors.New("invalid table name")
	ErrClosed        = errors.New("workbook is closed")
)

// Reconciliation and mutation errors. Every failure surfaced by the
// tracker wraps exactly one of these.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrPersonNotFound    = errors.New("person not found")
	ErrMutationFailure   = errors.New("mutation failed")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error carries the context of a failed operation. Kind is one of the
// sentinels above; Err is the underlying cause and may be nil.
type Error struct {
	Op       string
	Table    string
	PersonID string
	Document string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Table != "" {
		fmt.Fprintf(&b, " %s", e.Table)
	}
	if e.PersonID != "" {
		fmt.Fprintf(&b, " person=%q", e.PersonID)
	}
	if e.Document != "" {
		fmt.Fprintf(&b, " document=%q", e.Document)
	}
	if e.Kind != nil {
		fmt.Fprintf(&b, ": %v", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
