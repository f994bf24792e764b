// Package compileerr defines the single exported error type the
// compiler raises at every package boundary: a machine-stable kind,
// a human message, the offending sub-AST for diagnosis, and an
// optional wrapped cause. No error kind here is ever caught and
// recovered inside the compiler — every constructor below is meant
// to propagate straight to the caller.
package compileerr

import "fmt"

// Kind is one of the compiler's machine-stable error tags.
type Kind string

const (
	KindUnknownClause           Kind = "unknown-clause"
	KindInvalidQuery            Kind = "invalid-query"
	KindUnsupportedUnit         Kind = "unsupported-unit"
	KindFieldResolutionFailure  Kind = "field-resolution-failure"
	KindUnexpectedColumns       Kind = "unexpected-columns"
	KindPipelineSchemaViolation Kind = "pipeline-schema-violation"
)

// CompileError is returned by every compiler package boundary.
// Clause carries the offending sub-AST (or, for KindUnexpectedColumns,
// the sorted list of unexpected names) so the caller can render a
// precise diagnostic without re-walking the query.
type CompileError struct {
	Kind    Kind
	Message string
	Clause  any
	Err     error
}

func (e *CompileError) Error() string { return e.Message }

func (e *CompileError) Unwrap() error { return e.Err }

// New builds a CompileError with a formatted message.
func New(kind Kind, clause any, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Clause: clause}
}

// Wrap builds a CompileError around an existing error, preserving it
// as Unwrap's target.
func Wrap(kind Kind, clause any, err error) *CompileError {
	return &CompileError{Kind: kind, Message: err.Error(), Clause: clause, Err: err}
}
