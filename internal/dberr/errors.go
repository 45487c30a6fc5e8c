// Package dberr defines the closed error taxonomy shared by the table engine,
// the database registry and the backend adapters.
//
// Every failure surfaced to callers is an *Error carrying a Code. Callers
// branch on the code with errors.Is against the package sentinels, or with
// the IsX helpers:
//
//	if dberr.IsConstraint(err) { ... }
//	if errors.Is(err, dberr.ErrClosed) { ... }
//
// Nothing in this module retries automatically.
package dberr

import (
	"errors"
	"fmt"
)

// Code categorizes errors.
type Code string

const (
	// CodeUsage indicates a caller mistake: unknown column, missing primary
	// key, duplicate column or table names.
	CodeUsage Code = "USAGE"

	// CodeValidation indicates a value that cannot be encoded for its column,
	// including a missing required value with no default.
	CodeValidation Code = "VALIDATION"

	// CodeSchemaMismatch indicates that reconciliation found an existing
	// backend column that conflicts with the declared schema. It is terminal
	// for the table.
	CodeSchemaMismatch Code = "SCHEMA_MISMATCH"

	// CodeSchemaDrift indicates a backend row that cannot be decoded against
	// the declared schema (missing column, malformed value).
	CodeSchemaDrift Code = "SCHEMA_DRIFT"

	// CodeConstraint indicates the backend rejected a write because of a
	// UNIQUE, NOT NULL, PRIMARY KEY, CHECK or FOREIGN KEY constraint.
	CodeConstraint Code = "CONSTRAINT"

	// CodeNoSuchTable indicates the backend reported a missing table.
	CodeNoSuchTable Code = "NO_SUCH_TABLE"

	// CodeBackend is any other backend failure. The driver diagnostic is
	// preserved as the cause.
	CodeBackend Code = "BACKEND"

	// CodeClosed indicates a query issued after the database was closed.
	CodeClosed Code = "CLOSED"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrUsage          = &Error{Code: CodeUsage}
	ErrValidation     = &Error{Code: CodeValidation}
	ErrSchemaMismatch = &Error{Code: CodeSchemaMismatch}
	ErrSchemaDrift    = &Error{Code: CodeSchemaDrift}
	ErrConstraint     = &Error{Code: CodeConstraint}
	ErrNoSuchTable    = &Error{Code: CodeNoSuchTable}
	ErrBackend        = &Error{Code: CodeBackend}
	ErrClosed         = &Error{Code: CodeClosed}
)

// Error is the structured error returned by every package in this module.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Table names the affected table, when known.
	Table string

	// Column names the affected column or field, when known.
	Column string

	// Constraint is the constraint kind reported by the backend
	// (e.g. "UNIQUE", "NOT NULL"). Only set for CodeConstraint.
	Constraint string

	// Details contains additional context.
	Details map[string]string

	// Cause is the underlying error, usually the driver error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("%s: %s (table=%s, column=%s)", e.Code, msg, e.Table, e.Column)
	case e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, msg, e.Table)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool { return errors.Is(err, ErrUsage) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsSchemaMismatch reports whether err is a fatal reconciliation mismatch.
func IsSchemaMismatch(err error) bool { return errors.Is(err, ErrSchemaMismatch) }

// IsSchemaDrift reports whether err is a decode failure against the schema.
func IsSchemaDrift(err error) bool { return errors.Is(err, ErrSchemaDrift) }

// IsConstraint reports whether err is a backend constraint violation.
func IsConstraint(err error) bool { return errors.Is(err, ErrConstraint) }

// IsNoSuchTable reports whether err is a backend missing-table error.
func IsNoSuchTable(err error) bool { return errors.Is(err, ErrNoSuchTable) }

// IsBackend reports whether err is an unclassified backend error.
func IsBackend(err error) bool { return errors.Is(err, ErrBackend) }

// IsClosed reports whether err reports a closed database.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }

// Usage creates a usage error.
func Usage(format string, args ...any) *Error {
	return &Error{Code: CodeUsage, Message: fmt.Sprintf(format, args...)}
}

// UnknownColumn creates a usage error naming a column the table does not
// declare.
func UnknownColumn(table, column string) *Error {
	return &Error{
		Code:    CodeUsage,
		Message: fmt.Sprintf("unknown column %q", column),
		Table:   table,
		Column:  column,
	}
}

// Validation creates a validation error for one column.
func Validation(table, column, format string, args ...any) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf(format, args...),
		Table:   table,
		Column:  column,
	}
}

// MissingValue creates the validation error raised when a required column has
// neither a value nor a default.
func MissingValue(table, column string) *Error {
	return Validation(table, column, "no value for required column %q", column)
}

// SchemaMismatch creates the fatal reconciliation error for the column at
// position index.
func SchemaMismatch(table string, index int, column, detail string) *Error {
	return &Error{
		Code:    CodeSchemaMismatch,
		Message: fmt.Sprintf("column #%d: %s", index, detail),
		Table:   table,
		Column:  column,
		Details: map[string]string{"index": fmt.Sprintf("%d", index)},
	}
}

// SchemaDrift creates a decode error for a backend row.
func SchemaDrift(table, column, format string, args ...any) *Error {
	return &Error{
		Code:    CodeSchemaDrift,
		Message: fmt.Sprintf(format, args...),
		Table:   table,
		Column:  column,
	}
}

// Constraint creates a constraint violation. table and field may be empty
// when the backend diagnostic did not name them.
func Constraint(kind, table, field string, cause error) *Error {
	msg := "constraint failed"
	if kind != "" {
		msg = kind + " constraint failed"
	}
	return &Error{
		Code:       CodeConstraint,
		Message:    msg,
		Table:      table,
		Column:     field,
		Constraint: kind,
		Cause:      cause,
	}
}

// NoSuchTable creates a missing-table error.
func NoSuchTable(table string, cause error) *Error {
	return &Error{
		Code:    CodeNoSuchTable,
		Message: "no such table",
		Table:   table,
		Cause:   cause,
	}
}

// Backend wraps an unclassified backend failure.
func Backend(cause error) *Error {
	return &Error{Code: CodeBackend, Cause: cause}
}

// Closed creates the error returned for queries after Close.
func Closed() *Error {
	return &Error{Code: CodeClosed, Message: "database already closed"}
}
