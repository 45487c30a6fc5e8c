// Package backend defines the contract the table engine needs from a SQL
// engine. Implementations live in subpackages (see backend/sqlite).
package backend

import (
	"context"
	"strings"
)

// ColumnInfo describes one physical column as reported by the backend's
// introspection facility, in ordinal order.
type ColumnInfo struct {
	Position   int
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
}

// Record is one result row keyed by column name.
type Record = map[string]any

// Conn is an open backend connection.
//
// Query runs one parametrized statement (positional "?" placeholders) and
// returns zero or more records. Statements that produce no rows return an
// empty slice. Failures are classified into *dberr.Error values.
//
// TableInfo returns the columns of table in ordinal order, or an empty slice
// if the table does not exist.
//
// Close releases the connection. It is safe to call more than once.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) ([]Record, error)
	TableInfo(ctx context.Context, table string) ([]ColumnInfo, error)
	Close() error
}

// Opener opens the backend database called name.
type Opener func(ctx context.Context, name string) (Conn, error)

// QuoteIdent quotes a table or column name as an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
