// Package schema describes tables declaratively: an ordered list of typed
// columns with primary-key, not-null, unique and default flags.
//
// Column order is significant. It must match the physical column order of the
// backend table because reconciliation compares columns by position.
//
// Schemas are built once, validated, and treated as immutable afterwards:
//
//	users, err := schema.NewTable("users").
//		Column("id", schema.BigInteger).PrimaryKey().
//		Column("banned", schema.Boolean).NotNull().Default(false).
//		Column("username", schema.Text).NotNull().Unique().
//		Build()
package schema

import (
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tablekit/internal/dberr"
)

// Column declares one table column.
type Column struct {
	Name       string
	Type       Type
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    Default
}

// Required reports whether encoding the column without a value or default
// must fail.
func (c Column) Required() bool {
	return c.NotNull || c.PrimaryKey
}

// Table is a validated table declaration.
type Table struct {
	name    string
	columns []Column
	index   map[string]int
	pk      int
}

// New validates columns and returns a table. Names are NFC-normalized.
//
// Validation fails with a usage error when the table or a column name is not
// a plain identifier, a column type is unknown, two columns share a name, or
// the number of primary-key columns is not exactly one.
func New(name string, columns []Column) (*Table, error) {
	name = normalizeIdent(name)
	if !isIdent(name) {
		return nil, dberr.Usage("invalid table name %q", name)
	}
	if len(columns) == 0 {
		return nil, dberr.Usage("table %s has no columns", name)
	}

	t := &Table{
		name:    name,
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
		pk:      -1,
	}
	for i, col := range columns {
		col.Name = normalizeIdent(col.Name)
		if !isIdent(col.Name) {
			return nil, &dberr.Error{Code: dberr.CodeUsage, Message: "invalid column name", Table: name, Column: col.Name}
		}
		if !col.Type.Valid() {
			return nil, &dberr.Error{Code: dberr.CodeUsage, Message: "invalid column type", Table: name, Column: col.Name}
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, &dberr.Error{Code: dberr.CodeUsage, Message: "duplicate column", Table: name, Column: col.Name}
		}
		if col.PrimaryKey {
			if t.pk >= 0 {
				return nil, &dberr.Error{Code: dberr.CodeUsage, Message: "more than one primary key", Table: name, Column: col.Name}
			}
			t.pk = i
		}
		t.index[col.Name] = i
		t.columns[i] = col
	}
	if t.pk < 0 {
		return nil, &dberr.Error{Code: dberr.CodeUsage, Message: "no primary key", Table: name}
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the columns in declared order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of declared columns.
func (t *Table) Len() int { return len(t.columns) }

// At returns the column at position i.
func (t *Table) At(i int) Column { return t.columns[i] }

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[normalizeIdent(name)]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// PrimaryKey returns the primary-key column.
func (t *Table) PrimaryKey() Column { return t.columns[t.pk] }

func normalizeIdent(s string) string {
	return norm.NFC.String(s)
}

// isIdent accepts letters, digits and underscores, not starting with a digit.
// Names are interpolated into SQL, so anything else is rejected.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}
