package schema

import (
	"context"

	"github.com/roach88/tablekit/internal/dberr"
)

// Builder declares a table fluently. Flag methods apply to the most recently
// added column; calling one before any Column records a usage error that
// Build returns.
type Builder struct {
	name    string
	columns []Column
	err     error
}

// NewTable starts a table declaration.
func NewTable(name string) *Builder {
	return &Builder{name: name}
}

// Column appends a column.
func (b *Builder) Column(name string, typ Type) *Builder {
	b.columns = append(b.columns, Column{Name: name, Type: typ})
	return b
}

// PrimaryKey marks the last column as the primary key.
func (b *Builder) PrimaryKey() *Builder {
	return b.last("PrimaryKey", func(c *Column) { c.PrimaryKey = true })
}

// NotNull marks the last column NOT NULL.
func (b *Builder) NotNull() *Builder {
	return b.last("NotNull", func(c *Column) { c.NotNull = true })
}

// Unique marks the last column UNIQUE.
func (b *Builder) Unique() *Builder {
	return b.last("Unique", func(c *Column) { c.Unique = true })
}

// Default sets the last column's default. v may be a literal, a Default, a
// Producer, or a plain func() any.
func (b *Builder) Default(v any) *Builder {
	var d Default
	switch v := v.(type) {
	case Default:
		d = v
	case Producer:
		d = Func(v)
	case func(context.Context) (any, error):
		d = Func(v)
	case func() any:
		d = Func(func(context.Context) (any, error) { return v(), nil })
	default:
		d = Literal(v)
	}
	return b.last("Default", func(c *Column) { c.Default = d })
}

// Build validates the declaration.
func (b *Builder) Build() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.name, b.columns)
}

// MustBuild is Build that panics on error, for package-level declarations.
func (b *Builder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func (b *Builder) last(op string, apply func(*Column)) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.columns) == 0 {
		b.err = dberr.Usage("%s called on table %s before any column", op, b.name)
		return b
	}
	apply(&b.columns[len(b.columns)-1])
	return b
}
