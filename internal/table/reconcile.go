package table

import (
	"context"
	"fmt"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
)

// Outcome reports what reconciliation did to the backend table.
type Outcome struct {
	// Created is set when the table did not exist and was created.
	Created bool
	// Added lists columns appended with ALTER TABLE, in order.
	Added []string
}

// reconcile brings the backend table in line with the declared schema.
//
// A missing table is created. An existing table must match the declared
// columns position by position (name, type, PRIMARY KEY, NOT NULL); declared
// columns beyond the existing ones are appended. Any other difference is a
// schema mismatch and nothing is modified.
func (e *Engine) reconcile(ctx context.Context) (Outcome, error) {
	name := e.schema.Name()

	info, err := e.db.TableInfo(ctx, name)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to introspect table %s: %w", name, err)
	}

	if len(info) == 0 {
		if _, err := e.db.Query(ctx, createTableSQL(e.schema)); err != nil {
			return Outcome{}, fmt.Errorf("failed to create table %s: %w", name, err)
		}
		e.logger.Info("table created", "table", name, "columns", e.schema.Len())
		return Outcome{Created: true}, nil
	}

	if err := compareColumns(e.schema, info); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	for i := len(info); i < e.schema.Len(); i++ {
		col := e.schema.At(i)
		e.logger.Warn("adding column",
			"table", name,
			"column", col.Name,
			"definition", columnDef(col),
		)
		if _, err := e.db.Query(ctx, addColumnSQL(name, col)); err != nil {
			return out, fmt.Errorf("failed to add column %s.%s: %w", name, col.Name, err)
		}
		out.Added = append(out.Added, col.Name)
	}

	return out, nil
}

// compareColumns checks each backend column against the declared column at
// the same position and returns the first difference. UNIQUE is not checked.
func compareColumns(t *schema.Table, info []backend.ColumnInfo) error {
	name := t.Name()
	for i, bc := range info {
		if bc.Position != i {
			return dberr.SchemaMismatch(name, i, bc.Name,
				fmt.Sprintf("backend reports position %d", bc.Position))
		}

		if i >= t.Len() {
			return dberr.SchemaMismatch(name, i, bc.Name,
				fmt.Sprintf("no declared column (backend name: %s)", bc.Name))
		}

		col := t.At(i)
		switch {
		case col.Name != bc.Name:
			return dberr.SchemaMismatch(name, i, col.Name,
				fmt.Sprintf("name is different (backend: %s, declared: %s)", bc.Name, col.Name))

		case !col.Type.MatchesSQL(bc.Type):
			return dberr.SchemaMismatch(name, i, col.Name,
				fmt.Sprintf("type is different (backend: %s, declared: %s)", bc.Type, col.Type.SQL()))

		case col.PrimaryKey != bc.PrimaryKey:
			return dberr.SchemaMismatch(name, i, col.Name,
				fmt.Sprintf("PRIMARY KEY flag is different (backend: %t, declared: %t)", bc.PrimaryKey, col.PrimaryKey))

		case col.NotNull != bc.NotNull:
			return dberr.SchemaMismatch(name, i, col.Name,
				fmt.Sprintf("NOT NULL flag is different (backend: %t, declared: %t)", bc.NotNull, col.NotNull))
		}
	}
	return nil
}
