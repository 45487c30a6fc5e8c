package table

import (
	"strings"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/schema"
)

// tableNamePlaceholder is replaced by the table name in Engine.Query.
const tableNamePlaceholder = "$tablename$"

// columnDef renders a column definition. Defaults are applied by the codec
// at insert time and never appear in DDL.
func columnDef(c schema.Column) string {
	var b strings.Builder
	b.WriteString(backend.QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.SQL())
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func createTableSQL(t *schema.Table) string {
	defs := make([]string, 0, t.Len())
	for _, c := range t.Columns() {
		defs = append(defs, columnDef(c))
	}
	return "CREATE TABLE IF NOT EXISTS " + backend.QuoteIdent(t.Name()) + " (" + strings.Join(defs, ", ") + ")"
}

func addColumnSQL(table string, c schema.Column) string {
	return "ALTER TABLE " + backend.QuoteIdent(table) + " ADD COLUMN " + columnDef(c)
}

func selectSQL(table, column string) string {
	return "SELECT * FROM " + backend.QuoteIdent(table) + " WHERE " + backend.QuoteIdent(column) + " = ?"
}

func selectAllSQL(table string) string {
	return "SELECT * FROM " + backend.QuoteIdent(table)
}

func updateSQL(table, column, where string) string {
	return "UPDATE " + backend.QuoteIdent(table) + " SET " + backend.QuoteIdent(column) + " = ? WHERE " + backend.QuoteIdent(where) + " = ?"
}

func deleteSQL(table, where string) string {
	return "DELETE FROM " + backend.QuoteIdent(table) + " WHERE " + backend.QuoteIdent(where) + " = ?"
}

func deleteAllSQL(table string) string {
	return "DELETE FROM " + backend.QuoteIdent(table)
}

func insertSQL(table string, n int) string {
	return "INSERT INTO " + backend.QuoteIdent(table) + " VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
