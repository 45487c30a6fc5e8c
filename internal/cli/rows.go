package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/codec"
	"github.com/roach88/tablekit/internal/schema"
	"github.com/roach88/tablekit/internal/table"
)

// RowsResult is the output of list and get.
type RowsResult struct {
	Table   string       `json:"table"`
	Rows    []*table.Row `json:"rows"`
	columns []string
}

// WriteText renders one line per row, columns in declared order.
func (r RowsResult) WriteText(w io.Writer) error {
	for _, row := range r.Rows {
		fields := make([]string, 0, len(r.columns))
		for _, col := range r.columns {
			v, _ := row.Get(col)
			fields = append(fields, col+"="+formatValue(v))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

func newRowsResult(t *schema.Table, rows []*table.Row) RowsResult {
	cols := make([]string, 0, t.Len())
	for _, c := range t.Columns() {
		cols = append(cols, c.Name)
	}
	if rows == nil {
		rows = []*table.Row{}
	}
	return RowsResult{Table: t.Name(), Rows: rows, columns: cols}
}

// QueryResult is the output of query.
type QueryResult struct {
	Rows []backend.Record `json:"rows"`
}

// WriteText renders one line per record, columns sorted by name.
func (r QueryResult) WriteText(w io.Writer) error {
	for _, rec := range r.Rows {
		fields := make([]string, 0, len(rec))
		for _, col := range slices.Sorted(maps.Keys(rec)) {
			fields = append(fields, col+"="+formatValue(rec[col]))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(v)
	case string:
		return v
	}
	return fmt.Sprint(v)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <schema-file> <table>",
		Short: "Print every row of a table",
		Long: `Print every row of a declared table, decoded with the table's column types.

Example:
  tablekit list ./schema.yaml users
  tablekit list --format json ./schema.yaml users`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runList(opts *RootOptions, path, tableName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts, cmd, formatter, path)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	e, err := s.table(ctx, formatter, tableName)
	if err != nil {
		return err
	}

	rows, err := e.List(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to list "+tableName, err)
	}
	formatter.VerboseLog("Read %d row(s) from %s", len(rows), tableName)

	return formatter.Success(newRowsResult(e.Schema(), rows))
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <schema-file> <table> <key>",
		Short: "Print the row with a primary key",
		Long: `Print the row whose primary key is <key>. The key is parsed with the
primary-key column's type. Exits with status 1 when there is no such row.

Example:
  tablekit get ./schema.yaml users 42`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], args[1], args[2], cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, path, tableName, rawKey string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts, cmd, formatter, path)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	e, err := s.table(ctx, formatter, tableName)
	if err != nil {
		return err
	}

	pk := e.Schema().PrimaryKey()
	key, err := codec.Parse(pk, rawKey)
	if err != nil {
		return formatter.Fail(ExitCommandError, fmt.Sprintf("invalid %s key %q", pk.Type, rawKey), err)
	}

	row, err := e.Get(ctx, key)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read "+tableName, err)
	}
	if row == nil {
		msg := fmt.Sprintf("no %s row with %s %s", tableName, pk.Name, rawKey)
		if err := formatter.Error(codeNotFound, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return formatter.Success(newRowsResult(e.Schema(), []*table.Row{row}))
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <schema-file> <sql> [args...]",
		Short: "Run a raw SQL statement",
		Long: `Run one SQL statement against the database once every declared table
has reconciled. Arguments are bound to ? placeholders as text.

Example:
  tablekit query ./schema.yaml 'SELECT count(*) AS n FROM users'
  tablekit query ./schema.yaml 'DELETE FROM sessions WHERE user_id = ?' 42`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], args[1], args[2:], cmd)
		},
	}

	return cmd
}

func runQuery(opts *RootOptions, path, query string, rawArgs []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts, cmd, formatter, path)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.db.Wait(ctx); err != nil {
		return formatter.Fail(exitCodeFor(err), "database unavailable", err)
	}

	args := make([]any, len(rawArgs))
	for i, a := range rawArgs {
		args[i] = a
	}

	recs, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return formatter.Fail(ExitCommandError, "query failed", err)
	}
	formatter.VerboseLog("Query returned %d row(s)", len(recs))

	// drivers may return TEXT as []byte, which JSON would base64
	for _, rec := range recs {
		for k, v := range rec {
			if b, ok := v.([]byte); ok {
				rec[k] = string(b)
			}
		}
	}

	return formatter.Success(QueryResult{Rows: recs})
}
