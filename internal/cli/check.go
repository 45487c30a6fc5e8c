package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/dberr"
)

// TableStatus is the reconciliation result of one table.
type TableStatus struct {
	Table  string   `json:"table"`
	Status string   `json:"status"` // "ok", "created", "altered" or "mismatch"
	Added  []string `json:"added,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// CheckResult is the output of check.
type CheckResult struct {
	Database string        `json:"database"`
	Tables   []TableStatus `json:"tables"`
}

// WriteText renders one line per table.
func (r CheckResult) WriteText(w io.Writer) error {
	for _, t := range r.Tables {
		var err error
		switch t.Status {
		case "altered":
			_, err = fmt.Fprintf(w, "%s: added %s\n", t.Table, strings.Join(t.Added, ", "))
		case "mismatch":
			_, err = fmt.Fprintf(w, "%s: mismatch: %s\n", t.Table, t.Error)
		default:
			_, err = fmt.Fprintf(w, "%s: %s\n", t.Table, t.Status)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <schema-file>",
		Short: "Reconcile declared tables with the database",
		Long: `Open the database named by the schema file and reconcile every declared
table: missing tables are created and trailing declared columns are added.

Any other difference between the declared and the stored columns is a
mismatch. Nothing is changed for that table and check exits with status 1.

Example:
  tablekit check ./schema.yaml
  tablekit check --dir ./data --format json ./schema.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts, cmd)

	s, err := openSession(ctx, opts, cmd, formatter, path)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	result := CheckResult{Database: s.db.Name()}
	mismatches := 0

	for _, e := range s.db.Tables() {
		status := TableStatus{Table: e.Name(), Status: "ok"}

		if err := e.Ready(ctx); err != nil {
			if !dberr.IsSchemaMismatch(err) {
				return formatter.Fail(ExitCommandError, "failed to reconcile "+e.Name(), err)
			}
			status.Status = "mismatch"
			status.Error = err.Error()
			mismatches++
			result.Tables = append(result.Tables, status)
			continue
		}

		outcome := e.Outcome()
		switch {
		case outcome.Created:
			status.Status = "created"
		case len(outcome.Added) > 0:
			status.Status = "altered"
			status.Added = outcome.Added
		}
		formatter.VerboseLog("Reconciled %s: %s", e.Name(), status.Status)
		result.Tables = append(result.Tables, status)
	}

	if mismatches > 0 {
		var details any = result
		if formatter.Format != "json" {
			if err := result.WriteText(formatter.Writer); err != nil {
				return err
			}
			details = nil
		}
		if err := formatter.Error(string(dberr.CodeSchemaMismatch),
			fmt.Sprintf("%d table(s) do not match their declaration", mismatches), details); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "schema mismatch")
	}

	return formatter.Success(result)
}

// exitCodeFor maps a table failure to an exit code.
func exitCodeFor(err error) int {
	if dberr.IsSchemaMismatch(err) {
		return ExitFailure
	}
	return ExitCommandError
}
