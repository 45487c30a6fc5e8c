package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/backend/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Empty values fall back to the TABLEKIT_* environment.
	Dir    string
	Name   string
	Driver string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidDrivers lists the accepted --driver values.
var ValidDrivers = []string{sqlite.DriverCGO, sqlite.DriverPure}

// NewRootCommand creates the root command for the tablekit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tablekit",
		Short: "Declarative SQLite tables with a weak row cache",
		Long: `tablekit reconciles declared table schemas with a SQLite database and
reads rows through the same cached table engine applications use.

Schemas are declared in a YAML, JSON or CUE schema file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Driver != "" && !slices.Contains(ValidDrivers, opts.Driver) {
				return fmt.Errorf("invalid driver %q: must be one of %v", opts.Driver, ValidDrivers)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "directory holding database files (env TABLEKIT_DB_DIR)")
	cmd.PersistentFlags().StringVar(&opts.Name, "name", "", "database name when the schema file sets none (env TABLEKIT_DB_NAME)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "sqlite driver: sqlite3 or sqlite (env TABLEKIT_DRIVER)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
