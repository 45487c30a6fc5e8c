package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/backend/sqlite"
	"github.com/roach88/tablekit/internal/config"
	"github.com/roach88/tablekit/internal/database"
	"github.com/roach88/tablekit/internal/schema/schemafile"
	"github.com/roach88/tablekit/internal/table"
	"github.com/roach88/tablekit/internal/telemetry"
)

const serviceName = "tablekit"

// session is an open database described by a schema file.
type session struct {
	file     *schemafile.File
	db       *database.Database
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// settings merges the environment with the global flags.
func settings(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if opts.Dir != "" {
		cfg.DBDir = opts.Dir
	}
	if opts.Name != "" {
		cfg.DBName = opts.Name
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	return cfg, nil
}

// openSession loads the schema file and starts opening its database. It does
// not wait for reconciliation. Errors are ExitCommandError.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, f *OutputFormatter, path string) (*session, error) {
	cfg, err := settings(opts)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to load configuration", err)
	}

	file, err := schemafile.Load(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to load schema file", err)
	}

	name := file.Database
	if name == "" {
		name = cfg.DBName
	}

	logger := newLogger(opts, cmd.ErrOrStderr())

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to set up tracing", err)
	}

	f.VerboseLog("Opening database %s in %s (driver %s)", name, cfg.DBDir, cfg.Driver)
	db, err := database.Open(sqlite.NewOpener(cfg.SQLite()), name, file.Tables,
		database.WithLogger(logger),
	)
	if err != nil {
		_ = shutdown(ctx)
		return nil, f.Fail(ExitCommandError, "failed to open database", err)
	}

	return &session{file: file, db: db, logger: logger, shutdown: shutdown}, nil
}

// table returns the named engine once it is usable.
func (s *session) table(ctx context.Context, f *OutputFormatter, name string) (*table.Engine, error) {
	e, err := s.db.Table(name)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "unknown table", err)
	}
	if err := e.Ready(ctx); err != nil {
		return nil, f.Fail(exitCodeFor(err), "table unavailable", err)
	}
	return e, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.db.Close(ctx); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
	if err := s.shutdown(ctx); err != nil {
		s.logger.Error("error flushing traces", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
