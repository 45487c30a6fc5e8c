// Package database owns a backend connection and the table engines declared
// on it.
//
// Open returns immediately: the backend is opened in the background and each
// table reconciles in the background once it is. Queries issued before that
// wait for it (or for their context).
package database

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
	"github.com/roach88/tablekit/internal/table"
)

const tracerName = "github.com/roach88/tablekit/internal/database"

// Database is a registry of table engines over one backend connection.
type Database struct {
	name    string
	opener  backend.Opener
	logger  *slog.Logger
	tp      trace.TracerProvider
	tracer  trace.Tracer
	onFatal func(table string, err error)

	opened  chan struct{}
	conn    backend.Conn
	openErr error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	tables map[string]*table.Engine
	order  []string
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used by the database and its tables.
func WithLogger(l *slog.Logger) Option {
	return func(db *Database) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider for query spans.
// Default: the global provider (a no-op unless telemetry is configured).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(db *Database) {
		if tp != nil {
			db.tp = tp
		}
	}
}

// WithOnFatal sets the function called when a table fails to reconcile.
// Default: the table logs the failure.
func WithOnFatal(fn func(table string, err error)) Option {
	return func(db *Database) {
		db.onFatal = fn
	}
}

// Open starts opening the backend database called name and creates one
// engine per schema. Table names must be unique.
func Open(opener backend.Opener, name string, schemas []*schema.Table, opts ...Option) (*Database, error) {
	if opener == nil {
		return nil, dberr.Usage("database %s: opener is required", name)
	}

	seen := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		if s == nil {
			return nil, dberr.Usage("database %s: nil table schema", name)
		}
		if seen[s.Name()] {
			return nil, dberr.Usage("database %s: duplicate table %s", name, s.Name())
		}
		seen[s.Name()] = true
	}

	db := &Database{
		name:   name,
		opener: opener,
		logger: slog.Default(),
		tp:     otel.GetTracerProvider(),
		opened: make(chan struct{}),
		tables: make(map[string]*table.Engine, len(schemas)),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.tracer = db.tp.Tracer(tracerName)

	go db.open()

	for _, s := range schemas {
		tableOpts := []table.Option{table.WithLogger(db.logger)}
		if db.onFatal != nil {
			tname := s.Name()
			tableOpts = append(tableOpts, table.WithOnFatal(func(err error) {
				db.onFatal(tname, err)
			}))
		}
		db.tables[s.Name()] = table.New(context.Background(), db, s, tableOpts...)
		db.order = append(db.order, s.Name())
	}

	return db, nil
}

func (db *Database) open() {
	defer close(db.opened)

	conn, err := db.opener(context.Background(), db.name)
	if err != nil {
		db.openErr = &dberr.Error{
			Code:    dberr.CodeBackend,
			Message: "failed to open database " + db.name,
			Cause:   err,
		}
		db.logger.Error("database open failed", "name", db.name, "error", err)
		return
	}

	db.conn = conn
	db.logger.Info("database opened", "name", db.name)
}

// connection waits for the open to finish and returns the connection.
func (db *Database) connection(ctx context.Context) (backend.Conn, error) {
	if db.closed.Load() {
		return nil, dberr.Closed()
	}

	select {
	case <-db.opened:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if db.closed.Load() {
		return nil, dberr.Closed()
	}
	return db.conn, db.openErr
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Query runs one statement once the backend is open.
func (db *Database) Query(ctx context.Context, query string, args ...any) ([]backend.Record, error) {
	ctx, span := db.startSpan(ctx, "db.query", attribute.String("db.statement", query))
	defer span.End()

	conn, err := db.connection(ctx)
	if err != nil {
		return nil, endSpanError(span, err)
	}

	recs, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, endSpanError(span, err)
	}
	span.SetAttributes(attribute.Int("db.rows", len(recs)))
	return recs, nil
}

// TableInfo introspects table once the backend is open.
func (db *Database) TableInfo(ctx context.Context, tableName string) ([]backend.ColumnInfo, error) {
	ctx, span := db.startSpan(ctx, "db.table_info", attribute.String("db.sql.table", tableName))
	defer span.End()

	conn, err := db.connection(ctx)
	if err != nil {
		return nil, endSpanError(span, err)
	}

	cols, err := conn.TableInfo(ctx, tableName)
	if err != nil {
		return nil, endSpanError(span, err)
	}
	return cols, nil
}

func (db *Database) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", "sqlite"),
		attribute.String("db.name", db.name),
	)
	return db.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func endSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Table returns the engine for the declared table called name.
func (db *Database) Table(name string) (*table.Engine, error) {
	e, ok := db.tables[name]
	if !ok {
		return nil, dberr.Usage("database %s has no table %s", db.name, name)
	}
	return e, nil
}

// MustTable is Table that panics for undeclared tables.
func (db *Database) MustTable(name string) *table.Engine {
	e, err := db.Table(name)
	if err != nil {
		panic(err)
	}
	return e
}

// Tables returns every engine in declaration order.
func (db *Database) Tables() []*table.Engine {
	out := make([]*table.Engine, 0, len(db.order))
	for _, name := range db.order {
		out = append(out, db.tables[name])
	}
	return out
}

// Wait blocks until the backend is open and every table has reconciled, and
// returns the first failure.
func (db *Database) Wait(ctx context.Context) error {
	select {
	case <-db.opened:
	case <-ctx.Done():
		return ctx.Err()
	}
	if db.openErr != nil {
		return db.openErr
	}

	for _, e := range db.Tables() {
		if err := e.Ready(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the backend once the open has finished. Queries issued after
// Close fail with a dberr.CodeClosed error. Later calls return the result of
// closing the backend.
//
// If ctx ends before the open finishes, that call returns ctx.Err() and the
// backend is closed in the background once it is open.
func (db *Database) Close(ctx context.Context) error {
	var waitErr error
	db.closeOnce.Do(func() {
		db.closed.Store(true)

		select {
		case <-db.opened:
		case <-ctx.Done():
			waitErr = ctx.Err()
			go func() {
				<-db.opened
				if err := db.closeConn(); err != nil {
					db.logger.Error("database close failed", "name", db.name, "error", err)
				}
			}()
			return
		}
		db.closeErr = db.closeConn()
	})
	if waitErr != nil {
		return waitErr
	}
	return db.closeErr
}

func (db *Database) closeConn() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.logger.Debug("database closed", "name", db.name)
	return err
}

var _ table.Queryer = (*Database)(nil)
