package table

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/codec"
	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
	"github.com/roach88/tablekit/internal/weakcache"
)

// Queryer is the database surface an Engine needs.
// Implemented by *database.Database and by backend.Conn.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) ([]backend.Record, error)
	TableInfo(ctx context.Context, table string) ([]backend.ColumnInfo, error)
}

// Engine serves one declared table.
//
// Thread-safety model:
//   - all methods are safe for concurrent use
//   - every operation blocks until reconciliation has finished
//   - cache coherence is best-effort; there is no atomicity across statements
type Engine struct {
	db      Queryer
	schema  *schema.Table
	pk      schema.Column
	cache   *weakcache.Cache[any, Row]
	logger  *slog.Logger
	onFatal func(error)

	ready   chan struct{}
	initErr error
	outcome Outcome
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithOnFatal sets the function called once if reconciliation fails.
// Default: log the failure at error level.
func WithOnFatal(fn func(error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onFatal = fn
		}
	}
}

// New creates an Engine for tbl and starts reconciling it against db in the
// background. ctx bounds reconciliation only.
func New(ctx context.Context, db Queryer, tbl *schema.Table, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		schema: tbl,
		pk:     tbl.PrimaryKey(),
		cache:  weakcache.New[any, Row](),
		logger: slog.Default(),
		ready:  make(chan struct{}),
	}
	e.onFatal = e.logFatal

	for _, opt := range opts {
		opt(e)
	}

	go e.init(ctx)

	return e
}

func (e *Engine) init(ctx context.Context) {
	out, err := e.reconcile(ctx)
	e.outcome = out
	e.initErr = err
	close(e.ready)

	if err != nil {
		e.onFatal(err)
	}
}

func (e *Engine) logFatal(err error) {
	attrs := []any{"table", e.schema.Name(), "error", err}
	if dberr.IsSchemaMismatch(err) {
		attrs = append(attrs, "hint",
			"the table will not be modified automatically; migrate it with the sqlite3 shell")
	}
	e.logger.Error("table unavailable", attrs...)
}

// Ready blocks until reconciliation has finished and returns its error.
func (e *Engine) Ready(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome reports what reconciliation did. It is the zero Outcome until
// Ready returns.
func (e *Engine) Outcome() Outcome {
	select {
	case <-e.ready:
		return e.outcome
	default:
		return Outcome{}
	}
}

// Name returns the table name.
func (e *Engine) Name() string { return e.schema.Name() }

// Schema returns the declared table schema.
func (e *Engine) Schema() *schema.Table { return e.schema }

// InvalidateCache drops every cached row and absence marker.
func (e *Engine) InvalidateCache() { e.cache.Clear() }

// Get returns the row with primary key pk, or nil if there is none.
func (e *Engine) Get(ctx context.Context, pk any) (*Row, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}
	key, err := e.key(pk)
	if err != nil {
		return nil, err
	}
	return e.getByKey(ctx, key)
}

func (e *Engine) getByKey(ctx context.Context, key any) (*Row, error) {
	if row, ok := e.cache.Get(key); ok {
		if row == absent {
			return nil, nil
		}
		return row, nil
	}

	rows, err := e.selectWhere(ctx, e.pk, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		e.cache.Set(key, absent)
		return nil, nil
	}

	e.cache.Set(key, rows[0])
	return rows[0], nil
}

// GetBy returns the rows whose column equals value. For primary-key and
// unique columns at most one row is returned.
func (e *Engine) GetBy(ctx context.Context, column string, value any) ([]*Row, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}
	col, err := e.column(column)
	if err != nil {
		return nil, err
	}
	enc, err := codec.EncodeValue(e.schema.Name(), col, value)
	if err != nil {
		return nil, err
	}

	rows, err := e.selectWhere(ctx, col, enc)
	if err != nil {
		return nil, err
	}
	if (col.PrimaryKey || col.Unique) && len(rows) > 1 {
		rows = rows[:1]
	}
	return rows, nil
}

// GetOne returns the row whose unique column equals value, or nil.
// Lookups by primary key go through the cache.
func (e *Engine) GetOne(ctx context.Context, column string, value any) (*Row, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}
	col, err := e.column(column)
	if err != nil {
		return nil, err
	}
	if col.PrimaryKey {
		return e.Get(ctx, value)
	}
	if !col.Unique {
		return nil, dberr.Usage("column %q of table %s is not unique; use GetBy", col.Name, e.schema.Name())
	}

	rows, err := e.GetBy(ctx, col.Name, value)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// List returns every row in the table.
func (e *Engine) List(ctx context.Context) ([]*Row, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}
	recs, err := e.db.Query(ctx, selectAllSQL(e.schema.Name()))
	if err != nil {
		return nil, err
	}
	return e.decode(recs)
}

// Update sets column to value on the row with primary key pk. A cached row
// is updated in place before the statement runs; if the statement fails the
// entry is dropped so the next Get reads the stored row.
func (e *Engine) Update(ctx context.Context, pk any, column string, value any) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	key, err := e.key(pk)
	if err != nil {
		return err
	}
	col, err := e.column(column)
	if err != nil {
		return err
	}
	enc, err := codec.EncodeValue(e.schema.Name(), col, value)
	if err != nil {
		return err
	}

	e.patchCached(key, col, enc)

	if _, err := e.db.Query(ctx, updateSQL(e.schema.Name(), col.Name, e.pk.Name), enc, key); err != nil {
		e.cache.Delete(key)
		return err
	}
	return nil
}

// patchCached applies an update to the cached row for key, if it is live.
// Changing the primary key itself drops the entry.
func (e *Engine) patchCached(key any, col schema.Column, enc any) {
	row, ok := e.cache.Get(key)
	if !ok || row == absent {
		return
	}
	if col.PrimaryKey {
		e.cache.Delete(key)
		return
	}
	dec, err := codec.Decode(e.schema.Name(), col, enc)
	if err != nil {
		e.cache.Delete(key)
		return
	}
	row.set(col.Name, dec)
}

// UpdateBy sets column to value on every row whose queryColumn equals
// queryValue. Unless queryColumn is the primary key the whole cache is
// dropped afterwards.
func (e *Engine) UpdateBy(ctx context.Context, queryColumn string, queryValue any, column string, value any) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	qcol, err := e.column(queryColumn)
	if err != nil {
		return err
	}
	col, err := e.column(column)
	if err != nil {
		return err
	}
	if qcol.PrimaryKey {
		return e.Update(ctx, queryValue, col.Name, value)
	}

	qenc, err := codec.EncodeValue(e.schema.Name(), qcol, queryValue)
	if err != nil {
		return err
	}
	enc, err := codec.EncodeValue(e.schema.Name(), col, value)
	if err != nil {
		return err
	}

	_, err = e.db.Query(ctx, updateSQL(e.schema.Name(), col.Name, qcol.Name), enc, qenc)
	e.cache.Clear()
	return err
}

// Delete removes the row with primary key pk and marks it absent in the
// cache.
func (e *Engine) Delete(ctx context.Context, pk any) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	key, err := e.key(pk)
	if err != nil {
		return err
	}

	e.cache.Set(key, absent)

	_, err = e.db.Query(ctx, deleteSQL(e.schema.Name(), e.pk.Name), key)
	return err
}

// DeleteBy removes every row whose column equals value. Unless column is
// the primary key the whole cache is dropped afterwards.
func (e *Engine) DeleteBy(ctx context.Context, column string, value any) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	col, err := e.column(column)
	if err != nil {
		return err
	}
	if col.PrimaryKey {
		return e.Delete(ctx, value)
	}

	enc, err := codec.EncodeValue(e.schema.Name(), col, value)
	if err != nil {
		return err
	}

	_, err = e.db.Query(ctx, deleteSQL(e.schema.Name(), col.Name), enc)
	e.cache.Clear()
	return err
}

// DeleteAll removes every row.
func (e *Engine) DeleteAll(ctx context.Context) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	e.cache.Clear()
	_, err := e.db.Query(ctx, deleteAllSQL(e.schema.Name()))
	return err
}

// Insert adds a row. Columns missing from init take their default; keys
// that are not declared columns are rejected. After a successful insert the
// new row is loaded into the cache; a failure to do so is only logged.
func (e *Engine) Insert(ctx context.Context, init map[string]any) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}

	given := make(map[string]any, len(init))
	for k, v := range init {
		col, ok := e.schema.Column(k)
		if !ok {
			return dberr.UnknownColumn(e.schema.Name(), k)
		}
		given[col.Name] = v
	}

	var key any
	args := make([]any, 0, e.schema.Len())
	for _, col := range e.schema.Columns() {
		v, present := given[col.Name]
		enc, err := codec.Encode(ctx, e.schema.Name(), col, v, present)
		if err != nil {
			return err
		}
		if col.PrimaryKey {
			key = enc
		}
		args = append(args, enc)
	}

	if _, err := e.db.Query(ctx, insertSQL(e.schema.Name(), len(args)), args...); err != nil {
		return err
	}

	if key == nil {
		return nil
	}
	e.cache.Delete(key)
	if _, err := e.getByKey(ctx, key); err != nil {
		e.logger.Debug("cache warm-up failed",
			"table", e.schema.Name(),
			"key", key,
			"error", err,
		)
	}
	return nil
}

// Query runs a raw statement with every "$tablename$" replaced by the table
// name.
func (e *Engine) Query(ctx context.Context, query string, args ...any) ([]backend.Record, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}
	return e.db.Query(ctx, strings.ReplaceAll(query, tableNamePlaceholder, e.schema.Name()), args...)
}

func (e *Engine) column(name string) (schema.Column, error) {
	col, ok := e.schema.Column(name)
	if !ok {
		return schema.Column{}, dberr.UnknownColumn(e.schema.Name(), name)
	}
	return col, nil
}

// key encodes a primary-key value into its cache and backend form.
func (e *Engine) key(pk any) (any, error) {
	key, err := codec.EncodeValue(e.schema.Name(), e.pk, pk)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, dberr.Usage("primary key %s of table %s must not be nil", e.pk.Name, e.schema.Name())
	}
	return key, nil
}

func (e *Engine) selectWhere(ctx context.Context, col schema.Column, enc any) ([]*Row, error) {
	recs, err := e.db.Query(ctx, selectSQL(e.schema.Name(), col.Name), enc)
	if err != nil {
		return nil, err
	}
	return e.decode(recs)
}

func (e *Engine) decode(recs []backend.Record) ([]*Row, error) {
	rows := make([]*Row, 0, len(recs))
	for _, rec := range recs {
		values, err := codec.DecodeRow(e.schema, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", e.schema.Name(), err)
		}
		rows = append(rows, newRow(values))
	}
	return rows, nil
}
