package table

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/backend"
	"github.com/roach88/tablekit/internal/backend/sqlite"
	"github.com/roach88/tablekit/internal/schema"
)

// recorder forwards to a real connection and records every statement.
type recorder struct {
	conn backend.Conn

	mu    sync.Mutex
	stmts []string
	hook  func(query string)
}

func (r *recorder) Query(ctx context.Context, query string, args ...any) ([]backend.Record, error) {
	r.mu.Lock()
	r.stmts = append(r.stmts, query)
	hook := r.hook
	r.mu.Unlock()

	if hook != nil {
		hook(query)
	}
	return r.conn.Query(ctx, query, args...)
}

func (r *recorder) TableInfo(ctx context.Context, table string) ([]backend.ColumnInfo, error) {
	return r.conn.TableInfo(ctx, table)
}

func (r *recorder) setHook(fn func(query string)) {
	r.mu.Lock()
	r.hook = fn
	r.mu.Unlock()
}

// count returns how many recorded statements start with prefix.
func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.stmts = nil
	r.mu.Unlock()
}

func newRecorder(t *testing.T) *recorder {
	t.Helper()
	conn, err := sqlite.Open(context.Background(), sqlite.Config{}, sqlite.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &recorder{conn: conn}
}

func newReadyEngine(t *testing.T, q Queryer, tbl *schema.Table, opts ...Option) *Engine {
	t.Helper()
	e := New(context.Background(), q, tbl, opts...)
	require.NoError(t, e.Ready(context.Background()))
	return e
}

func usersBuilder() *schema.Builder {
	return schema.NewTable("users").
		Column("id", schema.BigInteger).PrimaryKey().
		Column("username", schema.Text).NotNull().Unique().
		Column("age", schema.Integer).
		Column("banned", schema.Boolean).NotNull().Default(false)
}

func usersSchema() *schema.Table {
	return usersBuilder().
		Column("created", schema.Timestamp).Default(schema.Now()).
		MustBuild()
}

// seed inserts rows (id, username, age).
func seed(t *testing.T, e *Engine, rows ...[3]any) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, e.Insert(context.Background(), map[string]any{
			"id":       r[0],
			"username": r[1],
			"age":      r[2],
		}))
	}
}
