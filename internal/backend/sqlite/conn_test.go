package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablekit/internal/dberr"
)

var drivers = []string{DriverCGO, DriverPure}

func openMemory(t *testing.T, driver string) *Conn {
	t.Helper()
	c, err := Open(context.Background(), Config{Driver: driver}, Memory)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpen_CreatesNamedFile(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			c, err := Open(context.Background(), Config{Dir: dir, Driver: driver}, "app")
			require.NoError(t, err)
			defer c.Close()

			_, err = os.Stat(filepath.Join(dir, "app.sqlite"))
			assert.NoError(t, err, "database file was not created")
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Dir: t.TempDir()}

	c1, err := Open(ctx, cfg, "app")
	require.NoError(t, err)
	_, err = c1.Query(ctx, `CREATE TABLE items (id INT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = c1.Query(ctx, `INSERT INTO items (id) VALUES (?)`, 7)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := Open(ctx, cfg, "app")
	require.NoError(t, err)
	defer c2.Close()

	recs, err := c2.Query(ctx, `SELECT id FROM items`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(7), recs[0]["id"])
}

func TestOpen_Pragmas(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, Config{Dir: t.TempDir()}, "app")
	require.NoError(t, err)
	defer c.Close()

	var mode string
	require.NoError(t, c.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, c.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var busy int
	require.NoError(t, c.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{}, "")
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "postgres"}, Memory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sqlite driver")
}

func TestQuery_Records(t *testing.T) {
	ctx := context.Background()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			c := openMemory(t, driver)

			recs, err := c.Query(ctx, `CREATE TABLE items (id INT PRIMARY KEY, name TEXT NOT NULL)`)
			require.NoError(t, err)
			assert.Empty(t, recs)

			_, err = c.Query(ctx, `INSERT INTO items (id, name) VALUES (?, ?), (?, ?)`, 1, "a", 2, "b")
			require.NoError(t, err)

			recs, err = c.Query(ctx, `SELECT id, name FROM items ORDER BY id`)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, int64(1), recs[0]["id"])
			assert.Equal(t, int64(2), recs[1]["id"])
			assert.Contains(t, []any{"b", []byte("b")}, recs[1]["name"])

			recs, err = c.Query(ctx, `SELECT id FROM items WHERE id = ?`, 99)
			require.NoError(t, err)
			assert.NotNil(t, recs)
			assert.Empty(t, recs)
		})
	}
}

func TestTableInfo(t *testing.T) {
	ctx := context.Background()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			c := openMemory(t, driver)

			cols, err := c.TableInfo(ctx, "users")
			require.NoError(t, err)
			assert.Empty(t, cols)

			_, err = c.Query(ctx, `CREATE TABLE "users" ("id" BIGINT PRIMARY KEY, "name" TEXT NOT NULL, "bio" TEXT)`)
			require.NoError(t, err)

			cols, err = c.TableInfo(ctx, "users")
			require.NoError(t, err)
			require.Len(t, cols, 3)

			assert.Equal(t, 0, cols[0].Position)
			assert.Equal(t, "id", cols[0].Name)
			assert.Equal(t, "BIGINT", cols[0].Type)
			assert.True(t, cols[0].PrimaryKey)

			assert.Equal(t, "name", cols[1].Name)
			assert.True(t, cols[1].NotNull)
			assert.False(t, cols[1].PrimaryKey)

			assert.Equal(t, 2, cols[2].Position)
			assert.False(t, cols[2].NotNull)
		})
	}
}

func TestQuery_ClassifiesErrors(t *testing.T) {
	ctx := context.Background()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			c := openMemory(t, driver)

			_, err := c.Query(ctx, `CREATE TABLE items (id INT PRIMARY KEY, name TEXT NOT NULL UNIQUE)`)
			require.NoError(t, err)
			_, err = c.Query(ctx, `INSERT INTO items (id, name) VALUES (1, 'a')`)
			require.NoError(t, err)

			t.Run("unique", func(t *testing.T) {
				_, err := c.Query(ctx, `INSERT INTO items (id, name) VALUES (2, 'a')`)
				require.Error(t, err)
				assert.True(t, dberr.IsConstraint(err))

				var de *dberr.Error
				require.True(t, errors.As(err, &de))
				assert.Equal(t, "UNIQUE", de.Constraint)
				assert.Equal(t, "items", de.Table)
				assert.Equal(t, "name", de.Column)
			})

			t.Run("primary key", func(t *testing.T) {
				_, err := c.Query(ctx, `INSERT INTO items (id, name) VALUES (1, 'z')`)
				assert.True(t, dberr.IsConstraint(err))
			})

			t.Run("not null", func(t *testing.T) {
				_, err := c.Query(ctx, `INSERT INTO items (id, name) VALUES (3, NULL)`)
				require.Error(t, err)

				var de *dberr.Error
				require.True(t, errors.As(err, &de))
				assert.Equal(t, dberr.CodeConstraint, de.Code)
				assert.Equal(t, "NOT NULL", de.Constraint)
				assert.Equal(t, "name", de.Column)
			})

			t.Run("no such table", func(t *testing.T) {
				_, err := c.Query(ctx, `SELECT * FROM missing`)
				require.Error(t, err)
				assert.True(t, dberr.IsNoSuchTable(err))

				var de *dberr.Error
				require.True(t, errors.As(err, &de))
				assert.Equal(t, "missing", de.Table)
			})

			t.Run("syntax", func(t *testing.T) {
				_, err := c.Query(ctx, `SELEKT 1`)
				require.Error(t, err)
				assert.True(t, dberr.IsBackend(err))
			})
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	c, err := Open(context.Background(), Config{}, Memory)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Query(context.Background(), `SELECT 1`)
	assert.True(t, dberr.IsBackend(err))
}

func TestNewOpener(t *testing.T) {
	open := NewOpener(Config{Driver: DriverPure})
	conn, err := open(context.Background(), Memory)
	require.NoError(t, err)
	defer conn.Close()

	recs, err := conn.Query(context.Background(), `SELECT 1 AS one`)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0]["one"])
}

func TestConfigPath(t *testing.T) {
	cfg := Config{Dir: "/var/lib/app"}
	assert.Equal(t, "/var/lib/app/main.sqlite", cfg.Path("main"))
	assert.Equal(t, Memory, cfg.Path(Memory))
}
