package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/tablekit/internal/backend"
)

// Driver names registered with database/sql.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// Memory is the database name that opens an in-memory database.
const Memory = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// Config selects the driver and file location.
type Config struct {
	// Dir is the directory holding "<name>.sqlite" files.
	Dir string
	// Driver is DriverCGO or DriverPure. Empty means DriverCGO.
	Driver string
	// BusyTimeout bounds lock waits. Zero means 5s.
	BusyTimeout time.Duration
}

// Path returns the file path used for the database called name.
func (c Config) Path(name string) string {
	if name == Memory {
		return Memory
	}
	return filepath.Join(c.Dir, name+".sqlite")
}

func (c Config) driver() (string, error) {
	switch strings.TrimSpace(c.Driver) {
	case "", DriverCGO:
		return DriverCGO, nil
	case DriverPure:
		return DriverPure, nil
	}
	return "", fmt.Errorf("unknown sqlite driver %q (want %q or %q)", c.Driver, DriverCGO, DriverPure)
}

// Conn is an open SQLite database.
type Conn struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// NewOpener returns a backend.Opener bound to cfg.
func NewOpener(cfg Config) backend.Opener {
	return func(ctx context.Context, name string) (backend.Conn, error) {
		return Open(ctx, cfg, name)
	}
}

// Open creates or opens the database called name and applies the pragmas
// listed in the package documentation.
func Open(ctx context.Context, cfg Config, name string) (*Conn, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("database name is required")
	}
	driver, err := cfg.driver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Conn{db: db}, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, cfg Config) error {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Query runs one statement and collects every result row.
func (c *Conn) Query(ctx context.Context, query string, args ...any) ([]backend.Record, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(err)
	}

	records := []backend.Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err)
		}

		rec := make(backend.Record, len(cols))
		for i, name := range cols {
			rec[name] = values[i]
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return records, nil
}

// TableInfo reads PRAGMA table_info. A missing table yields no columns.
func (c *Conn) TableInfo(ctx context.Context, table string) ([]backend.ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", backend.QuoteIdent(table)))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var cols []backend.ColumnInfo
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, classify(err)
		}
		cols = append(cols, backend.ColumnInfo{
			Position:   cid,
			Name:       name,
			Type:       declType,
			PrimaryKey: pk > 0,
			NotNull:    notNull != 0,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return cols, nil
}

// Close closes the database. Later calls return the first result.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}


var _ backend.Conn = (*Conn)(nil)
