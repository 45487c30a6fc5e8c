// Package sqlite implements backend.Conn on SQLite through database/sql.
//
// Two drivers are supported and selected by Config.Driver:
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo), the default
//   - "sqlite":  modernc.org/sqlite (pure Go), for CGO_ENABLED=0 builds
//
// A database called name lives in Config.Dir as "<name>.sqlite"; the name
// ":memory:" opens a private in-memory database.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout: wait for locks (Config.BusyTimeout, 5s by default)
//   - foreign_keys=ON: enforce referential integrity
//   - one open connection: SQLite has a single writer, and ":memory:"
//     databases are per-connection
//
// # Error Classification
//
// Driver errors are classified by their structured result code
// (sqlite3.Error.Code or (*sqlite.Error).Code()). The diagnostic text is only
// parsed to recover the constraint kind, table and field of a constraint
// violation, and the table name of a "no such table" error. Text that does
// not parse still yields the classified error, with those fields empty.
package sqlite
