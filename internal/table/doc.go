// Package table implements the per-table engine: schema reconciliation
// against the backend, typed CRUD, and a weak cache of rows keyed by primary
// key.
//
// # Reconciliation
//
// New starts reconciling in the background. A missing table is created; an
// existing one is compared column by column and may only grow by trailing
// columns (ALTER TABLE ... ADD COLUMN). Any other difference is a
// dberr.CodeSchemaMismatch error: nothing is modified and every operation on
// the engine returns that error.
//
// # Cache
//
// Rows returned by Get are cached weakly: an entry lives as long as some
// caller holds the *Row. A lookup that finds nothing caches an absence
// marker, and Delete installs one before the backend statement runs, so a
// deleted key reads as missing immediately.
//
//	Update(pk, ...)           patches the cached row in place
//	UpdateBy/DeleteBy(pk col) same as Update/Delete
//	UpdateBy/DeleteBy(other)  drops the whole cache
//	DeleteAll                 drops the whole cache
//	Insert                    drops the key, then reloads it
//
// Writes issued through Query bypass the cache; call InvalidateCache after
// them.
package table
