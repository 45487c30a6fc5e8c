package table

import (
	"encoding/json"
	"maps"
	"sync"
	"time"
)

// Row is one decoded table row. Values are keyed by column name and hold the
// logical Go value for the column type (bool, int64, float64 or int64 for
// money, string, time.Time) or nil for NULL.
//
// A *Row returned by Get is shared with the engine's cache and is updated in
// place by Update when the row is still cached. Holding the pointer is what
// keeps the cache entry alive.
type Row struct {
	mu     sync.RWMutex
	values map[string]any
}

// absent is cached for primary keys known to have no row.
var absent = &Row{}

func newRow(values map[string]any) *Row {
	return &Row{values: values}
}

// Get returns the value of col and whether the row has that column.
func (r *Row) Get(col string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[col]
	return v, ok
}

// Values returns a copy of all column values.
func (r *Row) Values() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.values)
}

// IsNull reports whether col is NULL or missing.
func (r *Row) IsNull(col string) bool {
	v, _ := r.Get(col)
	return v == nil
}

// Bool returns col as a bool, or false.
func (r *Row) Bool(col string) bool {
	v, _ := r.Get(col)
	b, _ := v.(bool)
	return b
}

// Int64 returns col as an int64, or 0.
func (r *Row) Int64(col string) int64 {
	v, _ := r.Get(col)
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

// Float64 returns col as a float64, or 0. Integer values are converted.
func (r *Row) Float64(col string) float64 {
	v, _ := r.Get(col)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

// String returns col as a string, or "".
func (r *Row) String(col string) string {
	v, _ := r.Get(col)
	s, _ := v.(string)
	return s
}

// Time returns col as a time.Time, or the zero time.
func (r *Row) Time(col string) time.Time {
	v, _ := r.Get(col)
	t, _ := v.(time.Time)
	return t
}

// MarshalJSON encodes the row as a JSON object.
func (r *Row) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(r.values)
}

func (r *Row) set(col string, v any) {
	r.mu.Lock()
	r.values[col] = v
	r.mu.Unlock()
}
