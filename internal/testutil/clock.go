// Package testutil provides deterministic column defaults for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/tablekit/internal/schema"
)

// Epoch is the first time returned by a new Clock.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock is a logical clock for Timestamp defaults. Each reading is one
// second after the previous one, starting at Epoch.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	seq int64
}

// NewClock creates a clock whose first reading is Epoch.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the next reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.seq) * time.Second)
	c.seq++
	return t
}

// Readings returns how many times Now has been called.
func (c *Clock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset makes the next reading Epoch again.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// Default returns a column default reading c, a stand-in for schema.Now.
func (c *Clock) Default() schema.Default {
	return schema.Func(func(context.Context) (any, error) {
		return c.Now(), nil
	})
}
