package testutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/tablekit/internal/schema"
)

// Sequence generates predictable TEXT keys: prefix-0001, prefix-0002, ...
// It stands in for schema.UUIDv7 where tests compare keys.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a sequence. An empty prefix means "id".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next key.
func (s *Sequence) Next() string {
	return fmt.Sprintf("%s-%04d", s.prefix, s.n.Add(1))
}

// Default returns a column default drawing from s.
func (s *Sequence) Default() schema.Default {
	return schema.Func(func(context.Context) (any, error) {
		return s.Next(), nil
	})
}
