package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Producer computes a default value at encode time. It may block; ctx is the
// context of the operation that needs the value.
type Producer func(ctx context.Context) (any, error)

// Default is a column default: nothing, a literal, or a producer.
// Defaults live only in the application; they are never written into DDL.
type Default struct {
	value    any
	producer Producer
	set      bool
}

// Literal returns a default that always yields v.
func Literal(v any) Default {
	return Default{value: v, set: true}
}

// Func returns a default computed by p on every use.
func Func(p Producer) Default {
	return Default{producer: p, set: p != nil}
}

// IsSet reports whether a default was declared.
func (d Default) IsSet() bool { return d.set }

// IsProducer reports whether the default is computed per use.
func (d Default) IsProducer() bool { return d.producer != nil }

// Resolve returns the default value, invoking the producer if there is one.
func (d Default) Resolve(ctx context.Context) (any, error) {
	if d.producer == nil {
		return d.value, nil
	}
	v, err := d.producer(ctx)
	if err != nil {
		return nil, fmt.Errorf("default producer: %w", err)
	}
	return v, nil
}

// Now is a default producing the current time in UTC.
func Now() Default {
	return Func(func(context.Context) (any, error) {
		return time.Now().UTC(), nil
	})
}

// UUIDv7 is a default producing a time-sortable UUIDv7 string, suitable for
// TEXT primary keys.
func UUIDv7() Default {
	return Func(func(context.Context) (any, error) {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	})
}

// Generator looks up a named default producer. Schema files use these names.
func Generator(name string) (Default, error) {
	switch name {
	case "now":
		return Now(), nil
	case "uuidv7", "uuid":
		return UUIDv7(), nil
	}
	return Default{}, fmt.Errorf("unknown default generator %q", name)
}
