package schema

import (
	"fmt"
	"strings"
)

// Type is a logical column type. The set is closed.
type Type int

const (
	// Boolean values are stored as 0/1 integers.
	Boolean Type = iota + 1
	// Integer values are int64.
	Integer
	// BigInteger values are int64; the distinct SQL name is kept for schema
	// compatibility.
	BigInteger
	// Money values are int64 or float64, passed through to the backend.
	Money
	// Text values are strings.
	Text
	// Timestamp values are time.Time, stored as RFC 3339 text in UTC.
	Timestamp
)

var typeNames = map[Type]struct{ sql, logical string }{
	Boolean:    {"BOOLEAN", "boolean"},
	Integer:    {"INT", "integer"},
	BigInteger: {"BIGINT", "bigint"},
	Money:      {"MONEY", "money"},
	Text:       {"TEXT", "text"},
	Timestamp:  {"DATETIME", "timestamp"},
}

// SQL returns the type name emitted in DDL and compared during
// reconciliation.
func (t Type) SQL() string {
	if n, ok := typeNames[t]; ok {
		return n.sql
	}
	return ""
}

// String returns the logical type name.
func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n.logical
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is one of the declared logical types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// MatchesSQL reports whether a backend-declared type name denotes t.
func (t Type) MatchesSQL(declared string) bool {
	return strings.EqualFold(strings.TrimSpace(declared), t.SQL())
}

// ParseType accepts either the SQL name ("BIGINT", "DATETIME") or the
// logical name ("bigint", "timestamp"), case-insensitively.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	for t, n := range typeNames {
		if strings.EqualFold(s, n.sql) || strings.EqualFold(s, n.logical) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}
