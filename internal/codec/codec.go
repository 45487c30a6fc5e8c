// Package codec converts between logical column values and the scalars the
// SQL backend stores.
//
//	logical            backend
//	bool            -> 0 / 1
//	int64 (any int) -> int64
//	money           -> int64 or float64, unchanged
//	string          -> string, unchanged
//	time.Time       -> RFC 3339 text, UTC
//
// Defaults are applied here, at encode time, never in DDL.
package codec

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
)

// TimeLayout is the text layout used to store timestamps.
const TimeLayout = time.RFC3339Nano

// Layouts accepted when decoding timestamp text written by other tools.
var decodeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
}

// Encode converts v for storage in col. When present is false the column's
// default is applied; if there is none, required columns fail with a
// validation error and optional ones encode as NULL. A present nil encodes as
// NULL and leaves NOT NULL enforcement to the backend.
func Encode(ctx context.Context, table string, col schema.Column, v any, present bool) (any, error) {
	if !present {
		if !col.Default.IsSet() {
			if col.Required() {
				return nil, dberr.MissingValue(table, col.Name)
			}
			return nil, nil
		}
		dv, err := col.Default.Resolve(ctx)
		if err != nil {
			return nil, &dberr.Error{
				Code:    dberr.CodeValidation,
				Message: "default failed",
				Table:   table,
				Column:  col.Name,
				Cause:   err,
			}
		}
		v = dv
	}
	return EncodeValue(table, col, v)
}

// EncodeValue converts a present value for storage in col.
func EncodeValue(table string, col schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case schema.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, wrongType(table, col, v)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil

	case schema.Integer, schema.BigInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, wrongType(table, col, v)
		}
		return n, nil

	case schema.Money:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
		return nil, wrongType(table, col, v)

	case schema.Text:
		s, ok := v.(string)
		if !ok {
			return nil, wrongType(table, col, v)
		}
		return s, nil

	case schema.Timestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(TimeLayout), nil
		case *time.Time:
			if t == nil {
				return nil, nil
			}
			return t.UTC().Format(TimeLayout), nil
		}
		return nil, wrongType(table, col, v)
	}
	return nil, dberr.Validation(table, col.Name, "unsupported column type %s", col.Type)
}

// Decode converts a backend scalar read from col into its logical value.
func Decode(table string, col schema.Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch col.Type {
	case schema.Boolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case float64:
			return v != 0, nil
		case string:
			return parseBoolText(v), nil
		}

	case schema.Integer, schema.BigInteger:
		if n, ok := toInt64(raw); ok {
			return n, nil
		}
		return raw, nil

	case schema.Money, schema.Text:
		return raw, nil

	case schema.Timestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := parseTime(v)
			if err != nil {
				return nil, dberr.SchemaDrift(table, col.Name, "cannot parse timestamp %q", v)
			}
			return t, nil
		case int64:
			return time.Unix(v, 0).UTC(), nil
		}
	}
	return nil, dberr.SchemaDrift(table, col.Name, "cannot decode %T as %s", raw, col.Type)
}

// DecodeRow decodes every declared column of t from a backend record.
// A record missing a declared column means the backend table drifted from the
// schema after reconciliation; that is reported as a schema drift error.
// Backend columns the schema does not declare are ignored.
func DecodeRow(t *schema.Table, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, t.Len())
	for _, col := range t.Columns() {
		rv, ok := raw[col.Name]
		if !ok {
			return nil, dberr.SchemaDrift(t.Name(), col.Name, "backend row has no column %q", col.Name)
		}
		v, err := Decode(t.Name(), col, rv)
		if err != nil {
			return nil, err
		}
		out[col.Name] = v
	}
	return out, nil
}

// Parse converts command-line text into a logical value for col.
func Parse(col schema.Column, s string) (any, error) {
	switch col.Type {
	case schema.Boolean:
		return strconv.ParseBool(s)
	case schema.Integer, schema.BigInteger:
		return strconv.ParseInt(s, 10, 64)
	case schema.Money:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		return strconv.ParseFloat(s, 64)
	case schema.Text:
		return s, nil
	case schema.Timestamp:
		return parseTime(s)
	}
	return nil, fmt.Errorf("unsupported column type %s", col.Type)
}

func wrongType(table string, col schema.Column, v any) error {
	return dberr.Validation(table, col.Name, "cannot store %T in %s column %q", v, col.Type, col.Name)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), uint64(n) <= math.MaxInt64
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	}
	return 0, false
}

func parseBoolText(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return s != ""
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range decodeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
