// Package schemafile loads table declarations from YAML or CUE files.
//
//	database: app
//	tables:
//	  - name: users
//	    columns:
//	      - {name: id, type: bigint, primary_key: true}
//	      - {name: username, type: text, not_null: true, unique: true}
//	      - {name: banned, type: boolean, not_null: true, default: false}
//	      - {name: created, type: timestamp, default: {generator: now}}
//
// CUE files use the same field names and are checked against the #File
// definition before decoding. Types accept the logical or the SQL name.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tablekit/internal/dberr"
	"github.com/roach88/tablekit/internal/schema"
)

// File is a loaded schema file.
type File struct {
	// Database is the database name, or "" if the file does not set one.
	Database string
	Tables   []*schema.Table
}

type fileDoc struct {
	Database string     `yaml:"database"`
	Tables   []tableDoc `yaml:"tables"`
}

type tableDoc struct {
	Name    string      `yaml:"name"`
	Columns []columnDoc `yaml:"columns"`
}

type columnDoc struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	PrimaryKey bool   `yaml:"primary_key"`
	NotNull    bool   `yaml:"not_null"`
	Unique     bool   `yaml:"unique"`
	Default    any    `yaml:"default"`
}

// cueDefinitions constrains CUE schema files.
const cueDefinitions = `
#Column: {
	name:         string
	type:         string
	primary_key?: bool
	not_null?:    bool
	unique?:      bool
	default?:     bool | number | string | {generator: string}
}

#Table: {
	name: string
	columns: [...#Column]
}

#File: {
	database?: string
	tables: [...#Table]
}
`

// Load reads a schema file, choosing the format by extension
// (.yaml, .yml, .json or .cue).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var f *File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		f, err = ParseYAML(data)
	case ".cue":
		f, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported schema file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseYAML decodes a YAML (or JSON) schema document. Unknown fields are
// rejected.
func ParseYAML(data []byte) (*File, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return doc.build()
}

// ParseCUE evaluates a CUE schema document. filename is used in error
// positions only.
func ParseCUE(filename string, data []byte) (*File, error) {
	cctx := cuecontext.New()

	defs := cctx.CompileString(cueDefinitions, cue.Filename("schemafile.cue"))
	if err := defs.Err(); err != nil {
		return nil, fmt.Errorf("building definitions: %w", err)
	}

	v := cctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile cue: %w", err)
	}

	v = defs.LookupPath(cue.ParsePath("#File")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid schema file: %w", err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export cue: %w", err)
	}
	return ParseYAML(data)
}

func (d fileDoc) build() (*File, error) {
	f := &File{Database: d.Database}
	for _, td := range d.Tables {
		t, err := td.build()
		if err != nil {
			return nil, err
		}
		f.Tables = append(f.Tables, t)
	}
	return f, nil
}

func (td tableDoc) build() (*schema.Table, error) {
	cols := make([]schema.Column, 0, len(td.Columns))
	for _, cd := range td.Columns {
		typ, err := schema.ParseType(cd.Type)
		if err != nil {
			return nil, dberr.Usage("table %s column %s: %v", td.Name, cd.Name, err)
		}
		col := schema.Column{
			Name:       cd.Name,
			Type:       typ,
			PrimaryKey: cd.PrimaryKey,
			NotNull:    cd.NotNull,
			Unique:     cd.Unique,
		}
		if cd.Default != nil {
			col.Default, err = defaultFor(col, cd.Default)
			if err != nil {
				return nil, dberr.Usage("table %s column %s: %v", td.Name, cd.Name, err)
			}
		}
		cols = append(cols, col)
	}
	return schema.New(td.Name, cols)
}

// defaultFor converts a declared default into a schema.Default for col.
func defaultFor(col schema.Column, raw any) (schema.Default, error) {
	if m, ok := raw.(map[string]any); ok {
		name, _ := m["generator"].(string)
		if len(m) != 1 || name == "" {
			return schema.Default{}, fmt.Errorf("default must be a literal or {generator: name}")
		}
		return schema.Generator(name)
	}

	v, err := literal(col.Type, raw)
	if err != nil {
		return schema.Default{}, err
	}
	return schema.Literal(v), nil
}

func literal(t schema.Type, raw any) (any, error) {
	switch t {
	case schema.Boolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}

	case schema.Integer, schema.BigInteger:
		switch n := raw.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		}

	case schema.Money:
		switch n := raw.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return n, nil
		}

	case schema.Text:
		if s, ok := raw.(string); ok {
			return s, nil
		}

	case schema.Timestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("default %q is not an RFC 3339 timestamp", v)
			}
			return ts.UTC(), nil
		}
	}
	return nil, fmt.Errorf("default %v (%T) does not fit %s column", raw, raw, t)
}
