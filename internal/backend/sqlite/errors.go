package sqlite

import (
	"errors"
	"regexp"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/roach88/tablekit/internal/dberr"
)

var (
	constraintPattern  = regexp.MustCompile(`([A-Z][A-Z ]*?) constraint failed(?:: (\S+))?`)
	noSuchTablePattern = regexp.MustCompile(`no such table: ([^\s(]+)`)
)

// classify maps a driver error onto the dberr taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var de *dberr.Error
	if errors.As(err, &de) {
		return err
	}

	code, ok := primaryCode(err)
	if !ok {
		// Wrapped or foreign errors: fall back to the diagnostic text.
		msg := err.Error()
		switch {
		case constraintPattern.MatchString(msg):
			return constraintError(err)
		case noSuchTablePattern.MatchString(msg):
			return noSuchTableError(err)
		}
		return dberr.Backend(err)
	}

	switch code {
	case sqlite3lib.SQLITE_CONSTRAINT:
		return constraintError(err)
	case sqlite3lib.SQLITE_ERROR:
		if noSuchTablePattern.MatchString(err.Error()) {
			return noSuchTableError(err)
		}
	}
	return dberr.Backend(err)
}

// primaryCode extracts the primary SQLite result code from either driver.
func primaryCode(err error) (int, bool) {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return int(cgoErr.Code), true
	}

	var pureErr *msqlite.Error
	if errors.As(err, &pureErr) {
		return pureErr.Code() & 0xff, true
	}

	return 0, false
}

func constraintError(err error) error {
	kind, table, field := "", "", ""
	if m := constraintPattern.FindStringSubmatch(err.Error()); m != nil {
		kind = strings.TrimSpace(m[1])
		table, field = splitQualified(strings.TrimRight(m[2], ",;"))
	}
	return dberr.Constraint(kind, table, field, err)
}

func noSuchTableError(err error) error {
	table := ""
	if m := noSuchTablePattern.FindStringSubmatch(err.Error()); m != nil {
		table = m[1]
	}
	return dberr.NoSuchTable(table, err)
}

// splitQualified splits "table.column" into its parts.
func splitQualified(s string) (string, string) {
	if s == "" {
		return "", ""
	}
	table, field, ok := strings.Cut(s, ".")
	if !ok {
		return "", s
	}
	return table, field
}
