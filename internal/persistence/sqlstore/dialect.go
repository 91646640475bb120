package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported engines.
type Dialect struct {
	// Name selects the embedded migration directory.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// numbered reports whether placeholders are written as $1, $2, ...
	numbered bool
	// jsonCast is appended to JSON column reads so they scan into strings.
	jsonCast string
}

var (
	// SQLite is the modernc.org/sqlite dialect.
	SQLite = Dialect{Name: "sqlite", Driver: "sqlite"}
	// Postgres is the pgx stdlib dialect.
	Postgres = Dialect{Name: "postgres", Driver: "pgx", numbered: true, jsonCast: "::text"}
)

// DialectFor resolves a driver name from configuration.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// Rebind rewrites ? placeholders for dialects that number them.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			b.WriteByte(ch)
		case ch == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// JSONColumn returns a select expression for a JSON column that scans into a string.
func (d Dialect) JSONColumn(column string) string {
	return column + d.jsonCast
}

// Placeholders returns n comma separated ? markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
