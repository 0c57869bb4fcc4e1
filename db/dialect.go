package db

import (
	"strconv"
	"strings"

	"github.com/teranos/postpulse/errors"
)

// Dialect names the SQL flavour a connection speaks. Queries are written
// with '?' placeholders and rebound per dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case SQLite, Postgres, MySQL:
		return Dialect(driver), nil
	case "sqlite", "":
		return SQLite, nil
	case "pgx", "postgresql":
		return Postgres, nil
	}
	return "", errors.Newf("unsupported database driver %q", driver)
}

// Rebind rewrites '?' placeholders to the dialect's positional form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// migrationsDir is the embedded directory holding this dialect's schema.
func (d Dialect) migrationsDir() string {
	switch d {
	case Postgres:
		return "postgres/migrations"
	case MySQL:
		return "mysql/migrations"
	}
	return "sqlite/migrations"
}
