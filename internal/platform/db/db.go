// Package db owns the storage connection pool, schema migrations and the
// request-scoped sessions handed to repositories.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps the shared connection pool.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
}

// Open connects to the database described by dsn and verifies it with a ping.
// postgres:// and postgresql:// URLs use pgx; anything else is treated as a
// SQLite file or URI.
func Open(ctx context.Context, dsn string) (*DB, error) {
	dialect, driver, source := ParseDSN(dsn)
	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("platform/db: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time; also keeps shared in-memory databases alive
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}
	return &DB{SQL: conn, Dialect: dialect}, nil
}

// New wraps an existing pool. Used by tests with sqlmock.
func New(conn *sql.DB, dialect Dialect) *DB {
	return &DB{SQL: conn, Dialect: dialect}
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// ParseDSN maps a connection string to its dialect, database/sql driver name
// and driver-specific source.
func ParseDSN(dsn string) (Dialect, string, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, "pgx", dsn
	case strings.HasPrefix(dsn, "sqlite:///"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(dsn, "sqlite:///")
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return DialectSQLite, "sqlite", dsn
	}
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
