package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// UniqueViolation reports whether err is a unique-constraint violation and,
// when it can tell, the offending column.
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return columnFromConstraint(pgErr.ConstraintName, pgErr.Detail), true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		case sqlite3.SQLITE_CONSTRAINT:
			if !strings.Contains(liteErr.Error(), "UNIQUE constraint failed") {
				return "", false
			}
		default:
			return "", false
		}
		return columnFromSQLiteMessage(liteErr.Error()), true
	}
	return "", false
}

// users_email_key -> email; falls back to the "Key (col)=" detail.
func columnFromConstraint(name, detail string) string {
	name = strings.TrimSuffix(name, "_key")
	if i := strings.Index(name, "_"); i >= 0 {
		name = name[i+1:]
	}
	if name != "" {
		return name
	}
	if start := strings.Index(detail, "("); start >= 0 {
		if end := strings.Index(detail[start:], ")"); end > 0 {
			return detail[start+1 : start+end]
		}
	}
	return ""
}

// "UNIQUE constraint failed: users.email (2067)" -> email
func columnFromSQLiteMessage(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if end := strings.IndexAny(rest, " ,("); end >= 0 {
		rest = rest[:end]
	}
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		rest = rest[dot+1:]
	}
	return rest
}
