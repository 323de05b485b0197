package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrSessionClosed is returned when a closed Session is used.
var ErrSessionClosed = errors.New("platform/db: session closed")

// DBTX is the subset of database/sql used by repositories.
// *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Sessions hands out request-scoped sessions over a shared pool.
type Sessions struct {
	db *DB
}

// NewSessions constructs a session factory.
func NewSessions(db *DB) *Sessions {
	return &Sessions{db: db}
}

// Open starts a new session. The caller owns it and must Close it.
func (s *Sessions) Open() *Session {
	return &Session{pool: s.db.SQL, dialect: s.db.Dialect}
}

// Session scopes storage access to a single logical operation. Every Do call
// acquires its own connection and releases it before returning, so a session
// never pins a pooled connection between calls.
type Session struct {
	pool    *sql.DB
	dialect Dialect

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Dialect reports the SQL dialect for query rebinding.
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Do runs fn on a dedicated connection.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.inflight.Done()

	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("platform/db: acquire conn: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// WithTx runs fn inside a transaction on a dedicated connection, committing on
// success and rolling back on error or panic. Panics are rethrown.
func (s *Session) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, q DBTX) error) (err error) {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.inflight.Done()

	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("platform/db: acquire conn: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("platform/db: commit tx: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}

// Close marks the session closed and waits for in-flight calls to release
// their connections. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.inflight.Wait()
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.inflight.Add(1)
	return nil
}
