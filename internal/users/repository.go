package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

const userColumns = `id, username, email, full_name, hashed_password, is_active, created_at, updated_at`

// Repository persists users through a request-scoped session.
type Repository struct {
	session *db.Session
	now     func() time.Time
}

// NewRepository constructs a repository bound to session.
func NewRepository(session *db.Session) *Repository {
	return &Repository{session: session, now: time.Now}
}

// GetByID returns the user with id, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail returns the user with email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsername returns the user with username, or nil when absent.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// Create inserts a user. Uniqueness is enforced by the table constraints.
func (r *Repository) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	now := r.now().UTC().Truncate(time.Microsecond)
	user := &User{
		Username:     params.Username,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	query := r.session.Dialect().Rebind(`INSERT INTO users (username, email, full_name, hashed_password, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		return q.QueryRowContext(ctx, query,
			user.Username, user.Email, user.FullName, user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt,
		).Scan(&user.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("users: insert: %w", err)
	}
	return user, nil
}

// List returns users ordered by id.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]User, error) {
	query := r.session.Dialect().Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT ? OFFSET ?`)
	var out []User
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		rows, err := q.QueryContext(ctx, query, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u User
			if err := scanUser(rows, &u); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	query = r.session.Dialect().Rebind(query)
	var user User
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		return scanUser(q.QueryRowContext(ctx, query, arg), &user)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	return &user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
}
