package users

import "time"

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserParams carries the fields persisted for a new user.
type CreateUserParams struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
}
