package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	List(ctx context.Context, offset, limit int) ([]User, error)
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Tokens issues access tokens.
type Tokens interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	hasher Hasher
	tokens Tokens
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher Hasher, tokens Tokens) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, now: time.Now}
}

// RegisterUser creates an account. Duplicate email or username fails with
// shared.ErrDuplicateEmail or shared.ErrDuplicateUsername, whether caught by
// the pre-check or by the storage constraint.
func (s *Service) RegisterUser(ctx context.Context, req CreateUserRequest) (UserResponse, error) {
	req.Normalize()

	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return UserResponse{}, err
	}
	if existing != nil {
		return UserResponse{}, shared.ErrDuplicateEmail
	}
	existing, err = s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		return UserResponse{}, err
	}
	if existing != nil {
		return UserResponse{}, shared.ErrDuplicateUsername
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return UserResponse{}, err
	}
	user, err := s.repo.Create(ctx, CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
	})
	if err != nil {
		if column, ok := db.UniqueViolation(err); ok {
			if column == "username" {
				return UserResponse{}, fmt.Errorf("%w: %w", shared.ErrDuplicateUsername, err)
			}
			return UserResponse{}, fmt.Errorf("%w: %w", shared.ErrDuplicateEmail, err)
		}
		return UserResponse{}, err
	}
	return toResponse(user), nil
}

// GetUserProfile returns the public view of a user.
func (s *Service) GetUserProfile(ctx context.Context, id int64) (UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if user == nil {
		return UserResponse{}, shared.ErrNotFound
	}
	return toResponse(user), nil
}

// CurrentUser resolves the authenticated caller. A token for a deleted user is
// treated as unauthorized.
func (s *Service) CurrentUser(ctx context.Context, id int64) (UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, err
	}
	if user == nil || !user.IsActive {
		return UserResponse{}, shared.ErrUnauthorized
	}
	return toResponse(user), nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return TokenResponse{}, err
	}
	if user == nil || !user.IsActive || !s.hasher.Compare(user.PasswordHash, password) {
		return TokenResponse{}, shared.ErrInvalidCredentials
	}
	token, expiresAt, err := s.tokens.Issue(auth.Identity{ID: user.ID, Username: user.Username})
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(expiresAt.Sub(s.now()).Round(time.Second) / time.Second),
	}, nil
}

// ListUsers pages through users. limit is clamped to 1..100; zero selects the
// default.
func (s *Service) ListUsers(ctx context.Context, skip, limit int) ([]UserResponse, error) {
	if skip < 0 {
		skip = 0
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	users, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = toResponse(&users[i])
	}
	return out, nil
}
