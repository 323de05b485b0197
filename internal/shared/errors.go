package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates malformed request input.
	ErrValidation = errors.New("validation failed")
)

// ErrChatNotFound is the ErrNotFound reported for chats.
var ErrChatNotFound = fmt.Errorf("chat %w", ErrNotFound)

// UserSafeMessage returns an error message that can be shown to API callers.
// Known errors report their sentinel text, so wrapped storage details never
// leak; anything unclassified collapses to a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range safeErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}

var safeErrors = []error{
	ErrDuplicateEmail,
	ErrDuplicateUsername,
	ErrChatNotFound,
	ErrNotFound,
	ErrInvalidCredentials,
	ErrUnauthorized,
}
