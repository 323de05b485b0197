package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "", UserSafeMessage(nil))
	assert.Equal(t, "not found", UserSafeMessage(fmt.Errorf("users: %w", ErrNotFound)))
	assert.Equal(t, "email already registered", UserSafeMessage(ErrDuplicateEmail))
	assert.Equal(t, "username already taken",
		UserSafeMessage(fmt.Errorf("%w: %w", ErrDuplicateUsername, errors.New("UNIQUE constraint failed: users.username"))))
	assert.Equal(t, "internal server error", UserSafeMessage(errors.New("pq: connection refused")))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := ContextWithPrincipal(t.Context(), Principal{UserID: 7, Username: "alice"})
	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(7), p.UserID)

	_, ok = PrincipalFromContext(t.Context())
	assert.False(t, ok)
}

func TestChatNotFoundIsNotFound(t *testing.T) {
	err := fmt.Errorf("chats: get %s: %w", "abc", ErrChatNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "chat not found", UserSafeMessage(err))
	assert.Equal(t, "not found", UserSafeMessage(ErrNotFound))
}
