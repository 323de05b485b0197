package chats

import (
	"time"

	"github.com/google/uuid"
)

// Chat is a conversation thread. Title is nil until one is set.
type Chat struct {
	ID        uuid.UUID
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayTitle returns the title, or "Chat <id>" when none was set.
func (c Chat) DisplayTitle() string {
	if c.Title != nil {
		return *c.Title
	}
	return "Chat " + c.ID.String()
}

// Message is a single entry in a chat.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	Content   string
	IsFromAI  bool
	CreatedAt time.Time
}

// CreateMessageParams carries the fields needed to append a message.
type CreateMessageParams struct {
	ChatID   uuid.UUID
	Content  string
	IsFromAI bool
}
