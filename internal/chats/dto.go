package chats

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChatRequest is the payload for creating or renaming a chat.
type ChatRequest struct {
	Title *string `json:"title" validate:"omitempty,max=255"`
}

// Normalize trims the title; a blank title means no title.
func (r *ChatRequest) Normalize() {
	if r.Title == nil {
		return
	}
	title := strings.TrimSpace(*r.Title)
	if title == "" {
		r.Title = nil
		return
	}
	r.Title = &title
}

// CreateMessageRequest is the payload for POST /messages/.
type CreateMessageRequest struct {
	ChatID   string `json:"chat_id" validate:"required,uuid"`
	Content  string `json:"content" validate:"required"`
	IsFromAI bool   `json:"is_from_ai"`
}

// ChatResponse is the public view of a chat.
type ChatResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatDetailResponse is a chat with its messages.
type ChatDetailResponse struct {
	ChatResponse
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse is the public view of a message.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Content   string    `json:"content"`
	IsFromAI  bool      `json:"is_from_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// DeleteResponse acknowledges a deleted chat.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toChatResponse(c *Chat) ChatResponse {
	return ChatResponse{
		ID:        c.ID,
		Title:     c.DisplayTitle(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toMessageResponses(msgs []Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Content:   m.Content,
			IsFromAI:  m.IsFromAI,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
