package chats

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-starter/internal/shared"
)

const (
	defaultChatLimit    = 20
	defaultMessageLimit = 50
	maxLimit            = 100
)

// RepositoryPort defines data access methods for chats.
type RepositoryPort interface {
	GetChat(ctx context.Context, id uuid.UUID) (*Chat, error)
	ListChats(ctx context.Context, offset, limit int) ([]Chat, error)
	CreateChat(ctx context.Context, title *string) (*Chat, error)
	UpdateChat(ctx context.Context, id uuid.UUID, title *string) (*Chat, error)
	DeleteChat(ctx context.Context, id uuid.UUID) (bool, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]Message, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error)
}

// Service handles chat business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListChats returns a page of chats, most recently active first.
func (s *Service) ListChats(ctx context.Context, skip, limit int) ([]ChatResponse, error) {
	skip, limit = page(skip, limit, defaultChatLimit)
	list, err := s.repo.ListChats(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ChatResponse, 0, len(list))
	for i := range list {
		out = append(out, toChatResponse(&list[i]))
	}
	return out, nil
}

// GetChat returns a chat with its first page of messages.
func (s *Service) GetChat(ctx context.Context, id uuid.UUID) (ChatDetailResponse, error) {
	chat, err := s.mustChat(ctx, id)
	if err != nil {
		return ChatDetailResponse{}, err
	}
	msgs, err := s.repo.ListMessages(ctx, id, 0, defaultMessageLimit)
	if err != nil {
		return ChatDetailResponse{}, err
	}
	return ChatDetailResponse{ChatResponse: toChatResponse(chat), Messages: toMessageResponses(msgs)}, nil
}

// CreateChat starts an empty chat.
func (s *Service) CreateChat(ctx context.Context, req ChatRequest) (ChatDetailResponse, error) {
	req.Normalize()
	chat, err := s.repo.CreateChat(ctx, req.Title)
	if err != nil {
		return ChatDetailResponse{}, err
	}
	return ChatDetailResponse{ChatResponse: toChatResponse(chat), Messages: []MessageResponse{}}, nil
}

// UpdateChat renames a chat. A nil title resets it to the default.
func (s *Service) UpdateChat(ctx context.Context, id uuid.UUID, req ChatRequest) (ChatResponse, error) {
	req.Normalize()
	chat, err := s.repo.UpdateChat(ctx, id, req.Title)
	if err != nil {
		return ChatResponse{}, err
	}
	if chat == nil {
		return ChatResponse{}, chatNotFound(id)
	}
	return toChatResponse(chat), nil
}

// DeleteChat removes a chat with its messages.
func (s *Service) DeleteChat(ctx context.Context, id uuid.UUID) (DeleteResponse, error) {
	deleted, err := s.repo.DeleteChat(ctx, id)
	if err != nil {
		return DeleteResponse{}, err
	}
	if !deleted {
		return DeleteResponse{}, chatNotFound(id)
	}
	return DeleteResponse{Success: true, Message: "Chat deleted successfully"}, nil
}

// CreateMessage appends a message to an existing chat.
func (s *Service) CreateMessage(ctx context.Context, req CreateMessageRequest) (MessageResponse, error) {
	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("%w: chat_id: %v", shared.ErrValidation, err)
	}
	if _, err := s.mustChat(ctx, chatID); err != nil {
		return MessageResponse{}, err
	}
	msg, err := s.repo.CreateMessage(ctx, CreateMessageParams{
		ChatID:   chatID,
		Content:  req.Content,
		IsFromAI: req.IsFromAI,
	})
	if err != nil {
		return MessageResponse{}, err
	}
	return toMessageResponses([]Message{*msg})[0], nil
}

// ChatMessages returns a page of a chat's messages, oldest first.
func (s *Service) ChatMessages(ctx context.Context, id uuid.UUID, skip, limit int) ([]MessageResponse, error) {
	if _, err := s.mustChat(ctx, id); err != nil {
		return nil, err
	}
	skip, limit = page(skip, limit, defaultMessageLimit)
	msgs, err := s.repo.ListMessages(ctx, id, skip, limit)
	if err != nil {
		return nil, err
	}
	return toMessageResponses(msgs), nil
}

func (s *Service) mustChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	chat, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, chatNotFound(id)
	}
	return chat, nil
}

func chatNotFound(id uuid.UUID) error {
	return fmt.Errorf("chats: %s: %w", id, shared.ErrChatNotFound)
}

func page(skip, limit, def int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit
}
