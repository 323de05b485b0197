package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

const (
	chatColumns    = `id, title, created_at, updated_at`
	messageColumns = `id, chat_id, content, is_from_ai, created_at`
)

// Repository persists chats and messages through a request-scoped session.
type Repository struct {
	session *db.Session
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewRepository constructs a repository bound to session.
func NewRepository(session *db.Session) *Repository {
	return &Repository{session: session, now: time.Now, newID: uuid.New}
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// GetChat returns the chat with id, or nil when absent.
func (r *Repository) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	query := r.session.Dialect().Rebind(`SELECT ` + chatColumns + ` FROM chats WHERE id = ?`)
	var chat Chat
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		return scanChat(q.QueryRowContext(ctx, query, id), &chat)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chats: query: %w", err)
	}
	return &chat, nil
}

// ListChats returns chats, most recently updated first.
func (r *Repository) ListChats(ctx context.Context, offset, limit int) ([]Chat, error) {
	query := r.session.Dialect().Rebind(`SELECT ` + chatColumns + ` FROM chats ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`)
	var out []Chat
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		rows, err := q.QueryContext(ctx, query, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c Chat
			if err := scanChat(rows, &c); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("chats: list: %w", err)
	}
	return out, nil
}

// CreateChat inserts a chat with an optional title.
func (r *Repository) CreateChat(ctx context.Context, title *string) (*Chat, error) {
	now := r.timestamp()
	chat := &Chat{ID: r.newID(), Title: title, CreatedAt: now, UpdatedAt: now}
	query := r.session.Dialect().Rebind(`INSERT INTO chats (` + chatColumns + `) VALUES (?, ?, ?, ?)`)
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		_, err := q.ExecContext(ctx, query, chat.ID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chats: insert: %w", err)
	}
	return chat, nil
}

// UpdateChat sets the title of a chat and returns it, or nil when absent.
func (r *Repository) UpdateChat(ctx context.Context, id uuid.UUID, title *string) (*Chat, error) {
	query := r.session.Dialect().Rebind(`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`)
	var affected int64
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		res, err := q.ExecContext(ctx, query, title, r.timestamp(), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chats: update: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetChat(ctx, id)
}

// DeleteChat removes a chat and its messages. It reports whether the chat
// existed.
func (r *Repository) DeleteChat(ctx context.Context, id uuid.UUID) (bool, error) {
	dialect := r.session.Dialect()
	var affected int64
	err := r.session.WithTx(ctx, nil, func(ctx context.Context, q db.DBTX) error {
		if _, err := q.ExecContext(ctx, dialect.Rebind(`DELETE FROM messages WHERE chat_id = ?`), id); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, dialect.Rebind(`DELETE FROM chats WHERE id = ?`), id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("chats: delete: %w", err)
	}
	return affected > 0, nil
}

// ListMessages returns the messages of a chat, oldest first.
func (r *Repository) ListMessages(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]Message, error) {
	query := r.session.Dialect().Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE chat_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`)
	var out []Message
	err := r.session.Do(ctx, func(ctx context.Context, q db.DBTX) error {
		rows, err := q.QueryContext(ctx, query, chatID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m Message
			if err := scanMessage(rows, &m); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("chats: list messages: %w", err)
	}
	return out, nil
}

// CreateMessage appends a message and bumps the chat's updated_at in the
// same transaction.
func (r *Repository) CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error) {
	msg := &Message{
		ID:        r.newID(),
		ChatID:    params.ChatID,
		Content:   params.Content,
		IsFromAI:  params.IsFromAI,
		CreatedAt: r.timestamp(),
	}
	dialect := r.session.Dialect()
	err := r.session.WithTx(ctx, nil, func(ctx context.Context, q db.DBTX) error {
		if _, err := q.ExecContext(ctx, dialect.Rebind(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?)`),
			msg.ID, msg.ChatID, msg.Content, msg.IsFromAI, msg.CreatedAt,
		); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, dialect.Rebind(`UPDATE chats SET updated_at = ? WHERE id = ?`), msg.CreatedAt, msg.ChatID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chats: insert message: %w", err)
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner, c *Chat) error {
	var title sql.NullString
	if err := row.Scan(&c.ID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.Title = nil
	if title.Valid {
		c.Title = &title.String
	}
	return nil
}

func scanMessage(row rowScanner, m *Message) error {
	return row.Scan(&m.ID, &m.ChatID, &m.Content, &m.IsFromAI, &m.CreatedAt)
}
