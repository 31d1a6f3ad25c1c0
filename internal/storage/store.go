// Package storage persists conversation history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/dyike/StockBot/pkg/sqlite"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

type Conversation struct {
	RowID        int64     `db:"row_id" json:"cursor"`
	ID           string    `db:"id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	MessageCount int       `db:"message_count" json:"message_count"`
}

type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	ParentID       *string   `db:"parent_id" json:"parent_id,omitempty"`
	Seq            int       `db:"seq" json:"seq"`
	IsUser         bool      `db:"is_user" json:"is_user"`
	Content        string    `db:"content" json:"content"`
	Success        bool      `db:"success" json:"success"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// NewMessage is the caller-supplied part of a message. Seq and ParentID are
// assigned by AppendMessage.
type NewMessage struct {
	ConversationID string
	IsUser         bool
	Content        string
	Success        bool
}

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens the history database at dbPath and migrates it.
func Open(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := runMigrations(dbPath, s.logger); err != nil {
		return nil, err
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s.db = sqlx.NewDb(db, sqlite.DriverName)

	s.logger.Info("history store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateConversation starts an empty conversation with a fresh id.
func (s *Store) CreateConversation(ctx context.Context) (*Conversation, error) {
	now := s.now()
	conv := &Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO conversations (id, created_at, updated_at)
VALUES (?, ?, ?)
`, conv.ID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if conv.RowID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns ErrNotFound when id is unknown.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}
	var conv Conversation
	err := s.db.GetContext(ctx, &conv, `
SELECT c.rowid AS row_id, c.id, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
FROM conversations c
WHERE c.id = ?
`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage stores msg as the next message of its conversation, creating
// the conversation if needed. The new message's parent is the previous one.
func (s *Store) AppendMessage(ctx context.Context, msg NewMessage) (*Message, error) {
	if strings.TrimSpace(msg.ConversationID) == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	now := s.now()
	out := &Message{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		IsUser:         msg.IsUser,
		Content:        msg.Content,
		Success:        msg.Success,
		CreatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO conversations (id, created_at, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
`, msg.ConversationID, now, now); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}

		var last struct {
			ID  string `db:"id"`
			Seq int    `db:"seq"`
		}
		err := tx.GetContext(ctx, &last, `
SELECT id, seq FROM messages
WHERE conversation_id = ?
ORDER BY seq DESC
LIMIT 1
`, msg.ConversationID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			out.Seq = 1
		case err != nil:
			return fmt.Errorf("read last message: %w", err)
		default:
			out.Seq = last.Seq + 1
			parent := last.ID
			out.ParentID = &parent
		}

		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO messages (id, conversation_id, parent_id, seq, is_user, content, success, created_at)
VALUES (:id, :conversation_id, :parent_id, :seq, :is_user, :content, :success, :created_at)
`, out); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListConversations pages through conversations newest first. cursor is the
// RowID of the last conversation of the previous page, or 0.
func (s *Store) ListConversations(ctx context.Context, cursor int64, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	convs := []Conversation{}
	err := s.db.SelectContext(ctx, &convs, `
SELECT c.rowid AS row_id, c.id, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
FROM conversations c
WHERE (? = 0 OR c.rowid < ?)
ORDER BY c.rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// ListMessages returns a conversation's messages in order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	msgs := []Message{}
	err := s.db.SelectContext(ctx, &msgs, `
SELECT id, conversation_id, parent_id, seq, is_user, content, success, created_at
FROM messages
WHERE conversation_id = ?
ORDER BY seq ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	}()
	return fn(tx)
}
