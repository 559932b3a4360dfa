package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/greenstevester/llm-council/internal/council"
)

// PostgresStore keeps conversations in a single table with the message list
// as a jsonb column.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresStore connects through the pgx database/sql driver and creates
// the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conversations (
  id TEXT PRIMARY KEY,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  title TEXT NOT NULL,
  messages JSONB NOT NULL DEFAULT '[]'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations (created_at DESC);
`)
		if s.schemaErr != nil {
			s.schemaErr = fmt.Errorf("failed to create schema: %w", s.schemaErr)
		}
	})
	return s.schemaErr
}

// CreateConversation inserts an empty conversation.
func (s *PostgresStore) CreateConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	conversation := newConversation(conversationID)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO conversations (id, created_at, title, messages)
VALUES ($1, $2, $3, '[]'::jsonb)`,
		conversation.ID, conversation.CreatedAt, conversation.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conversation, nil
}

// GetConversation returns nil without error if the conversation doesn't exist.
func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, title, messages
FROM conversations WHERE id = $1`, conversationID)

	var (
		conversation Conversation
		raw          []byte
	)
	err := row.Scan(&conversation.ID, &conversation.CreatedAt, &conversation.Title, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conversation.Messages, err = decodeMessages(raw); err != nil {
		return nil, err
	}
	conversation.CreatedAt = conversation.CreatedAt.UTC()
	return &conversation, nil
}

// ListConversations returns conversation metadata, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context) ([]ConversationMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, title, jsonb_array_length(messages)
FROM conversations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]ConversationMetadata, 0)
	for rows.Next() {
		var meta ConversationMetadata
		if err := rows.Scan(&meta.ID, &meta.CreatedAt, &meta.Title, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		meta.CreatedAt = meta.CreatedAt.UTC()
		conversations = append(conversations, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// AddUserMessage appends a user message.
func (s *PostgresStore) AddUserMessage(ctx context.Context, conversationID, content string) error {
	return s.update(ctx, conversationID, func(c *Conversation) {
		c.Messages = append(c.Messages, Message{Role: RoleUser, Content: content})
	})
}

// AddAssistantMessage appends an assistant message holding all three stages.
func (s *PostgresStore) AddAssistantMessage(ctx context.Context, conversationID string, stage1 council.StageOneResult, stage2 []council.RankingResponse, stage3 council.StageThreeResult) error {
	return s.update(ctx, conversationID, func(c *Conversation) {
		c.Messages = append(c.Messages, assistantMessage(stage1, stage2, stage3))
	})
}

// UpdateConversationTitle sets the conversation title.
func (s *PostgresStore) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	return s.update(ctx, conversationID, func(c *Conversation) {
		c.Title = title
	})
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// update is a read-modify-write of one row under a row lock.
func (s *PostgresStore) update(ctx context.Context, conversationID string, fn func(*Conversation)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		conversation = Conversation{ID: conversationID}
		raw          []byte
	)
	row := tx.QueryRowContext(ctx, `SELECT title, messages
FROM conversations WHERE id = $1 FOR UPDATE`, conversationID)
	err = row.Scan(&conversation.Title, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(conversationID)
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conversation.Messages, err = decodeMessages(raw); err != nil {
		return err
	}

	fn(&conversation)

	messages, err := json.Marshal(conversation.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
UPDATE conversations SET title = $2, messages = $3::jsonb
WHERE id = $1`, conversationID, conversation.Title, string(messages))
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation: %w", err)
	}
	return nil
}

func decodeMessages(raw []byte) ([]Message, error) {
	messages := []Message{}
	if len(raw) == 0 {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return messages, nil
}
