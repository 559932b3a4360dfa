// Package storage persists conversations, either as one JSON file per
// conversation or in a Postgres table.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/greenstevester/llm-council/internal/config"
	"github.com/greenstevester/llm-council/internal/council"
)

// ErrNotFound is returned when writing to a conversation that does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store is a conversation repository. GetConversation returns nil without
// error for an unknown id.
type Store interface {
	council.Conversations

	CreateConversation(ctx context.Context, conversationID string) (*Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]ConversationMetadata, error)
	Close() error
}

// Open picks the Postgres store when a DSN is configured and the file store
// otherwise.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Store, error) {
	if dsn := strings.TrimSpace(cfg.PostgresDSN); dsn != "" {
		s, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Info("storage.postgres.ready")
		return s, nil
	}

	s := NewFileStore(cfg.DataDir)
	if err := s.ensureDataDir(); err != nil {
		return nil, err
	}
	log.WithField("dir", cfg.DataDir).Info("storage.file.ready")
	return s, nil
}

func notFound(conversationID string) error {
	return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
}
