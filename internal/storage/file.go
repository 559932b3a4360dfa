package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/greenstevester/llm-council/internal/council"
)

// FileStore keeps one JSON file per conversation under a data directory.
// Writes are serialized and land through a temp file rename, so readers
// never see a partial file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// ensureDataDir ensures the data directory exists.
func (s *FileStore) ensureDataDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// path returns the file path for a conversation. Ids that could escape the
// data directory are rejected.
func (s *FileStore) path(conversationID string) (string, bool) {
	if conversationID == "" || conversationID == "." || conversationID == ".." ||
		strings.ContainsAny(conversationID, `/\`) {
		return "", false
	}
	return filepath.Join(s.dir, conversationID+".json"), true
}

// CreateConversation creates and saves an empty conversation.
func (s *FileStore) CreateConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.path(conversationID); !ok {
		return nil, fmt.Errorf("invalid conversation id %q", conversationID)
	}
	conversation := newConversation(conversationID)
	if err := s.save(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

// GetConversation loads a conversation. It returns nil without error if the
// conversation doesn't exist.
func (s *FileStore) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	return s.load(conversationID)
}

// ListConversations returns conversation metadata, newest first. Unreadable
// or invalid files are skipped.
func (s *FileStore) ListConversations(ctx context.Context) ([]ConversationMetadata, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []ConversationMetadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	// Empty slice, not nil, so the JSON list is [] rather than null.
	conversations := make([]ConversationMetadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil || conv.ID == "" {
			continue
		}

		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations, nil
}

// AddUserMessage appends a user message.
func (s *FileStore) AddUserMessage(ctx context.Context, conversationID, content string) error {
	return s.update(conversationID, func(c *Conversation) {
		c.Messages = append(c.Messages, Message{Role: RoleUser, Content: content})
	})
}

// AddAssistantMessage appends an assistant message holding all three stages.
func (s *FileStore) AddAssistantMessage(ctx context.Context, conversationID string, stage1 council.StageOneResult, stage2 []council.RankingResponse, stage3 council.StageThreeResult) error {
	return s.update(conversationID, func(c *Conversation) {
		c.Messages = append(c.Messages, assistantMessage(stage1, stage2, stage3))
	})
}

// UpdateConversationTitle sets the conversation title.
func (s *FileStore) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	return s.update(conversationID, func(c *Conversation) {
		c.Title = title
	})
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) update(conversationID string, fn func(*Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversation, err := s.load(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return notFound(conversationID)
	}
	fn(conversation)
	return s.save(conversation)
}

func (s *FileStore) load(conversationID string) (*Conversation, error) {
	path, ok := s.path(conversationID)
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}
	if conversation.Messages == nil {
		conversation.Messages = []Message{}
	}
	return &conversation, nil
}

// save writes the conversation as indented JSON. Callers hold s.mu.
func (s *FileStore) save(conversation *Conversation) error {
	if err := s.ensureDataDir(); err != nil {
		return err
	}
	path, ok := s.path(conversation.ID)
	if !ok {
		return fmt.Errorf("invalid conversation id %q", conversation.ID)
	}

	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, conversation.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return nil
}
