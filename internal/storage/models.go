package storage

import (
	"time"

	"github.com/greenstevester/llm-council/internal/council"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation. User messages carry
// Content; assistant messages carry the three council stages.
type Message struct {
	Role    string                    `json:"role"`
	Content string                    `json:"content,omitempty"`
	Stage1  council.StageOneResult    `json:"stage1,omitempty"`
	Stage2  []council.RankingResponse `json:"stage2,omitempty"`
	Stage3  *council.StageThreeResult `json:"stage3,omitempty"`
}

// Conversation represents a full conversation with all messages
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// ConversationMetadata represents conversation list metadata
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

func newConversation(id string) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Title:     council.DefaultTitle,
		Messages:  []Message{},
	}
}

func assistantMessage(stage1 council.StageOneResult, stage2 []council.RankingResponse, stage3 council.StageThreeResult) Message {
	return Message{
		Role:   RoleAssistant,
		Stage1: stage1,
		Stage2: stage2,
		Stage3: &stage3,
	}
}
