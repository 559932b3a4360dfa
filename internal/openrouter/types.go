package openrouter

import "encoding/json"

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role/content pair of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage is a convenience for the common one-message prompt.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// PromptChars is the total content length of messages.
func PromptChars(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// Request is the chat completions request body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Usage is the token accounting block of a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIResponse represents the full API response structure.
type APIResponse struct {
	Choices []Choice  `json:"choices"`
	Usage   *Usage    `json:"usage,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice is one completion candidate.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant message of a choice. Content is a pointer
// because providers send null for tool-only or filtered answers.
type ChoiceMessage struct {
	Content          *string         `json:"content"`
	ReasoningDetails json.RawMessage `json:"reasoning_details,omitempty"`
}

// APIError is the error object OpenRouter embeds in failed responses.
type APIError struct {
	Code    any    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Completion is the usable part of a successful response.
type Completion struct {
	Content string
	// ReasoningDetails is the provider's reasoning trace, passed through
	// untouched. Nil when the provider sent none.
	ReasoningDetails json.RawMessage
	FinishReason     string
	Usage            Usage
	StatusCode       int
}
