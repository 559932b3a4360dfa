package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenstevester/llm-council/internal/council"
	"github.com/greenstevester/llm-council/internal/storage"
	"github.com/greenstevester/llm-council/internal/webfetch"
)

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// FetchURLRequest is the body of POST /api/fetch-url.
type FetchURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// healthCheck returns a simple health check response.
// GET /
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

// listConversations lists all conversations with metadata only.
// GET /api/conversations
func (s *Server) listConversations(c *gin.Context) {
	conversations, err := s.store.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list conversations: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// createConversation creates an empty conversation under a new UUID.
// POST /api/conversations
func (s *Server) createConversation(c *gin.Context) {
	conversation, err := s.store.CreateConversation(c.Request.Context(), uuid.New().String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create conversation: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// getConversation returns a conversation with all its messages.
// GET /api/conversations/:id
func (s *Server) getConversation(c *gin.Context) {
	conversation, ok := s.loadConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// sendMessage runs the full council and returns all stages at once.
// POST /api/conversations/:id/message
func (s *Server) sendMessage(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	conversation, ok := s.loadConversation(c)
	if !ok {
		return
	}

	// The run outlives a disconnected client so its result is persisted.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := s.council.Deliberate(ctx, s.store, turnFor(conversation, content))
	if err != nil {
		s.requestLog(c).WithError(err).Error("api.message.failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Council process failed: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// fetchURL fetches a page and returns its readable text.
// POST /api/fetch-url
func (s *Server) fetchURL(c *gin.Context) {
	var request FetchURLRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	page, err := s.fetcher.Fetch(c.Request.Context(), request.URL)
	switch {
	case errors.Is(err, webfetch.ErrUnsupportedURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("Failed to fetch URL content: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, page)
}

// bindContent parses a SendMessageRequest and rejects blank content,
// writing the 400 response itself.
func bindContent(c *gin.Context) (string, bool) {
	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return "", false
	}
	if strings.TrimSpace(request.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": council.ErrEmptyQuestion.Error()})
		return "", false
	}
	return request.Content, true
}

// loadConversation fetches the :id conversation, writing a 404 or 500
// response itself when it cannot.
func (s *Server) loadConversation(c *gin.Context) (*storage.Conversation, bool) {
	conversation, err := s.store.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return nil, false
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Conversation not found",
		})
		return nil, false
	}
	return conversation, true
}

func turnFor(conversation *storage.Conversation, content string) council.Turn {
	return council.Turn{
		ConversationID: conversation.ID,
		Content:        content,
		FirstMessage:   len(conversation.Messages) == 0,
	}
}
