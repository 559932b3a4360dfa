package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/greenstevester/llm-council/internal/council"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadWait  = 60 * time.Second
)

// sendMessageStream runs the council and streams its progress as
// Server-Sent Events, one "data: <json>" frame per event.
// POST /api/conversations/:id/message/stream
func (s *Server) sendMessageStream(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	conversation, ok := s.loadConversation(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	log := s.requestLog(c)
	ctx := context.WithoutCancel(c.Request.Context())
	clientGone := false
	for ev := range s.council.Stream(ctx, s.store, turnFor(conversation, content)) {
		if clientGone {
			continue
		}
		if err := sendSSEEvent(c, ev); err != nil {
			// Keep draining so the run reaches persistence.
			log.WithError(err).Warn("api.stream.client_gone")
			clientGone = true
		}
	}
}

// sendSSEEvent writes one event in SSE framing and flushes it.
func sendSSEEvent(c *gin.Context, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE event: %w", err)
	}
	if _, err := c.Writer.WriteString(fmt.Sprintf("data: %s\n\n", jsonData)); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// websocketHandler streams the council over a WebSocket. The client sends
// one {"content": ...} frame; the server answers with one JSON text frame
// per event and closes after the terminal event.
// GET /api/conversations/:id/ws
func (s *Server) websocketHandler(allowOrigin func(string) bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowOrigin(origin)
		},
	}

	return func(c *gin.Context) {
		conversation, ok := s.loadConversation(c)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			return
		}
		defer conn.Close()
		log := s.requestLog(c).WithField("conversation_id", conversation.ID)

		if err := conn.SetReadDeadline(time.Now().Add(wsReadWait)); err != nil {
			return
		}
		var request SendMessageRequest
		if err := conn.ReadJSON(&request); err != nil {
			log.WithError(err).Warn("api.ws.read_failed")
			writeWS(conn, council.Event{Type: council.EventError, Message: fmt.Sprintf("Invalid request: %v", err)})
			closeWS(conn)
			return
		}

		ctx := context.WithoutCancel(c.Request.Context())
		clientGone := false
		for ev := range s.council.Stream(ctx, s.store, turnFor(conversation, request.Content)) {
			if clientGone {
				continue
			}
			if err := writeWS(conn, ev); err != nil {
				log.WithError(err).Warn("api.stream.client_gone")
				clientGone = true
			}
		}
		if !clientGone {
			closeWS(conn)
		}
	}
}

func writeWS(conn *websocket.Conn, ev council.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}

func closeWS(conn *websocket.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
