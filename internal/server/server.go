// Package server exposes the council over HTTP: conversation CRUD, a blocking
// message endpoint, and SSE and WebSocket streaming endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/greenstevester/llm-council/internal/config"
	"github.com/greenstevester/llm-council/internal/council"
	"github.com/greenstevester/llm-council/internal/storage"
	"github.com/greenstevester/llm-council/internal/webfetch"
)

const shutdownTimeout = 30 * time.Second

// Server is the HTTP front end of the council.
type Server struct {
	council *council.Council
	store   storage.Store
	fetcher *webfetch.Fetcher
	log     logrus.FieldLogger
	port    string
	engine  *gin.Engine
}

// New builds the router and registers all routes.
func New(cfg *config.Config, c *council.Council, store storage.Store, fetcher *webfetch.Fetcher, log logrus.FieldLogger) *Server {
	s := &Server{
		council: c,
		store:   store,
		fetcher: fetcher,
		log:     log,
		port:    cfg.Port,
		engine:  gin.New(),
	}

	allowOrigin := originValidator(cfg.CORSAllowedOrigins)

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(log))
	s.engine.Use(bodyLimit(cfg.MaxRequestBodySize))
	s.engine.Use(cors.New(cors.Config{
		AllowOriginFunc:  allowOrigin,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	s.engine.GET("/", s.healthCheck)
	s.engine.GET("/api/conversations", s.listConversations)
	s.engine.POST("/api/conversations", s.createConversation)
	s.engine.GET("/api/conversations/:id", s.getConversation)
	s.engine.POST("/api/conversations/:id/message", s.sendMessage)
	s.engine.POST("/api/conversations/:id/message/stream", s.sendMessageStream)
	s.engine.GET("/api/conversations/:id/ws", s.websocketHandler(allowOrigin))
	s.engine.POST("/api/fetch-url", s.fetchURL)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully. In-flight
// council runs get shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.port).Info("api.server.start")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("api.server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
