package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIDKey = "request_id"

// requestLogger tags each request with a short id and logs one
// api.request.done record when it finishes.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()[:8]
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("api.request.done")
		case status >= http.StatusBadRequest:
			entry.Warn("api.request.done")
		default:
			entry.Info("api.request.done")
		}
	}
}

// bodyLimit caps request bodies.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// originValidator allows exactly the configured origins, or any localhost
// origin when none are configured.
func originValidator(allowed []string) func(origin string) bool {
	return func(origin string) bool {
		if len(allowed) > 0 {
			for _, o := range allowed {
				if origin == o {
					return true
				}
			}
			return false
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme != "http" {
			return false
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	}
}

// requestLog returns the server logger tagged with the request id.
func (s *Server) requestLog(c *gin.Context) logrus.FieldLogger {
	return s.log.WithField(requestIDKey, c.GetString(requestIDKey))
}
