package openrouter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockServer creates a mock HTTP server for the OpenRouter API.
func MockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// SuccessHandler returns a handler that answers every request with content.
func SuccessHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") == "" {
			t.Errorf("Missing Authorization header")
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"content": content},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"completion_tokens": 7, "total_tokens": 19},
		})
	}
}

// ErrorHandler returns a handler that fails with statusCode and body.
func ErrorHandler(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(body))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
