package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/greenstevester/llm-council/internal/config"
	"github.com/greenstevester/llm-council/internal/council"
	"github.com/greenstevester/llm-council/internal/openrouter"
	"github.com/greenstevester/llm-council/internal/storage"
	"github.com/greenstevester/llm-council/internal/webfetch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// upstream is a fake OpenRouter API that answers by prompt type.
type upstream struct {
	mu     sync.Mutex
	models []string
	fail   map[string]bool
}

func (u *upstream) handler(w http.ResponseWriter, r *http.Request) {
	var req openrouter.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u.mu.Lock()
	u.models = append(u.models, req.Model)
	failed := u.fail[req.Model]
	u.mu.Unlock()

	if failed {
		http.Error(w, `{"error":{"message":"model unavailable"}}`, http.StatusServiceUnavailable)
		return
	}

	prompt := req.Messages[len(req.Messages)-1].Content
	var content string
	switch {
	case strings.HasPrefix(prompt, "You are evaluating"):
		content = "Both are fine.\n\nFINAL RANKING:\n1. Response B\n2. Response A"
	case strings.HasPrefix(prompt, "You are the Chairman"):
		content = "The council says hello."
	case strings.HasPrefix(prompt, "Generate a very short title"):
		content = `"Greeting The Council"`
	default:
		content = "answer from " + req.Model
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"content": content},
			"finish_reason": "stop",
		}},
	})
}

type testEnv struct {
	server   *Server
	store    storage.Store
	upstream *upstream
	hook     *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	up := &upstream{fail: map[string]bool{}}
	api := httptest.NewServer(http.HandlerFunc(up.handler))
	t.Cleanup(api.Close)

	logger, hook := test.NewNullLogger()

	cfg := config.Default()
	cfg.OpenRouterAPIKey = "test-key"
	cfg.DataDir = t.TempDir()
	cfg.CouncilModels = []string{"test/a", "test/b"}
	cfg.ChairmanModel = "test/chair"
	cfg.TitleModel = "test/titler"
	cfg.ModelTimeout = 5 * time.Second
	cfg.TitleTimeout = 5 * time.Second

	client := openrouter.NewClient(api.URL, cfg.OpenRouterAPIKey, api.Client())
	c := council.New(council.NewGateway(client, logger), council.Settings{
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
		TitleModel:    cfg.TitleModel,
		ModelTimeout:  cfg.ModelTimeout,
		TitleTimeout:  cfg.TitleTimeout,
	}, logger)
	store := storage.NewFileStore(cfg.DataDir)
	fetcher := webfetch.New(webfetch.Options{RetryDelay: time.Millisecond, Log: logger})

	return &testEnv{
		server:   New(cfg, c, store, fetcher, logger),
		store:    store,
		upstream: up,
		hook:     hook,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) createConversation(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/conversations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var conv storage.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	return conv.ID
}

// sseEvents decodes the data frames of an SSE body.
func sseEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func types(events []map[string]any) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i], _ = ev["type"].(string)
	}
	return out
}
