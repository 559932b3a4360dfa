package council

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/greenstevester/llm-council/internal/openrouter"
)

// Prompt kinds, recognised by the opening words of each builder.
const (
	kindAnswer   = "answer"
	kindRanking  = "ranking"
	kindChairman = "chairman"
	kindTitle    = "title"
)

func promptKind(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "You are evaluating different responses"):
		return kindRanking
	case strings.HasPrefix(prompt, "You are the Chairman"):
		return kindChairman
	case strings.HasPrefix(prompt, "Generate a very short title"):
		return kindTitle
	default:
		return kindAnswer
	}
}

type call struct {
	model  string
	kind   string
	prompt string
}

// fakeCompleter is a scripted Completer. respond decides each reply; delays
// hold a model back, honouring the call context.
type fakeCompleter struct {
	mu      sync.Mutex
	respond func(model, kind, prompt string) (string, error)
	delays  map[string]time.Duration
	calls   []call
}

func newFakeCompleter(respond func(model, kind, prompt string) (string, error)) *fakeCompleter {
	return &fakeCompleter{respond: respond, delays: map[string]time.Duration{}}
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, messages []openrouter.Message) (*openrouter.Completion, error) {
	prompt := messages[len(messages)-1].Content
	kind := promptKind(prompt)

	f.mu.Lock()
	f.calls = append(f.calls, call{model: model, kind: kind, prompt: prompt})
	delay := f.delays[model]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to make request: %w", ctx.Err())
		}
	}

	content, err := f.respond(model, kind, prompt)
	if err != nil {
		return nil, err
	}
	return &openrouter.Completion{Content: content, StatusCode: 200, FinishReason: "stop"}, nil
}

func (f *fakeCompleter) callsOf(kind string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// standardResponder answers with the model name, ranks "Response C, A, B"
// and synthesizes "final answer".
func standardResponder(model, kind, prompt string) (string, error) {
	switch kind {
	case kindRanking:
		return "Response A is fine.\n\nFINAL RANKING:\n1. Response C\n2. Response A\n3. Response B", nil
	case kindChairman:
		return "final answer", nil
	case kindTitle:
		return `"Go Concurrency Basics"`, nil
	default:
		return "answer from " + model, nil
	}
}

var testModels = []string{"test/model-a", "test/model-b", "test/model-c"}

func newTestCouncil(completer Completer, models ...string) *Council {
	if len(models) == 0 {
		models = testModels
	}
	return New(NewGateway(completer, nil), Settings{
		CouncilModels: models,
		ChairmanModel: "test/chairman",
		TitleModel:    "test/titler",
		ModelTimeout:  2 * time.Second,
		TitleTimeout:  2 * time.Second,
	}, nil)
}

// memStore records what the council persists.
type memStore struct {
	mu        sync.Mutex
	users     []string
	titles    []string
	assistant []StageThreeResult

	failUser      error
	failAssistant error
	failTitle     error
	panicOnSave   bool
}

func (m *memStore) AddUserMessage(ctx context.Context, id, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUser != nil {
		return m.failUser
	}
	m.users = append(m.users, content)
	return nil
}

func (m *memStore) AddAssistantMessage(ctx context.Context, id string, stage1 StageOneResult, stage2 []RankingResponse, stage3 StageThreeResult) error {
	if m.panicOnSave {
		panic("store exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAssistant != nil {
		return m.failAssistant
	}
	m.assistant = append(m.assistant, stage3)
	return nil
}

func (m *memStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTitle != nil {
		return m.failTitle
	}
	m.titles = append(m.titles, title)
	return nil
}

func collect(events <-chan Event, timeout time.Duration) ([]Event, bool) {
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out, true
			}
			out = append(out, ev)
		case <-deadline:
			return out, false
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
