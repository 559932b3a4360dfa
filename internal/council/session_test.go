package council

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stageEvents = []EventType{
	EventStage1Start, EventStage1Complete,
	EventStage2Start, EventStage2Complete,
	EventStage3Start, EventStage3Complete,
}

func TestStreamFirstMessage(t *testing.T) {
	c := newTestCouncil(newFakeCompleter(standardResponder))
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1",
		Content:        "How do goroutines work?",
		FirstMessage:   true,
	}), 5*time.Second)
	require.True(t, closed, "stream did not close")

	want := append(append([]EventType{}, stageEvents...), EventTitleComplete, EventComplete)
	assert.Equal(t, want, eventTypes(events))

	stage1, ok := events[1].Data.(StageOneResult)
	require.True(t, ok)
	assert.Equal(t, testModels, stage1.Models())

	stage2 := events[3]
	require.NotNil(t, stage2.Metadata)
	assert.Len(t, stage2.Metadata.LabelToModel, 3)
	assert.Len(t, stage2.Metadata.AggregateRankings, 3)
	assert.IsType(t, []RankingResponse{}, stage2.Data)

	stage3, ok := events[5].Data.(StageThreeResult)
	require.True(t, ok)
	assert.Equal(t, "final answer", stage3.Content)

	assert.Equal(t, TitleData{Title: "Go Concurrency Basics"}, events[6].Data)
	assert.True(t, events[7].Terminal())

	assert.Equal(t, []string{"How do goroutines work?"}, store.users)
	assert.Equal(t, []string{"Go Concurrency Basics"}, store.titles)
	require.Len(t, store.assistant, 1)
	assert.Equal(t, "final answer", store.assistant[0].Content)
}

func TestStreamFollowUpMessage(t *testing.T) {
	fake := newFakeCompleter(standardResponder)
	c := newTestCouncil(fake)
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1",
		Content:        "And channels?",
	}), 5*time.Second)
	require.True(t, closed)

	want := append(append([]EventType{}, stageEvents...), EventComplete)
	assert.Equal(t, want, eventTypes(events))
	assert.Empty(t, fake.callsOf(kindTitle))
	assert.Empty(t, store.titles)
	assert.Len(t, store.assistant, 1)
}

func TestStreamTitleFailureFallsBack(t *testing.T) {
	fake := newFakeCompleter(func(model, kind, prompt string) (string, error) {
		if kind == kindTitle {
			return "", errors.New("titler down")
		}
		return standardResponder(model, kind, prompt)
	})
	c := newTestCouncil(fake)
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q", FirstMessage: true,
	}), 5*time.Second)
	require.True(t, closed)

	require.Len(t, events, 8)
	assert.Equal(t, TitleData{Title: DefaultTitle}, events[6].Data)
	assert.Equal(t, EventComplete, events[7].Type)
}

func TestStreamMemberPanicIsLocalFailure(t *testing.T) {
	fake := newFakeCompleter(func(model, kind, prompt string) (string, error) {
		if model == "test/model-b" {
			panic("member exploded")
		}
		return standardResponder(model, kind, prompt)
	})
	c := newTestCouncil(fake)
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q",
	}), 5*time.Second)
	require.True(t, closed)

	want := append(append([]EventType{}, stageEvents...), EventComplete)
	require.Equal(t, want, eventTypes(events))

	stage1 := events[1].Data.(StageOneResult)
	failed, ok := stage1.Get("test/model-b")
	require.True(t, ok)
	assert.Equal(t, FailurePanic, failed.Failure)
	assert.Equal(t, 2, stage1.Succeeded())
	assert.Len(t, store.assistant, 1)
}

func TestStreamTitlePanicFallsBack(t *testing.T) {
	fake := newFakeCompleter(func(model, kind, prompt string) (string, error) {
		if kind == kindTitle {
			panic("titler exploded")
		}
		return standardResponder(model, kind, prompt)
	})
	c := newTestCouncil(fake)
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q", FirstMessage: true,
	}), 5*time.Second)
	require.True(t, closed)

	require.Len(t, events, 8)
	assert.Equal(t, TitleData{Title: DefaultTitle}, events[6].Data)
	assert.Equal(t, EventComplete, events[7].Type)
	assert.Equal(t, []string{DefaultTitle}, store.titles)
}

func TestStreamTitleRunsAlongsideCouncil(t *testing.T) {
	chairmanCalled := make(chan struct{})
	var once sync.Once
	fake := newFakeCompleter(func(model, kind, prompt string) (string, error) {
		switch kind {
		case kindChairman:
			once.Do(func() { close(chairmanCalled) })
		case kindTitle:
			// Blocks until stage 3 has started, so a title awaited before
			// the run would time out here.
			select {
			case <-chairmanCalled:
			case <-time.After(time.Second):
				return "", errors.New("title generation was serialized")
			}
		}
		return standardResponder(model, kind, prompt)
	})
	c := newTestCouncil(fake)
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q", FirstMessage: true,
	}), 5*time.Second)
	require.True(t, closed)

	require.Len(t, events, 8)
	assert.Equal(t, TitleData{Title: "Go Concurrency Basics"}, events[6].Data)
}

func TestStreamSaveFailure(t *testing.T) {
	c := newTestCouncil(newFakeCompleter(standardResponder))
	store := &memStore{failAssistant: errors.New("disk full")}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q",
	}), 5*time.Second)
	require.True(t, closed)

	want := append(append([]EventType{}, stageEvents...), EventError)
	assert.Equal(t, want, eventTypes(events))
	assert.Contains(t, events[len(events)-1].Message, "disk full")
}

func TestStreamUserMessageFailure(t *testing.T) {
	fake := newFakeCompleter(standardResponder)
	c := newTestCouncil(fake)
	store := &memStore{failUser: errors.New("conversation not found")}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "missing", Content: "q",
	}), 5*time.Second)
	require.True(t, closed)

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "conversation not found")
	assert.Empty(t, fake.calls)
}

func TestStreamEmptyQuestion(t *testing.T) {
	c := newTestCouncil(newFakeCompleter(standardResponder))
	store := &memStore{}

	events, closed := collect(c.Stream(context.Background(), store, Turn{ConversationID: "c", Content: "  "}), time.Second)
	require.True(t, closed)

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, ErrEmptyQuestion.Error(), events[0].Message)
	assert.Empty(t, store.users)
}

func TestStreamRecoversPanic(t *testing.T) {
	c := newTestCouncil(newFakeCompleter(standardResponder))
	store := &memStore{panicOnSave: true}

	events, closed := collect(c.Stream(context.Background(), store, Turn{
		ConversationID: "conv-1", Content: "q",
	}), 5*time.Second)
	require.True(t, closed)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "internal error: store exploded", last.Message)
}

func TestStreamStopsWhenConsumerLeaves(t *testing.T) {
	c := newTestCouncil(newFakeCompleter(standardResponder))
	store := &memStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := c.Stream(ctx, store, Turn{ConversationID: "conv-1", Content: "q"})

	first := <-events
	assert.Equal(t, EventStage1Start, first.Type)
	cancel()

	// Nobody is reading, so the next send can only observe the cancellation.
	time.Sleep(100 * time.Millisecond)

	rest, closed := collect(events, time.Second)
	require.True(t, closed, "stream goroutine did not exit")
	assert.Empty(t, rest)
	assert.Empty(t, store.assistant)
}

func TestDeliberate(t *testing.T) {
	t.Run("first message", func(t *testing.T) {
		c := newTestCouncil(newFakeCompleter(standardResponder))
		store := &memStore{}

		result, err := c.Deliberate(context.Background(), store, Turn{
			ConversationID: "conv-1", Content: "q", FirstMessage: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "final answer", result.Stage3.Content)
		assert.Equal(t, []string{"q"}, store.users)
		assert.Equal(t, []string{"Go Concurrency Basics"}, store.titles)
		require.Len(t, store.assistant, 1)
		assert.Equal(t, result.Stage3, store.assistant[0])
	})

	t.Run("follow up keeps title", func(t *testing.T) {
		fake := newFakeCompleter(standardResponder)
		c := newTestCouncil(fake)
		store := &memStore{}

		_, err := c.Deliberate(context.Background(), store, Turn{ConversationID: "conv-1", Content: "q"})
		require.NoError(t, err)
		assert.Empty(t, store.titles)
		assert.Empty(t, fake.callsOf(kindTitle))
	})

	t.Run("save failure", func(t *testing.T) {
		c := newTestCouncil(newFakeCompleter(standardResponder))
		store := &memStore{failAssistant: errors.New("disk full")}

		_, err := c.Deliberate(context.Background(), store, Turn{ConversationID: "conv-1", Content: "q"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("empty question", func(t *testing.T) {
		c := newTestCouncil(newFakeCompleter(standardResponder))
		store := &memStore{}

		_, err := c.Deliberate(context.Background(), store, Turn{ConversationID: "conv-1", Content: ""})
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Empty(t, store.users)
	})
}
