package council

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Conversations is the persistence the council writes a turn into.
type Conversations interface {
	AddUserMessage(ctx context.Context, conversationID, content string) error
	AddAssistantMessage(ctx context.Context, conversationID string, stage1 StageOneResult, stage2 []RankingResponse, stage3 StageThreeResult) error
	UpdateConversationTitle(ctx context.Context, conversationID, title string) error
}

// Turn is one user message sent to a conversation.
type Turn struct {
	ConversationID string
	Content        string
	// FirstMessage requests a generated title for the conversation.
	FirstMessage bool
}

// Deliberate records the user message, runs the council and persists the
// assistant message, generating a title alongside the run when this is the
// conversation's first message.
func (c *Council) Deliberate(ctx context.Context, store Conversations, turn Turn) (*Result, error) {
	if strings.TrimSpace(turn.Content) == "" {
		return nil, ErrEmptyQuestion
	}
	if err := store.AddUserMessage(ctx, turn.ConversationID, turn.Content); err != nil {
		return nil, fmt.Errorf("failed to add user message: %w", err)
	}

	titleCh := c.startTitle(ctx, turn)

	result, err := c.run(ctx, turn.Content, nil)
	if err != nil {
		return nil, err
	}

	if titleCh != nil {
		if err := store.UpdateConversationTitle(ctx, turn.ConversationID, <-titleCh); err != nil {
			return nil, fmt.Errorf("failed to update title: %w", err)
		}
	}

	if err := store.AddAssistantMessage(ctx, turn.ConversationID, result.Stage1, result.Stage2, result.Stage3); err != nil {
		return nil, fmt.Errorf("failed to add assistant message: %w", err)
	}
	return result, nil
}

// Stream runs the same deliberation as Deliberate but reports progress as
// events on the returned channel, which is closed after the terminal
// complete or error event. The caller must keep reading until the channel
// closes or cancel ctx.
func (c *Council) Stream(ctx context.Context, store Conversations, turn Turn) <-chan Event {
	events := make(chan Event)
	log := c.log.WithField("conversation_id", turn.ConversationID)

	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("api.stream.error")
				send(Event{Type: EventError, Message: fmt.Sprintf("internal error: %v", r)})
			}
		}()

		if err := c.stream(ctx, store, turn, send); err != nil {
			if errors.Is(err, errConsumerGone) {
				log.Warn("api.stream.abandoned")
				return
			}
			log.WithError(err).Error("api.stream.error")
			send(Event{Type: EventError, Message: err.Error()})
		}
	}()

	return events
}

func (c *Council) stream(ctx context.Context, store Conversations, turn Turn, send func(Event) bool) error {
	if strings.TrimSpace(turn.Content) == "" {
		return ErrEmptyQuestion
	}
	if err := store.AddUserMessage(ctx, turn.ConversationID, turn.Content); err != nil {
		return fmt.Errorf("failed to add user message: %w", err)
	}

	titleCh := c.startTitle(ctx, turn)

	result, err := c.run(ctx, turn.Content, send)
	if err != nil {
		return err
	}

	if titleCh != nil {
		title := <-titleCh
		if err := store.UpdateConversationTitle(ctx, turn.ConversationID, title); err != nil {
			return fmt.Errorf("failed to update title: %w", err)
		}
		c.log.WithFields(logrus.Fields{"conversation_id": turn.ConversationID, "title": title}).Info("api.stream.title_generated")
		if !send(Event{Type: EventTitleComplete, Data: TitleData{Title: title}}) {
			return errConsumerGone
		}
	}

	if err := store.AddAssistantMessage(ctx, turn.ConversationID, result.Stage1, result.Stage2, result.Stage3); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	if !send(Event{Type: EventComplete}) {
		return errConsumerGone
	}
	return nil
}
