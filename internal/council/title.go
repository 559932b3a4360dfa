package council

import (
	"context"
	"fmt"
	"strings"

	"github.com/greenstevester/llm-council/internal/openrouter"
)

// DefaultTitle is used until, or instead of, a generated title.
const DefaultTitle = "New Conversation"

const maxTitleRunes = 50

// GenerateTitle derives a short conversation title from the first message
// using the title model. Any failure falls back to DefaultTitle.
func (c *Council) GenerateTitle(ctx context.Context, question string) string {
	resp := c.gw.Invoke(ctx, c.settings.TitleModel, openrouter.UserMessage(BuildTitlePrompt(question)), c.settings.TitleTimeout)
	if !resp.Succeeded {
		return DefaultTitle
	}
	if title := CleanTitle(resp.Content); title != "" {
		return title
	}
	return DefaultTitle
}

// CleanTitle keeps the first non-blank line, strips quotes and truncates to
// 50 runes.
func CleanTitle(raw string) string {
	title := ""
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = line
			break
		}
	}
	title = strings.TrimPrefix(title, "Title:")
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), "\"'`*"))

	if runes := []rune(title); len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes-3]) + "..."
	}
	return title
}

// startTitle launches title generation for a conversation's first message
// and returns the channel the title will arrive on, or nil when no title is
// needed. The channel is buffered so the task never blocks on its reader.
func (c *Council) startTitle(ctx context.Context, turn Turn) <-chan string {
	if !turn.FirstMessage {
		return nil
	}
	titleCh := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.WithField("panic", fmt.Sprint(r)).Error("council.title.panic")
				titleCh <- DefaultTitle
			}
		}()
		titleCh <- c.GenerateTitle(ctx, turn.Content)
	}()
	return titleCh
}
