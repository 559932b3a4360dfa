package council

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/greenstevester/llm-council/internal/openrouter"
)

// Completer performs one upstream inference call. *openrouter.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, model string, messages []openrouter.Message) (*openrouter.Completion, error)
}

// Gateway wraps a Completer with a per-call timeout, failure normalization
// and one log record per attempt.
type Gateway struct {
	completer Completer
	log       logrus.FieldLogger
}

// NewGateway creates a gateway. A nil logger discards records.
func NewGateway(completer Completer, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = discardLogger()
	}
	return &Gateway{completer: completer, log: log}
}

// Invoke calls model once. Failures never escape as errors: they come back
// as a ModelResponse with Succeeded false and the failure classified.
func (g *Gateway) Invoke(ctx context.Context, model string, messages []openrouter.Message, timeout time.Duration) ModelResponse {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	completion, err := g.completer.Complete(callCtx, model, messages)
	latency := time.Since(start)

	resp := ModelResponse{Model: model, LatencyMS: latency.Milliseconds()}
	fields := logrus.Fields{
		"model":        model,
		"messages":     len(messages),
		"prompt_chars": openrouter.PromptChars(messages),
		"latency_ms":   resp.LatencyMS,
		"timeout_s":    timeout.Seconds(),
	}

	if err != nil {
		resp.Failure = classify(callCtx, err)
		fields["outcome"] = string(resp.Failure)
		var statusErr *openrouter.StatusError
		if errors.As(err, &statusErr) {
			fields["status"] = statusErr.Code
		}
		g.log.WithFields(fields).WithError(err).Warn("openrouter.response")
		return resp
	}

	resp.Succeeded = true
	resp.Content = completion.Content
	resp.Reasoning = completion.ReasoningDetails

	fields["outcome"] = "ok"
	fields["status"] = completion.StatusCode
	fields["finish_reason"] = completion.FinishReason
	fields["completion_tokens"] = completion.Usage.CompletionTokens
	fields["total_tokens"] = completion.Usage.TotalTokens
	fields["content_chars"] = len(completion.Content)
	g.log.WithFields(fields).Info("openrouter.response")
	return resp
}

func classify(ctx context.Context, err error) FailureKind {
	var statusErr *openrouter.StatusError
	switch {
	case errors.As(err, &statusErr):
		return FailureHTTPStatus
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	case errors.Is(err, openrouter.ErrNoChoices), errors.Is(err, openrouter.ErrMalformedResponse):
		return FailureMalformed
	}
	return FailureTransport
}
