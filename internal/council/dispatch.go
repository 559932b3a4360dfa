package council

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/greenstevester/llm-council/internal/openrouter"
)

// Dispatch sends messages to every model concurrently and waits for all
// calls to finish. The result has one entry per model in input order,
// whatever the completion order or failures.
func Dispatch(ctx context.Context, gw *Gateway, models []string, messages []openrouter.Message, timeout time.Duration) StageOneResult {
	start := time.Now()
	results := make(StageOneResult, len(models))

	// A plain Group: one model failing must not cancel its siblings.
	var g errgroup.Group
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = ModelResponse{Model: model, Failure: FailurePanic}
					gw.log.WithFields(logrus.Fields{
						"model": model,
						"panic": fmt.Sprint(r),
					}).Error("council.dispatch.panic")
				}
			}()
			results[i] = gw.Invoke(ctx, model, messages, timeout)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := results.Succeeded()
	gw.log.WithFields(logrus.Fields{
		"model_count": len(models),
		"success":     succeeded,
		"failed":      len(models) - succeeded,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Info("council.dispatch.done")

	return results
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
