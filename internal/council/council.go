// Package council runs the three stage LLM council: independent answers,
// anonymized peer ranking, and chairman synthesis.
package council

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenstevester/llm-council/internal/openrouter"
)

// SynthesisFailedContent is the stage 3 answer when the chairman call fails.
const SynthesisFailedContent = "Error: Unable to generate final synthesis."

// ErrEmptyQuestion is returned for blank user messages.
var ErrEmptyQuestion = errors.New("question must not be empty")

var tracer = otel.Tracer("github.com/greenstevester/llm-council/internal/council")

// Settings is the council membership and call budget.
type Settings struct {
	CouncilModels []string
	ChairmanModel string
	TitleModel    string
	ModelTimeout  time.Duration
	TitleTimeout  time.Duration
}

// Council runs council deliberations against a Gateway.
type Council struct {
	gw       *Gateway
	settings Settings
	log      logrus.FieldLogger
}

// New creates a Council. A nil logger discards records.
func New(gw *Gateway, settings Settings, log logrus.FieldLogger) *Council {
	if log == nil {
		log = discardLogger()
	}
	if settings.TitleModel == "" {
		settings.TitleModel = settings.ChairmanModel
	}
	return &Council{gw: gw, settings: settings, log: log}
}

// Settings returns a copy of the council settings.
func (c *Council) Settings() Settings {
	s := c.settings
	s.CouncilModels = append([]string(nil), s.CouncilModels...)
	return s
}

// Stage1 collects one independent answer per council member.
func (c *Council) Stage1(ctx context.Context, question string) StageOneResult {
	return Dispatch(ctx, c.gw, c.settings.CouncilModels, openrouter.UserMessage(question), c.settings.ModelTimeout)
}

// Stage2 anonymizes the stage 1 answers, asks every council member to rank
// them and aggregates the rankings. With fewer than two rankable answers the
// judging round is skipped and the aggregate is empty.
func (c *Council) Stage2(ctx context.Context, question string, stage1 StageOneResult) StageTwoResult {
	entries, labelToModel := Anonymize(stage1)
	if len(entries) < 2 {
		return StageTwoResult{
			Rankings:          []RankingResponse{},
			LabelToModel:      labelToModel,
			AggregateRankings: []AggregateRanking{},
			Skipped:           true,
		}
	}

	prompt := BuildRankingPrompt(question, entries)
	judged := Dispatch(ctx, c.gw, c.settings.CouncilModels, openrouter.UserMessage(prompt), c.settings.ModelTimeout)

	known := Labels(entries)
	rankings := make([]RankingResponse, len(judged))
	for i, resp := range judged {
		rankings[i] = RankingResponse{
			Model:         resp.Model,
			Ranking:       resp.Content,
			ParsedRanking: []string{},
			Succeeded:     resp.Succeeded,
		}
		if resp.Succeeded {
			rankings[i].ParsedRanking = ParseRanking(resp.Content, known)
		}
	}

	return StageTwoResult{
		Rankings:          rankings,
		LabelToModel:      labelToModel,
		AggregateRankings: Aggregate(rankings, labelToModel, len(entries), stage1.Models()),
	}
}

// Stage3 asks the chairman for the final answer. A failed chairman call is
// reported in the result rather than as an error.
func (c *Council) Stage3(ctx context.Context, question string, stage1 StageOneResult, stage2 StageTwoResult) StageThreeResult {
	prompt := BuildChairmanPrompt(question, stage1, stage2)
	resp := c.gw.Invoke(ctx, c.settings.ChairmanModel, openrouter.UserMessage(prompt), c.settings.ModelTimeout)
	if !resp.Succeeded {
		return StageThreeResult{Model: c.settings.ChairmanModel, Content: SynthesisFailedContent}
	}
	return StageThreeResult{
		Model:     c.settings.ChairmanModel,
		Content:   resp.Content,
		Reasoning: resp.Reasoning,
		Succeeded: true,
	}
}

// RunFull runs all three stages and returns once stage 3 completes.
// Per-model failures are absorbed; only an empty question is an error.
func (c *Council) RunFull(ctx context.Context, question string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	return c.run(ctx, question, nil)
}

// errConsumerGone aborts a streaming run whose reader went away.
var errConsumerGone = errors.New("event consumer went away")

// run is the stage sequence shared by the blocking and streaming modes.
// emit, when set, receives the stage boundary events and reports whether
// the consumer is still there.
func (c *Council) run(ctx context.Context, question string, emit func(Event) bool) (*Result, error) {
	if emit == nil {
		emit = func(Event) bool { return true }
	}

	runID := uuid.New().String()
	log := c.log.WithField("run_id", runID)
	ctx, span := tracer.Start(ctx, "council.run", trace.WithAttributes(
		attribute.String("council.run_id", runID),
		attribute.Int("council.size", len(c.settings.CouncilModels)),
	))
	defer span.End()

	meta := RunMetadata{RunID: runID, StartedAt: time.Now().UTC()}

	// Stage 1
	if !emit(Event{Type: EventStage1Start}) {
		return nil, errConsumerGone
	}
	stageCtx, stageSpan := tracer.Start(ctx, "council.stage1")
	start := time.Now()
	stage1 := c.Stage1(stageCtx, question)
	meta.Stage1 = StageStats{Attempted: len(stage1), Succeeded: stage1.Succeeded(), DurationMS: time.Since(start).Milliseconds()}
	endStage(stageSpan, meta.Stage1)
	logStage(log, 1, meta.Stage1)
	if !emit(Event{Type: EventStage1Complete, Data: stage1}) {
		return nil, errConsumerGone
	}

	// Stage 2
	if !emit(Event{Type: EventStage2Start}) {
		return nil, errConsumerGone
	}
	stageCtx, stageSpan = tracer.Start(ctx, "council.stage2")
	start = time.Now()
	stage2 := c.Stage2(stageCtx, question, stage1)
	meta.Stage2 = StageStats{Attempted: len(stage2.Rankings), DurationMS: time.Since(start).Milliseconds()}
	for _, r := range stage2.Rankings {
		if r.Succeeded {
			meta.Stage2.Succeeded++
		}
	}
	meta.Stage2Skipped = stage2.Skipped
	meta.LabelToModel = stage2.LabelToModel
	meta.AggregateRankings = stage2.AggregateRankings
	stageSpan.SetAttributes(attribute.Bool("council.stage2.skipped", stage2.Skipped))
	endStage(stageSpan, meta.Stage2)
	logStage(log.WithField("skipped", stage2.Skipped), 2, meta.Stage2)
	if !emit(Event{
		Type: EventStage2Complete,
		Data: stage2.Rankings,
		Metadata: &Stage2Metadata{
			LabelToModel:      stage2.LabelToModel,
			AggregateRankings: stage2.AggregateRankings,
		},
	}) {
		return nil, errConsumerGone
	}

	// Stage 3
	if !emit(Event{Type: EventStage3Start}) {
		return nil, errConsumerGone
	}
	stageCtx, stageSpan = tracer.Start(ctx, "council.stage3")
	start = time.Now()
	stage3 := c.Stage3(stageCtx, question, stage1, stage2)
	meta.Stage3 = StageStats{Attempted: 1, DurationMS: time.Since(start).Milliseconds()}
	if stage3.Succeeded {
		meta.Stage3.Succeeded = 1
	}
	endStage(stageSpan, meta.Stage3)
	logStage(log.WithField("model", stage3.Model), 3, meta.Stage3)
	if !emit(Event{Type: EventStage3Complete, Data: stage3}) {
		return nil, errConsumerGone
	}

	meta.DurationMS = time.Since(meta.StartedAt).Milliseconds()
	log.WithField("elapsed_ms", meta.DurationMS).Info("council.run.done")

	return &Result{
		Stage1:   stage1,
		Stage2:   stage2.Rankings,
		Stage3:   stage3,
		Metadata: meta,
	}, nil
}

func endStage(span trace.Span, stats StageStats) {
	span.SetAttributes(
		attribute.Int("council.attempted", stats.Attempted),
		attribute.Int("council.succeeded", stats.Succeeded),
	)
	if stats.Attempted > 0 && stats.Succeeded == 0 {
		span.SetStatus(codes.Error, "no model answered")
	}
	span.End()
}

func logStage(log logrus.FieldLogger, stage int, stats StageStats) {
	log.WithFields(logrus.Fields{
		"stage":      stage,
		"attempted":  stats.Attempted,
		"succeeded":  stats.Succeeded,
		"elapsed_ms": stats.DurationMS,
	}).Info("council.stage.done")
}
