package council

import (
	"encoding/json"
	"time"
)

// FailureKind classifies why a model call did not produce an answer.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureTimeout    FailureKind = "timeout"
	FailureHTTPStatus FailureKind = "http_status"
	FailureTransport  FailureKind = "transport"
	FailureMalformed  FailureKind = "malformed"
	FailureCanceled   FailureKind = "canceled"
	FailurePanic      FailureKind = "panic"
)

// ModelResponse is the outcome of one gateway call. Content is empty when
// Succeeded is false; an empty Content with Succeeded true is a legitimate
// empty answer.
type ModelResponse struct {
	Model     string          `json:"model"`
	Content   string          `json:"response"`
	Reasoning json.RawMessage `json:"reasoning_details,omitempty"`
	Succeeded bool            `json:"succeeded"`
	Failure   FailureKind     `json:"failure,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
}

// StageOneResult holds one response per council member in council order,
// including failed members.
type StageOneResult []ModelResponse

// Get returns the response for model.
func (r StageOneResult) Get(model string) (ModelResponse, bool) {
	for _, resp := range r {
		if resp.Model == model {
			return resp, true
		}
	}
	return ModelResponse{}, false
}

// Models returns the model ids in result order.
func (r StageOneResult) Models() []string {
	models := make([]string, len(r))
	for i, resp := range r {
		models[i] = resp.Model
	}
	return models
}

// Succeeded counts the successful entries.
func (r StageOneResult) Succeeded() int {
	n := 0
	for _, resp := range r {
		if resp.Succeeded {
			n++
		}
	}
	return n
}

// AnonymizedEntry pairs a synthetic label with the answer it hides.
type AnonymizedEntry struct {
	Label   string `json:"label"`
	Model   string `json:"model"`
	Content string `json:"content"`
}

// RankingResponse is one judge's evaluation of the anonymized answers.
// ParsedRanking lists labels best first and may be partial or empty.
type RankingResponse struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
	Succeeded     bool     `json:"succeeded"`
}

// AggregateRanking is the consensus standing of one council member.
// AverageRank is nil when no judge ranked the model.
type AggregateRanking struct {
	Model       string   `json:"model"`
	Position    int      `json:"position"`
	TotalScore  int      `json:"total_score"`
	VoteCount   int      `json:"rankings_count"`
	AverageRank *float64 `json:"average_rank"`
}

// StageTwoResult is everything produced by the cross-ranking stage.
type StageTwoResult struct {
	Rankings          []RankingResponse  `json:"rankings"`
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
	Skipped           bool               `json:"skipped"`
}

// StageThreeResult is the chairman's synthesis.
type StageThreeResult struct {
	Model     string          `json:"model"`
	Content   string          `json:"response"`
	Reasoning json.RawMessage `json:"reasoning_details,omitempty"`
	Succeeded bool            `json:"succeeded"`
}

// StageStats are the participation counters of one stage.
type StageStats struct {
	Attempted  int   `json:"attempted"`
	Succeeded  int   `json:"succeeded"`
	DurationMS int64 `json:"duration_ms"`
}

// RunMetadata is attached to a completed run for observability.
type RunMetadata struct {
	RunID             string             `json:"run_id"`
	StartedAt         time.Time          `json:"started_at"`
	DurationMS        int64              `json:"duration_ms"`
	Stage1            StageStats         `json:"stage1"`
	Stage2            StageStats         `json:"stage2"`
	Stage2Skipped     bool               `json:"stage2_skipped"`
	Stage3            StageStats         `json:"stage3"`
	LabelToModel      map[string]string  `json:"label_to_model"`
	AggregateRankings []AggregateRanking `json:"aggregate_rankings"`
}

// Result is the full output of one council run.
type Result struct {
	Stage1   StageOneResult    `json:"stage1"`
	Stage2   []RankingResponse `json:"stage2"`
	Stage3   StageThreeResult  `json:"stage3"`
	Metadata RunMetadata       `json:"metadata"`
}
