// Package metadata persists per-candidate attempt records. Attempts are
// written defensively before risky provider calls so failures remain
// observable; results are merged in after success.
package metadata

import (
	"context"
	"time"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// Attempt is the pre-flight record written before any image call.
type Attempt struct {
	ID          string    `json:"id"`
	Iteration   int       `json:"iteration"`
	Local       int       `json:"local"`
	ParentLocal int       `json:"parent_local"`
	Dimension   string    `json:"dimension"`
	What        string    `json:"what"`
	How         string    `json:"how"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Results carries the outcome merged into an attempt after success.
type Results struct {
	Combined   string                `json:"combined"`
	Image      candidate.Image       `json:"image"`
	Evaluation *candidate.Evaluation `json:"evaluation,omitempty"`
	TotalScore *float64              `json:"total_score,omitempty"`
}

// Winner records the final winning candidate of a run.
type Winner struct {
	ID         string  `json:"id"`
	TotalScore float64 `json:"total_score,omitempty"`
}

// Sink receives attempt metadata. Implementations must tolerate concurrent
// writes for different candidate IDs; writes for the same ID are serialized
// by the caller.
type Sink interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	UpdateAttemptWithResults(ctx context.Context, id string, res Results) error
	MarkFinalWinner(ctx context.Context, w Winner) error
}

// NopSink discards all metadata.
type NopSink struct{}

func (NopSink) RecordAttempt(context.Context, Attempt) error                    { return nil }
func (NopSink) UpdateAttemptWithResults(context.Context, string, Results) error { return nil }
func (NopSink) MarkFinalWinner(context.Context, Winner) error                   { return nil }

// Verify implementations at compile time.
var (
	_ Sink = NopSink{}
	_ Sink = (*FileStore)(nil)
)
