// Package events defines the progress-event contract emitted by a beam-search
// run. Consumers receive events through a Sink; emission happens from worker
// goroutines, so sinks must tolerate concurrent invocation or serialize
// themselves.
package events

import "fmt"

// Stage identifies which part of the run an event describes.
type Stage string

const (
	StageExpand   Stage = "expand"
	StageCombine  Stage = "combine"
	StageImageGen Stage = "imageGen"
	StageVision   Stage = "vision"
	StageRanking  Stage = "ranking"
	StageSafety   Stage = "safety"
	StageError    Stage = "error"
)

// Status qualifies an event within its stage.
type Status string

const (
	StatusStarting Status = "starting"
	StatusComplete Status = "complete"
	StatusProgress Status = "progress"
	StatusFailed   Status = "failed"

	// Safety-retry statuses.
	StatusRephrasing Status = "rephrasing"
	StatusRetrying   Status = "retrying"
	StatusSuccess    Status = "success"
)

// Progress counts completed work units against a known total.
type Progress struct {
	Completed int
	Total     int
}

// Event is one progress notification. Stage and Message are always set;
// everything else is stage-dependent.
type Event struct {
	Stage       Stage
	Status      Status
	CandidateID string
	Iteration   int
	ImageURL    string
	Alignment   *float64
	Aesthetic   *float64
	TotalScore  *float64
	Message     string
	Progress    *Progress

	// Ranking-stage pair fields.
	CandidateA string
	CandidateB string
	Inferred   bool
	Err        string
}

// Sink receives progress events. May be called concurrently.
type Sink func(Event)

// Nop is a Sink that discards events.
func Nop(Event) {}

// Float returns a pointer to v, for the Event's optional score fields.
func Float(v float64) *float64 { return &v }

// Line renders the event as a single log-style text line.
func (e Event) Line() string {
	s := string(e.Stage)
	if e.Status != "" {
		s += " " + string(e.Status)
	}
	if e.CandidateID != "" {
		s = "[" + e.CandidateID + "] " + s
	}
	if e.Progress != nil {
		s += fmt.Sprintf(" (%d/%d)", e.Progress.Completed, e.Progress.Total)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}
