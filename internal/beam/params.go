// Package beam drives the full prompt-refinement search: expand a user
// prompt into a beam of candidates, run each through the candidate pipeline,
// rank the pool, keep the best, and refine them over alternating dimensions
// until the iteration budget is spent.
package beam

import (
	"errors"
	"fmt"

	"github.com/smileynet/promptbeam/internal/candidate"
)

// ErrAllCandidatesFailed reports an iteration in which no candidate survived
// its pipeline. Individual failures are tolerated; total failure is not.
var ErrAllCandidatesFailed = errors.New("beam: all candidates failed")

// ConfigError reports an invalid search parameter. Validation rejects
// out-of-range values instead of clamping them.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("beam: invalid %s: %s", e.Field, e.Reason)
}

// DefaultTemperature seeds expansion variety.
const DefaultTemperature = 0.7

// Params are the knobs of one search run.
type Params struct {
	// UserPrompt is the original request being refined.
	UserPrompt string

	// BeamWidth is the number of candidates per iteration.
	BeamWidth int

	// KeepTop is the number of survivors carried into the next iteration.
	// BeamWidth must be an exact multiple of KeepTop when Iterations > 1.
	KeepTop int

	// Iterations is the total iteration count including the initial
	// expansion.
	Iterations int

	// Alpha weights alignment against aesthetics in the total score.
	Alpha float64

	// Temperature seeds the expansion calls.
	Temperature float64

	// SessionID tags provider calls and metadata. Optional.
	SessionID string
}

// withDefaults fills unset optional fields.
func (p Params) withDefaults() Params {
	if p.Alpha == 0 {
		p.Alpha = candidate.DefaultAlpha
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	return p
}

func (p Params) validate() error {
	if p.UserPrompt == "" {
		return &ConfigError{Field: "userPrompt", Reason: "must not be empty"}
	}
	if p.BeamWidth < 1 {
		return &ConfigError{Field: "beamWidth", Reason: fmt.Sprintf("must be >= 1, got %d", p.BeamWidth)}
	}
	if p.KeepTop < 1 {
		return &ConfigError{Field: "keepTop", Reason: fmt.Sprintf("must be >= 1, got %d", p.KeepTop)}
	}
	if p.KeepTop > p.BeamWidth {
		return &ConfigError{Field: "keepTop", Reason: fmt.Sprintf("must not exceed beamWidth %d, got %d", p.BeamWidth, p.KeepTop)}
	}
	if p.Iterations < 1 {
		return &ConfigError{Field: "iterations", Reason: fmt.Sprintf("must be >= 1, got %d", p.Iterations)}
	}
	// The fan-out ratio only matters once refinement iterations run; a
	// single-iteration run never produces children.
	if p.Iterations > 1 && p.BeamWidth%p.KeepTop != 0 {
		return &ConfigError{Field: "beamWidth", Reason: fmt.Sprintf("must be a multiple of keepTop %d when iterations > 1, got %d", p.KeepTop, p.BeamWidth)}
	}
	if p.Alpha < 0 || p.Alpha > 1 {
		return &ConfigError{Field: "alpha", Reason: fmt.Sprintf("must be in [0, 1], got %g", p.Alpha)}
	}
	return nil
}
