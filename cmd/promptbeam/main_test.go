package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/smileynet/promptbeam/internal/beam"
	"github.com/smileynet/promptbeam/internal/candidate"
	"github.com/smileynet/promptbeam/internal/config"
	"github.com/smileynet/promptbeam/internal/provider"
	"github.com/smileynet/promptbeam/internal/tui"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitSuccess},
		{"config error", &beam.ConfigError{Field: "alpha", Reason: "out of range"}, exitSetup},
		{"unknown provider", &provider.UnknownProviderError{Name: "nope"}, exitSetup},
		{"all candidates failed", beam.ErrAllCandidatesFailed, exitRun},
		{"cancelled", context.Canceled, exitRun},
		{"safety violation", &provider.SafetyViolationError{Err: errors.New("rejected")}, exitRun},
		{"unclassified", errors.New("boom"), exitSetup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestApplyFlags_OverridesOnlySetFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	r := &RunCmd{BeamWidth: 6, KeepTop: 3, Alpha: -1, Temperature: -1, Provider: "openai"}

	r.applyFlags(&cfg)

	if cfg.Run.BeamWidth != 6 || cfg.Run.KeepTop != 3 {
		t.Errorf("beam = %d/%d, want 6/3", cfg.Run.BeamWidth, cfg.Run.KeepTop)
	}
	if cfg.Run.Alpha != 0.7 {
		t.Errorf("alpha = %v, want untouched default 0.7", cfg.Run.Alpha)
	}
	if cfg.Provider.Name != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Provider.Name)
	}
}

// fakeSearch implements searchRunner with a canned result.
type fakeSearch struct {
	result *beam.Result
	err    error
}

func (f *fakeSearch) Run(context.Context) (*beam.Result, error) {
	return f.result, f.err
}

func TestRun_PrintsWinnerAndLeaderboard(t *testing.T) {
	winner := &candidate.Candidate{
		ID:         candidate.ID{Iteration: 0, Local: 1},
		Combined:   "a fox, watercolor",
		Image:      candidate.Image{URL: "u_1"},
		Evaluation: &candidate.Evaluation{},
		TotalScore: 78,
		GlobalRank: 1,
	}
	search := &fakeSearch{result: &beam.Result{
		Winner:      winner,
		Finalists:   []*candidate.Candidate{winner},
		Leaderboard: []*candidate.Candidate{winner},
	}}

	var out bytes.Buffer
	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{Writer: &out, ForcePlain: true})

	r := &RunCmd{}
	err := r.run(&out, search, display, bridge, context.Background(), zerolog.Nop())

	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Winner: i0c1") {
		t.Errorf("output missing winner, got %q", got)
	}
	if !strings.Contains(got, "a fox, watercolor") {
		t.Errorf("output missing combined prompt, got %q", got)
	}
	if !strings.Contains(got, "78.0") {
		t.Errorf("output missing score, got %q", got)
	}
}

func TestRun_SearchErrorPropagates(t *testing.T) {
	search := &fakeSearch{err: beam.ErrAllCandidatesFailed}

	var out bytes.Buffer
	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{Writer: &out, ForcePlain: true})

	r := &RunCmd{}
	err := r.run(&out, search, display, bridge, context.Background(), zerolog.Nop())

	if !errors.Is(err, beam.ErrAllCandidatesFailed) {
		t.Errorf("run() error = %v, want ErrAllCandidatesFailed", err)
	}
}

func TestNewRegistry_IncludesMockBundle(t *testing.T) {
	reg := newRegistry()

	bundle, err := reg.NewBundle("mock")
	if err != nil {
		t.Fatalf("NewBundle(mock) error = %v", err)
	}
	if bundle.Text == nil || bundle.Image == nil || bundle.Evaluator == nil {
		t.Error("mock bundle missing required roles")
	}
}
