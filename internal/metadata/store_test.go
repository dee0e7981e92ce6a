package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/smileynet/promptbeam/internal/candidate"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "session-1")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestFileStore_RecordAndUpdate(t *testing.T) {
	// Given a recorded attempt
	s := newTestStore(t)
	ctx := context.Background()
	attempt := Attempt{
		ID: "i0c1", Iteration: 0, Local: 1, ParentLocal: candidate.NoParent,
		Dimension: "what", What: "a fox", How: "watercolor",
	}
	if err := s.RecordAttempt(ctx, attempt); err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}

	// When results are merged in
	score := 67.5
	res := Results{
		Combined:   "a fox, watercolor",
		Image:      candidate.Image{URL: "u_1"},
		TotalScore: &score,
	}
	if err := s.UpdateAttemptWithResults(ctx, "i0c1", res); err != nil {
		t.Fatalf("UpdateAttemptWithResults() error = %v", err)
	}

	// Then the record round-trips with both halves
	rec, found, err := s.Load("i0c1")
	if err != nil || !found {
		t.Fatalf("Load() = found %v, err %v", found, err)
	}
	if rec.Attempt.What != "a fox" {
		t.Errorf("Attempt.What = %q, want %q", rec.Attempt.What, "a fox")
	}
	if rec.Results == nil || rec.Results.Combined != "a fox, watercolor" {
		t.Errorf("Results = %+v, want combined prompt preserved", rec.Results)
	}
	if rec.Results.TotalScore == nil || *rec.Results.TotalScore != 67.5 {
		t.Errorf("TotalScore = %v, want 67.5", rec.Results.TotalScore)
	}
}

func TestFileStore_UpdateUnknownAttempt(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateAttemptWithResults(context.Background(), "i0c9", Results{})

	if !errors.Is(err, ErrUnknownAttempt) {
		t.Errorf("error = %v, want ErrUnknownAttempt", err)
	}
}

func TestFileStore_RecordWithoutUpdateLeavesTrace(t *testing.T) {
	// A failed image call leaves the attempt on disk with no results.
	s := newTestStore(t)
	_ = s.RecordAttempt(context.Background(), Attempt{ID: "i0c2", What: "w", How: "h"})

	rec, found, err := s.Load("i0c2")
	if err != nil || !found {
		t.Fatalf("Load() = found %v, err %v", found, err)
	}
	if rec.Results != nil {
		t.Errorf("Results = %+v, want nil before update", rec.Results)
	}
}

func TestFileStore_MarkFinalWinner(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "s")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.MarkFinalWinner(context.Background(), Winner{ID: "i2c0", TotalScore: 91}); err != nil {
		t.Fatalf("MarkFinalWinner() error = %v", err)
	}

	if _, err := filepath.Glob(filepath.Join(dir, "s", "winner.json")); err != nil {
		t.Fatalf("glob error = %v", err)
	}
	// Re-marking overwrites without error.
	if err := s.MarkFinalWinner(context.Background(), Winner{ID: "i2c1"}); err != nil {
		t.Errorf("second MarkFinalWinner() error = %v", err)
	}
}

func TestFileStore_RejectsTraversalIDs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", ".", "..", "a/b", "../escape"} {
		if err := s.RecordAttempt(context.Background(), Attempt{ID: id}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("RecordAttempt(%q) error = %v, want ErrInvalidID", id, err)
		}
	}

	if _, err := NewFileStore(t.TempDir(), "../s"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("NewFileStore with traversal session = %v, want ErrInvalidID", err)
	}
}
