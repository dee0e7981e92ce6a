package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidID indicates a candidate or session ID is empty or contains path
// traversal components.
var ErrInvalidID = errors.New("metadata: invalid ID")

// ErrUnknownAttempt indicates results arrived for an ID never recorded.
var ErrUnknownAttempt = errors.New("metadata: unknown attempt")

// Record is the on-disk shape: the attempt plus results once available.
type Record struct {
	Attempt   Attempt   `json:"attempt"`
	Results   *Results  `json:"results,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists attempt records as JSON files under
// <baseDir>/<sessionID>/, one file per candidate plus a winner.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore for one session. The session directory is
// created on first write.
func NewFileStore(baseDir, sessionID string) (*FileStore, error) {
	if err := checkID(sessionID); err != nil {
		return nil, err
	}
	return &FileStore{dir: filepath.Join(baseDir, sessionID)}, nil
}

// RecordAttempt writes the pre-flight record for a candidate.
func (s *FileStore) RecordAttempt(_ context.Context, a Attempt) error {
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now().UTC()
	}
	return s.write(a.ID, Record{Attempt: a, UpdatedAt: a.RecordedAt})
}

// UpdateAttemptWithResults merges results into a previously recorded attempt.
func (s *FileStore) UpdateAttemptWithResults(_ context.Context, id string, res Results) error {
	rec, err := s.read(id)
	if err != nil {
		return err
	}
	rec.Results = &res
	rec.UpdatedAt = time.Now().UTC()
	return s.write(id, rec)
}

// MarkFinalWinner records the run's winning candidate.
func (s *FileStore) MarkFinalWinner(_ context.Context, w Winner) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshaling winner: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("metadata: creating directory: %w", err)
	}
	p := filepath.Join(s.dir, "winner.json")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("metadata: writing %s: %w", p, err)
	}
	return nil
}

// Load reads the record for a candidate ID.
// Returns (record, true, nil) if found, (zero, false, nil) if not found.
func (s *FileStore) Load(id string) (Record, bool, error) {
	rec, err := s.read(id)
	if err != nil {
		if errors.Is(err, ErrUnknownAttempt) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *FileStore) write(id string, rec Record) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("metadata: creating directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshaling: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("metadata: writing %s: %w", p, err)
	}
	return nil
}

func (s *FileStore) read(id string) (Record, error) {
	p, err := s.path(id)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrUnknownAttempt, id)
		}
		return Record{}, fmt.Errorf("metadata: reading %s: %w", p, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("metadata: parsing %s: %w", p, err)
	}
	return rec, nil
}

// path returns the filesystem path for a candidate record.
// It rejects IDs that are empty, dot-segments, or contain path separators.
func (s *FileStore) path(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || id != filepath.Base(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
