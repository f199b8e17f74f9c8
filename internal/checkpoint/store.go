// Package checkpoint persists per-session pipeline state, enabling
// resumption and human-feedback-driven re-entry after a session ends.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/forgewise/infrapilot/internal/state"
)

// Store manages session state on disk. Each session gets a directory under
// baseDir keyed by session id, holding a state.json snapshot.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

func (s *Store) statePath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "state.json")
}

// Save checkpoints the full session state. Called after every stage
// transition, so a crash loses at most one stage's work.
func (s *Store) Save(ps *state.PipelineState) error {
	if ps.SessionID == "" {
		return fmt.Errorf("state has no session id")
	}
	return writeJSON(s.statePath(ps.SessionID), ps)
}

// Load reads the checkpointed state for a session.
func (s *Store) Load(sessionID string) (*state.PipelineState, error) {
	var ps state.PipelineState
	if err := readJSON(s.statePath(sessionID), &ps); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, err
	}
	return &ps, nil
}

// List returns all checkpointed sessions, optionally filtered by status.
// Pass "" to return all sessions, ordered by creation time.
func (s *Store) List(statusFilter string) ([]state.PipelineState, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	var sessions []state.PipelineState
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ps, err := s.Load(entry.Name())
		if err != nil {
			continue // skip broken entries
		}
		if statusFilter == "" || ps.Status == statusFilter {
			sessions = append(sessions, *ps)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt != sessions[j].CreatedAt {
			return sessions[i].CreatedAt < sessions[j].CreatedAt
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions, nil
}

// Delete removes all checkpoint data for a session.
func (s *Store) Delete(sessionID string) error {
	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return os.RemoveAll(dir)
}

// ExportArtifacts writes the session's artifacts into destDir, creating it
// if needed. This is how a finished session's files leave the pipeline.
func (s *Store) ExportArtifacts(ps *state.PipelineState, destDir string) error {
	if len(ps.Artifacts) == 0 {
		return fmt.Errorf("session %s has no artifacts", ps.SessionID)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", destDir, err)
	}
	for name, content := range ps.Artifacts {
		if filepath.Base(name) != name {
			return fmt.Errorf("artifact name %q must not contain path separators", name)
		}
		if err := os.WriteFile(filepath.Join(destDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
