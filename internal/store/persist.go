package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/helixir/review-console/internal/domain"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible build.
const snapshotVersion = 1

// snapshot is the narrow persisted subset of the store. Live records (the
// current workflow, its manuscript, the transcript, the polling flag) are
// deliberately excluded: they are re-derived from the backend, never from
// disk, so a restored session can never present stale workflow state as
// current.
type snapshot struct {
	Version   int                      `json:"version"`
	Layout    domain.LayoutMode        `json:"layout"`
	ChatStage domain.ChatStage         `json:"chat_stage"`
	Form      domain.IntakeForm        `json:"form"`
	History   []domain.WorkflowSummary `json:"history,omitempty"`
}

// Save writes the persisted subset to the given path.
func (s *Store) Save(fs afero.Fs, path string) error {
	s.mu.RLock()
	snap := snapshot{
		Version:   snapshotVersion,
		Layout:    s.layout,
		ChatStage: s.chatStage,
		Form:      s.form,
		History:   append([]domain.WorkflowSummary(nil), s.history...),
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.logger.Debug().Str("path", path).Msg("session snapshot saved")
	return nil
}

// Restore loads a previously saved snapshot. A missing file is not an error;
// the store keeps its initial state. Live records are never restored: the
// session resumes with no current workflow and polling off, and the editor
// layout falls back to intake because manuscripts do not survive a restart.
func (s *Store) Restore(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		s.logger.Warn().
			Int("version", snap.Version).
			Int("supported", snapshotVersion).
			Msg("ignoring snapshot with unsupported version")
		return nil
	}

	layout := snap.Layout
	if layout == domain.LayoutEditor || layout == "" {
		layout = domain.LayoutIntake
	}
	chatStage := snap.ChatStage
	if chatStage == "" {
		chatStage = domain.ChatStageQuestion
	}

	s.mu.Lock()
	s.layout = layout
	s.chatStage = chatStage
	s.form = snap.Form
	s.history = snap.History
	s.current = nil
	s.manuscript = nil
	s.messages = nil
	s.polling = false
	s.mu.Unlock()

	s.logger.Info().Str("path", path).Int("history", len(snap.History)).Msg("session snapshot restored")
	s.notify()
	return nil
}
