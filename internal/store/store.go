// Package store holds the console's session state: the current workflow, its
// manuscript, the intake transcript, and the workflow history. The store is
// the single source of truth for the view layer; all mutation goes through
// its methods and every read returns a copy, so readers never observe a
// partially applied update.
package store

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/review-console/internal/domain"
)

// Store is an observable, mutex-guarded state container. It is safe for
// concurrent use. Subscribers receive a coalesced change notification after
// each mutation.
type Store struct {
	logger zerolog.Logger

	mu sync.RWMutex

	layout     domain.LayoutMode
	chatStage  domain.ChatStage
	form       domain.IntakeForm
	messages   []domain.ChatMessage
	current    *domain.Workflow
	manuscript *domain.Manuscript
	history    []domain.WorkflowSummary
	polling    bool

	sessionExpired bool

	subMu sync.Mutex
	subs  map[int]chan struct{}
	nextN int
}

// New creates a store in its initial state: intake layout, first chat stage,
// nothing polled.
func New(logger zerolog.Logger) *Store {
	return &Store{
		logger:    logger.With().Str("component", "store").Logger(),
		layout:    domain.LayoutIntake,
		chatStage: domain.ChatStageQuestion,
		subs:      make(map[int]chan struct{}),
	}
}

// Subscribe registers a change listener. The channel carries coalesced
// notifications: a slow reader misses intermediate signals but always
// receives one after the latest mutation. The returned function cancels the
// subscription.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	n := s.nextN
	s.nextN++
	ch := make(chan struct{}, 1)
	s.subs[n] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, n)
	}
}

// notify signals all subscribers without blocking. Must not be called with
// s.mu held for writing by code that a subscriber might re-enter; signals are
// best-effort and coalesced.
func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Layout returns the current layout mode.
func (s *Store) Layout() domain.LayoutMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// SetLayout switches the rendered screen.
func (s *Store) SetLayout(mode domain.LayoutMode) {
	s.mu.Lock()
	s.layout = mode
	s.mu.Unlock()
	s.notify()
}

// OpenWorkflow makes the given workflow the current one in a single atomic
// update: the record is stored, the layout switches to the review screen, any
// cached manuscript from a previous workflow is dropped, and the polling flag
// is derived from the workflow status. The summary is upserted into history.
// Only a running workflow shows as polling; a pending one is still fetched on
// schedule but the view renders a distinct waiting state for it.
func (s *Store) OpenWorkflow(w *domain.Workflow) {
	if w == nil {
		return
	}
	s.mu.Lock()
	s.current = w.Clone()
	s.manuscript = nil
	s.layout = domain.LayoutReview
	s.polling = w.Status == domain.WorkflowStatusRunning
	s.upsertHistoryLocked(w.Summary())
	s.mu.Unlock()

	s.logger.Info().
		Str("workflow_id", w.ID).
		Str("status", string(w.Status)).
		Msg("workflow opened")
	s.notify()
}

// ReplaceWorkflow replaces the current workflow record wholesale if it has
// the same id. Stale updates for a workflow that is no longer current are
// dropped. Returns the previous record, or nil if the update was dropped.
func (s *Store) ReplaceWorkflow(w *domain.Workflow) *domain.Workflow {
	if w == nil {
		return nil
	}
	s.mu.Lock()
	if s.current == nil || s.current.ID != w.ID {
		s.mu.Unlock()
		s.logger.Debug().Str("workflow_id", w.ID).Msg("dropping update for non-current workflow")
		return nil
	}
	prev := s.current
	s.current = w.Clone()
	s.upsertHistoryLocked(w.Summary())
	s.mu.Unlock()

	s.notify()
	return prev
}

// CurrentWorkflow returns a deep copy of the current workflow, or nil.
func (s *Store) CurrentWorkflow() *domain.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// MarkWorkflowFailed force-fails the current workflow locally. Used when
// polling can no longer observe the backend; the local record is the best
// truth available. No-op when the id is not current.
func (s *Store) MarkWorkflowFailed(id, message string) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != id {
		s.mu.Unlock()
		return
	}
	s.current.Status = domain.WorkflowStatusFailed
	s.current.ErrorMessage = message
	s.polling = false
	s.upsertHistoryLocked(s.current.Summary())
	s.mu.Unlock()
	s.notify()
}

// CloseWorkflow clears the current workflow and manuscript and returns to the
// intake layout.
func (s *Store) CloseWorkflow() {
	s.mu.Lock()
	s.current = nil
	s.manuscript = nil
	s.polling = false
	s.layout = domain.LayoutIntake
	s.mu.Unlock()
	s.notify()
}

// SetManuscript caches the manuscript if it belongs to the current workflow.
func (s *Store) SetManuscript(m *domain.Manuscript) {
	if m == nil {
		return
	}
	s.mu.Lock()
	if s.current == nil || s.current.ID != m.WorkflowID {
		s.mu.Unlock()
		s.logger.Debug().Str("workflow_id", m.WorkflowID).Msg("dropping manuscript for non-current workflow")
		return
	}
	cp := *m
	s.manuscript = &cp
	s.mu.Unlock()
	s.notify()
}

// Manuscript returns the cached manuscript for the current workflow, or nil.
func (s *Store) Manuscript() *domain.Manuscript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manuscript == nil {
		return nil
	}
	cp := *s.manuscript
	return &cp
}

// SetPolling flips the polling indicator.
func (s *Store) SetPolling(on bool) {
	s.mu.Lock()
	changed := s.polling != on
	s.polling = on
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Polling reports whether the current workflow is running and its progress is
// being watched. False for a pending workflow even while it is fetched on
// schedule.
func (s *Store) Polling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polling
}

// UpsertHistory merges summaries into the history list, deduplicating by id.
// An existing entry is updated in place; new entries are prepended so the
// newest workflow lists first.
func (s *Store) UpsertHistory(summaries ...domain.WorkflowSummary) {
	if len(summaries) == 0 {
		return
	}
	s.mu.Lock()
	for _, sum := range summaries {
		s.upsertHistoryLocked(sum)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) upsertHistoryLocked(sum domain.WorkflowSummary) {
	for i := range s.history {
		if s.history[i].ID == sum.ID {
			s.history[i] = sum
			return
		}
	}
	s.history = append([]domain.WorkflowSummary{sum}, s.history...)
}

// RemoveFromHistory drops a workflow from the history list. If it is also
// the current workflow, the current record is closed.
func (s *Store) RemoveFromHistory(id string) {
	s.mu.Lock()
	for i := range s.history {
		if s.history[i].ID == id {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	closed := false
	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.manuscript = nil
		s.polling = false
		s.layout = domain.LayoutIntake
		closed = true
	}
	s.mu.Unlock()
	if closed {
		s.logger.Info().Str("workflow_id", id).Msg("current workflow deleted")
	}
	s.notify()
}

// History returns a copy of the history list, newest first.
func (s *Store) History() []domain.WorkflowSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WorkflowSummary(nil), s.history...)
}

// AppendMessage appends one transcript entry. The transcript is append-only
// within a session.
func (s *Store) AppendMessage(msg domain.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
}

// Messages returns a copy of the intake transcript.
func (s *Store) Messages() []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

// SetChatStage advances the intake flow.
func (s *Store) SetChatStage(stage domain.ChatStage) {
	s.mu.Lock()
	s.chatStage = stage
	s.mu.Unlock()
	s.notify()
}

// ChatStage returns the current intake flow stage.
func (s *Store) ChatStage() domain.ChatStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatStage
}

// SetForm replaces the intake form draft.
func (s *Store) SetForm(form domain.IntakeForm) {
	s.mu.Lock()
	s.form = form
	s.mu.Unlock()
	s.notify()
}

// Form returns a copy of the intake form draft.
func (s *Store) Form() domain.IntakeForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form := s.form
	form.Databases = append([]string(nil), s.form.Databases...)
	return form
}

// SetSessionExpired records whether the auth session is known to be expired.
// The view layer uses this to surface a re-login prompt.
func (s *Store) SetSessionExpired(expired bool) {
	s.mu.Lock()
	changed := s.sessionExpired != expired
	s.sessionExpired = expired
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SessionExpired reports whether the auth session is known to be expired.
func (s *Store) SessionExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionExpired
}

// ResetSession returns the store to its initial state, keeping only the
// workflow history. Used when starting a fresh review after a completed or
// failed one.
func (s *Store) ResetSession() {
	s.mu.Lock()
	s.layout = domain.LayoutIntake
	s.chatStage = domain.ChatStageQuestion
	s.form = domain.IntakeForm{}
	s.messages = nil
	s.current = nil
	s.manuscript = nil
	s.polling = false
	s.mu.Unlock()
	s.notify()
}
