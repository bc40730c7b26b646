package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/review-console/internal/domain"
	"github.com/helixir/review-console/internal/observability"
	"github.com/helixir/review-console/internal/poll"
	"github.com/helixir/review-console/internal/store"
)

// Backend is the slice of the API client the synchronizer needs.
type Backend interface {
	CreateWorkflow(ctx context.Context, form domain.IntakeForm) (*domain.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
	GetManuscript(ctx context.Context, workflowID string) (*domain.Manuscript, error)
	DeleteWorkflow(ctx context.Context, id string) error
	ResumeWorkflow(ctx context.Context, id string) (*domain.Workflow, error)
	RerunStage(ctx context.Context, id, stage string) (*domain.StageRerunResult, error)
}

// Config configures a Synchronizer.
type Config struct {
	// Backend performs workflow operations. Required.
	Backend Backend
	// Store receives all state updates. Required.
	Store *store.Store
	// Interval is the poll interval. Defaults to poll.DefaultInterval.
	Interval time.Duration
	// Jitter is the maximum random addition to each poll interval.
	Jitter time.Duration
	// Logger is used for synchronization diagnostics.
	Logger zerolog.Logger
	// Metrics records poll and transition counters. Optional.
	Metrics *observability.Metrics
}

// Synchronizer watches one workflow at a time. Every successful poll replaces
// the store's record wholesale; status edges trigger their side effects
// exactly once. A fetch failure fail-stops the watch and marks the local
// record failed, since the backend can no longer be observed.
type Synchronizer struct {
	backend  Backend
	store    *store.Store
	interval time.Duration
	jitter   time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	poller  *poll.Poller[*domain.Workflow]
	watchID string
}

// New creates a Synchronizer.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = poll.DefaultInterval
	}
	return &Synchronizer{
		backend:  cfg.Backend,
		store:    cfg.Store,
		interval: cfg.Interval,
		jitter:   cfg.Jitter,
		logger:   cfg.Logger.With().Str("component", "syncer").Logger(),
		metrics:  cfg.Metrics,
	}, nil
}

// Create starts a new review from the intake form and tracks the resulting
// workflow. The intake flow is marked submitted.
func (s *Synchronizer) Create(ctx context.Context, form domain.IntakeForm) (*domain.Workflow, error) {
	w, err := s.backend.CreateWorkflow(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	s.store.SetChatStage(domain.ChatStageSubmitted)
	s.Track(ctx, w)
	return w, nil
}

// Delete removes a workflow on the backend and from the local history.
// Deleting the currently tracked workflow stops its poller and closes the
// current view.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteWorkflow(observability.WithWorkflowID(ctx, id), id); err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	s.mu.Lock()
	if s.watchID == id {
		s.stopPollerLocked()
		s.watchID = ""
	}
	s.mu.Unlock()
	s.store.RemoveFromHistory(id)
	s.logger.Info().Str("workflow_id", id).Msg("workflow deleted")
	return nil
}

// Watch fetches the workflow and starts tracking it.
func (s *Synchronizer) Watch(ctx context.Context, id string) (*domain.Workflow, error) {
	w, err := s.backend.GetWorkflow(observability.WithWorkflowID(ctx, id), id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}
	s.Track(ctx, w)
	return w, nil
}

// Track makes the given workflow the current one and arms polling if its
// status justifies it. Tracking an already-terminal workflow runs the
// terminal side effects (manuscript fetch, transcript message) immediately,
// since the edge from "never seen" to the terminal status is still an edge.
func (s *Synchronizer) Track(ctx context.Context, w *domain.Workflow) {
	if w == nil {
		return
	}
	s.mu.Lock()
	s.stopPollerLocked()
	s.watchID = w.ID
	s.mu.Unlock()

	s.store.OpenWorkflow(w)
	s.runSideEffects(ctx, Reconcile("", w.Status), w)

	if w.Status.IsPollable() {
		s.startPolling(ctx, w)
	}
	s.logger.Info().
		Str("workflow_id", w.ID).
		Str("status", string(w.Status)).
		Bool("polling", w.Status.IsPollable()).
		Msg("tracking workflow")
}

// Resume asks the backend to continue the current workflow out of
// needs_review and re-arms polling against the post-resume record.
func (s *Synchronizer) Resume(ctx context.Context) error {
	current := s.store.CurrentWorkflow()
	if current == nil {
		return domain.NewNotFoundError("workflow", "current")
	}
	if current.Status != domain.WorkflowStatusNeedsReview {
		return fmt.Errorf("%w: workflow %s is %s, only needs_review can be resumed",
			domain.ErrInvalidInput, current.ID, current.Status)
	}

	w, err := s.backend.ResumeWorkflow(observability.WithWorkflowID(ctx, current.ID), current.ID)
	if err != nil {
		return fmt.Errorf("failed to resume workflow %s: %w", current.ID, err)
	}
	s.logger.Info().Str("workflow_id", w.ID).Str("status", string(w.Status)).Msg("workflow resumed")

	s.apply(ctx, w)
	if w.Status.IsPollable() {
		s.startPolling(ctx, w)
	}
	return nil
}

// RerunStage requests a re-run of one stage of the current workflow, then
// re-fetches the record so the store reflects the post-rerun state. Polling
// is re-armed if the rerun put the workflow back in motion.
func (s *Synchronizer) RerunStage(ctx context.Context, stage string) (*domain.StageRerunResult, error) {
	current := s.store.CurrentWorkflow()
	if current == nil {
		return nil, domain.NewNotFoundError("workflow", "current")
	}

	ctx = observability.WithWorkflowID(ctx, current.ID)
	result, err := s.backend.RerunStage(ctx, current.ID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to rerun stage %s: %w", stage, err)
	}
	logger := observability.WithStageContext(s.logger, current.ID, stage, stageAttempt(current, stage))
	logger.Info().Bool("success", result.Success).Msg("stage rerun requested")

	w, err := s.backend.GetWorkflow(ctx, current.ID)
	if err != nil {
		return result, fmt.Errorf("stage rerun accepted but refetch failed: %w", err)
	}
	s.apply(ctx, w)
	if w.Status.IsPollable() {
		s.startPolling(ctx, w)
	}
	return result, nil
}

// stageAttempt is the attempt number a rerun of the named stage will carry.
func stageAttempt(w *domain.Workflow, stage string) int {
	for i := range w.Stages {
		if w.Stages[i].Name == stage {
			return w.Stages[i].Attempts + 1
		}
	}
	return 1
}

// Refetch triggers an immediate out-of-schedule poll of the watched workflow.
func (s *Synchronizer) Refetch() {
	s.mu.Lock()
	p := s.poller
	s.mu.Unlock()
	if p != nil {
		p.Refetch()
	}
}

// Polling reports whether a poller is currently armed.
func (s *Synchronizer) Polling() bool {
	s.mu.Lock()
	p := s.poller
	s.mu.Unlock()
	return p != nil && p.Polling()
}

// Stop halts polling. The store keeps its last observed state.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.stopPollerLocked()
	s.mu.Unlock()
	s.store.SetPolling(false)
}

func (s *Synchronizer) stopPollerLocked() {
	if s.poller != nil {
		if s.poller.Polling() && s.metrics != nil {
			s.metrics.PollerStopped()
		}
		s.poller.Stop()
		s.poller = nil
	}
}

// startPolling arms a fresh poller for the workflow. Any previous poller is
// stopped first so at most one poll chain exists at a time.
func (s *Synchronizer) startPolling(ctx context.Context, w *domain.Workflow) {
	id := w.ID
	s.mu.Lock()
	s.stopPollerLocked()
	s.watchID = id

	p := poll.New(poll.Config[*domain.Workflow]{
		Interval: s.interval,
		Jitter:   s.jitter,
		Fetch: func(ctx context.Context) (*domain.Workflow, error) {
			return s.backend.GetWorkflow(observability.WithWorkflowID(ctx, id), id)
		},
		OnSuccess: func(w *domain.Workflow) {
			if s.metrics != nil {
				s.metrics.RecordPollTick()
			}
			s.apply(ctx, w)
		},
		OnError: func(err error) {
			s.handlePollError(id, err)
		},
		ShouldStop: func(w *domain.Workflow) bool {
			stop := !w.Status.IsPollable()
			if stop && s.metrics != nil {
				s.metrics.PollerStopped()
			}
			return stop
		},
	})
	s.poller = p
	s.mu.Unlock()

	if err := p.Start(ctx); err != nil {
		s.logger.Error().Err(err).Str("workflow_id", id).Msg("failed to arm poller")
		return
	}
	if s.metrics != nil {
		s.metrics.PollerStarted()
	}
	// Pending keeps the flag off so the view shows a waiting state until the
	// workflow actually starts running.
	s.store.SetPolling(w.Status == domain.WorkflowStatusRunning)
}

// apply ingests one fetched record: the store copy is replaced wholesale and
// edge side effects run against the previous status.
func (s *Synchronizer) apply(ctx context.Context, next *domain.Workflow) {
	prev := s.store.ReplaceWorkflow(next)
	if prev == nil {
		// The workflow is no longer current; nothing to reconcile.
		return
	}
	s.runSideEffects(ctx, Reconcile(prev.Status, next.Status), next)
}

// runSideEffects executes the per-edge side effects. Each effect fires only
// on its edge, so redelivered or repeated statuses are no-ops.
func (s *Synchronizer) runSideEffects(ctx context.Context, tr Transition, w *domain.Workflow) {
	logger := observability.WithWorkflowContext(s.logger, w.ID, string(w.Status))

	if tr.Changed() {
		logger.Info().Str("from", string(tr.From)).Msg("workflow status changed")
		if s.metrics != nil {
			s.metrics.RecordStatusTransition(string(tr.From), string(tr.To))
		}
	}

	switch {
	case tr.Completed():
		s.onCompleted(ctx, w, logger)
	case tr.Failed():
		s.onFailed(w)
	case tr.NeedsReview():
		s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
			"The review is paused and needs your input. Inspect the screening results, then resume to continue."))
	case tr.Resumed():
		s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
			"The review is running again."))
	}

	s.store.SetPolling(w.Status == domain.WorkflowStatusRunning && s.Polling())
}

// onCompleted fetches the manuscript once and moves the console to the
// editor. The edge trigger plus the cached-manuscript check keep the fetch
// from repeating even if the completed status is observed again.
func (s *Synchronizer) onCompleted(ctx context.Context, w *domain.Workflow, logger zerolog.Logger) {
	if s.store.Manuscript() != nil {
		return
	}
	m, err := s.backend.GetManuscript(observability.WithWorkflowID(ctx, w.ID), w.ID)
	if err != nil {
		logger.Error().Err(err).Msg("workflow completed but manuscript fetch failed")
		s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
			"The review finished, but the manuscript could not be retrieved: "+err.Error()))
		return
	}
	s.store.SetManuscript(m)
	s.store.SetLayout(domain.LayoutEditor)
	s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
		"The review is complete. Your manuscript draft is ready."))
	logger.Info().Str("title", m.Title).Msg("manuscript loaded")
}

// onFailed surfaces the failure in the transcript and returns to intake so a
// new review can be started.
func (s *Synchronizer) onFailed(w *domain.Workflow) {
	text := "The review failed."
	if msg := w.ErrorText(); msg != "" {
		text = "The review failed: " + msg
	}
	s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem, text))
	s.store.SetLayout(domain.LayoutIntake)
}

// handlePollError runs when a poll fetch fails and the poller fail-stops.
// With no way to observe the backend, the local record is marked failed so
// the user is not left watching a workflow that silently stopped updating.
func (s *Synchronizer) handlePollError(id string, err error) {
	s.logger.Error().Err(err).Str("workflow_id", id).Msg("poll fetch failed, halting watch")
	if s.metrics != nil {
		s.metrics.RecordPollError()
		s.metrics.PollerStopped()
	}
	s.store.MarkWorkflowFailed(id, "lost connection to the review service: "+err.Error())
	if errors.Is(err, domain.ErrSessionExpired) {
		s.store.SetSessionExpired(true)
		s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
			"Your session expired. Sign in again to keep tracking the workflow."))
	} else {
		s.store.AppendMessage(domain.NewChatMessage(domain.ChatRoleSystem,
			"Lost connection to the review service while tracking the workflow. "+
				"Check your network and reopen the workflow to retry."))
	}
	s.store.SetPolling(false)
}
