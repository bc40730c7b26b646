package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStatus_IsTerminal(t *testing.T) {
	testCases := []struct {
		status   WorkflowStatus
		terminal bool
	}{
		{WorkflowStatusPending, false},
		{WorkflowStatusRunning, false},
		{WorkflowStatusNeedsReview, false},
		{WorkflowStatusCompleted, true},
		{WorkflowStatusFailed, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.terminal, tc.status.IsTerminal())
		})
	}
}

func TestWorkflowStatus_IsPollable(t *testing.T) {
	testCases := []struct {
		status   WorkflowStatus
		pollable bool
	}{
		{WorkflowStatusPending, true},
		{WorkflowStatusRunning, true},
		{WorkflowStatusNeedsReview, false},
		{WorkflowStatusCompleted, false},
		{WorkflowStatusFailed, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.pollable, tc.status.IsPollable())
		})
	}
}

func TestWorkflowStatus_Valid(t *testing.T) {
	assert.True(t, WorkflowStatusRunning.Valid())
	assert.False(t, WorkflowStatus("exploded").Valid())
	assert.False(t, WorkflowStatus("").Valid())
}

func TestWorkflow_Duration(t *testing.T) {
	t.Run("zero before start", func(t *testing.T) {
		w := &Workflow{}
		assert.Zero(t, w.Duration())
	})

	t.Run("total once completed", func(t *testing.T) {
		started := time.Now().Add(-10 * time.Minute)
		completed := started.Add(4 * time.Minute)
		w := &Workflow{StartedAt: &started, CompletedAt: &completed}
		assert.Equal(t, 4*time.Minute, w.Duration())
	})

	t.Run("elapsed while running", func(t *testing.T) {
		started := time.Now().Add(-time.Minute)
		w := &Workflow{StartedAt: &started}
		assert.Greater(t, w.Duration(), 50*time.Second)
	})
}

func TestWorkflow_ErrorText(t *testing.T) {
	t.Run("prefers top-level message", func(t *testing.T) {
		w := &Workflow{
			ErrorMessage: "search backend unavailable",
			Stages: []StageCheckpoint{
				{Name: "screening", Status: StageStatusFailed, Error: "stage boom"},
			},
		}
		assert.Equal(t, "search backend unavailable", w.ErrorText())
	})

	t.Run("falls back to first failed stage", func(t *testing.T) {
		w := &Workflow{
			Stages: []StageCheckpoint{
				{Name: "search", Status: StageStatusCompleted},
				{Name: "screening", Status: StageStatusFailed, Error: "screening model quota exceeded"},
				{Name: "extraction", Status: StageStatusFailed, Error: "later failure"},
			},
		}
		assert.Equal(t, "screening model quota exceeded", w.ErrorText())
	})

	t.Run("empty when nothing failed", func(t *testing.T) {
		w := &Workflow{Stages: []StageCheckpoint{{Name: "search", Status: StageStatusCompleted}}}
		assert.Empty(t, w.ErrorText())
	})
}

func TestWorkflow_ActiveStage(t *testing.T) {
	w := &Workflow{
		Stages: []StageCheckpoint{
			{Name: "search", Status: StageStatusCompleted},
			{Name: "screening", Status: StageStatusInProgress},
			{Name: "extraction", Status: StageStatusPending},
		},
	}

	active := w.ActiveStage()
	require.NotNil(t, active)
	assert.Equal(t, "screening", active.Name)

	assert.Nil(t, (&Workflow{}).ActiveStage())
}

func TestWorkflow_Clone(t *testing.T) {
	started := time.Now().Add(-time.Hour)
	w := &Workflow{
		ID:     "wf-1",
		Status: WorkflowStatusRunning,
		Stages: []StageCheckpoint{
			{
				Name:   "screening",
				Status: StageStatusInProgress,
				Progress: &StageProgress{
					Counters:        map[string]int{"abstracts_screened": 12},
					RecentDecisions: []DecisionEvent{{PaperTitle: "A", Decision: "include"}},
				},
			},
		},
		StartedAt: &started,
	}

	cp := w.Clone()
	require.NotNil(t, cp)
	assert.Equal(t, w, cp)

	// Mutating the clone must not leak into the original.
	cp.Stages[0].Progress.Counters["abstracts_screened"] = 99
	cp.Stages[0].Progress.RecentDecisions[0].Decision = "exclude"
	*cp.StartedAt = time.Now()

	assert.Equal(t, 12, w.Stages[0].Progress.Counters["abstracts_screened"])
	assert.Equal(t, "include", w.Stages[0].Progress.RecentDecisions[0].Decision)
	assert.Equal(t, started, *w.StartedAt)
}

func TestWorkflow_Summary(t *testing.T) {
	completed := time.Now()
	w := &Workflow{
		ID:               "wf-2",
		ResearchQuestion: "Does X improve Y?",
		Status:           WorkflowStatusCompleted,
		PapersFound:      42,
		PapersIncluded:   7,
		CompletedAt:      &completed,
	}

	s := w.Summary()
	assert.Equal(t, "wf-2", s.ID)
	assert.Equal(t, WorkflowStatusCompleted, s.Status)
	assert.Equal(t, 42, s.PapersFound)
	assert.Equal(t, 7, s.PapersIncluded)
	require.NotNil(t, s.CompletedAt)
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("workflow", "wf-404")
	assert.EqualError(t, err, "workflow not found: wf-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("status", "unknown value")
	assert.EqualError(t, err, "validation error: status: unknown value")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
