package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/review-console/internal/domain"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name        string
		prev        domain.WorkflowStatus
		next        domain.WorkflowStatus
		changed     bool
		completed   bool
		failed      bool
		needsReview bool
		resumed     bool
	}{
		{
			name:    "same status is not an edge",
			prev:    domain.WorkflowStatusRunning,
			next:    domain.WorkflowStatusRunning,
			changed: false,
		},
		{
			name:      "running to completed",
			prev:      domain.WorkflowStatusRunning,
			next:      domain.WorkflowStatusCompleted,
			changed:   true,
			completed: true,
		},
		{
			name:    "running to failed",
			prev:    domain.WorkflowStatusRunning,
			next:    domain.WorkflowStatusFailed,
			changed: true,
			failed:  true,
		},
		{
			name:        "running to needs_review",
			prev:        domain.WorkflowStatusRunning,
			next:        domain.WorkflowStatusNeedsReview,
			changed:     true,
			needsReview: true,
		},
		{
			name:    "needs_review back to running",
			prev:    domain.WorkflowStatusNeedsReview,
			next:    domain.WorkflowStatusRunning,
			changed: true,
			resumed: true,
		},
		{
			name:      "repeated completed is not a second completion",
			prev:      domain.WorkflowStatusCompleted,
			next:      domain.WorkflowStatusCompleted,
			changed:   false,
			completed: false,
		},
		{
			name:      "unknown previous status counts as an edge",
			prev:      "",
			next:      domain.WorkflowStatusCompleted,
			changed:   true,
			completed: true,
		},
		{
			name:    "pending to running",
			prev:    domain.WorkflowStatusPending,
			next:    domain.WorkflowStatusRunning,
			changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Reconcile(tt.prev, tt.next)
			assert.Equal(t, tt.changed, tr.Changed())
			assert.Equal(t, tt.completed, tr.Completed())
			assert.Equal(t, tt.failed, tr.Failed())
			assert.Equal(t, tt.needsReview, tr.NeedsReview())
			assert.Equal(t, tt.resumed, tr.Resumed())
		})
	}
}

func TestReconcileSequenceFiresCompletionOnce(t *testing.T) {
	statuses := []domain.WorkflowStatus{
		domain.WorkflowStatusRunning,
		domain.WorkflowStatusCompleted,
		domain.WorkflowStatusCompleted,
	}

	completions := 0
	prev := domain.WorkflowStatusRunning
	for _, next := range statuses {
		if Reconcile(prev, next).Completed() {
			completions++
		}
		prev = next
	}
	assert.Equal(t, 1, completions)
}
