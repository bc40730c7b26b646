// Package syncer keeps the local state store in step with the backend's view
// of the current workflow. It polls the workflow record, replaces the local
// copy wholesale, and runs side effects exactly once per status edge by
// comparing the previous and new status explicitly instead of reacting to
// every poll tick.
package syncer

import "github.com/helixir/review-console/internal/domain"

// Transition is one observed status edge. The zero From value means the
// previous status was unknown (first observation of a workflow), which counts
// as an edge so that opening an already-completed workflow still triggers its
// completion side effects.
type Transition struct {
	From domain.WorkflowStatus
	To   domain.WorkflowStatus
}

// Reconcile compares the previous and new status of a workflow. It is pure:
// callers decide what to do with the resulting edge.
func Reconcile(prev, next domain.WorkflowStatus) Transition {
	return Transition{From: prev, To: next}
}

// Changed reports whether the status actually moved. Repeated observations of
// the same status are not edges, which is what makes edge-triggered side
// effects idempotent under re-delivery.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Completed reports a fresh arrival at the completed status.
func (t Transition) Completed() bool {
	return t.Changed() && t.To == domain.WorkflowStatusCompleted
}

// Failed reports a fresh arrival at the failed status.
func (t Transition) Failed() bool {
	return t.Changed() && t.To == domain.WorkflowStatusFailed
}

// NeedsReview reports a fresh arrival at the needs_review status.
func (t Transition) NeedsReview() bool {
	return t.Changed() && t.To == domain.WorkflowStatusNeedsReview
}

// Resumed reports that a paused workflow went back to making progress.
func (t Transition) Resumed() bool {
	return t.From == domain.WorkflowStatusNeedsReview && t.To.IsPollable()
}
