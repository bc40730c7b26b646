package domain

import "time"

// Workflow represents one server-side review job as observed by the client.
// The record in the state store is the single source of truth; polling
// replaces it wholesale on every successful fetch.
type Workflow struct {
	// ID is the opaque server-assigned identifier, immutable once created.
	ID string `json:"id"`

	// ResearchQuestion is the question the review was started from.
	ResearchQuestion string `json:"research_question"`

	// Status is the server-authoritative lifecycle state.
	Status WorkflowStatus `json:"status"`

	// Progress counts. Monotonically non-decreasing while the workflow runs;
	// reset only by creating a new workflow.
	PapersFound    int `json:"papers_found"`
	PapersScreened int `json:"papers_screened"`
	PapersIncluded int `json:"papers_included"`

	// Stages are the ordered per-stage checkpoints. At most one stage should
	// be in_progress at a time under normal operation.
	Stages []StageCheckpoint `json:"stages,omitempty"`

	// CostEstimate is the accumulated cost estimate in USD, monotonically
	// non-decreasing.
	CostEstimate float64 `json:"cost_estimate"`

	// ErrorMessage is set when Status is failed; stage-level failures carry
	// their message on the checkpoint instead.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StageCheckpoint is one named stage of the review pipeline with its own
// status and retry count.
type StageCheckpoint struct {
	// Name identifies the stage (e.g., "search", "screening", "extraction").
	Name string `json:"name"`

	// Status is the stage lifecycle state.
	Status StageStatus `json:"status"`

	// Attempts counts how many times this stage has been run or re-run.
	Attempts int `json:"attempts"`

	// Error carries the stage-specific failure message, if any.
	Error string `json:"error,omitempty"`

	// Progress is the optional live-progress payload for the stage currently
	// in progress.
	Progress *StageProgress `json:"progress,omitempty"`
}

// StageProgress holds free-form counters plus a rolling buffer of recent
// decision events for the stage that is in progress.
type StageProgress struct {
	// Counters are stage-specific counts (e.g., "abstracts_screened": 120).
	Counters map[string]int `json:"counters,omitempty"`

	// RecentDecisions is a bounded buffer of the latest screening decisions,
	// newest last. The server trims it; the client never grows it.
	RecentDecisions []DecisionEvent `json:"recent_decisions,omitempty"`
}

// DecisionEvent is one screening decision surfaced in the live progress feed.
type DecisionEvent struct {
	PaperTitle string    `json:"paper_title"`
	Decision   string    `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Duration returns the elapsed time of the workflow: zero before it starts,
// elapsed-so-far while running, total once completed.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil {
		return 0
	}
	if w.CompletedAt != nil {
		return w.CompletedAt.Sub(*w.StartedAt)
	}
	return time.Since(*w.StartedAt)
}

// ErrorText returns the most specific failure message available: the
// top-level error if set, otherwise the first failed stage's error.
func (w *Workflow) ErrorText() string {
	if w.ErrorMessage != "" {
		return w.ErrorMessage
	}
	for i := range w.Stages {
		if w.Stages[i].Status == StageStatusFailed && w.Stages[i].Error != "" {
			return w.Stages[i].Error
		}
	}
	return ""
}

// ActiveStage returns the stage currently in progress, or nil if none is.
func (w *Workflow) ActiveStage() *StageCheckpoint {
	for i := range w.Stages {
		if w.Stages[i].Status == StageStatusInProgress {
			return &w.Stages[i]
		}
	}
	return nil
}

// Stage returns the checkpoint with the given name, or nil if absent.
func (w *Workflow) Stage(name string) *StageCheckpoint {
	for i := range w.Stages {
		if w.Stages[i].Name == name {
			return &w.Stages[i]
		}
	}
	return nil
}

// Summary reduces the workflow to the lightweight history entry kept in the
// persisted store subset.
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:               w.ID,
		ResearchQuestion: w.ResearchQuestion,
		Status:           w.Status,
		PapersFound:      w.PapersFound,
		PapersIncluded:   w.PapersIncluded,
		CreatedAt:        w.CreatedAt,
		CompletedAt:      w.CompletedAt,
	}
}

// Clone returns a deep copy of the workflow so that store readers never
// share mutable slices with store writers.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	cp := *w
	if w.Stages != nil {
		cp.Stages = make([]StageCheckpoint, len(w.Stages))
		for i, st := range w.Stages {
			cp.Stages[i] = st
			if st.Progress != nil {
				p := StageProgress{}
				if st.Progress.Counters != nil {
					p.Counters = make(map[string]int, len(st.Progress.Counters))
					for k, v := range st.Progress.Counters {
						p.Counters[k] = v
					}
				}
				p.RecentDecisions = append([]DecisionEvent(nil), st.Progress.RecentDecisions...)
				cp.Stages[i].Progress = &p
			}
		}
	}
	if w.StartedAt != nil {
		t := *w.StartedAt
		cp.StartedAt = &t
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// WorkflowSummary is the history-list entry for a workflow. Summaries are
// deduplicated by id on ingest and are the only workflow data that survives
// a reload.
type WorkflowSummary struct {
	ID               string         `json:"id"`
	ResearchQuestion string         `json:"research_question"`
	Status           WorkflowStatus `json:"status"`
	PapersFound      int            `json:"papers_found"`
	PapersIncluded   int            `json:"papers_included"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// Manuscript is the derived artifact of a completed workflow. It is fetched
// exactly once per completed workflow, cached in the store keyed by workflow
// id, and replaced wholesale, never partially mutated.
type Manuscript struct {
	WorkflowID  string              `json:"workflow_id"`
	Title       string              `json:"title"`
	Abstract    string              `json:"abstract,omitempty"`
	Sections    []ManuscriptSection `json:"sections,omitempty"`
	References  []string            `json:"references,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// ManuscriptSection is one titled block of manuscript content.
type ManuscriptSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// StageRerunResult is the backend's response to a stage re-run request.
type StageRerunResult struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Cost    float64 `json:"cost"`
}
