package api

import "time"

// Wire types for the backend review API. Responses are validated at the
// decode boundary before being converted to domain models, so a malformed or
// mislabeled payload is rejected instead of leaking into the state store.

// createWorkflowRequest is the body for POST /api/v1/reviews.
type createWorkflowRequest struct {
	ResearchQuestion  string   `json:"research_question" validate:"required,min=10"`
	InclusionCriteria string   `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria string   `json:"exclusion_criteria,omitempty"`
	Databases         []string `json:"databases,omitempty"`
}

// workflowResponse is the wire form of a workflow record.
type workflowResponse struct {
	ID               string          `json:"id" validate:"required"`
	ResearchQuestion string          `json:"research_question" validate:"required"`
	Status           string          `json:"status" validate:"required,oneof=pending running needs_review completed failed"`
	PapersFound      int             `json:"papers_found" validate:"min=0"`
	PapersScreened   int             `json:"papers_screened" validate:"min=0"`
	PapersIncluded   int             `json:"papers_included" validate:"min=0"`
	Stages           []stageResponse `json:"stages,omitempty" validate:"dive"`
	CostEstimate     float64         `json:"cost_estimate" validate:"min=0"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at" validate:"required"`
	UpdatedAt        time.Time       `json:"updated_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// stageResponse is the wire form of one stage checkpoint.
type stageResponse struct {
	Name     string                 `json:"name" validate:"required"`
	Status   string                 `json:"status" validate:"required,oneof=pending in_progress completed failed skipped"`
	Attempts int                    `json:"attempts" validate:"min=0"`
	Error    string                 `json:"error,omitempty"`
	Progress *stageProgressResponse `json:"progress,omitempty"`
}

// stageProgressResponse is the live-progress payload for an in-progress stage.
type stageProgressResponse struct {
	Counters        map[string]int          `json:"counters,omitempty"`
	RecentDecisions []decisionEventResponse `json:"recent_decisions,omitempty" validate:"max=50,dive"`
}

// decisionEventResponse is one screening decision in the live feed.
type decisionEventResponse struct {
	PaperTitle string    `json:"paper_title" validate:"required"`
	Decision   string    `json:"decision" validate:"required"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// workflowListResponse is the wire form of GET /api/v1/reviews.
type workflowListResponse struct {
	Workflows []workflowSummaryResponse `json:"workflows" validate:"dive"`
	Total     int                       `json:"total" validate:"min=0"`
}

// workflowSummaryResponse is the lightweight history entry for a workflow.
type workflowSummaryResponse struct {
	ID               string     `json:"id" validate:"required"`
	ResearchQuestion string     `json:"research_question" validate:"required"`
	Status           string     `json:"status" validate:"required,oneof=pending running needs_review completed failed"`
	PapersFound      int        `json:"papers_found" validate:"min=0"`
	PapersIncluded   int        `json:"papers_included" validate:"min=0"`
	CreatedAt        time.Time  `json:"created_at" validate:"required"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// manuscriptResponse is the wire form of a generated manuscript.
type manuscriptResponse struct {
	WorkflowID  string                      `json:"workflow_id" validate:"required"`
	Title       string                      `json:"title" validate:"required"`
	Abstract    string                      `json:"abstract,omitempty"`
	Sections    []manuscriptSectionResponse `json:"sections,omitempty" validate:"dive"`
	References  []string                    `json:"references,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// manuscriptSectionResponse is one titled block of manuscript content.
type manuscriptSectionResponse struct {
	Heading string `json:"heading" validate:"required"`
	Content string `json:"content"`
}

// rerunStageResponse is the wire form of a stage re-run acknowledgement.
type rerunStageResponse struct {
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Cost    float64 `json:"cost" validate:"min=0"`
}

// apiErrorResponse is the backend's error envelope.
type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
