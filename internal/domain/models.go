// Package domain provides domain models shared by the review console's
// polling, synchronization and state-store layers.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus represents the lifecycle states of a server-side review
// workflow. The backend is authoritative for these values.
type WorkflowStatus string

const (
	WorkflowStatusPending     WorkflowStatus = "pending"
	WorkflowStatusRunning     WorkflowStatus = "running"
	WorkflowStatusNeedsReview WorkflowStatus = "needs_review"
	WorkflowStatusCompleted   WorkflowStatus = "completed"
	WorkflowStatusFailed      WorkflowStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will
// not change without user action. needs_review is not terminal: a resume
// request moves the workflow back toward running.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// IsPollable returns true if the status justifies active polling. A workflow
// waiting on a human (needs_review) is not polled; resuming it re-arms
// polling.
func (s WorkflowStatus) IsPollable() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning:
		return true
	default:
		return false
	}
}

// Valid returns true if the status is one of the known lifecycle values.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusNeedsReview,
		WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// StageStatus represents the state of a single workflow stage checkpoint.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
	StageStatusSkipped    StageStatus = "skipped"
)

// LayoutMode selects which screen the view layer renders.
type LayoutMode string

const (
	// LayoutIntake is the chat-driven intake flow for starting a new review.
	LayoutIntake LayoutMode = "intake"
	// LayoutReview is the workflow progress viewer.
	LayoutReview LayoutMode = "review"
	// LayoutEditor is the manuscript editor, entered when a workflow completes.
	LayoutEditor LayoutMode = "editor"
)

// ChatRole identifies the author of a transcript message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one entry in the intake transcript. The transcript is
// append-only for the lifetime of a session and is never persisted.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatMessage creates a transcript message with a fresh id and timestamp.
func NewChatMessage(role ChatRole, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// ChatStage tracks how far the user has progressed through the intake flow.
// The stage (but not the transcript) survives a reload.
type ChatStage string

const (
	ChatStageQuestion  ChatStage = "question"
	ChatStageCriteria  ChatStage = "criteria"
	ChatStageDatabases ChatStage = "databases"
	ChatStageConfirm   ChatStage = "confirm"
	ChatStageSubmitted ChatStage = "submitted"
)

// IntakeForm is the draft collected by the intake flow before a workflow is
// created. It is persisted as a session-resume hint.
type IntakeForm struct {
	ResearchQuestion  string   `json:"research_question"`
	InclusionCriteria string   `json:"inclusion_criteria"`
	ExclusionCriteria string   `json:"exclusion_criteria"`
	Databases         []string `json:"databases,omitempty"`
}
