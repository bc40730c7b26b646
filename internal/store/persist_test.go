package store

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-console/internal/domain"
)

func TestSnapshotRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = ".revcon/session.json"

	s := newTestStore()
	s.SetChatStage(domain.ChatStageConfirm)
	s.SetForm(domain.IntakeForm{
		ResearchQuestion:  "Does exercise improve cognition in older adults?",
		InclusionCriteria: "RCTs",
		Databases:         []string{"pubmed"},
	})
	s.UpsertHistory(domain.WorkflowSummary{
		ID:        "wf-1",
		Status:    domain.WorkflowStatusCompleted,
		CreatedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, s.Save(fs, path))

	restored := newTestStore()
	require.NoError(t, restored.Restore(fs, path))

	assert.Equal(t, domain.ChatStageConfirm, restored.ChatStage())
	assert.Equal(t, "Does exercise improve cognition in older adults?", restored.Form().ResearchQuestion)
	assert.Equal(t, []string{"pubmed"}, restored.Form().Databases)

	history := restored.History()
	require.Len(t, history, 1)
	assert.Equal(t, "wf-1", history[0].ID)
}

func TestRestoreNeverRevivesLiveRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = "session.json"

	s := newTestStore()
	s.OpenWorkflow(testWorkflow("wf-1", domain.WorkflowStatusRunning))
	s.AppendMessage(domain.NewChatMessage(domain.ChatRoleUser, "hello"))
	require.True(t, s.Polling())
	require.NoError(t, s.Save(fs, path))

	restored := newTestStore()
	require.NoError(t, restored.Restore(fs, path))

	assert.Nil(t, restored.CurrentWorkflow(), "workflow records are re-derived from the backend")
	assert.Nil(t, restored.Manuscript())
	assert.Empty(t, restored.Messages())
	assert.False(t, restored.Polling(), "a restored session never silently resumes polling")

	// The summary survives in history even though the record does not.
	require.Len(t, restored.History(), 1)
}

func TestRestoreEditorLayoutFallsBackToIntake(t *testing.T) {
	fs := afero.NewMemMapFs()
	const path = "session.json"

	s := newTestStore()
	s.SetLayout(domain.LayoutEditor)
	require.NoError(t, s.Save(fs, path))

	restored := newTestStore()
	require.NoError(t, restored.Restore(fs, path))
	assert.Equal(t, domain.LayoutIntake, restored.Layout(),
		"editor layout has nothing to show without a persisted manuscript")
}

func TestRestoreMissingFileIsNoop(t *testing.T) {
	s := newTestStore()
	s.SetChatStage(domain.ChatStageCriteria)

	require.NoError(t, s.Restore(afero.NewMemMapFs(), "absent.json"))
	assert.Equal(t, domain.ChatStageCriteria, s.ChatStage(), "state is untouched when no snapshot exists")
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "session.json", []byte("{broken"), 0o600))

	s := newTestStore()
	require.Error(t, s.Restore(fs, "session.json"))
}

func TestRestoreIgnoresUnsupportedVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "session.json",
		[]byte(`{"version": 99, "layout": "review", "chat_stage": "confirm"}`), 0o600))

	s := newTestStore()
	require.NoError(t, s.Restore(fs, "session.json"))
	assert.Equal(t, domain.LayoutIntake, s.Layout())
	assert.Equal(t, domain.ChatStageQuestion, s.ChatStage())
}
