package api

import "github.com/helixir/review-console/internal/domain"

func toDomainWorkflow(r *workflowResponse) *domain.Workflow {
	w := &domain.Workflow{
		ID:               r.ID,
		ResearchQuestion: r.ResearchQuestion,
		Status:           domain.WorkflowStatus(r.Status),
		PapersFound:      r.PapersFound,
		PapersScreened:   r.PapersScreened,
		PapersIncluded:   r.PapersIncluded,
		CostEstimate:     r.CostEstimate,
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
	if len(r.Stages) > 0 {
		w.Stages = make([]domain.StageCheckpoint, len(r.Stages))
		for i := range r.Stages {
			w.Stages[i] = toDomainStage(&r.Stages[i])
		}
	}
	return w
}

func toDomainStage(r *stageResponse) domain.StageCheckpoint {
	st := domain.StageCheckpoint{
		Name:     r.Name,
		Status:   domain.StageStatus(r.Status),
		Attempts: r.Attempts,
		Error:    r.Error,
	}
	if r.Progress != nil {
		p := &domain.StageProgress{Counters: r.Progress.Counters}
		if len(r.Progress.RecentDecisions) > 0 {
			p.RecentDecisions = make([]domain.DecisionEvent, len(r.Progress.RecentDecisions))
			for i, d := range r.Progress.RecentDecisions {
				p.RecentDecisions[i] = domain.DecisionEvent{
					PaperTitle: d.PaperTitle,
					Decision:   d.Decision,
					Reason:     d.Reason,
					At:         d.At,
				}
			}
		}
		st.Progress = p
	}
	return st
}

func toDomainSummary(r *workflowSummaryResponse) domain.WorkflowSummary {
	return domain.WorkflowSummary{
		ID:               r.ID,
		ResearchQuestion: r.ResearchQuestion,
		Status:           domain.WorkflowStatus(r.Status),
		PapersFound:      r.PapersFound,
		PapersIncluded:   r.PapersIncluded,
		CreatedAt:        r.CreatedAt,
		CompletedAt:      r.CompletedAt,
	}
}

func toDomainManuscript(r *manuscriptResponse) *domain.Manuscript {
	m := &domain.Manuscript{
		WorkflowID:  r.WorkflowID,
		Title:       r.Title,
		Abstract:    r.Abstract,
		References:  r.References,
		GeneratedAt: r.GeneratedAt,
	}
	if len(r.Sections) > 0 {
		m.Sections = make([]domain.ManuscriptSection, len(r.Sections))
		for i, s := range r.Sections {
			m.Sections[i] = domain.ManuscriptSection{Heading: s.Heading, Content: s.Content}
		}
	}
	return m
}
