package domain

// Stage is a named step in a ticket workflow.
type Stage struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Order               int      `json:"order"`
	IsInitial           bool     `json:"is_initial"`
	IsTerminal          bool     `json:"is_terminal"`
	IsSuccess           bool     `json:"is_success"`
	IsFailure           bool     `json:"is_failure"`
	AllowedNextStageIDs []string `json:"allowed_next_stage_ids"`
}

// AllowsNext reports whether targetID is a permitted successor of the stage.
func (s *Stage) AllowsNext(targetID string) bool {
	for _, id := range s.AllowedNextStageIDs {
		if id == targetID {
			return true
		}
	}
	return false
}

// WorkflowDefinition owns the ordered stages for one ticket type, plus the
// intake constraints checked before a ticket leaves its initial stage.
// Exactly one stage has IsInitial set; terminal stages have no successors.
type WorkflowDefinition struct {
	ID              string
	TenantID        string
	TicketTypeID    string
	Name            string
	RequiresDevice  bool
	RequiresCompany bool
	// AcceptedStageID, when set, is the stage entered automatically after a
	// technician accepts or reschedules an offer.
	AcceptedStageID *string
	Stages          []Stage
}

// StageByID looks up a stage belonging to this workflow.
func (w *WorkflowDefinition) StageByID(id string) (*Stage, bool) {
	for i := range w.Stages {
		if w.Stages[i].ID == id {
			return &w.Stages[i], true
		}
	}
	return nil, false
}

// InitialStage returns the workflow's entry stage.
func (w *WorkflowDefinition) InitialStage() (*Stage, bool) {
	for i := range w.Stages {
		if w.Stages[i].IsInitial {
			return &w.Stages[i], true
		}
	}
	return nil, false
}
