package domain

import "time"

// AssignmentStatus enumerates the life of a technician offer.
type AssignmentStatus string

const (
	AssignmentPending     AssignmentStatus = "PENDING"
	AssignmentAccepted    AssignmentStatus = "ACCEPTED"
	AssignmentDeclined    AssignmentStatus = "DECLINED"
	AssignmentRescheduled AssignmentStatus = "RESCHEDULED"
)

// Assignment records offering a ticket to a technician and their response.
// One record per offer cycle; a superseding offer archives the old record
// instead of mutating it. Version guards every status change so a technician
// and a back-office operator cannot both win a concurrent update.
type Assignment struct {
	ID              string
	TicketID        string
	TechnicianID    string
	Status          AssignmentStatus
	ScheduledAt     time.Time
	ProposedTime    *time.Time
	ProposedEndTime *time.Time
	DeclineReasonID *string
	DeclineDetail   string
	Notes           string
	Archived        bool
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the assignment blocks a new offer. A rescheduled
// offer behaves as accepted with a counter-proposed time, so it stays active.
func (a *Assignment) IsActive() bool {
	if a == nil || a.Archived {
		return false
	}
	switch a.Status {
	case AssignmentPending, AssignmentAccepted, AssignmentRescheduled:
		return true
	}
	return false
}

// DeclineReason is master data labelling why a technician declined an offer.
type DeclineReason struct {
	ID       string
	Label    string
	IsActive bool
}
