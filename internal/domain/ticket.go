package domain

import "time"

// Ticket is the aggregate for service requests. Its lifecycle position is
// entirely described by CurrentStageID within its workflow definition; IsOpen
// is derived from the stage's terminal flag and never set independently.
type Ticket struct {
	ID                string
	TenantID          string
	TicketNumber      int64
	Subject           string
	Description       string
	HelpTopicID       string
	PriorityID        string
	CompanyID         *string
	DeviceID          *string
	ProblemTypeID     *string
	WorkflowID        string
	CurrentStageID    string
	IsOpen            bool
	ApprovalHold      bool
	Tags              []string
	CustomFieldValues map[string]any
	Assignment        *Assignment
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasTag reports whether the ticket already carries the tag.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
