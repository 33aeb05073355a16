package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// Event represents a ticket lifecycle event flowing through the engine. The
// Trigger doubles as the rule-matching key.
type Event struct {
	ID        string              `json:"id"`
	Trigger   domain.TriggerEvent `json:"trigger"`
	TenantID  string              `json:"tenant_id"`
	TicketID  string              `json:"ticket_id"`
	Actor     domain.Actor        `json:"actor"`
	Timestamp time.Time           `json:"timestamp"`
	Payload   interface{}         `json:"payload"`
}

// New builds an event with identity and timestamp filled in.
func New(trigger domain.TriggerEvent, tenantID, ticketID string, actor domain.Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		TenantID:  tenantID,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber int64  `json:"ticket_number"`
	HelpTopicID  string `json:"help_topic_id"`
	PriorityID   string `json:"priority_id"`
	Subject      string `json:"subject"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStageID string `json:"old_stage_id"`
	NewStageID string `json:"new_stage_id"`
}

// AssignmentPayload payload for offer/accept/decline/reschedule events.
type AssignmentPayload struct {
	AssignmentID    string     `json:"assignment_id"`
	TechnicianID    string     `json:"technician_id"`
	Status          string     `json:"status"`
	DeclineReasonID *string    `json:"decline_reason_id,omitempty"`
	ProposedTime    *time.Time `json:"proposed_time,omitempty"`
}

// QuotationPayload payload for quotation lifecycle events.
type QuotationPayload struct {
	QuotationID string  `json:"quotation_id"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
}
