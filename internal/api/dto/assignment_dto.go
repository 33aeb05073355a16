package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// OfferAssignmentRequest payload.
type OfferAssignmentRequest struct {
	TechnicianID string    `json:"technician_id" validate:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" validate:"required"`
	Force        bool      `json:"force"`
}

// AcceptAssignmentRequest payload.
type AcceptAssignmentRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,min=1"`
}

// DeclineAssignmentRequest payload.
type DeclineAssignmentRequest struct {
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
	ReasonID        string `json:"reason_id" validate:"required"`
	Detail          string `json:"detail"`
}

// RescheduleAssignmentRequest payload.
type RescheduleAssignmentRequest struct {
	ExpectedVersion int64     `json:"expected_version" validate:"required,min=1"`
	ProposedTime    time.Time `json:"proposed_time" validate:"required"`
	ProposedEndTime time.Time `json:"proposed_end_time" validate:"required"`
	Notes           string    `json:"notes"`
}

// AssignmentResponse view.
type AssignmentResponse struct {
	ID              string                  `json:"id"`
	TicketID        string                  `json:"ticket_id"`
	TechnicianID    string                  `json:"technician_id"`
	Status          domain.AssignmentStatus `json:"status"`
	ScheduledAt     time.Time               `json:"scheduled_at"`
	ProposedTime    *time.Time              `json:"proposed_time,omitempty"`
	ProposedEndTime *time.Time              `json:"proposed_end_time,omitempty"`
	DeclineReasonID *string                 `json:"decline_reason_id,omitempty"`
	DeclineDetail   string                  `json:"decline_detail,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	Version         int64                   `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}
