package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	TicketTypeID      string         `json:"ticket_type_id" validate:"required"`
	Subject           string         `json:"subject" validate:"required,min=3"`
	Description       string         `json:"description"`
	HelpTopicID       string         `json:"help_topic_id" validate:"required"`
	PriorityID        string         `json:"priority_id" validate:"required"`
	CompanyID         *string        `json:"company_id"`
	DeviceID          *string        `json:"device_id"`
	Tags              []string       `json:"tags"`
	CustomFieldValues map[string]any `json:"custom_field_values"`
}

// UpdateTicketRequest payload; absent fields stay untouched.
type UpdateTicketRequest struct {
	Subject           *string        `json:"subject"`
	Description       *string        `json:"description"`
	PriorityID        *string        `json:"priority_id"`
	CompanyID         *string        `json:"company_id"`
	DeviceID          *string        `json:"device_id"`
	CustomFieldValues map[string]any `json:"custom_field_values"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	TargetStageID string `json:"target_stage_id" validate:"required"`
}

// TicketResponse full ticket view.
type TicketResponse struct {
	ID                string              `json:"id"`
	TicketNumber      int64               `json:"ticket_number"`
	Subject           string              `json:"subject"`
	Description       string              `json:"description"`
	HelpTopicID       string              `json:"help_topic_id"`
	PriorityID        string              `json:"priority_id"`
	CompanyID         *string             `json:"company_id"`
	DeviceID          *string             `json:"device_id"`
	WorkflowID        string              `json:"workflow_id"`
	CurrentStageID    string              `json:"current_stage_id"`
	IsOpen            bool                `json:"is_open"`
	ApprovalHold      bool                `json:"approval_hold"`
	Tags              []string            `json:"tags"`
	CustomFieldValues map[string]any      `json:"custom_field_values"`
	Assignment        *AssignmentResponse `json:"assignment,omitempty"`
	Version           int64               `json:"version"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// TimelineEntryResponse audit line.
type TimelineEntryResponse struct {
	ID          string           `json:"id"`
	ActorType   domain.ActorType `json:"actor_type"`
	ActorID     string           `json:"actor_id"`
	Description string           `json:"description"`
	IsInternal  bool             `json:"is_internal"`
	CreatedAt   time.Time        `json:"created_at"`
}
