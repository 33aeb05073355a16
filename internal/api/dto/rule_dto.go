package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// SaveRuleRequest creates or replaces a workflow rule.
type SaveRuleRequest struct {
	Name           string                `json:"name" validate:"required,min=3"`
	Trigger        domain.TriggerEvent   `json:"trigger" validate:"required"`
	ConditionLogic domain.ConditionLogic `json:"condition_logic"`
	Conditions     []domain.Condition    `json:"conditions"`
	Actions        []domain.Action       `json:"actions" validate:"required,min=1"`
	IsActive       bool                  `json:"is_active"`
	StopProcessing bool                  `json:"stop_processing"`
}

// RuleResponse view.
type RuleResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Trigger        domain.TriggerEvent   `json:"trigger"`
	ConditionLogic domain.ConditionLogic `json:"condition_logic"`
	Conditions     []domain.Condition    `json:"conditions"`
	Actions        []domain.Action       `json:"actions"`
	IsActive       bool                  `json:"is_active"`
	StopProcessing bool                  `json:"stop_processing"`
	DisplayOrder   int                   `json:"display_order"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}
