package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// RuleService manages workflow rule configuration. All structural problems —
// unknown triggers, unknown operators, unresolvable condition paths, unknown
// action types — are rejected here at save time, so the evaluator never hits
// a silent no-match in production.
type RuleService struct {
	rules      repository.RuleRepository
	masterData repository.MasterDataRepository
	validate   *validator.Validate
}

// NewRuleService creates the service.
func NewRuleService(rules repository.RuleRepository, masterData repository.MasterDataRepository) *RuleService {
	return &RuleService{
		rules:      rules,
		masterData: masterData,
		validate:   validator.New(),
	}
}

// RuleInput describes a rule to create or update.
type RuleInput struct {
	Name           string                `validate:"required,min=3"`
	Trigger        domain.TriggerEvent   `validate:"required"`
	ConditionLogic domain.ConditionLogic `validate:"omitempty,oneof=ALL ANY"`
	Conditions     []domain.Condition
	Actions        []domain.Action `validate:"required,min=1"`
	IsActive       bool
	StopProcessing bool
}

// CreateRule validates and persists a new rule at the end of the display order.
func (s *RuleService) CreateRule(ctx context.Context, tenantID string, input RuleInput) (*domain.WorkflowRule, error) {
	rule, err := s.buildRule(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// UpdateRule validates and replaces an existing rule's definition.
func (s *RuleService) UpdateRule(ctx context.Context, tenantID, ruleID string, input RuleInput) (*domain.WorkflowRule, error) {
	existing, err := s.rules.GetByID(ctx, tenantID, ruleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("workflow rule", map[string]any{"rule_id": ruleID})
		}
		return nil, apperrors.MapError(err)
	}
	rule, err := s.buildRule(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.DisplayOrder = existing.DisplayOrder
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// ListRules returns the tenant's rules in display order.
func (s *RuleService) ListRules(ctx context.Context, tenantID string) ([]domain.WorkflowRule, error) {
	rules, err := s.rules.List(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

func (s *RuleService) buildRule(ctx context.Context, tenantID string, input RuleInput) (*domain.WorkflowRule, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.NewValidationError("invalid rule definition",
			map[string]any{"reason": err.Error()})
	}
	if !domain.KnownTrigger(input.Trigger) {
		return nil, apperrors.NewValidationError("unknown trigger",
			map[string]any{"trigger": input.Trigger})
	}

	slugs, err := s.masterData.ListCustomFieldSlugs(ctx, tenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i, condition := range input.Conditions {
		if !domain.KnownOperator(condition.Operator) {
			return nil, apperrors.NewValidationError("unknown condition operator",
				map[string]any{"condition": i, "operator": condition.Operator})
		}
		if err := checkConditionPath(condition.Field, slugs); err != nil {
			return nil, err
		}
	}
	for i, action := range input.Actions {
		if !domain.KnownActionType(action.Type) {
			return nil, apperrors.NewValidationError("unknown action type",
				map[string]any{"action": i, "type": action.Type})
		}
		if actionNeedsValue(action.Type) && strings.TrimSpace(action.Value) == "" {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("action %q requires a value", action.Type),
				map[string]any{"action": i})
		}
	}

	logic := input.ConditionLogic
	if logic == "" {
		logic = domain.LogicAll
	}
	return &domain.WorkflowRule{
		TenantID:       tenantID,
		Name:           input.Name,
		Trigger:        input.Trigger,
		ConditionLogic: logic,
		Conditions:     input.Conditions,
		Actions:        input.Actions,
		IsActive:       input.IsActive,
		StopProcessing: input.StopProcessing,
	}, nil
}

// checkConditionPath rejects dotted paths the evaluator could not resolve.
func checkConditionPath(path string, customFieldSlugs []string) error {
	if slug, ok := strings.CutPrefix(path, "custom_fields."); ok {
		if slices.Contains(customFieldSlugs, slug) {
			return nil
		}
		return apperrors.NewValidationError("condition references an unknown custom field",
			map[string]any{"field": path})
	}
	if domain.KnownTicketPath(path, nil) {
		return nil
	}
	return apperrors.NewValidationError("condition references an unknown ticket field",
		map[string]any{"field": path})
}

func actionNeedsValue(actionType domain.ActionType) bool {
	switch actionType {
	case domain.ActionRequireApproval, domain.ActionEscalate:
		return false
	}
	return true
}
