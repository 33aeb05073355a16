package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

// RulesHandler manages workflow rule configuration.
type RulesHandler struct {
	rules *service.RuleService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(rules *service.RuleService) *RulesHandler {
	return &RulesHandler{rules: rules}
}

// Create POST /rules.
func (h *RulesHandler) Create(c *fiber.Ctx) error {
	_, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.SaveRuleRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	rule, err := h.rules.CreateRule(c.UserContext(), tenantID, ruleInput(req))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Update PUT /rules/:id.
func (h *RulesHandler) Update(c *fiber.Ctx) error {
	_, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.SaveRuleRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	rule, err := h.rules.UpdateRule(c.UserContext(), tenantID, c.Params("id"), ruleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// List GET /rules.
func (h *RulesHandler) List(c *fiber.Ctx) error {
	_, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	rules, err := h.rules.ListRules(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ruleInput(req dto.SaveRuleRequest) service.RuleInput {
	return service.RuleInput{
		Name:           req.Name,
		Trigger:        req.Trigger,
		ConditionLogic: req.ConditionLogic,
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		IsActive:       req.IsActive,
		StopProcessing: req.StopProcessing,
	}
}
