package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// RuleIssue reports a misconfigured rule encountered during evaluation. The
// rule is skipped for this event only; remaining rules still evaluate.
type RuleIssue struct {
	RuleID   string
	RuleName string
	Reason   string
}

// EvaluateRules is the pure rule evaluator: given a trigger and a post-event
// ticket snapshot it returns the qualifying rules in persisted display order.
// A matched rule with stop_processing truncates the result; no lower-priority
// rule runs for this event. The function has no side effects and is
// deterministic for a fixed input.
func EvaluateRules(trigger domain.TriggerEvent, ticket *domain.Ticket, rules []domain.WorkflowRule) ([]domain.WorkflowRule, []RuleIssue) {
	var matched []domain.WorkflowRule
	var issues []RuleIssue

	for _, rule := range rules {
		if !rule.IsActive || rule.Trigger != trigger {
			continue
		}
		ok, err := ruleMatches(rule, ticket)
		if err != nil {
			issues = append(issues, RuleIssue{RuleID: rule.ID, RuleName: rule.Name, Reason: err.Error()})
			continue
		}
		if !ok {
			continue
		}
		matched = append(matched, rule)
		if rule.StopProcessing {
			break
		}
	}
	return matched, issues
}

// ruleMatches combines condition results per the rule's logic. An empty
// condition list matches unconditionally.
func ruleMatches(rule domain.WorkflowRule, ticket *domain.Ticket) (bool, error) {
	if len(rule.Conditions) == 0 {
		return true, nil
	}
	anyLogic := rule.ConditionLogic == domain.LogicAny
	for _, condition := range rule.Conditions {
		ok, err := conditionMatches(condition, ticket)
		if err != nil {
			return false, err
		}
		if anyLogic && ok {
			return true, nil
		}
		if !anyLogic && !ok {
			return false, nil
		}
	}
	return !anyLogic, nil
}

func conditionMatches(condition domain.Condition, ticket *domain.Ticket) (bool, error) {
	if !domain.KnownOperator(condition.Operator) {
		return false, fmt.Errorf("unknown operator %q", condition.Operator)
	}
	// Unresolvable paths were rejected at rule-save time; a path that vanished
	// since then resolves to null.
	value, _ := domain.ResolveTicketPath(ticket, condition.Field)

	switch condition.Operator {
	case domain.OpIsEmpty:
		return value.IsEmpty(), nil
	case domain.OpIsNotEmpty:
		return !value.IsEmpty(), nil
	case domain.OpEquals:
		return strings.EqualFold(value.AsString(), condition.Value), nil
	case domain.OpNotEquals:
		return !strings.EqualFold(value.AsString(), condition.Value), nil
	case domain.OpContains:
		return containsFold(value.AsString(), condition.Value), nil
	case domain.OpNotContains:
		return !containsFold(value.AsString(), condition.Value), nil
	case domain.OpStartsWith:
		return strings.HasPrefix(strings.ToLower(value.AsString()), strings.ToLower(condition.Value)), nil
	case domain.OpGreaterThan:
		left, right, ok := numericOperands(value, condition.Value)
		return ok && left > right, nil
	case domain.OpLessThan:
		left, right, ok := numericOperands(value, condition.Value)
		return ok && left < right, nil
	case domain.OpInList:
		for _, item := range strings.Split(condition.Value, ",") {
			if strings.EqualFold(strings.TrimSpace(item), value.AsString()) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown operator %q", condition.Operator)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// numericOperands coerces both sides to numbers. Failure to coerce is a
// non-match, not an error.
func numericOperands(value domain.Value, raw string) (float64, float64, bool) {
	left, ok := value.AsNumber()
	if !ok {
		return 0, 0, false
	}
	right, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, 0, false
	}
	return left, right, true
}
