package domain

import "time"

// TriggerEvent enumerates ticket lifecycle events that can fire workflow rules.
type TriggerEvent string

const (
	TriggerTicketCreated       TriggerEvent = "ticket_created"
	TriggerTicketUpdated       TriggerEvent = "ticket_updated"
	TriggerTicketStatusChanged TriggerEvent = "ticket_status_changed"
	TriggerTicketAssigned      TriggerEvent = "ticket_assigned"
	TriggerAssignmentDeclined  TriggerEvent = "assignment_declined"
	TriggerPartsApproved       TriggerEvent = "parts_approved"
	TriggerApprovalReceived    TriggerEvent = "approval_received"
	TriggerQuotationExpired    TriggerEvent = "quotation_expired"
)

// ConditionLogic combines a rule's condition results.
type ConditionLogic string

const (
	LogicAll ConditionLogic = "ALL"
	LogicAny ConditionLogic = "ANY"
)

// ConditionOperator is the closed set of comparison operators.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpStartsWith  ConditionOperator = "starts_with"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
	OpInList      ConditionOperator = "in_list"
)

// KnownOperator reports membership in the operator enum.
func KnownOperator(op ConditionOperator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
		OpGreaterThan, OpLessThan, OpIsEmpty, OpIsNotEmpty, OpInList:
		return true
	}
	return false
}

// KnownTrigger reports membership in the trigger enum.
func KnownTrigger(t TriggerEvent) bool {
	switch t {
	case TriggerTicketCreated, TriggerTicketUpdated, TriggerTicketStatusChanged,
		TriggerTicketAssigned, TriggerAssignmentDeclined, TriggerPartsApproved,
		TriggerApprovalReceived, TriggerQuotationExpired:
		return true
	}
	return false
}

// Condition is a single field/operator/value test gating a rule.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// ActionType enumerates effects a matched rule can apply.
type ActionType string

const (
	ActionAssignToUser    ActionType = "assign_to_user"
	ActionAssignToTeam    ActionType = "assign_to_team"
	ActionSetPriority     ActionType = "set_priority"
	ActionSetStatus       ActionType = "set_status"
	ActionSetCategory     ActionType = "set_category"
	ActionAddTag          ActionType = "add_tag"
	ActionSendEmail       ActionType = "send_email"
	ActionSendSMS         ActionType = "send_sms"
	ActionRequireApproval ActionType = "require_approval"
	ActionEscalate        ActionType = "escalate"
	ActionAddComment      ActionType = "add_comment"
)

// KnownActionType reports membership in the action enum.
func KnownActionType(t ActionType) bool {
	switch t {
	case ActionAssignToUser, ActionAssignToTeam, ActionSetPriority, ActionSetStatus,
		ActionSetCategory, ActionAddTag, ActionSendEmail, ActionSendSMS,
		ActionRequireApproval, ActionEscalate, ActionAddComment:
		return true
	}
	return false
}

// Action is one effect in a rule's ordered action list. Value semantics
// depend on the action type (target user id, stage id, template key, ...).
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// WorkflowRule is a trigger/condition/action automation rule. Rules are
// evaluated in DisplayOrder; an empty Conditions list matches unconditionally.
type WorkflowRule struct {
	ID             string
	TenantID       string
	Name           string
	Trigger        TriggerEvent
	ConditionLogic ConditionLogic
	Conditions     []Condition
	Actions        []Action
	IsActive       bool
	StopProcessing bool
	DisplayOrder   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
