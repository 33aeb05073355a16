package service

import (
	"context"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// SideEffect is a deferred request produced by rule actions. Exactly one
// field is set. The coordinator routes effects after the owning mutation
// committed; effect failures never roll the mutation back.
type SideEffect struct {
	Notification *domain.NotificationRequest
	StageChange  *StageChangeRequest
	Offer        *OfferRequest
	Comment      *CommentRequest
}

// StageChangeRequest asks for a stage transition through the stage machine.
// It is never applied directly; validation is not bypassed.
type StageChangeRequest struct {
	TargetStageID string
}

// OfferRequest asks the assignment protocol to offer the ticket. Either
// TechnicianID is set directly, or TeamID and the coordinator picks an active
// member of the team.
type OfferRequest struct {
	TechnicianID string
	TeamID       string
}

// CommentRequest appends a timeline entry on behalf of a rule.
type CommentRequest struct {
	Text       string
	IsInternal bool
}

// ActionFailure reports one isolated action error. The remaining actions of
// the same rule still ran.
type ActionFailure struct {
	RuleID     string
	RuleName   string
	ActionType domain.ActionType
	Err        error
}

// NotificationDispatcher hands notification requests to the external
// delivery channel. The engine does not retry failures itself.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, request domain.NotificationRequest) error
}
