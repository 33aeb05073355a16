package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
)

// ActionExecutor applies a matched rule's actions to a ticket in declared
// order. Each action is a pure ticket mutation plus at most one side-effect
// request. A failing action is skipped and reported; the remaining actions of
// the same rule still execute, so one bad recipient id cannot void a whole
// business rule.
type ActionExecutor struct {
	masterData    repository.MasterDataRepository
	logger        *zap.Logger
	lookupTimeout time.Duration
}

// NewActionExecutor constructs the executor.
func NewActionExecutor(masterData repository.MasterDataRepository, logger *zap.Logger, lookupTimeout time.Duration) *ActionExecutor {
	return &ActionExecutor{masterData: masterData, logger: logger, lookupTimeout: lookupTimeout}
}

// Apply mutates the ticket in place and returns the side-effect requests for
// the coordinator to route.
func (e *ActionExecutor) Apply(ctx context.Context, ticket *domain.Ticket, rule domain.WorkflowRule) ([]SideEffect, []ActionFailure) {
	var effects []SideEffect
	var failures []ActionFailure

	for _, action := range rule.Actions {
		effect, err := e.applyOne(ctx, ticket, action)
		if err != nil {
			failures = append(failures, ActionFailure{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				ActionType: action.Type,
				Err:        err,
			})
			e.logger.Warn("rule action failed, continuing with remaining actions",
				zap.String("rule_id", rule.ID),
				zap.String("action", string(action.Type)),
				zap.Error(err))
			continue
		}
		if effect != nil {
			effects = append(effects, *effect)
		}
	}
	return effects, failures
}

func (e *ActionExecutor) applyOne(ctx context.Context, ticket *domain.Ticket, action domain.Action) (*SideEffect, error) {
	switch action.Type {
	case domain.ActionAssignToUser:
		if strings.TrimSpace(action.Value) == "" {
			return nil, fmt.Errorf("assign_to_user requires a technician id")
		}
		return &SideEffect{Offer: &OfferRequest{TechnicianID: action.Value}}, nil

	case domain.ActionAssignToTeam:
		if strings.TrimSpace(action.Value) == "" {
			return nil, fmt.Errorf("assign_to_team requires a team id")
		}
		return &SideEffect{Offer: &OfferRequest{TeamID: action.Value}}, nil

	case domain.ActionSetPriority:
		priority, err := e.lookupPriority(ctx, action.Value)
		if err != nil {
			return nil, err
		}
		ticket.PriorityID = priority.ID
		return nil, nil

	case domain.ActionSetStatus:
		// Re-enters stage machine validation via the coordinator.
		return &SideEffect{StageChange: &StageChangeRequest{TargetStageID: action.Value}}, nil

	case domain.ActionSetCategory:
		problemType, err := e.lookupProblemType(ctx, action.Value)
		if err != nil {
			return nil, err
		}
		ticket.ProblemTypeID = &problemType.ID
		return nil, nil

	case domain.ActionAddTag:
		tag := strings.TrimSpace(action.Value)
		if tag == "" {
			return nil, fmt.Errorf("add_tag requires a tag value")
		}
		if !ticket.HasTag(tag) {
			ticket.Tags = append(ticket.Tags, tag)
		}
		return nil, nil

	case domain.ActionSendEmail:
		return &SideEffect{Notification: e.notification(ticket, domain.ChannelEmail, domain.RecipientRequester, action.Value)}, nil

	case domain.ActionSendSMS:
		return &SideEffect{Notification: e.notification(ticket, domain.ChannelSMS, domain.RecipientRequester, action.Value)}, nil

	case domain.ActionRequireApproval:
		ticket.ApprovalHold = true
		return nil, nil

	case domain.ActionEscalate:
		return e.escalate(ctx, ticket)

	case domain.ActionAddComment:
		return &SideEffect{Comment: &CommentRequest{Text: action.Value, IsInternal: true}}, nil
	}
	return nil, fmt.Errorf("unknown action type %q", action.Type)
}

// escalate raises priority by one level and notifies the back office. A
// ticket already at the top level keeps its priority; the notification still
// goes out.
func (e *ActionExecutor) escalate(ctx context.Context, ticket *domain.Ticket) (*SideEffect, error) {
	lookupCtx, cancel := e.boundedLookup(ctx)
	defer cancel()

	priorities, err := e.masterData.GetPriorities(lookupCtx, ticket.TenantID)
	if err != nil {
		return nil, fmt.Errorf("escalate: load priorities: %w", err)
	}
	currentLevel := -1
	for _, priority := range priorities {
		if priority.ID == ticket.PriorityID {
			currentLevel = priority.Level
			break
		}
	}
	if currentLevel < 0 {
		return nil, fmt.Errorf("escalate: ticket priority %q not in master data", ticket.PriorityID)
	}
	// Priorities are ordered by level ascending; pick the next one up.
	for _, priority := range priorities {
		if priority.Level > currentLevel {
			ticket.PriorityID = priority.ID
			break
		}
	}
	return &SideEffect{Notification: e.notification(ticket, domain.ChannelInApp, domain.RecipientBackOffice, "ticket_escalated")}, nil
}

func (e *ActionExecutor) lookupPriority(ctx context.Context, id string) (*domain.Priority, error) {
	lookupCtx, cancel := e.boundedLookup(ctx)
	defer cancel()
	priority, err := e.masterData.GetPriority(lookupCtx, id)
	if err != nil {
		return nil, fmt.Errorf("set_priority: %w", err)
	}
	if !priority.IsActive {
		return nil, fmt.Errorf("set_priority: priority %q inactive", id)
	}
	return priority, nil
}

func (e *ActionExecutor) lookupProblemType(ctx context.Context, id string) (*domain.ProblemType, error) {
	lookupCtx, cancel := e.boundedLookup(ctx)
	defer cancel()
	problemType, err := e.masterData.GetProblemType(lookupCtx, id)
	if err != nil {
		return nil, fmt.Errorf("set_category: %w", err)
	}
	if !problemType.IsActive {
		return nil, fmt.Errorf("set_category: problem type %q inactive", id)
	}
	return problemType, nil
}

func (e *ActionExecutor) notification(ticket *domain.Ticket, channel domain.NotificationChannel, recipient, templateKey string) *domain.NotificationRequest {
	return &domain.NotificationRequest{
		ID:          uuid.NewString(),
		Channel:     channel,
		Recipients:  []string{recipient},
		TemplateKey: templateKey,
		Context: map[string]any{
			"ticket_id":     ticket.ID,
			"ticket_number": ticket.TicketNumber,
			"subject":       ticket.Subject,
		},
		EnqueuedAt: time.Now(),
	}
}

func (e *ActionExecutor) boundedLookup(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.lookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.lookupTimeout)
}
