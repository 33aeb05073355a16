package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// StageService owns valid stage transitions per workflow definition. It
// validates and commits a transition, recomputes is_open, appends the audit
// timeline entry and returns the ticket_status_changed event for the
// coordinator to process in the same logical transaction.
type StageService struct {
	tickets    repository.TicketRepository
	masterData repository.MasterDataRepository
	timeline   repository.TimelineRepository
	logger     *zap.Logger
}

// StageDependencies bundles repositories.
type StageDependencies struct {
	TicketRepo     repository.TicketRepository
	MasterDataRepo repository.MasterDataRepository
	TimelineRepo   repository.TimelineRepository
	Logger         *zap.Logger
}

// NewStageService creates the service.
func NewStageService(deps StageDependencies) *StageService {
	return &StageService{
		tickets:    deps.TicketRepo,
		masterData: deps.MasterDataRepo,
		timeline:   deps.TimelineRepo,
		logger:     deps.Logger,
	}
}

// TransitionByID loads the ticket and applies Transition. Used by callers
// that hold only the ticket id.
func (s *StageService) TransitionByID(ctx context.Context, actor domain.Actor, tenantID, ticketID, targetStageID string) (*domain.Ticket, []events.Event, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	event, err := s.Transition(ctx, actor, ticket, targetStageID)
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return ticket, nil, nil
	}
	return ticket, []events.Event{*event}, nil
}

// Transition moves the ticket to targetStageID. A transition to the current
// stage is an idempotent no-op returning unchanged state and no event.
func (s *StageService) Transition(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, targetStageID string) (*events.Event, error) {
	if ticket.CurrentStageID == targetStageID {
		return nil, nil
	}

	workflow, err := s.masterData.GetWorkflowByID(ctx, ticket.WorkflowID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	current, ok := workflow.StageByID(ticket.CurrentStageID)
	if !ok {
		return nil, apperrors.NewInternalError(
			fmt.Errorf("ticket %s stage %s not in workflow %s", ticket.ID, ticket.CurrentStageID, workflow.ID))
	}
	target, ok := workflow.StageByID(targetStageID)
	if !ok {
		return nil, apperrors.NewInvalidTransition("target stage does not belong to the ticket's workflow",
			map[string]any{"target_stage_id": targetStageID, "workflow_id": workflow.ID})
	}
	if !current.AllowsNext(targetStageID) {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("stage %q does not allow a transition to %q", current.Name, target.Name),
			map[string]any{"current_stage_id": current.ID, "target_stage_id": target.ID})
	}
	if current.IsInitial {
		if workflow.RequiresDevice && ticket.DeviceID == nil {
			return nil, apperrors.NewMissingRequiredField("device")
		}
		if workflow.RequiresCompany && ticket.CompanyID == nil {
			return nil, apperrors.NewMissingRequiredField("company")
		}
	}

	oldStageID := ticket.CurrentStageID
	ticket.CurrentStageID = target.ID
	ticket.IsOpen = !target.IsTerminal

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	entry := &domain.TimelineEntry{
		TicketID:    ticket.ID,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Description: fmt.Sprintf("stage changed from %q to %q", current.Name, target.Name),
		IsInternal:  actor.Type == domain.ActorTypeSystem,
	}
	if err := s.timeline.Create(ctx, entry); err != nil {
		s.logger.Warn("timeline append failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	event := events.New(domain.TriggerTicketStatusChanged, ticket.TenantID, ticket.ID, actor,
		events.StatusChangedPayload{OldStageID: oldStageID, NewStageID: target.ID})
	return &event, nil
}
