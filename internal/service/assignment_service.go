package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// AssignmentService manages the pending/accepted/declined/rescheduled life of
// a technician offer. Every status change goes through a compare-and-swap on
// the record version: when a technician and a back-office operator act
// concurrently, exactly one wins and the loser gets StaleAssignmentState.
type AssignmentService struct {
	assignments repository.AssignmentRepository
	tickets     repository.TicketRepository
	masterData  repository.MasterDataRepository
	timeline    repository.TimelineRepository
	stages      *StageService
	notifier    NotificationDispatcher
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories and collaborators.
type AssignmentDependencies struct {
	AssignmentRepo repository.AssignmentRepository
	TicketRepo     repository.TicketRepository
	MasterDataRepo repository.MasterDataRepository
	TimelineRepo   repository.TimelineRepository
	Stages         *StageService
	Notifier       NotificationDispatcher
	Logger         *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		assignments: deps.AssignmentRepo,
		tickets:     deps.TicketRepo,
		masterData:  deps.MasterDataRepo,
		timeline:    deps.TimelineRepo,
		stages:      deps.Stages,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
	}
}

// Offer creates a pending assignment for a technician. An active
// (pending/accepted) assignment blocks the offer with AssignmentConflict
// unless force is set, which archives the prior record and notifies the
// previously assigned technician of the cancellation.
func (s *AssignmentService) Offer(ctx context.Context, actor domain.Actor, tenantID, ticketID, technicianID string, scheduledAt time.Time, force bool) (*domain.Assignment, []events.Event, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}

	active, err := s.assignments.GetActiveByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if active != nil {
		if !force {
			return nil, nil, apperrors.NewAssignmentConflict(ticketID)
		}
		if err := s.assignments.Archive(ctx, active.ID); err != nil {
			return nil, nil, apperrors.MapError(err)
		}
		s.notify(ctx, domain.NotificationRequest{
			ID:          uuid.NewString(),
			Channel:     domain.ChannelInApp,
			Recipients:  []string{domain.RecipientTechnician},
			TemplateKey: "assignment_cancelled",
			Context: map[string]any{
				"ticket_id":     ticket.ID,
				"technician_id": active.TechnicianID,
			},
			EnqueuedAt: time.Now(),
		})
	}

	assignment := &domain.Assignment{
		TicketID:     ticketID,
		TechnicianID: technicianID,
		Status:       domain.AssignmentPending,
		ScheduledAt:  scheduledAt,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	s.recordTimeline(ctx, actor, ticketID,
		fmt.Sprintf("ticket offered to technician %s", technicianID), true)

	s.notify(ctx, domain.NotificationRequest{
		ID:          uuid.NewString(),
		Channel:     domain.ChannelInApp,
		Recipients:  []string{domain.RecipientTechnician},
		TemplateKey: "assignment_offered",
		Context: map[string]any{
			"ticket_id":     ticket.ID,
			"technician_id": technicianID,
			"scheduled_at":  scheduledAt,
		},
		EnqueuedAt: time.Now(),
	})

	event := events.New(domain.TriggerTicketAssigned, tenantID, ticketID, actor, events.AssignmentPayload{
		AssignmentID: assignment.ID,
		TechnicianID: technicianID,
		Status:       string(assignment.Status),
	})
	return assignment, []events.Event{event}, nil
}

// Accept marks a pending offer accepted and, when the workflow designates an
// accepted stage, transitions the ticket there. Accepting an already accepted
// offer is a no-op returning the current state.
func (s *AssignmentService) Accept(ctx context.Context, actor domain.Actor, tenantID, assignmentID string, expectedVersion int64) (*domain.Assignment, []events.Event, error) {
	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if assignment.Status == domain.AssignmentAccepted {
		return assignment, nil, nil
	}
	if assignment.Status != domain.AssignmentPending {
		return nil, nil, apperrors.NewInvalidState("only a pending offer can be accepted",
			map[string]any{"assignment_id": assignmentID, "status": assignment.Status})
	}

	assignment.Status = domain.AssignmentAccepted
	if err := s.saveCAS(ctx, assignment, expectedVersion); err != nil {
		return nil, nil, err
	}
	s.recordTimeline(ctx, actor, assignment.TicketID, "technician accepted the assignment", false)

	chained, err := s.acceptedStageEvents(ctx, tenantID, assignment.TicketID)
	if err != nil {
		s.logger.Warn("accepted-stage transition failed",
			zap.String("assignment_id", assignmentID), zap.Error(err))
	}
	return assignment, chained, nil
}

// Decline marks a pending offer declined with an auditable reason. It does
// not auto-reassign; that is an external dispatcher decision.
func (s *AssignmentService) Decline(ctx context.Context, actor domain.Actor, tenantID, assignmentID string, expectedVersion int64, reasonID, detail string) (*domain.Assignment, []events.Event, error) {
	reason, err := s.masterData.GetDeclineReason(ctx, reasonID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewValidationError("unknown decline reason",
				map[string]any{"decline_reason_id": reasonID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !reason.IsActive {
		return nil, nil, apperrors.NewValidationError("decline reason is inactive",
			map[string]any{"decline_reason_id": reasonID})
	}

	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if assignment.Status != domain.AssignmentPending {
		return nil, nil, apperrors.NewInvalidState("only a pending offer can be declined",
			map[string]any{"assignment_id": assignmentID, "status": assignment.Status})
	}

	assignment.Status = domain.AssignmentDeclined
	assignment.DeclineReasonID = &reason.ID
	assignment.DeclineDetail = detail
	if err := s.saveCAS(ctx, assignment, expectedVersion); err != nil {
		return nil, nil, err
	}
	s.recordTimeline(ctx, actor, assignment.TicketID,
		fmt.Sprintf("technician declined the assignment: %s", reason.Label), false)

	s.notify(ctx, domain.NotificationRequest{
		ID:          uuid.NewString(),
		Channel:     domain.ChannelInApp,
		Recipients:  []string{domain.RecipientBackOffice},
		TemplateKey: "assignment_declined",
		Context: map[string]any{
			"ticket_id":         assignment.TicketID,
			"technician_id":     assignment.TechnicianID,
			"decline_reason_id": reason.ID,
		},
		EnqueuedAt: time.Now(),
	})

	event := events.New(domain.TriggerAssignmentDeclined, tenantID, assignment.TicketID, actor,
		events.AssignmentPayload{
			AssignmentID:    assignment.ID,
			TechnicianID:    assignment.TechnicianID,
			Status:          string(assignment.Status),
			DeclineReasonID: &reason.ID,
		})
	return assignment, []events.Event{event}, nil
}

// Reschedule counter-proposes a visit window. It behaves as an implicit
// accept: the same downstream stage transition applies, and both the original
// and proposed times stay on the record for audit.
func (s *AssignmentService) Reschedule(ctx context.Context, actor domain.Actor, tenantID, assignmentID string, expectedVersion int64, proposedTime, proposedEndTime time.Time, notes string) (*domain.Assignment, []events.Event, error) {
	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if assignment.Status != domain.AssignmentPending {
		return nil, nil, apperrors.NewInvalidState("only a pending offer can be rescheduled",
			map[string]any{"assignment_id": assignmentID, "status": assignment.Status})
	}
	if !proposedEndTime.After(proposedTime) {
		return nil, nil, apperrors.NewValidationError("proposed end time must be after proposed start time", nil)
	}
	if !proposedTime.After(assignment.CreatedAt) {
		return nil, nil, apperrors.NewValidationError("proposed time must be in the future", nil)
	}

	assignment.Status = domain.AssignmentRescheduled
	assignment.ProposedTime = &proposedTime
	assignment.ProposedEndTime = &proposedEndTime
	assignment.Notes = notes
	if err := s.saveCAS(ctx, assignment, expectedVersion); err != nil {
		return nil, nil, err
	}
	s.recordTimeline(ctx, actor, assignment.TicketID,
		fmt.Sprintf("technician accepted with a rescheduled visit at %s", proposedTime.Format(time.RFC3339)), false)

	chained, err := s.acceptedStageEvents(ctx, tenantID, assignment.TicketID)
	if err != nil {
		s.logger.Warn("accepted-stage transition failed",
			zap.String("assignment_id", assignmentID), zap.Error(err))
	}
	return assignment, chained, nil
}

func (s *AssignmentService) getAssignment(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignment", map[string]any{"assignment_id": assignmentID})
		}
		return nil, apperrors.MapError(err)
	}
	return assignment, nil
}

func (s *AssignmentService) saveCAS(ctx context.Context, assignment *domain.Assignment, expectedVersion int64) error {
	applied, err := s.assignments.UpdateCAS(ctx, assignment, expectedVersion)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !applied {
		return apperrors.NewStaleAssignment(assignment.ID)
	}
	return nil
}

// acceptedStageEvents moves the ticket into the workflow's designated
// accepted stage, when one is configured.
func (s *AssignmentService) acceptedStageEvents(ctx context.Context, tenantID, ticketID string) ([]events.Event, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	workflow, err := s.masterData.GetWorkflowByID(ctx, ticket.WorkflowID)
	if err != nil {
		return nil, err
	}
	if workflow.AcceptedStageID == nil {
		return nil, nil
	}
	event, err := s.stages.Transition(ctx, domain.SystemActor(), ticket, *workflow.AcceptedStageID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	return []events.Event{*event}, nil
}

func (s *AssignmentService) recordTimeline(ctx context.Context, actor domain.Actor, ticketID, description string, internal bool) {
	entry := &domain.TimelineEntry{
		TicketID:    ticketID,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Description: description,
		IsInternal:  internal,
	}
	if err := s.timeline.Create(ctx, entry); err != nil {
		s.logger.Warn("timeline append failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *AssignmentService) notify(ctx context.Context, request domain.NotificationRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, request); err != nil {
		// Core state already committed; an undelivered notification degrades,
		// it does not roll back.
		s.logger.Warn("notification dispatch failed",
			zap.String("template", request.TemplateKey), zap.Error(err))
	}
}
