package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/service"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// TicketsHandler manages ticket intake, updates and stage transitions.
type TicketsHandler struct {
	tickets     *service.TicketService
	stages      *service.StageService
	coordinator *service.Coordinator
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, stages *service.StageService, coordinator *service.Coordinator) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, stages: stages, coordinator: coordinator}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	input := service.TicketCreateInput{
		TicketTypeID:      req.TicketTypeID,
		Subject:           req.Subject,
		Description:       req.Description,
		HelpTopicID:       req.HelpTopicID,
		PriorityID:        req.PriorityID,
		CompanyID:         req.CompanyID,
		DeviceID:          req.DeviceID,
		Tags:              req.Tags,
		CustomFieldValues: req.CustomFieldValues,
	}

	ticket, batch, err := h.tickets.CreateTicket(c.UserContext(), actor, tenantID, input)
	if err != nil {
		return err
	}
	h.coordinator.HandleEvents(c.UserContext(), batch)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	_, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticketID := c.Params("id")

	var ticket *domain.Ticket
	err = h.coordinator.WithTicketLock(c.UserContext(), ticketID, func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		ticket, batch, innerErr = h.tickets.UpdateTicket(ctx, actor, tenantID, ticketID, service.TicketUpdateInput{
			Subject:           req.Subject,
			Description:       req.Description,
			PriorityID:        req.PriorityID,
			CompanyID:         req.CompanyID,
			DeviceID:          req.DeviceID,
			CustomFieldValues: req.CustomFieldValues,
		})
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticketID := c.Params("id")

	var ticket *domain.Ticket
	err = h.coordinator.WithTicketLock(c.UserContext(), ticketID, func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		ticket, batch, innerErr = h.stages.TransitionByID(ctx, actor, tenantID, ticketID, req.TargetStageID)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Approve POST /tickets/:id/approval. Records the external approval that
// releases a ticket held by a require_approval rule action.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	ticketID := c.Params("id")
	if _, err := h.tickets.GetTicket(c.UserContext(), tenantID, ticketID); err != nil {
		return err
	}

	h.coordinator.HandleEvent(c.UserContext(),
		events.New(domain.TriggerApprovalReceived, tenantID, ticketID, actor, nil))

	ticket, err := h.tickets.GetTicket(c.UserContext(), tenantID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Timeline GET /tickets/:id/timeline.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListTimeline(c.UserContext(), tenantID, c.Params("id"))
	if err != nil {
		return err
	}
	// End users never see internal notes.
	if actor.Type == domain.ActorTypeUser {
		visible := entries[:0]
		for _, entry := range entries {
			if !entry.IsInternal {
				visible = append(visible, entry)
			}
		}
		entries = visible
	}
	return c.JSON(fiber.Map{"data": timelineResponses(entries)})
}

func callerContext(c *fiber.Ctx) (domain.Actor, string, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, "", apperrors.NewUnauthorized("authentication required")
	}
	tenantID, ok := auth.TenantFromContext(c)
	if !ok {
		return domain.Actor{}, "", apperrors.NewUnauthorized("tenant context missing")
	}
	return actor, tenantID, nil
}
