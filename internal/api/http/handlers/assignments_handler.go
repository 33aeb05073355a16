package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

// AssignmentsHandler exposes the offer/accept/decline/reschedule protocol.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
	coordinator *service.Coordinator
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignments *service.AssignmentService, coordinator *service.Coordinator) *AssignmentsHandler {
	return &AssignmentsHandler{assignments: assignments, coordinator: coordinator}
}

// Offer POST /tickets/:ticketID/assignments.
func (h *AssignmentsHandler) Offer(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.OfferAssignmentRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	ticketID := c.Params("ticketID")

	var assignment *domain.Assignment
	err = h.coordinator.WithTicketLock(c.UserContext(), ticketID, func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		assignment, batch, innerErr = h.assignments.Offer(ctx, actor, tenantID, ticketID,
			req.TechnicianID, req.ScheduledAt, req.Force)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// Accept POST /tickets/:ticketID/assignments/:assignmentID/accept.
func (h *AssignmentsHandler) Accept(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.AcceptAssignmentRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	var assignment *domain.Assignment
	err = h.coordinator.WithTicketLock(c.UserContext(), c.Params("ticketID"), func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		assignment, batch, innerErr = h.assignments.Accept(ctx, actor, tenantID,
			c.Params("assignmentID"), req.ExpectedVersion)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// Decline POST /tickets/:ticketID/assignments/:assignmentID/decline.
func (h *AssignmentsHandler) Decline(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.DeclineAssignmentRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	var assignment *domain.Assignment
	err = h.coordinator.WithTicketLock(c.UserContext(), c.Params("ticketID"), func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		assignment, batch, innerErr = h.assignments.Decline(ctx, actor, tenantID,
			c.Params("assignmentID"), req.ExpectedVersion, req.ReasonID, req.Detail)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}

// Reschedule POST /tickets/:ticketID/assignments/:assignmentID/reschedule.
func (h *AssignmentsHandler) Reschedule(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.RescheduleAssignmentRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	var assignment *domain.Assignment
	err = h.coordinator.WithTicketLock(c.UserContext(), c.Params("ticketID"), func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		assignment, batch, innerErr = h.assignments.Reschedule(ctx, actor, tenantID,
			c.Params("assignmentID"), req.ExpectedVersion, req.ProposedTime, req.ProposedEndTime, req.Notes)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(assignment)})
}
