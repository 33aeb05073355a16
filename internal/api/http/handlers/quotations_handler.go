package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

// QuotationsHandler manages the quotation lifecycle for a ticket.
type QuotationsHandler struct {
	quotations  *service.QuotationService
	coordinator *service.Coordinator
}

// NewQuotationsHandler constructs handler.
func NewQuotationsHandler(quotations *service.QuotationService, coordinator *service.Coordinator) *QuotationsHandler {
	return &QuotationsHandler{quotations: quotations, coordinator: coordinator}
}

// Create POST /tickets/:ticketID/quotations.
func (h *QuotationsHandler) Create(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	quotation, err := h.quotations.Create(c.UserContext(), actor, tenantID, c.Params("ticketID"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// AddItem POST /tickets/:ticketID/quotations/:quotationID/items.
func (h *QuotationsHandler) AddItem(c *fiber.Ctx) error {
	if _, _, err := callerContext(c); err != nil {
		return err
	}
	var req dto.AddQuotationItemRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	quotation, err := h.quotations.AddItem(c.UserContext(), c.Params("quotationID"), req.ExpectedVersion,
		service.QuotationItemInput{
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
		})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// RemoveItem DELETE /tickets/:ticketID/quotations/:quotationID/items/:itemID.
func (h *QuotationsHandler) RemoveItem(c *fiber.Ctx) error {
	if _, _, err := callerContext(c); err != nil {
		return err
	}
	var req dto.RemoveQuotationItemRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	quotation, err := h.quotations.RemoveItem(c.UserContext(), c.Params("quotationID"),
		req.ExpectedVersion, c.Params("itemID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// SetTaxRate PUT /tickets/:ticketID/quotations/:quotationID/tax-rate.
func (h *QuotationsHandler) SetTaxRate(c *fiber.Ctx) error {
	if _, _, err := callerContext(c); err != nil {
		return err
	}
	var req dto.SetTaxRateRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	quotation, err := h.quotations.SetTaxRate(c.UserContext(), c.Params("quotationID"),
		req.ExpectedVersion, req.TaxRate)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// Send POST /tickets/:ticketID/quotations/:quotationID/send.
func (h *QuotationsHandler) Send(c *fiber.Ctx) error {
	actor, _, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.SendQuotationRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	quotation, err := h.quotations.Send(c.UserContext(), actor, c.Params("quotationID"), req.ExpectedVersion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// Respond POST /tickets/:ticketID/quotations/:quotationID/respond.
func (h *QuotationsHandler) Respond(c *fiber.Ctx) error {
	actor, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.RespondQuotationRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	var quotation *domain.Quotation
	err = h.coordinator.WithTicketLock(c.UserContext(), c.Params("ticketID"), func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		quotation, batch, innerErr = h.quotations.Respond(ctx, actor, tenantID,
			c.Params("quotationID"), req.ExpectedVersion, req.Approved, req.RejectionReason, req.CustomerNotes)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}

// Expire POST /tickets/:ticketID/quotations/:quotationID/expire.
func (h *QuotationsHandler) Expire(c *fiber.Ctx) error {
	_, tenantID, err := callerContext(c)
	if err != nil {
		return err
	}
	var req dto.ExpireQuotationRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}

	var quotation *domain.Quotation
	err = h.coordinator.WithTicketLock(c.UserContext(), c.Params("ticketID"), func(ctx context.Context) ([]events.Event, error) {
		var batch []events.Event
		var innerErr error
		quotation, batch, innerErr = h.quotations.Expire(ctx, tenantID,
			c.Params("quotationID"), req.ExpectedVersion)
		return batch, innerErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": quotationResponse(quotation)})
}
