package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-engine/internal/api/dto"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func parseAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(out); err != nil {
		return apperrors.NewValidationError("request validation failed",
			map[string]any{"reason": err.Error()})
	}
	return nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:                ticket.ID,
		TicketNumber:      ticket.TicketNumber,
		Subject:           ticket.Subject,
		Description:       ticket.Description,
		HelpTopicID:       ticket.HelpTopicID,
		PriorityID:        ticket.PriorityID,
		CompanyID:         ticket.CompanyID,
		DeviceID:          ticket.DeviceID,
		WorkflowID:        ticket.WorkflowID,
		CurrentStageID:    ticket.CurrentStageID,
		IsOpen:            ticket.IsOpen,
		ApprovalHold:      ticket.ApprovalHold,
		Tags:              ticket.Tags,
		CustomFieldValues: ticket.CustomFieldValues,
		Version:           ticket.Version,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
	if ticket.Assignment != nil {
		assignment := assignmentResponse(ticket.Assignment)
		resp.Assignment = &assignment
	}
	return resp
}

func assignmentResponse(assignment *domain.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		ID:              assignment.ID,
		TicketID:        assignment.TicketID,
		TechnicianID:    assignment.TechnicianID,
		Status:          assignment.Status,
		ScheduledAt:     assignment.ScheduledAt,
		ProposedTime:    assignment.ProposedTime,
		ProposedEndTime: assignment.ProposedEndTime,
		DeclineReasonID: assignment.DeclineReasonID,
		DeclineDetail:   assignment.DeclineDetail,
		Notes:           assignment.Notes,
		Version:         assignment.Version,
		CreatedAt:       assignment.CreatedAt,
		UpdatedAt:       assignment.UpdatedAt,
	}
}

func quotationResponse(quotation *domain.Quotation) dto.QuotationResponse {
	items := make([]dto.QuotationItemResponse, 0, len(quotation.Items))
	for _, item := range quotation.Items {
		items = append(items, dto.QuotationItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return dto.QuotationResponse{
		ID:              quotation.ID,
		TicketID:        quotation.TicketID,
		Status:          quotation.Status,
		Items:           items,
		TaxRate:         quotation.TaxRate,
		Subtotal:        quotation.Subtotal,
		TaxAmount:       quotation.TaxAmount,
		TotalAmount:     quotation.TotalAmount,
		RejectionReason: quotation.RejectionReason,
		CustomerNotes:   quotation.CustomerNotes,
		Version:         quotation.Version,
		CreatedAt:       quotation.CreatedAt,
		UpdatedAt:       quotation.UpdatedAt,
	}
}

func ruleResponse(rule *domain.WorkflowRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:             rule.ID,
		Name:           rule.Name,
		Trigger:        rule.Trigger,
		ConditionLogic: rule.ConditionLogic,
		Conditions:     rule.Conditions,
		Actions:        rule.Actions,
		IsActive:       rule.IsActive,
		StopProcessing: rule.StopProcessing,
		DisplayOrder:   rule.DisplayOrder,
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
	}
}

func timelineResponses(entries []domain.TimelineEntry) []dto.TimelineEntryResponse {
	resp := make([]dto.TimelineEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TimelineEntryResponse{
			ID:          entry.ID,
			ActorType:   entry.ActorType,
			ActorID:     entry.ActorID,
			Description: entry.Description,
			IsInternal:  entry.IsInternal,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return resp
}
