package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// TicketService handles ticket intake and attribute updates. Stage movement
// is the StageService's job; intake only places the ticket in its workflow's
// initial stage.
type TicketService struct {
	tickets    repository.TicketRepository
	masterData repository.MasterDataRepository
	timeline   repository.TimelineRepository
	logger     *zap.Logger
}

// TicketDependencies bundles repositories.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MasterDataRepo repository.MasterDataRepository
	TimelineRepo   repository.TimelineRepository
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		masterData: deps.MasterDataRepo,
		timeline:   deps.TimelineRepo,
		logger:     deps.Logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	TicketTypeID      string
	Subject           string
	Description       string
	HelpTopicID       string
	PriorityID        string
	CompanyID         *string
	DeviceID          *string
	Tags              []string
	CustomFieldValues map[string]any
}

// TicketUpdateInput describes mutable ticket attributes. Nil pointers leave
// the current value untouched.
type TicketUpdateInput struct {
	Subject           *string
	Description       *string
	PriorityID        *string
	CompanyID         *string
	DeviceID          *string
	CustomFieldValues map[string]any
}

// CreateTicket validates intake data against master data, allocates the
// tenant-scoped sequential ticket number and places the ticket in its
// workflow's initial stage.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, tenantID string, input TicketCreateInput) (*domain.Ticket, []events.Event, error) {
	topic, err := s.masterData.GetHelpTopic(ctx, input.HelpTopicID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewValidationError("unknown help topic",
				map[string]any{"help_topic_id": input.HelpTopicID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !topic.IsActive {
		return nil, nil, apperrors.NewValidationError("help topic is inactive",
			map[string]any{"help_topic_id": input.HelpTopicID})
	}

	priority, err := s.masterData.GetPriority(ctx, input.PriorityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewValidationError("unknown priority",
				map[string]any{"priority_id": input.PriorityID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !priority.IsActive {
		return nil, nil, apperrors.NewValidationError("priority is inactive",
			map[string]any{"priority_id": input.PriorityID})
	}

	workflow, err := s.masterData.GetWorkflowForTicketType(ctx, tenantID, input.TicketTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewValidationError("no workflow configured for ticket type",
				map[string]any{"ticket_type_id": input.TicketTypeID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	initial, ok := workflow.InitialStage()
	if !ok {
		return nil, nil, apperrors.NewInternalError(
			fmt.Errorf("workflow %s has no initial stage", workflow.ID))
	}

	customFields, err := s.validateCustomFields(ctx, topic, input.CustomFieldValues)
	if err != nil {
		return nil, nil, err
	}

	number, err := s.tickets.NextTicketNumber(ctx, tenantID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		TenantID:          tenantID,
		TicketNumber:      number,
		Subject:           strings.TrimSpace(input.Subject),
		Description:       strings.TrimSpace(input.Description),
		HelpTopicID:       topic.ID,
		PriorityID:        priority.ID,
		CompanyID:         input.CompanyID,
		DeviceID:          input.DeviceID,
		WorkflowID:        workflow.ID,
		CurrentStageID:    initial.ID,
		IsOpen:            !initial.IsTerminal,
		Tags:              input.Tags,
		CustomFieldValues: customFields,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	s.recordTimeline(ctx, actor, ticket.ID,
		fmt.Sprintf("ticket #%d created in stage %q", ticket.TicketNumber, initial.Name))

	event := events.New(domain.TriggerTicketCreated, tenantID, ticket.ID, actor,
		events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			HelpTopicID:  ticket.HelpTopicID,
			PriorityID:   ticket.PriorityID,
			Subject:      ticket.Subject,
		})
	return ticket, []events.Event{event}, nil
}

// GetTicket loads a ticket scoped to its tenant.
func (s *TicketService) GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTimeline returns the ticket's audit trail, oldest first.
func (s *TicketService) ListTimeline(ctx context.Context, tenantID, ticketID string) ([]domain.TimelineEntry, error) {
	if _, err := s.GetTicket(ctx, tenantID, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.timeline.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// UpdateTicket applies attribute changes and emits ticket_updated.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, tenantID, ticketID string, input TicketUpdateInput) (*domain.Ticket, []events.Event, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}

	if input.Subject != nil {
		ticket.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.PriorityID != nil {
		priority, err := s.masterData.GetPriority(ctx, *input.PriorityID)
		if err != nil || !priority.IsActive {
			return nil, nil, apperrors.NewValidationError("unknown or inactive priority",
				map[string]any{"priority_id": *input.PriorityID})
		}
		ticket.PriorityID = priority.ID
	}
	if input.CompanyID != nil {
		ticket.CompanyID = input.CompanyID
	}
	if input.DeviceID != nil {
		ticket.DeviceID = input.DeviceID
	}
	if input.CustomFieldValues != nil {
		topic, err := s.masterData.GetHelpTopic(ctx, ticket.HelpTopicID)
		if err != nil {
			return nil, nil, apperrors.MapError(err)
		}
		customFields, err := s.validateCustomFields(ctx, topic, input.CustomFieldValues)
		if err != nil {
			return nil, nil, err
		}
		ticket.CustomFieldValues = customFields
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	s.recordTimeline(ctx, actor, ticket.ID, "ticket details updated")

	event := events.New(domain.TriggerTicketUpdated, tenantID, ticket.ID, actor, nil)
	return ticket, []events.Event{event}, nil
}

// validateCustomFields checks values against the help topic's form schema.
// The value map is closed: unknown slugs are rejected, required fields must
// be present, and each value must match its declared field type.
func (s *TicketService) validateCustomFields(ctx context.Context, topic *domain.HelpTopic, values map[string]any) (map[string]any, error) {
	if values == nil {
		values = map[string]any{}
	}
	if topic.CustomFormID == nil {
		if len(values) > 0 {
			return nil, apperrors.NewValidationError("help topic has no custom form", nil)
		}
		return values, nil
	}

	schema, err := s.masterData.GetCustomFormSchema(ctx, topic.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for slug := range values {
		if _, ok := schema.FieldBySlug(slug); !ok {
			return nil, apperrors.NewValidationError("unknown custom field",
				map[string]any{"field": slug})
		}
	}
	for _, field := range schema.Fields {
		raw, present := values[field.Slug]
		if !present {
			if field.Required {
				return nil, apperrors.NewValidationError("missing required custom field",
					map[string]any{"field": field.Slug})
			}
			continue
		}
		if err := checkFieldType(field, raw); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func checkFieldType(field domain.FieldDef, raw any) error {
	fail := func() error {
		return apperrors.NewValidationError("custom field value does not match its declared type",
			map[string]any{"field": field.Slug, "type": field.Type})
	}
	switch field.Type {
	case domain.FieldTypeText:
		if _, ok := raw.(string); !ok {
			return fail()
		}
	case domain.FieldTypeNumber:
		switch raw.(type) {
		case float64, float32, int, int64:
		default:
			return fail()
		}
	case domain.FieldTypeBool:
		if _, ok := raw.(bool); !ok {
			return fail()
		}
	case domain.FieldTypeSelect:
		value, ok := raw.(string)
		if !ok {
			return fail()
		}
		for _, option := range field.Options {
			if option == value {
				return nil
			}
		}
		return apperrors.NewValidationError("custom field value is not one of the allowed options",
			map[string]any{"field": field.Slug, "options": field.Options})
	case domain.FieldTypeDate:
		value, ok := raw.(string)
		if !ok {
			return fail()
		}
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			if _, err := time.Parse("2006-01-02", value); err != nil {
				return fail()
			}
		}
	}
	return nil
}

func (s *TicketService) recordTimeline(ctx context.Context, actor domain.Actor, ticketID, description string) {
	entry := &domain.TimelineEntry{
		TicketID:    ticketID,
		ActorType:   actor.Type,
		ActorID:     actor.ID,
		Description: description,
		IsInternal:  false,
	}
	if err := s.timeline.Create(ctx, entry); err != nil {
		s.logger.Warn("timeline append failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}
