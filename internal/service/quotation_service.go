package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// QuotationService drives the draft/sent/approved/rejected lifecycle of parts
// quotations. Items are mutable only in draft; every mutation recomputes the
// derived totals; a sent quotation locks its items for good, rejection
// requires a fresh quotation.
type QuotationService struct {
	quotations repository.QuotationRepository
	tickets    repository.TicketRepository
	timeline   repository.TimelineRepository
	notifier   NotificationDispatcher
	logger     *zap.Logger
}

// QuotationDependencies bundles repositories and collaborators.
type QuotationDependencies struct {
	QuotationRepo repository.QuotationRepository
	TicketRepo    repository.TicketRepository
	TimelineRepo  repository.TimelineRepository
	Notifier      NotificationDispatcher
	Logger        *zap.Logger
}

// NewQuotationService creates the service.
func NewQuotationService(deps QuotationDependencies) *QuotationService {
	return &QuotationService{
		quotations: deps.QuotationRepo,
		tickets:    deps.TicketRepo,
		timeline:   deps.TimelineRepo,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}
}

// QuotationItemInput describes one line to add.
type QuotationItemInput struct {
	Description string
	Quantity    int
	UnitPrice   float64
}

// Create opens a draft quotation for a ticket, typically when an engineer
// marks it pending parts. One open (draft or sent) quotation per ticket.
func (s *QuotationService) Create(ctx context.Context, actor domain.Actor, tenantID, ticketID string) (*domain.Quotation, error) {
	ticket, err := s.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	open, err := s.quotations.GetOpenByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if open != nil {
		return nil, apperrors.NewConflict("an open quotation already exists for this ticket",
			map[string]any{"ticket_id": ticketID, "quotation_id": open.ID})
	}

	quotation := &domain.Quotation{
		TicketID: ticket.ID,
		Status:   domain.QuotationDraft,
	}
	quotation.Recalculate()
	if err := s.quotations.Create(ctx, quotation); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordTimeline(ctx, actor, ticket.ID, "quotation drafted for pending parts")
	return quotation, nil
}

// AddItem appends a line to a draft quotation and recomputes totals.
func (s *QuotationService) AddItem(ctx context.Context, quotationID string, expectedVersion int64, input QuotationItemInput) (*domain.Quotation, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("item description is required", nil)
	}
	if input.Quantity <= 0 {
		return nil, apperrors.NewValidationError("item quantity must be positive", nil)
	}
	if input.UnitPrice < 0 {
		return nil, apperrors.NewValidationError("item unit price cannot be negative", nil)
	}

	return s.mutateDraft(ctx, quotationID, expectedVersion, func(quotation *domain.Quotation) error {
		quotation.Items = append(quotation.Items, domain.QuotationItem{
			ID:          uuid.NewString(),
			Description: input.Description,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
		})
		return nil
	})
}

// RemoveItem deletes a line from a draft quotation and recomputes totals.
func (s *QuotationService) RemoveItem(ctx context.Context, quotationID string, expectedVersion int64, itemID string) (*domain.Quotation, error) {
	return s.mutateDraft(ctx, quotationID, expectedVersion, func(quotation *domain.Quotation) error {
		for i, item := range quotation.Items {
			if item.ID == itemID {
				quotation.Items = append(quotation.Items[:i], quotation.Items[i+1:]...)
				return nil
			}
		}
		return apperrors.NewNotFound("quotation item", map[string]any{"item_id": itemID})
	})
}

// SetTaxRate updates the tax rate of a draft quotation and recomputes totals.
func (s *QuotationService) SetTaxRate(ctx context.Context, quotationID string, expectedVersion int64, taxRate float64) (*domain.Quotation, error) {
	if taxRate < 0 {
		return nil, apperrors.NewValidationError("tax rate cannot be negative", nil)
	}
	return s.mutateDraft(ctx, quotationID, expectedVersion, func(quotation *domain.Quotation) error {
		quotation.TaxRate = taxRate
		return nil
	})
}

// Send transitions draft → sent, locks the items and notifies the customer.
func (s *QuotationService) Send(ctx context.Context, actor domain.Actor, quotationID string, expectedVersion int64) (*domain.Quotation, error) {
	quotation, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if quotation.Status != domain.QuotationDraft {
		return nil, apperrors.NewInvalidState("only a draft quotation can be sent",
			map[string]any{"quotation_id": quotationID, "status": quotation.Status})
	}
	if len(quotation.Items) == 0 {
		return nil, apperrors.NewValidationError("a quotation needs at least one item before sending", nil)
	}

	quotation.Status = domain.QuotationSent
	if err := s.saveCAS(ctx, quotation, expectedVersion); err != nil {
		return nil, err
	}
	s.recordTimeline(ctx, actor, quotation.TicketID, "quotation sent to customer")

	s.notify(ctx, domain.NotificationRequest{
		ID:          uuid.NewString(),
		Channel:     domain.ChannelEmail,
		Recipients:  []string{domain.RecipientCustomer},
		TemplateKey: "quotation_sent",
		Context: map[string]any{
			"quotation_id": quotation.ID,
			"ticket_id":    quotation.TicketID,
			"total_amount": quotation.TotalAmount,
		},
		EnqueuedAt: time.Now(),
	})
	return quotation, nil
}

// Respond records the customer's decision on a sent quotation. Rejection
// requires a non-empty reason. Approval emits parts_approved back into rule
// evaluation so ticket-side automation can react.
func (s *QuotationService) Respond(ctx context.Context, actor domain.Actor, tenantID, quotationID string, expectedVersion int64, approved bool, rejectionReason, customerNotes string) (*domain.Quotation, []events.Event, error) {
	quotation, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	if quotation.Status != domain.QuotationSent {
		return nil, nil, apperrors.NewInvalidState("only a sent quotation can receive a response",
			map[string]any{"quotation_id": quotationID, "status": quotation.Status})
	}
	if !approved && strings.TrimSpace(rejectionReason) == "" {
		return nil, nil, apperrors.NewValidationError("rejection requires a reason", nil)
	}

	quotation.CustomerNotes = customerNotes
	if approved {
		quotation.Status = domain.QuotationApproved
	} else {
		quotation.Status = domain.QuotationRejected
		quotation.RejectionReason = rejectionReason
	}
	if err := s.saveCAS(ctx, quotation, expectedVersion); err != nil {
		return nil, nil, err
	}
	s.recordTimeline(ctx, actor, quotation.TicketID,
		"customer "+strings.ToLower(string(quotation.Status))+" the quotation")

	if !approved {
		return quotation, nil, nil
	}
	event := events.New(domain.TriggerPartsApproved, tenantID, quotation.TicketID, actor,
		events.QuotationPayload{
			QuotationID: quotation.ID,
			Status:      string(quotation.Status),
			TotalAmount: quotation.TotalAmount,
		})
	return quotation, []events.Event{event}, nil
}

// Expire consumes the external time-based expiry event for a sent quotation.
func (s *QuotationService) Expire(ctx context.Context, tenantID, quotationID string, expectedVersion int64) (*domain.Quotation, []events.Event, error) {
	quotation, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	if quotation.Status != domain.QuotationSent {
		return nil, nil, apperrors.NewInvalidState("only a sent quotation can expire",
			map[string]any{"quotation_id": quotationID, "status": quotation.Status})
	}
	quotation.Status = domain.QuotationExpired
	if err := s.saveCAS(ctx, quotation, expectedVersion); err != nil {
		return nil, nil, err
	}
	event := events.New(domain.TriggerQuotationExpired, tenantID, quotation.TicketID, domain.SystemActor(),
		events.QuotationPayload{
			QuotationID: quotation.ID,
			Status:      string(quotation.Status),
			TotalAmount: quotation.TotalAmount,
		})
	return quotation, []events.Event{event}, nil
}

// mutateDraft loads the quotation, rejects mutation outside draft, applies
// the mutation, recomputes totals and saves.
func (s *QuotationService) mutateDraft(ctx context.Context, quotationID string, expectedVersion int64, mutate func(*domain.Quotation) error) (*domain.Quotation, error) {
	quotation, err := s.getQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if quotation.Status != domain.QuotationDraft {
		return nil, apperrors.NewInvalidState("quotation items are locked outside draft",
			map[string]any{"quotation_id": quotationID, "status": quotation.Status})
	}
	if err := mutate(quotation); err != nil {
		return nil, err
	}
	quotation.Recalculate()
	if err := s.saveCAS(ctx, quotation, expectedVersion); err != nil {
		return nil, err
	}
	return quotation, nil
}

func (s *QuotationService) getQuotation(ctx context.Context, quotationID string) (*domain.Quotation, error) {
	quotation, err := s.quotations.GetByID(ctx, quotationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("quotation", map[string]any{"quotation_id": quotationID})
		}
		return nil, apperrors.MapError(err)
	}
	return quotation, nil
}

func (s *QuotationService) saveCAS(ctx context.Context, quotation *domain.Quotation, expectedVersion int64) error {
	applied, err := s.quotations.UpdateCAS(ctx, quotation, expectedVersion)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !applied {
		return apperrors.NewInvalidState("quotation was modified concurrently; refetch and retry",
			map[string]any{"quotation_id": quotation.ID})
	}
	return nil
}

func (s *QuotationService) recordTimeline(ctx context.Context, actor domain.Actor, ticketID, description string) {
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

func (s *QuotationService) notify(ctx context.Context, request domain.NotificationRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, request); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("template", request.TemplateKey), zap.Error(err))
	}
}
