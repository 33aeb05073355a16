package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

type quotationFixture struct {
	service    *QuotationService
	quotations *fakeQuotationRepo
	tickets    *fakeTicketRepo
	timeline   *fakeTimelineRepo
	notifier   *fakeNotifier
	ticket     *domain.Ticket
}

func newQuotationFixture(t *testing.T) *quotationFixture {
	t.Helper()
	quotations := newFakeQuotationRepo()
	tickets := newFakeTicketRepo()
	timeline := newFakeTimelineRepo()
	notifier := &fakeNotifier{}

	service := NewQuotationService(QuotationDependencies{
		QuotationRepo: quotations,
		TicketRepo:    tickets,
		TimelineRepo:  timeline,
		Notifier:      notifier,
		Logger:        zap.NewNop(),
	})

	ticket := &domain.Ticket{
		TenantID:       "acme",
		Subject:        "compressor replacement",
		WorkflowID:     "wf-1",
		CurrentStageID: "pending_parts",
		IsOpen:         true,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))

	return &quotationFixture{
		service:    service,
		quotations: quotations,
		tickets:    tickets,
		timeline:   timeline,
		notifier:   notifier,
		ticket:     ticket,
	}
}

func (f *quotationFixture) draftWithItems(t *testing.T) *domain.Quotation {
	t.Helper()
	ctx := context.Background()
	quotation, err := f.service.Create(ctx, backOffice(), "acme", f.ticket.ID)
	require.NoError(t, err)
	quotation, err = f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "compressor unit", Quantity: 2, UnitPrice: 500})
	require.NoError(t, err)
	quotation, err = f.service.SetTaxRate(ctx, quotation.ID, quotation.Version, 18)
	require.NoError(t, err)
	return quotation
}

func (f *quotationFixture) sent(t *testing.T) *domain.Quotation {
	t.Helper()
	quotation := f.draftWithItems(t)
	quotation, err := f.service.Send(context.Background(), backOffice(), quotation.ID, quotation.Version)
	require.NoError(t, err)
	return quotation
}

func TestQuotationDerivedTotals(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.draftWithItems(t)

	assert.Equal(t, 1000.0, quotation.Subtotal)
	assert.Equal(t, 180.0, quotation.TaxAmount)
	assert.Equal(t, 1180.0, quotation.TotalAmount)

	ctx := context.Background()
	quotation, err := f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "labour", Quantity: 3, UnitPrice: 33.33})
	require.NoError(t, err)
	assert.Equal(t, 1099.99, quotation.Subtotal)
	assert.Equal(t, 198.0, quotation.TaxAmount)
	assert.Equal(t, 1297.99, quotation.TotalAmount)

	quotation, err = f.service.RemoveItem(ctx, quotation.ID, quotation.Version, quotation.Items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, quotation.Subtotal)
	assert.Equal(t, 1180.0, quotation.TotalAmount)
}

func TestQuotationItemValidation(t *testing.T) {
	f := newQuotationFixture(t)
	quotation, err := f.service.Create(context.Background(), backOffice(), "acme", f.ticket.ID)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "  ", Quantity: 1, UnitPrice: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "bolt", Quantity: 0, UnitPrice: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "bolt", Quantity: 1, UnitPrice: -1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.service.SetTaxRate(ctx, quotation.ID, quotation.Version, -5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.service.RemoveItem(ctx, quotation.ID, quotation.Version, "no-such-item")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestQuotationOnePerTicket(t *testing.T) {
	f := newQuotationFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, backOffice(), "acme", f.ticket.ID)
	require.NoError(t, err)

	_, err = f.service.Create(ctx, backOffice(), "acme", f.ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestQuotationNewDraftAfterRejection(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.sent(t)
	ctx := context.Background()

	_, _, err := f.service.Respond(ctx, backOffice(), "acme", quotation.ID, quotation.Version,
		false, "too expensive", "")
	require.NoError(t, err)

	_, err = f.service.Create(ctx, backOffice(), "acme", f.ticket.ID)
	require.NoError(t, err, "a rejected quotation no longer blocks a fresh draft")
}

func TestQuotationSendRequiresItems(t *testing.T) {
	f := newQuotationFixture(t)
	quotation, err := f.service.Create(context.Background(), backOffice(), "acme", f.ticket.ID)
	require.NoError(t, err)

	_, err = f.service.Send(context.Background(), backOffice(), quotation.ID, quotation.Version)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestQuotationSentLocksItems(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.sent(t)
	ctx := context.Background()

	assert.Contains(t, f.notifier.templates(), "quotation_sent")

	_, err := f.service.AddItem(ctx, quotation.ID, quotation.Version,
		QuotationItemInput{Description: "extra", Quantity: 1, UnitPrice: 5})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = f.service.SetTaxRate(ctx, quotation.ID, quotation.Version, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = f.service.Send(ctx, backOffice(), quotation.ID, quotation.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "send is not repeatable")
}

func TestQuotationApprovalEmitsPartsApproved(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.sent(t)

	approved, batch, err := f.service.Respond(context.Background(), backOffice(), "acme",
		quotation.ID, quotation.Version, true, "", "please come before noon")
	require.NoError(t, err)
	assert.Equal(t, domain.QuotationApproved, approved.Status)
	assert.Equal(t, "please come before noon", approved.CustomerNotes)

	require.Len(t, batch, 1)
	assert.Equal(t, domain.TriggerPartsApproved, batch[0].Trigger)
	payload, ok := batch[0].Payload.(events.QuotationPayload)
	require.True(t, ok)
	assert.Equal(t, approved.TotalAmount, payload.TotalAmount)
}

func TestQuotationRejectionRequiresReason(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.sent(t)
	ctx := context.Background()

	_, _, err := f.service.Respond(ctx, backOffice(), "acme", quotation.ID, quotation.Version,
		false, "   ", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	rejected, batch, err := f.service.Respond(ctx, backOffice(), "acme", quotation.ID, quotation.Version,
		false, "found a cheaper part", "")
	require.NoError(t, err)
	assert.Empty(t, batch, "rejection emits no rule event")
	assert.Equal(t, domain.QuotationRejected, rejected.Status)
	assert.Equal(t, "found a cheaper part", rejected.RejectionReason)
}

func TestQuotationRespondOutsideSent(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.draftWithItems(t)

	_, _, err := f.service.Respond(context.Background(), backOffice(), "acme",
		quotation.ID, quotation.Version, true, "", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestQuotationExpire(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.sent(t)
	ctx := context.Background()

	expired, batch, err := f.service.Expire(ctx, "acme", quotation.ID, quotation.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotationExpired, expired.Status)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.TriggerQuotationExpired, batch[0].Trigger)

	_, _, err = f.service.Expire(ctx, "acme", quotation.ID, expired.Version)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, _, err = f.service.Respond(ctx, backOffice(), "acme", quotation.ID, expired.Version, true, "", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "expired is terminal")
}

func TestQuotationConcurrentModification(t *testing.T) {
	f := newQuotationFixture(t)
	quotation := f.draftWithItems(t)

	_, err := f.service.AddItem(context.Background(), quotation.ID, quotation.Version-1,
		QuotationItemInput{Description: "stale write", Quantity: 1, UnitPrice: 1})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}
