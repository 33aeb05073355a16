package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

type ticketFixture struct {
	service  *TicketService
	tickets  *fakeTicketRepo
	master   *fakeMasterData
	timeline *fakeTimelineRepo
	workflow *domain.WorkflowDefinition
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	master := newFakeMasterData()
	timeline := newFakeTimelineRepo()

	workflow := twoStageWorkflow("acme")
	master.workflows[workflow.ID] = workflow
	master.workflowByType["acme/standard"] = workflow
	master.helpTopics["topic-hardware"] = &domain.HelpTopic{ID: "topic-hardware", Name: "Hardware", IsActive: true}
	master.helpTopics["topic-retired"] = &domain.HelpTopic{ID: "topic-retired", Name: "Legacy", IsActive: false}
	master.priorities["prio-normal"] = &domain.Priority{ID: "prio-normal", Name: "Normal", Level: 2, IsActive: true}
	master.priorities["prio-retired"] = &domain.Priority{ID: "prio-retired", Name: "Old", Level: 1, IsActive: false}

	service := NewTicketService(TicketDependencies{
		TicketRepo:     tickets,
		MasterDataRepo: master,
		TimelineRepo:   timeline,
		Logger:         zap.NewNop(),
	})
	return &ticketFixture{service: service, tickets: tickets, master: master, timeline: timeline, workflow: workflow}
}

func validCreateInput() TicketCreateInput {
	return TicketCreateInput{
		TicketTypeID: "standard",
		Subject:      "  laptop will not boot  ",
		Description:  "battery light blinks twice",
		HelpTopicID:  "topic-hardware",
		PriorityID:   "prio-normal",
	}
}

func TestCreateTicketPlacesInInitialStage(t *testing.T) {
	f := newTicketFixture(t)

	ticket, batch, err := f.service.CreateTicket(context.Background(), backOffice(), "acme", validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "new", ticket.CurrentStageID)
	assert.True(t, ticket.IsOpen)
	assert.Equal(t, int64(1), ticket.TicketNumber)
	assert.Equal(t, "laptop will not boot", ticket.Subject, "subject is trimmed")

	require.Len(t, batch, 1)
	assert.Equal(t, domain.TriggerTicketCreated, batch[0].Trigger)

	descriptions := f.timeline.descriptions(ticket.ID)
	require.Len(t, descriptions, 1)
	assert.Contains(t, descriptions[0], "#1")
}

func TestCreateTicketNumbersArePerTenant(t *testing.T) {
	f := newTicketFixture(t)
	other := twoStageWorkflow("globex")
	f.master.workflows[other.ID] = other
	f.master.workflowByType["globex/standard"] = other
	ctx := context.Background()

	first, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", validCreateInput())
	require.NoError(t, err)
	second, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", validCreateInput())
	require.NoError(t, err)
	foreign, _, err := f.service.CreateTicket(ctx, backOffice(), "globex", validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.TicketNumber)
	assert.Equal(t, int64(2), second.TicketNumber)
	assert.Equal(t, int64(1), foreign.TicketNumber, "sequences do not leak across tenants")
}

func TestCreateTicketRejectsBadMasterData(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	input := validCreateInput()
	input.HelpTopicID = "topic-missing"
	_, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	input = validCreateInput()
	input.HelpTopicID = "topic-retired"
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	input = validCreateInput()
	input.PriorityID = "prio-retired"
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	input = validCreateInput()
	input.TicketTypeID = "unmapped"
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestCreateTicketCustomFieldValidation(t *testing.T) {
	f := newTicketFixture(t)
	formID := "form-hw"
	f.master.helpTopics["topic-hardware"].CustomFormID = &formID
	f.master.schemas["topic-hardware"] = &domain.CustomFormSchema{
		ID: formID,
		Fields: []domain.FieldDef{
			{Slug: "serial_number", Type: domain.FieldTypeText, Required: true},
			{Slug: "purchase_date", Type: domain.FieldTypeDate},
			{Slug: "device_class", Type: domain.FieldTypeSelect, Options: []string{"laptop", "desktop"}},
		},
	}
	ctx := context.Background()

	input := validCreateInput()
	input.CustomFieldValues = map[string]any{"serial_number": "SN-100", "unknown_field": "x"}
	_, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "closed map rejects unknown slugs")

	input.CustomFieldValues = map[string]any{"purchase_date": "2026-01-15"}
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "required field missing")

	input.CustomFieldValues = map[string]any{"serial_number": 12345}
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "type mismatch")

	input.CustomFieldValues = map[string]any{"serial_number": "SN-100", "device_class": "tablet"}
	_, _, err = f.service.CreateTicket(ctx, backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "select outside options")

	input.CustomFieldValues = map[string]any{
		"serial_number": "SN-100",
		"purchase_date": "2026-01-15",
		"device_class":  "laptop",
	}
	ticket, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", input)
	require.NoError(t, err)
	assert.Equal(t, "SN-100", ticket.CustomFieldValues["serial_number"])
}

func TestCreateTicketRejectsCustomFieldsWithoutForm(t *testing.T) {
	f := newTicketFixture(t)
	input := validCreateInput()
	input.CustomFieldValues = map[string]any{"anything": "x"}

	_, _, err := f.service.CreateTicket(context.Background(), backOffice(), "acme", input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestUpdateTicketPartialChanges(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", validCreateInput())
	require.NoError(t, err)

	subject := "laptop will not boot after update"
	updated, batch, err := f.service.UpdateTicket(ctx, backOffice(), "acme", ticket.ID,
		TicketUpdateInput{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, subject, updated.Subject)
	assert.Equal(t, ticket.Description, updated.Description, "nil pointer leaves value untouched")
	assert.Equal(t, ticket.PriorityID, updated.PriorityID)

	require.Len(t, batch, 1)
	assert.Equal(t, domain.TriggerTicketUpdated, batch[0].Trigger)

	badPriority := "prio-retired"
	_, _, err = f.service.UpdateTicket(ctx, backOffice(), "acme", ticket.ID,
		TicketUpdateInput{PriorityID: &badPriority})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestGetTicketAndTimelineTenantScope(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	ticket, _, err := f.service.CreateTicket(ctx, backOffice(), "acme", validCreateInput())
	require.NoError(t, err)

	loaded, err := f.service.GetTicket(ctx, "acme", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, loaded.ID)

	_, err = f.service.GetTicket(ctx, "globex", ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	entries, err := f.service.ListTimeline(ctx, "acme", ticket.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	_, err = f.service.ListTimeline(ctx, "globex", ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
