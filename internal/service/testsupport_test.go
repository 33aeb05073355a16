package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// In-memory repository fakes. Lookups return copies so callers mutating a
// loaded aggregate cannot bypass the save path, mirroring row scans.

type fakeTicketRepo struct {
	mu        sync.Mutex
	tickets   map[string]*domain.Ticket
	sequences map[string]int64
	updateErr error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:   map[string]*domain.Ticket{},
		sequences: map[string]int64{},
	}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.Version = 1
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.TenantID != ticket.TenantID {
		return pgx.ErrNoRows
	}
	ticket.Version = stored.Version + 1
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok || stored.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeTicketRepo) NextTicketNumber(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[tenantID]++
	return r.sequences[tenantID], nil
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[string]*domain.Assignment
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{assignments: map[string]*domain.Assignment{}}
}

func (r *fakeAssignmentRepo) Create(_ context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignment.ID = uuid.NewString()
	assignment.Version = 1
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = assignment.CreatedAt
	clone := *assignment
	r.assignments[assignment.ID] = &clone
	return nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeAssignmentRepo) GetActiveByTicket(_ context.Context, ticketID string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.assignments {
		if stored.TicketID == ticketID && stored.IsActive() {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeAssignmentRepo) UpdateCAS(_ context.Context, assignment *domain.Assignment, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[assignment.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	assignment.Version = expectedVersion + 1
	assignment.UpdatedAt = time.Now()
	clone := *assignment
	r.assignments[assignment.ID] = &clone
	return true, nil
}

func (r *fakeAssignmentRepo) Archive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.assignments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Archived = true
	return nil
}

type fakeQuotationRepo struct {
	mu         sync.Mutex
	quotations map[string]*domain.Quotation
}

func newFakeQuotationRepo() *fakeQuotationRepo {
	return &fakeQuotationRepo{quotations: map[string]*domain.Quotation{}}
}

func (r *fakeQuotationRepo) Create(_ context.Context, quotation *domain.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quotation.ID = uuid.NewString()
	quotation.Version = 1
	quotation.CreatedAt = time.Now()
	quotation.UpdatedAt = quotation.CreatedAt
	clone := *quotation
	r.quotations[quotation.ID] = &clone
	return nil
}

func (r *fakeQuotationRepo) GetByID(_ context.Context, id string) (*domain.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	clone.Items = append([]domain.QuotationItem(nil), stored.Items...)
	return &clone, nil
}

func (r *fakeQuotationRepo) GetOpenByTicket(_ context.Context, ticketID string) (*domain.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.quotations {
		if stored.TicketID != ticketID {
			continue
		}
		if stored.Status == domain.QuotationDraft || stored.Status == domain.QuotationSent {
			clone := *stored
			clone.Items = append([]domain.QuotationItem(nil), stored.Items...)
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeQuotationRepo) UpdateCAS(_ context.Context, quotation *domain.Quotation, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotations[quotation.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	quotation.Version = expectedVersion + 1
	quotation.UpdatedAt = time.Now()
	clone := *quotation
	clone.Items = append([]domain.QuotationItem(nil), quotation.Items...)
	r.quotations[quotation.ID] = &clone
	return true, nil
}

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules []domain.WorkflowRule
}

func newFakeRuleRepo(rules ...domain.WorkflowRule) *fakeRuleRepo {
	return &fakeRuleRepo{rules: rules}
}

func (r *fakeRuleRepo) Create(_ context.Context, rule *domain.WorkflowRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = uuid.NewString()
	rule.DisplayOrder = len(r.rules)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *domain.WorkflowRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID && r.rules[i].TenantID == rule.TenantID {
			rule.UpdatedAt = time.Now()
			r.rules[i] = *rule
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeRuleRepo) GetByID(_ context.Context, tenantID, id string) (*domain.WorkflowRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id && r.rules[i].TenantID == tenantID {
			clone := r.rules[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRuleRepo) List(_ context.Context, tenantID string) ([]domain.WorkflowRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WorkflowRule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *fakeRuleRepo) ListActiveByTrigger(_ context.Context, tenantID string, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WorkflowRule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.IsActive && rule.Trigger == trigger {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

type fakeTimelineRepo struct {
	mu      sync.Mutex
	entries []domain.TimelineEntry
}

func newFakeTimelineRepo() *fakeTimelineRepo {
	return &fakeTimelineRepo{}
}

func (r *fakeTimelineRepo) Create(_ context.Context, entry *domain.TimelineEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeTimelineRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TimelineEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TimelineEntry
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeTimelineRepo) descriptions(ticketID string) []string {
	entries, _ := r.ListByTicket(context.Background(), ticketID)
	var out []string
	for _, entry := range entries {
		out = append(out, entry.Description)
	}
	return out
}

type fakeMasterData struct {
	workflows      map[string]*domain.WorkflowDefinition
	workflowByType map[string]*domain.WorkflowDefinition
	priorities     map[string]*domain.Priority
	helpTopics     map[string]*domain.HelpTopic
	problemTypes   map[string]*domain.ProblemType
	declineReasons map[string]*domain.DeclineReason
	schemas        map[string]*domain.CustomFormSchema
	technicians    map[string][]domain.Technician
	slugs          []string
}

func newFakeMasterData() *fakeMasterData {
	return &fakeMasterData{
		workflows:      map[string]*domain.WorkflowDefinition{},
		workflowByType: map[string]*domain.WorkflowDefinition{},
		priorities:     map[string]*domain.Priority{},
		helpTopics:     map[string]*domain.HelpTopic{},
		problemTypes:   map[string]*domain.ProblemType{},
		declineReasons: map[string]*domain.DeclineReason{},
		schemas:        map[string]*domain.CustomFormSchema{},
		technicians:    map[string][]domain.Technician{},
	}
}

func (m *fakeMasterData) GetWorkflowByID(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	if workflow, ok := m.workflows[id]; ok {
		return workflow, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetWorkflowForTicketType(_ context.Context, tenantID, ticketTypeID string) (*domain.WorkflowDefinition, error) {
	if workflow, ok := m.workflowByType[tenantID+"/"+ticketTypeID]; ok {
		return workflow, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetPriority(_ context.Context, id string) (*domain.Priority, error) {
	if priority, ok := m.priorities[id]; ok {
		return priority, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetPriorities(_ context.Context, _ string) ([]domain.Priority, error) {
	var out []domain.Priority
	for _, priority := range m.priorities {
		out = append(out, *priority)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (m *fakeMasterData) GetHelpTopic(_ context.Context, id string) (*domain.HelpTopic, error) {
	if topic, ok := m.helpTopics[id]; ok {
		return topic, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetProblemType(_ context.Context, id string) (*domain.ProblemType, error) {
	if problemType, ok := m.problemTypes[id]; ok {
		return problemType, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetDeclineReason(_ context.Context, id string) (*domain.DeclineReason, error) {
	if reason, ok := m.declineReasons[id]; ok {
		return reason, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetActiveDeclineReasons(_ context.Context, _ string) ([]domain.DeclineReason, error) {
	var out []domain.DeclineReason
	for _, reason := range m.declineReasons {
		if reason.IsActive {
			out = append(out, *reason)
		}
	}
	return out, nil
}

func (m *fakeMasterData) GetCustomFormSchema(_ context.Context, helpTopicID string) (*domain.CustomFormSchema, error) {
	if schema, ok := m.schemas[helpTopicID]; ok {
		return schema, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *fakeMasterData) GetActiveTechnicians(_ context.Context, teamID string) ([]domain.Technician, error) {
	return m.technicians[teamID], nil
}

func (m *fakeMasterData) ListCustomFieldSlugs(_ context.Context, _ string) ([]string, error) {
	return m.slugs, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	requests []domain.NotificationRequest
	fail     bool
}

func (n *fakeNotifier) Dispatch(_ context.Context, request domain.NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("dispatch unavailable")
	}
	n.requests = append(n.requests, request)
	return nil
}

func (n *fakeNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, request := range n.requests {
		out = append(out, request.TemplateKey)
	}
	return out
}

// twoStageWorkflow builds a minimal new → in_progress → done workflow.
func twoStageWorkflow(tenantID string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		TicketTypeID: "standard",
		Name:         "standard repair",
		Stages: []domain.Stage{
			{ID: "new", Name: "New", Order: 1, IsInitial: true, AllowedNextStageIDs: []string{"in_progress"}},
			{ID: "in_progress", Name: "In Progress", Order: 2, AllowedNextStageIDs: []string{"done"}},
			{ID: "done", Name: "Done", Order: 3, IsTerminal: true, IsSuccess: true},
		},
	}
}
