package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-engine/internal/api/http"
	"github.com/spec-kit/helpdesk-engine/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-engine/internal/auth"
	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/service"
)

// Minimal repository stubs for routing tests. The service suite owns the
// behavioral coverage; here we only need enough state to drive a request
// through auth, the router and the coordinator.

type stubTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

func (r *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *stubTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *stubTicketRepo) GetByID(_ context.Context, tenantID, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.TenantID != tenantID {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *stubTicketRepo) NextTicketNumber(_ context.Context, _ string) (int64, error) {
	return 1, nil
}

type stubAssignmentRepo struct{}

func (stubAssignmentRepo) Create(context.Context, *domain.Assignment) error { return nil }
func (stubAssignmentRepo) GetByID(context.Context, string) (*domain.Assignment, error) {
	return nil, pgx.ErrNoRows
}
func (stubAssignmentRepo) GetActiveByTicket(context.Context, string) (*domain.Assignment, error) {
	return nil, nil
}
func (stubAssignmentRepo) UpdateCAS(context.Context, *domain.Assignment, int64) (bool, error) {
	return false, nil
}
func (stubAssignmentRepo) Archive(context.Context, string) error { return nil }

type stubRuleRepo struct{}

func (stubRuleRepo) Create(context.Context, *domain.WorkflowRule) error { return nil }
func (stubRuleRepo) Update(context.Context, *domain.WorkflowRule) error { return nil }
func (stubRuleRepo) GetByID(context.Context, string, string) (*domain.WorkflowRule, error) {
	return nil, pgx.ErrNoRows
}
func (stubRuleRepo) List(context.Context, string) ([]domain.WorkflowRule, error) { return nil, nil }
func (stubRuleRepo) ListActiveByTrigger(context.Context, string, domain.TriggerEvent) ([]domain.WorkflowRule, error) {
	return nil, nil
}

type stubTimelineRepo struct{}

func (stubTimelineRepo) Create(context.Context, *domain.TimelineEntry) error { return nil }
func (stubTimelineRepo) ListByTicket(context.Context, string) ([]domain.TimelineEntry, error) {
	return nil, nil
}

func newApprovalApp(t *testing.T, repo *stubTicketRepo) *fiber.App {
	t.Helper()
	logger := zap.NewNop()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Logger:     logger,
	})
	coordinator := service.NewCoordinator(service.CoordinatorDependencies{
		TicketRepo:     repo,
		AssignmentRepo: stubAssignmentRepo{},
		RuleRepo:       stubRuleRepo{},
		TimelineRepo:   stubTimelineRepo{},
		Logger:         logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, nil, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Tickets:        handlers.NewTicketsHandler(ticketService, nil, coordinator),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager("test-secret")),
	})
	return app
}

func bearerToken(t *testing.T, actorType domain.ActorType, subject string) string {
	t.Helper()
	claims := auth.Claims{
		ActorType: actorType,
		ActorName: "Dispatcher",
		TenantID:  "acme",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestApprovalEndpointReleasesHold(t *testing.T) {
	repo := &stubTicketRepo{tickets: map[string]domain.Ticket{
		"t-1": {ID: "t-1", TenantID: "acme", CurrentStageID: "awaiting_approval", IsOpen: true, ApprovalHold: true, Version: 1},
	}}
	app := newApprovalApp(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/t-1/approval", nil)
	req.Header.Set("Authorization", bearerToken(t, domain.ActorTypeBackOffice, "op-1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := repo.GetByID(context.Background(), "acme", "t-1")
	require.NoError(t, err)
	assert.False(t, stored.ApprovalHold)
}

func TestApprovalEndpointUnknownTicket(t *testing.T) {
	repo := &stubTicketRepo{tickets: map[string]domain.Ticket{}}
	app := newApprovalApp(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/nope/approval", nil)
	req.Header.Set("Authorization", bearerToken(t, domain.ActorTypeBackOffice, "op-1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApprovalEndpointRequiresBackOffice(t *testing.T) {
	repo := &stubTicketRepo{tickets: map[string]domain.Ticket{
		"t-1": {ID: "t-1", TenantID: "acme", CurrentStageID: "awaiting_approval", IsOpen: true, ApprovalHold: true, Version: 1},
	}}
	app := newApprovalApp(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/t-1/approval", nil)
	req.Header.Set("Authorization", bearerToken(t, domain.ActorTypeUser, "user-1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	stored, err := repo.GetByID(context.Background(), "acme", "t-1")
	require.NoError(t, err)
	assert.True(t, stored.ApprovalHold)
}