package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util"
)

// DefaultTransitionCap bounds chained automatic stage transitions per
// originating event.
const DefaultTransitionCap = 10

// Coordinator sequences rule evaluation, action execution and side-effect
// routing on each incoming ticket event. Events for one ticket are processed
// strictly one at a time; events for distinct tickets run concurrently. Rule
// evaluation and action execution for one event complete, including chained
// stage transitions, before the next event for that ticket starts.
type Coordinator struct {
	tickets       repository.TicketRepository
	assignmentRep repository.AssignmentRepository
	rules         repository.RuleRepository
	masterData    repository.MasterDataRepository
	timeline      repository.TimelineRepository
	stages        *StageService
	assignments   *AssignmentService
	executor      *ActionExecutor
	notifier      NotificationDispatcher
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
	transitionCap int
	locks         ticketLocks
}

// CoordinatorDependencies bundles the coordinator's collaborators.
type CoordinatorDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	RuleRepo       repository.RuleRepository
	MasterDataRepo repository.MasterDataRepository
	TimelineRepo   repository.TimelineRepository
	Stages         *StageService
	Assignments    *AssignmentService
	Executor       *ActionExecutor
	Notifier       NotificationDispatcher
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	TransitionCap  int
}

// NewCoordinator creates the coordinator.
func NewCoordinator(deps CoordinatorDependencies) *Coordinator {
	transitionCap := deps.TransitionCap
	if transitionCap <= 0 {
		transitionCap = DefaultTransitionCap
	}
	return &Coordinator{
		tickets:       deps.TicketRepo,
		assignmentRep: deps.AssignmentRepo,
		rules:         deps.RuleRepo,
		masterData:    deps.MasterDataRepo,
		timeline:      deps.TimelineRepo,
		stages:        deps.Stages,
		assignments:   deps.Assignments,
		executor:      deps.Executor,
		notifier:      deps.Notifier,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		transitionCap: transitionCap,
		locks:         ticketLocks{entries: map[string]*lockEntry{}},
	}
}

// HandleEvent runs the automation pipeline for one event under the ticket's
// lock. Side-effect failures are logged, never fatal; the process-level
// guarantee is that nothing here can take down more than the single
// operation in flight.
func (c *Coordinator) HandleEvent(ctx context.Context, event events.Event) {
	release := c.locks.acquire(event.TicketID)
	defer release()

	budget := c.transitionCap
	c.pump(ctx, event, &budget)
}

// HandleEvents processes a batch produced by one engine operation, sharing
// one transition budget across the whole batch.
func (c *Coordinator) HandleEvents(ctx context.Context, batch []events.Event) {
	if len(batch) == 0 {
		return
	}
	release := c.locks.acquire(batch[0].TicketID)
	defer release()

	budget := c.transitionCap
	for _, event := range batch {
		c.pump(ctx, event, &budget)
	}
}

// WithTicketLock runs fn while holding the ticket's lock, then processes the
// returned events with a fresh transition budget. Engine operations that
// mutate a ticket and emit events go through here so per-ticket history
// stays linearizable.
func (c *Coordinator) WithTicketLock(ctx context.Context, ticketID string, fn func(ctx context.Context) ([]events.Event, error)) error {
	release := c.locks.acquire(ticketID)
	defer release()

	batch, err := fn(ctx)
	if err != nil {
		return err
	}
	budget := c.transitionCap
	for _, event := range batch {
		c.pump(ctx, event, &budget)
	}
	return nil
}

func (c *Coordinator) pump(ctx context.Context, event events.Event, budget *int) {
	c.metrics.RecordEvent(string(event.Trigger))

	// Observers (notification fan-out, metrics) see the event regardless of
	// whether any rule matches.
	if c.dispatcher != nil {
		if err := c.dispatcher.Publish(ctx, event); err != nil {
			c.logger.Warn("event observer failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	ticket, err := c.tickets.GetByID(ctx, event.TenantID, event.TicketID)
	if err != nil {
		c.logger.Error("event processing: load ticket failed",
			zap.String("ticket_id", event.TicketID), zap.Error(err))
		return
	}
	// Conditions can reference assignment fields.
	if active, err := c.assignmentRep.GetActiveByTicket(ctx, ticket.ID); err == nil {
		ticket.Assignment = active
	}

	if event.Trigger == domain.TriggerApprovalReceived && ticket.ApprovalHold {
		ticket.ApprovalHold = false
		if err := c.tickets.Update(ctx, ticket); err != nil {
			c.logger.Error("clearing approval hold failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			return
		}
	}

	rules, err := c.rules.ListActiveByTrigger(ctx, event.TenantID, event.Trigger)
	if err != nil {
		c.logger.Error("event processing: load rules failed",
			zap.String("trigger", string(event.Trigger)), zap.Error(err))
		return
	}

	matched, issues := EvaluateRules(event.Trigger, ticket, rules)
	for _, issue := range issues {
		c.logger.Error("skipping misconfigured rule",
			zap.String("rule_name", issue.RuleName),
			zap.Error(apperrors.NewInvalidRuleDefinition(issue.RuleID, issue.Reason)))
	}
	if len(matched) == 0 {
		return
	}

	var effects []SideEffect
	for _, rule := range matched {
		ruleEffects, failures := c.executor.Apply(ctx, ticket, rule)
		for _, failure := range failures {
			c.logger.Warn("rule action failure reported",
				zap.String("rule_id", failure.RuleID),
				zap.String("action", string(failure.ActionType)),
				zap.Error(failure.Err))
		}
		effects = append(effects, ruleEffects...)
	}

	if err := c.tickets.Update(ctx, ticket); err != nil {
		c.logger.Error("persisting rule mutations failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return
	}

	c.routeEffects(ctx, event, ticket, effects, budget)
}

func (c *Coordinator) routeEffects(ctx context.Context, origin events.Event, ticket *domain.Ticket, effects []SideEffect, budget *int) {
	for _, effect := range effects {
		switch {
		case effect.Notification != nil:
			if err := c.notifier.Dispatch(ctx, *effect.Notification); err != nil {
				// Core state already committed; delivery is at-least-once and
				// not confirmed here.
				c.logger.Warn("notification dispatch failed",
					zap.String("template", effect.Notification.TemplateKey), zap.Error(err))
			}

		case effect.Comment != nil:
			entry := &domain.TimelineEntry{
				TicketID:    ticket.ID,
				ActorType:   domain.ActorTypeSystem,
				ActorID:     domain.SystemActor().ID,
				Description: effect.Comment.Text,
				IsInternal:  effect.Comment.IsInternal,
			}
			if err := c.timeline.Create(ctx, entry); err != nil {
				c.logger.Warn("rule comment append failed",
					zap.String("ticket_id", ticket.ID), zap.Error(err))
			}

		case effect.StageChange != nil:
			c.applyStageChange(ctx, origin, ticket, effect.StageChange.TargetStageID, budget)

		case effect.Offer != nil:
			c.applyOffer(ctx, origin, ticket, *effect.Offer, budget)
		}
	}
}

// applyStageChange runs a rule-requested transition through the stage machine
// and, on success, re-enters the pump with a decremented budget so chained
// rules run inside the same logical transaction.
func (c *Coordinator) applyStageChange(ctx context.Context, origin events.Event, ticket *domain.Ticket, targetStageID string, budget *int) {
	if ticket.ApprovalHold {
		c.logger.Info("automatic transition blocked pending approval",
			zap.String("ticket_id", ticket.ID),
			zap.String("target_stage_id", targetStageID))
		return
	}
	if *budget <= 0 {
		err := apperrors.NewWorkflowLoopDetected(ticket.ID, c.transitionCap)
		c.logger.Error("workflow loop detected; leaving ticket in its last valid state",
			zap.String("ticket_id", ticket.ID),
			zap.String("origin_event", origin.ID),
			zap.Error(err))
		return
	}
	*budget--

	followUp, err := c.stages.Transition(ctx, domain.SystemActor(), ticket, targetStageID)
	if err != nil {
		c.logger.Warn("rule-driven stage change rejected",
			zap.String("ticket_id", ticket.ID),
			zap.String("target_stage_id", targetStageID),
			zap.Error(err))
		return
	}
	if followUp != nil {
		c.pump(ctx, *followUp, budget)
	}
}

// applyOffer resolves the technician (directly or by picking one from the
// team's active members) and runs the assignment protocol offer.
func (c *Coordinator) applyOffer(ctx context.Context, origin events.Event, ticket *domain.Ticket, offer OfferRequest, budget *int) {
	technicianID := offer.TechnicianID
	if technicianID == "" {
		technicians, err := c.masterData.GetActiveTechnicians(ctx, offer.TeamID)
		if err != nil || len(technicians) == 0 {
			c.logger.Warn("team offer skipped: no eligible technicians",
				zap.String("ticket_id", ticket.ID),
				zap.String("team_id", offer.TeamID),
				zap.Error(err))
			return
		}
		technicianID = technicians[pickIndex(ticket.ID, len(technicians))].ID
	}

	_, batch, err := c.assignments.Offer(ctx, domain.SystemActor(), ticket.TenantID, ticket.ID,
		technicianID, time.Now(), false)
	if err != nil {
		// An existing active assignment is expected when several rules race
		// to assign; anything else is worth a warning.
		if apperrors.HasCode(err, apperrors.CodeAssignmentConflict) {
			c.logger.Info("rule offer skipped: ticket already has an active assignment",
				zap.String("ticket_id", ticket.ID))
		} else {
			c.logger.Warn("rule offer failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("technician_id", technicianID),
				zap.Error(err))
		}
		return
	}
	for _, event := range batch {
		c.pump(ctx, event, budget)
	}
}

// pickIndex spreads team offers deterministically across members.
func pickIndex(key string, length int) int {
	if length == 0 {
		return 0
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return sum % length
}

// ticketLocks serializes processing per ticket id. Entries are reference
// counted so the map does not grow with ticket cardinality.
type ticketLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *ticketLocks) acquire(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[ticketID]
	if !ok {
		entry = &lockEntry{}
		l.entries[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, ticketID)
		}
		l.mu.Unlock()
	}
}
