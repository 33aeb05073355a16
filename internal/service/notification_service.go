package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
)

// DefaultOutboxKey is the Redis list holding queued notification requests.
const DefaultOutboxKey = "helpdesk:notifications:outbox"

// NotificationService enqueues notification requests on a Redis list for
// asynchronous delivery. Enqueue happens after the originating state change
// is committed; the delivery worker may retry, so recipients can see a
// notification more than once but never miss one that was enqueued.
type NotificationService struct {
	client          *redis.Client
	outboxKey       string
	dispatchTimeout time.Duration
	logger          *zap.Logger
}

// NewNotificationService creates the outbox producer.
func NewNotificationService(client *redis.Client, outboxKey string, dispatchTimeout time.Duration, logger *zap.Logger) *NotificationService {
	if outboxKey == "" {
		outboxKey = DefaultOutboxKey
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}
	return &NotificationService{
		client:          client,
		outboxKey:       outboxKey,
		dispatchTimeout: dispatchTimeout,
		logger:          logger,
	}
}

// Dispatch pushes the request onto the outbox within a bounded window.
func (s *NotificationService) Dispatch(ctx context.Context, req domain.NotificationRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	pushCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	if err := s.client.RPush(pushCtx, s.outboxKey, payload).Err(); err != nil {
		return err
	}

	s.logger.Debug("notification enqueued",
		zap.String("notification_id", req.ID),
		zap.String("channel", string(req.Channel)),
		zap.String("template", req.TemplateKey))
	return nil
}

// RegisterHandlers subscribes lifecycle notifications to the event bus.
// These cover the always-on messages that fire regardless of rule
// configuration; rule-driven send_email/send_sms actions go through
// Dispatch directly.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(domain.TriggerTicketCreated, func(ctx context.Context, event events.Event) error {
		return s.Dispatch(ctx, domain.NotificationRequest{
			Channel:     domain.ChannelEmail,
			Recipients:  []string{domain.RecipientRequester},
			TemplateKey: "ticket_received",
			Context: map[string]any{
				"ticket_id": event.TicketID,
			},
		})
	})

	dispatcher.Subscribe(domain.TriggerTicketStatusChanged, func(ctx context.Context, event events.Event) error {
		return s.Dispatch(ctx, domain.NotificationRequest{
			Channel:     domain.ChannelInApp,
			Recipients:  []string{domain.RecipientRequester},
			TemplateKey: "ticket_status_changed",
			Context: map[string]any{
				"ticket_id": event.TicketID,
				"payload":   event.Payload,
			},
		})
	})

	dispatcher.Subscribe(domain.TriggerQuotationExpired, func(ctx context.Context, event events.Event) error {
		return s.Dispatch(ctx, domain.NotificationRequest{
			Channel:     domain.ChannelEmail,
			Recipients:  []string{domain.RecipientBackOffice},
			TemplateKey: "quotation_expired",
			Context: map[string]any{
				"ticket_id": event.TicketID,
				"payload":   event.Payload,
			},
		})
	})
}
