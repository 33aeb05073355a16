package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// NotificationWorker drains the Redis notification outbox and hands each
// request to the configured sender. A failed delivery is requeued at the
// tail, so delivery is at-least-once.
type NotificationWorker struct {
	client    *redis.Client
	outboxKey string
	sender    Sender
	logger    *zap.Logger
}

// Sender delivers one notification over its channel. Implementations are
// expected to be idempotent on the request id where the channel allows it.
type Sender interface {
	Send(ctx context.Context, req domain.NotificationRequest) error
}

// NewNotificationWorker creates a worker bound to the given outbox list.
func NewNotificationWorker(client *redis.Client, outboxKey string, sender Sender, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{
		client:    client,
		outboxKey: outboxKey,
		sender:    sender,
		logger:    logger,
	}
}

// Run blocks on the outbox until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started", zap.String("outbox", w.outboxKey))
	for {
		if ctx.Err() != nil {
			w.logger.Info("notification worker stopped")
			return
		}

		result, err := w.client.BLPop(ctx, 5*time.Second, w.outboxKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warn("outbox poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		// BLPop returns [key, value].
		if len(result) != 2 {
			continue
		}
		w.process(ctx, []byte(result[1]))
	}
}

func (w *NotificationWorker) process(ctx context.Context, raw []byte) {
	var req domain.NotificationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		// Malformed entries are dropped; requeueing them would loop forever.
		w.logger.Error("dropping malformed outbox entry", zap.Error(err))
		return
	}

	if err := w.sender.Send(ctx, req); err != nil {
		w.logger.Warn("notification delivery failed, requeueing",
			zap.String("notification_id", req.ID),
			zap.String("channel", string(req.Channel)),
			zap.Error(err))
		if pushErr := w.client.RPush(ctx, w.outboxKey, raw).Err(); pushErr != nil {
			w.logger.Error("requeue failed, notification lost",
				zap.String("notification_id", req.ID), zap.Error(pushErr))
		}
		return
	}

	w.logger.Info("notification delivered",
		zap.String("notification_id", req.ID),
		zap.String("channel", string(req.Channel)),
		zap.String("template", req.TemplateKey))
}

// LogSender writes deliveries to the log. It stands in for the external
// channel integrations in environments without mail or SMS credentials.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(_ context.Context, req domain.NotificationRequest) error {
	s.Logger.Info("delivering notification",
		zap.String("notification_id", req.ID),
		zap.String("channel", string(req.Channel)),
		zap.Strings("recipients", req.Recipients),
		zap.String("template", req.TemplateKey))
	return nil
}
