package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

type recordingSender struct {
	sent []domain.NotificationRequest
}

func (s *recordingSender) Send(_ context.Context, req domain.NotificationRequest) error {
	s.sent = append(s.sent, req)
	return nil
}

func TestProcessDeliversWellFormedEntry(t *testing.T) {
	sender := &recordingSender{}
	w := NewNotificationWorker(nil, "outbox", sender, zap.NewNop())

	req := domain.NotificationRequest{
		ID:          "n-1",
		Channel:     domain.ChannelEmail,
		Recipients:  []string{domain.RecipientRequester},
		TemplateKey: "ticket_received",
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	w.process(context.Background(), raw)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "n-1", sender.sent[0].ID)
	assert.Equal(t, "ticket_received", sender.sent[0].TemplateKey)
}

func TestProcessDropsMalformedEntry(t *testing.T) {
	sender := &recordingSender{}
	w := NewNotificationWorker(nil, "outbox", sender, zap.NewNop())

	w.process(context.Background(), []byte("{not json"))
	assert.Empty(t, sender.sent, "malformed entries are dropped, not delivered")
}

func TestLogSenderAlwaysSucceeds(t *testing.T) {
	sender := &LogSender{Logger: zap.NewNop()}
	err := sender.Send(context.Background(), domain.NotificationRequest{ID: "n-2"})
	assert.NoError(t, err)
}
