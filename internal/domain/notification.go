package domain

import "time"

// NotificationChannel enumerates delivery channels. The engine decides that
// and to whom to notify; actual delivery belongs to an external dispatcher.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "in_app"
)

// Recipient keys resolved by the external dispatcher. The engine addresses
// roles, not contact details.
const (
	RecipientRequester  = "requester"
	RecipientTechnician = "technician"
	RecipientBackOffice = "back_office"
	RecipientCustomer   = "customer"
)

// NotificationRequest asks the external dispatcher to deliver a templated
// message. Delivery is at-least-once; duplicates are acceptable.
type NotificationRequest struct {
	ID          string              `json:"id"`
	Channel     NotificationChannel `json:"channel"`
	Recipients  []string            `json:"recipients"`
	TemplateKey string              `json:"template_key"`
	Context     map[string]any      `json:"context,omitempty"`
	EnqueuedAt  time.Time           `json:"enqueued_at"`
}
