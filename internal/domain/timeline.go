package domain

import "time"

// TimelineEntry is an immutable audit trail entry on a ticket.
type TimelineEntry struct {
	ID          string
	TicketID    string
	ActorType   ActorType
	ActorID     string
	Description string
	IsInternal  bool
	CreatedAt   time.Time
}
