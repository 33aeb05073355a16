package domain

import (
	"math"
	"time"
)

// QuotationStatus enumerates the quotation lifecycle.
type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "DRAFT"
	QuotationSent     QuotationStatus = "SENT"
	QuotationApproved QuotationStatus = "APPROVED"
	QuotationRejected QuotationStatus = "REJECTED"
	QuotationExpired  QuotationStatus = "EXPIRED"
)

// QuotationItem is one priced line on a quotation.
type QuotationItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Quotation is a priced parts/services proposal tied to a ticket. Subtotal,
// TaxAmount and TotalAmount are derived from Items and TaxRate, recomputed on
// every mutation while in draft, and never stored independently.
type Quotation struct {
	ID              string
	TicketID        string
	Status          QuotationStatus
	Items           []QuotationItem
	TaxRate         float64
	Subtotal        float64
	TaxAmount       float64
	TotalAmount     float64
	RejectionReason string
	CustomerNotes   string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether no further transition is possible.
func (q *Quotation) Terminal() bool {
	switch q.Status {
	case QuotationApproved, QuotationRejected, QuotationExpired:
		return true
	}
	return false
}

// Recalculate rederives subtotal, tax and total from items and tax rate.
func (q *Quotation) Recalculate() {
	subtotal := 0.0
	for _, item := range q.Items {
		subtotal += float64(item.Quantity) * item.UnitPrice
	}
	q.Subtotal = roundMoney(subtotal)
	q.TaxAmount = roundMoney(q.Subtotal * q.TaxRate / 100)
	q.TotalAmount = roundMoney(q.Subtotal + q.TaxAmount)
}

// roundMoney rounds half away from zero to 2 decimals.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
