package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// AddQuotationItemRequest payload.
type AddQuotationItemRequest struct {
	ExpectedVersion int64   `json:"expected_version" validate:"required,min=1"`
	Description     string  `json:"description" validate:"required"`
	Quantity        int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
}

// RemoveQuotationItemRequest payload.
type RemoveQuotationItemRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,min=1"`
}

// SetTaxRateRequest payload.
type SetTaxRateRequest struct {
	ExpectedVersion int64   `json:"expected_version" validate:"required,min=1"`
	TaxRate         float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

// SendQuotationRequest payload.
type SendQuotationRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,min=1"`
}

// ExpireQuotationRequest payload.
type ExpireQuotationRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,min=1"`
}

// RespondQuotationRequest carries the customer's decision.
type RespondQuotationRequest struct {
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
	Approved        bool   `json:"approved"`
	RejectionReason string `json:"rejection_reason"`
	CustomerNotes   string `json:"customer_notes"`
}

// QuotationItemResponse view.
type QuotationItemResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// QuotationResponse view.
type QuotationResponse struct {
	ID              string                  `json:"id"`
	TicketID        string                  `json:"ticket_id"`
	Status          domain.QuotationStatus  `json:"status"`
	Items           []QuotationItemResponse `json:"items"`
	TaxRate         float64                 `json:"tax_rate"`
	Subtotal        float64                 `json:"subtotal"`
	TaxAmount       float64                 `json:"tax_amount"`
	TotalAmount     float64                 `json:"total_amount"`
	RejectionReason string                  `json:"rejection_reason,omitempty"`
	CustomerNotes   string                  `json:"customer_notes,omitempty"`
	Version         int64                   `json:"version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}
