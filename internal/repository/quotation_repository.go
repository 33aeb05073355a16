package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// QuotationRepository persists quotations. Items ride along as JSONB since
// the engine always loads and saves the quotation as one aggregate.
type QuotationRepository interface {
	Create(ctx context.Context, quotation *domain.Quotation) error
	GetByID(ctx context.Context, id string) (*domain.Quotation, error)
	GetOpenByTicket(ctx context.Context, ticketID string) (*domain.Quotation, error)
	// UpdateCAS saves only when the stored version still equals expectedVersion.
	UpdateCAS(ctx context.Context, quotation *domain.Quotation, expectedVersion int64) (bool, error)
}

type quotationRepository struct {
	pool *pgxpool.Pool
}

// NewQuotationRepository instantiates repository.
func NewQuotationRepository(pool *pgxpool.Pool) QuotationRepository {
	return &quotationRepository{pool: pool}
}

func (r *quotationRepository) Create(ctx context.Context, quotation *domain.Quotation) error {
	items, err := json.Marshal(quotation.Items)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO quotations (ticket_id, status, items, tax_rate, subtotal, tax_amount,
            total_amount, rejection_reason, customer_notes, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		quotation.TicketID,
		quotation.Status,
		items,
		quotation.TaxRate,
		quotation.Subtotal,
		quotation.TaxAmount,
		quotation.TotalAmount,
		quotation.RejectionReason,
		quotation.CustomerNotes,
	).Scan(&quotation.ID, &quotation.Version, &quotation.CreatedAt, &quotation.UpdatedAt)
}

const quotationColumns = `
    id, ticket_id, status, items, tax_rate, subtotal, tax_amount, total_amount,
    rejection_reason, customer_notes, version, created_at, updated_at`

func (r *quotationRepository) GetByID(ctx context.Context, id string) (*domain.Quotation, error) {
	query := `SELECT ` + quotationColumns + ` FROM quotations WHERE id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *quotationRepository) GetOpenByTicket(ctx context.Context, ticketID string) (*domain.Quotation, error) {
	query := `SELECT ` + quotationColumns + `
        FROM quotations
        WHERE ticket_id=$1 AND status IN ('DRAFT','SENT')
        ORDER BY created_at DESC
        LIMIT 1`
	quotation, err := r.scanOne(r.pool.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return quotation, err
}

func (r *quotationRepository) UpdateCAS(ctx context.Context, quotation *domain.Quotation, expectedVersion int64) (bool, error) {
	items, err := json.Marshal(quotation.Items)
	if err != nil {
		return false, err
	}
	const query = `
        UPDATE quotations
        SET status=$1, items=$2, tax_rate=$3, subtotal=$4, tax_amount=$5, total_amount=$6,
            rejection_reason=$7, customer_notes=$8, version=version+1, updated_at=now()
        WHERE id=$9 AND version=$10
        RETURNING version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		quotation.Status,
		items,
		quotation.TaxRate,
		quotation.Subtotal,
		quotation.TaxAmount,
		quotation.TotalAmount,
		quotation.RejectionReason,
		quotation.CustomerNotes,
		quotation.ID,
		expectedVersion,
	).Scan(&quotation.Version, &quotation.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *quotationRepository) scanOne(row pgx.Row) (*domain.Quotation, error) {
	quotation := &domain.Quotation{}
	var items []byte
	err := row.Scan(
		&quotation.ID,
		&quotation.TicketID,
		&quotation.Status,
		&items,
		&quotation.TaxRate,
		&quotation.Subtotal,
		&quotation.TaxAmount,
		&quotation.TotalAmount,
		&quotation.RejectionReason,
		&quotation.CustomerNotes,
		&quotation.Version,
		&quotation.CreatedAt,
		&quotation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &quotation.Items); err != nil {
			return nil, err
		}
	}
	return quotation, nil
}
