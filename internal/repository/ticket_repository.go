package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// TicketRepository encapsulates ticket persistence. The engine treats the
// ticket as an aggregate it loads, mutates and saves per operation; there is
// no caching beyond request scope.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	NextTicketNumber(ctx context.Context, tenantID string) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	customFields, err := json.Marshal(ticket.CustomFieldValues)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (tenant_id, ticket_number, subject, description, help_topic_id,
            priority_id, company_id, device_id, problem_type_id, workflow_id,
            current_stage_id, is_open, approval_hold, tags, custom_field_values, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.TicketNumber,
		ticket.Subject,
		ticket.Description,
		ticket.HelpTopicID,
		ticket.PriorityID,
		ticket.CompanyID,
		ticket.DeviceID,
		ticket.ProblemTypeID,
		ticket.WorkflowID,
		ticket.CurrentStageID,
		ticket.IsOpen,
		ticket.ApprovalHold,
		ticket.Tags,
		customFields,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	customFields, err := json.Marshal(ticket.CustomFieldValues)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets
        SET subject=$1, description=$2, help_topic_id=$3, priority_id=$4, company_id=$5,
            device_id=$6, problem_type_id=$7, current_stage_id=$8, is_open=$9,
            approval_hold=$10, tags=$11, custom_field_values=$12,
            version=version+1, updated_at=now()
        WHERE id=$13 AND tenant_id=$14
        RETURNING version, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.HelpTopicID,
		ticket.PriorityID,
		ticket.CompanyID,
		ticket.DeviceID,
		ticket.ProblemTypeID,
		ticket.CurrentStageID,
		ticket.IsOpen,
		ticket.ApprovalHold,
		ticket.Tags,
		customFields,
		ticket.ID,
		ticket.TenantID,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, tenant_id, ticket_number, subject, description, help_topic_id,
            priority_id, company_id, device_id, problem_type_id, workflow_id,
            current_stage_id, is_open, approval_hold, tags, custom_field_values,
            version, created_at, updated_at
        FROM tickets
        WHERE id=$1 AND tenant_id=$2`
	ticket := &domain.Ticket{}
	var customFields []byte
	err := r.pool.QueryRow(ctx, query, id, tenantID).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.TicketNumber,
		&ticket.Subject,
		&ticket.Description,
		&ticket.HelpTopicID,
		&ticket.PriorityID,
		&ticket.CompanyID,
		&ticket.DeviceID,
		&ticket.ProblemTypeID,
		&ticket.WorkflowID,
		&ticket.CurrentStageID,
		&ticket.IsOpen,
		&ticket.ApprovalHold,
		&ticket.Tags,
		&customFields,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &ticket.CustomFieldValues); err != nil {
			return nil, err
		}
	}
	if ticket.CustomFieldValues == nil {
		ticket.CustomFieldValues = map[string]any{}
	}
	return ticket, nil
}

func (r *ticketRepository) NextTicketNumber(ctx context.Context, tenantID string) (int64, error) {
	const query = `
        INSERT INTO ticket_sequences (tenant_id, last_number)
        VALUES ($1, 1)
        ON CONFLICT (tenant_id) DO UPDATE SET last_number = ticket_sequences.last_number + 1
        RETURNING last_number`
	var number int64
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&number)
	return number, err
}
