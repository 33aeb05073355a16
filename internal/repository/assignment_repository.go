package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// AssignmentRepository persists technician offer records. Status updates go
// through UpdateCAS so concurrent writers resolve via compare-and-swap rather
// than locks held across a round trip.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	GetActiveByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error)
	// UpdateCAS saves the assignment only when the stored version still equals
	// expectedVersion. It returns false when the caller lost the race.
	UpdateCAS(ctx context.Context, assignment *domain.Assignment, expectedVersion int64) (bool, error)
	Archive(ctx context.Context, id string) error
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (ticket_id, technician_id, status, scheduled_at, notes, version)
        VALUES ($1,$2,$3,$4,$5,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		assignment.TicketID,
		assignment.TechnicianID,
		assignment.Status,
		assignment.ScheduledAt,
		assignment.Notes,
	).Scan(&assignment.ID, &assignment.Version, &assignment.CreatedAt, &assignment.UpdatedAt)
}

const assignmentColumns = `
    id, ticket_id, technician_id, status, scheduled_at, proposed_time, proposed_end_time,
    decline_reason_id, decline_detail, notes, archived, version, created_at, updated_at`

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id=$1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *assignmentRepository) GetActiveByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments
        WHERE ticket_id=$1 AND archived=false
          AND status IN ('PENDING','ACCEPTED','RESCHEDULED')
        ORDER BY created_at DESC
        LIMIT 1`
	assignment, err := r.scanOne(r.pool.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return assignment, err
}

func (r *assignmentRepository) UpdateCAS(ctx context.Context, assignment *domain.Assignment, expectedVersion int64) (bool, error) {
	const query = `
        UPDATE assignments
        SET status=$1, proposed_time=$2, proposed_end_time=$3, decline_reason_id=$4,
            decline_detail=$5, notes=$6, version=version+1, updated_at=now()
        WHERE id=$7 AND version=$8
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		assignment.Status,
		assignment.ProposedTime,
		assignment.ProposedEndTime,
		assignment.DeclineReasonID,
		assignment.DeclineDetail,
		assignment.Notes,
		assignment.ID,
		expectedVersion,
	).Scan(&assignment.Version, &assignment.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *assignmentRepository) Archive(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET archived=true, updated_at=now() WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *assignmentRepository) scanOne(row pgx.Row) (*domain.Assignment, error) {
	assignment := &domain.Assignment{}
	err := row.Scan(
		&assignment.ID,
		&assignment.TicketID,
		&assignment.TechnicianID,
		&assignment.Status,
		&assignment.ScheduledAt,
		&assignment.ProposedTime,
		&assignment.ProposedEndTime,
		&assignment.DeclineReasonID,
		&assignment.DeclineDetail,
		&assignment.Notes,
		&assignment.Archived,
		&assignment.Version,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return assignment, nil
}
