package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// MasterDataRepository is the read-only lookup over externally owned
// reference data: workflow definitions, priorities, help topics, problem
// types, decline reasons and custom form schemas.
type MasterDataRepository interface {
	GetWorkflowByID(ctx context.Context, id string) (*domain.WorkflowDefinition, error)
	GetWorkflowForTicketType(ctx context.Context, tenantID, ticketTypeID string) (*domain.WorkflowDefinition, error)
	GetPriority(ctx context.Context, id string) (*domain.Priority, error)
	GetPriorities(ctx context.Context, tenantID string) ([]domain.Priority, error)
	GetHelpTopic(ctx context.Context, id string) (*domain.HelpTopic, error)
	GetProblemType(ctx context.Context, id string) (*domain.ProblemType, error)
	GetDeclineReason(ctx context.Context, id string) (*domain.DeclineReason, error)
	GetActiveDeclineReasons(ctx context.Context, tenantID string) ([]domain.DeclineReason, error)
	GetCustomFormSchema(ctx context.Context, helpTopicID string) (*domain.CustomFormSchema, error)
	GetActiveTechnicians(ctx context.Context, teamID string) ([]domain.Technician, error)
	// ListCustomFieldSlugs returns every field slug defined by the tenant's
	// custom forms, for rule-save path validation.
	ListCustomFieldSlugs(ctx context.Context, tenantID string) ([]string, error)
}

type masterDataRepository struct {
	pool *pgxpool.Pool
}

// NewMasterDataRepository instantiates repository.
func NewMasterDataRepository(pool *pgxpool.Pool) MasterDataRepository {
	return &masterDataRepository{pool: pool}
}

const workflowColumns = `
    id, tenant_id, ticket_type_id, name, requires_device, requires_company,
    accepted_stage_id, stages`

func (r *masterDataRepository) GetWorkflowByID(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE id=$1`
	return r.scanWorkflow(ctx, query, id)
}

func (r *masterDataRepository) GetWorkflowForTicketType(ctx context.Context, tenantID, ticketTypeID string) (*domain.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + `
        FROM workflow_definitions WHERE tenant_id=$1 AND ticket_type_id=$2`
	return r.scanWorkflow(ctx, query, tenantID, ticketTypeID)
}

func (r *masterDataRepository) scanWorkflow(ctx context.Context, query string, args ...any) (*domain.WorkflowDefinition, error) {
	workflow := &domain.WorkflowDefinition{}
	var stages []byte
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.TicketTypeID,
		&workflow.Name,
		&workflow.RequiresDevice,
		&workflow.RequiresCompany,
		&workflow.AcceptedStageID,
		&stages,
	)
	if err != nil {
		return nil, err
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &workflow.Stages); err != nil {
			return nil, err
		}
	}
	return workflow, nil
}

func (r *masterDataRepository) GetPriority(ctx context.Context, id string) (*domain.Priority, error) {
	const query = `SELECT id, name, level, is_active FROM priorities WHERE id=$1`
	priority := &domain.Priority{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&priority.ID, &priority.Name, &priority.Level, &priority.IsActive)
	if err != nil {
		return nil, err
	}
	return priority, nil
}

func (r *masterDataRepository) GetPriorities(ctx context.Context, tenantID string) ([]domain.Priority, error) {
	const query = `
        SELECT id, name, level, is_active FROM priorities
        WHERE tenant_id=$1 AND is_active=true
        ORDER BY level ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var priorities []domain.Priority
	for rows.Next() {
		var priority domain.Priority
		if err := rows.Scan(&priority.ID, &priority.Name, &priority.Level, &priority.IsActive); err != nil {
			return nil, err
		}
		priorities = append(priorities, priority)
	}
	return priorities, rows.Err()
}

func (r *masterDataRepository) GetHelpTopic(ctx context.Context, id string) (*domain.HelpTopic, error) {
	const query = `SELECT id, name, custom_form_id, is_active FROM help_topics WHERE id=$1`
	topic := &domain.HelpTopic{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&topic.ID, &topic.Name, &topic.CustomFormID, &topic.IsActive)
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (r *masterDataRepository) GetProblemType(ctx context.Context, id string) (*domain.ProblemType, error) {
	const query = `SELECT id, name, is_active FROM problem_types WHERE id=$1`
	problemType := &domain.ProblemType{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&problemType.ID, &problemType.Name, &problemType.IsActive)
	if err != nil {
		return nil, err
	}
	return problemType, nil
}

func (r *masterDataRepository) GetDeclineReason(ctx context.Context, id string) (*domain.DeclineReason, error) {
	const query = `SELECT id, label, is_active FROM decline_reasons WHERE id=$1`
	reason := &domain.DeclineReason{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&reason.ID, &reason.Label, &reason.IsActive)
	if err != nil {
		return nil, err
	}
	return reason, nil
}

func (r *masterDataRepository) GetActiveDeclineReasons(ctx context.Context, tenantID string) ([]domain.DeclineReason, error) {
	const query = `
        SELECT id, label, is_active FROM decline_reasons
        WHERE tenant_id=$1 AND is_active=true
        ORDER BY label ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reasons []domain.DeclineReason
	for rows.Next() {
		var reason domain.DeclineReason
		if err := rows.Scan(&reason.ID, &reason.Label, &reason.IsActive); err != nil {
			return nil, err
		}
		reasons = append(reasons, reason)
	}
	return reasons, rows.Err()
}

func (r *masterDataRepository) GetActiveTechnicians(ctx context.Context, teamID string) ([]domain.Technician, error) {
	const query = `
        SELECT id, name, team_id, is_active FROM technicians
        WHERE team_id=$1 AND is_active=true
        ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var technicians []domain.Technician
	for rows.Next() {
		var technician domain.Technician
		if err := rows.Scan(&technician.ID, &technician.Name, &technician.TeamID, &technician.IsActive); err != nil {
			return nil, err
		}
		technicians = append(technicians, technician)
	}
	return technicians, rows.Err()
}

func (r *masterDataRepository) ListCustomFieldSlugs(ctx context.Context, tenantID string) ([]string, error) {
	const query = `
        SELECT DISTINCT field->>'slug'
        FROM custom_forms f, jsonb_array_elements(f.fields) AS field
        WHERE f.tenant_id=$1`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func (r *masterDataRepository) GetCustomFormSchema(ctx context.Context, helpTopicID string) (*domain.CustomFormSchema, error) {
	const query = `
        SELECT f.id, f.fields
        FROM custom_forms f
        JOIN help_topics t ON t.custom_form_id = f.id
        WHERE t.id=$1`
	schema := &domain.CustomFormSchema{}
	var fields []byte
	err := r.pool.QueryRow(ctx, query, helpTopicID).Scan(&schema.ID, &fields)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &schema.Fields); err != nil {
			return nil, err
		}
	}
	return schema, nil
}
