package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

// RuleRepository persists workflow rules. Listing preserves the persisted
// display order, which is the rule evaluation order.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.WorkflowRule) error
	Update(ctx context.Context, rule *domain.WorkflowRule) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.WorkflowRule, error)
	List(ctx context.Context, tenantID string) ([]domain.WorkflowRule, error)
	ListActiveByTrigger(ctx context.Context, tenantID string, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

func (r *ruleRepository) Create(ctx context.Context, rule *domain.WorkflowRule) error {
	conditions, actions, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO workflow_rules (tenant_id, name, trigger, condition_logic, conditions,
            actions, is_active, stop_processing, display_order)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,
            COALESCE((SELECT MAX(display_order)+1 FROM workflow_rules WHERE tenant_id=$1), 0))
        RETURNING id, display_order, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.TenantID,
		rule.Name,
		rule.Trigger,
		rule.ConditionLogic,
		conditions,
		actions,
		rule.IsActive,
		rule.StopProcessing,
	).Scan(&rule.ID, &rule.DisplayOrder, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepository) Update(ctx context.Context, rule *domain.WorkflowRule) error {
	conditions, actions, err := marshalRuleParts(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE workflow_rules
        SET name=$1, trigger=$2, condition_logic=$3, conditions=$4, actions=$5,
            is_active=$6, stop_processing=$7, display_order=$8, updated_at=now()
        WHERE id=$9 AND tenant_id=$10
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Trigger,
		rule.ConditionLogic,
		conditions,
		actions,
		rule.IsActive,
		rule.StopProcessing,
		rule.DisplayOrder,
		rule.ID,
		rule.TenantID,
	).Scan(&rule.UpdatedAt)
}

const ruleColumns = `
    id, tenant_id, name, trigger, condition_logic, conditions, actions,
    is_active, stop_processing, display_order, created_at, updated_at`

func (r *ruleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM workflow_rules WHERE id=$1 AND tenant_id=$2`
	return scanRule(r.pool.QueryRow(ctx, query, id, tenantID))
}

func (r *ruleRepository) List(ctx context.Context, tenantID string) ([]domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + `
        FROM workflow_rules WHERE tenant_id=$1 ORDER BY display_order ASC`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *ruleRepository) ListActiveByTrigger(ctx context.Context, tenantID string, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + `
        FROM workflow_rules
        WHERE tenant_id=$1 AND trigger=$2 AND is_active=true
        ORDER BY display_order ASC`
	rows, err := r.pool.Query(ctx, query, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func marshalRuleParts(rule *domain.WorkflowRule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, err
	}
	return conditions, actions, nil
}

func scanRule(row pgx.Row) (*domain.WorkflowRule, error) {
	rule := &domain.WorkflowRule{}
	var conditions, actions []byte
	err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Name,
		&rule.Trigger,
		&rule.ConditionLogic,
		&conditions,
		&actions,
		&rule.IsActive,
		&rule.StopProcessing,
		&rule.DisplayOrder,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, err
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.WorkflowRule, error) {
	var rules []domain.WorkflowRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}
