package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// PolicyRepository implements domain.PolicyRepository using PostgreSQL.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

const policyColumns = `id, scope_type, policy_limit_percent, pv_tolerance_percent,
	year1_min_percent, year1_max_percent, year2_min_percent, year2_max_percent,
	year3_min_percent, year3_max_percent, handover_min_percent, handover_max_percent,
	active, created_at`

func scanPolicy(row pgx.Row) (*domain.PolicyConfig, error) {
	var (
		p                          domain.PolicyConfig
		limit, tolerance           pgtype.Numeric
		y1Min, y2Min, y3Min, hoMin pgtype.Numeric
		y1Max, y2Max, y3Max, hoMax pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.ScopeType, &limit, &tolerance,
		&y1Min, &y1Max, &y2Min, &y2Max, &y3Min, &y3Max, &hoMin, &hoMax,
		&p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Policy not found")
		}
		return nil, err
	}
	p.PolicyLimitPercent = pgNumericToDecimal(limit)
	p.PVTolerancePercent = pgNumericToDecimal(tolerance)
	p.Year1MinPercent = pgNumericToDecimal(y1Min)
	p.Year1MaxPercent = pgNumericToDecimalPtr(y1Max)
	p.Year2MinPercent = pgNumericToDecimal(y2Min)
	p.Year2MaxPercent = pgNumericToDecimalPtr(y2Max)
	p.Year3MinPercent = pgNumericToDecimal(y3Min)
	p.Year3MaxPercent = pgNumericToDecimalPtr(y3Max)
	p.HandoverMinPercent = pgNumericToDecimal(hoMin)
	p.HandoverMaxPercent = pgNumericToDecimalPtr(hoMax)
	return &p, nil
}

// GetActiveGlobal returns the most recently created active global policy.
func (r *PolicyRepository) GetActiveGlobal(ctx context.Context) (*domain.PolicyConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+policyColumns+` FROM policy_configs
		WHERE scope_type = $1 AND active
		ORDER BY created_at DESC LIMIT 1`, domain.ScopeGlobal)
	return scanPolicy(row)
}

// Create inserts a policy row.
func (r *PolicyRepository) Create(ctx context.Context, policy *domain.PolicyConfig) (*domain.PolicyConfig, error) {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	limit, err := decimalToPgNumeric(policy.PolicyLimitPercent)
	if err != nil {
		return nil, err
	}
	tolerance, err := decimalToPgNumeric(policy.PVTolerancePercent)
	if err != nil {
		return nil, err
	}
	y1Min, err := decimalToPgNumeric(policy.Year1MinPercent)
	if err != nil {
		return nil, err
	}
	y1Max, err := decimalPtrToPgNumeric(policy.Year1MaxPercent)
	if err != nil {
		return nil, err
	}
	y2Min, err := decimalToPgNumeric(policy.Year2MinPercent)
	if err != nil {
		return nil, err
	}
	y2Max, err := decimalPtrToPgNumeric(policy.Year2MaxPercent)
	if err != nil {
		return nil, err
	}
	y3Min, err := decimalToPgNumeric(policy.Year3MinPercent)
	if err != nil {
		return nil, err
	}
	y3Max, err := decimalPtrToPgNumeric(policy.Year3MaxPercent)
	if err != nil {
		return nil, err
	}
	hoMin, err := decimalToPgNumeric(policy.HandoverMinPercent)
	if err != nil {
		return nil, err
	}
	hoMax, err := decimalPtrToPgNumeric(policy.HandoverMaxPercent)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO policy_configs (id, scope_type, policy_limit_percent, pv_tolerance_percent,
			year1_min_percent, year1_max_percent, year2_min_percent, year2_max_percent,
			year3_min_percent, year3_max_percent, handover_min_percent, handover_max_percent, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+policyColumns,
		policy.ID, policy.ScopeType, limit, tolerance,
		y1Min, y1Max, y2Min, y2Max, y3Min, y3Max, hoMin, hoMax, policy.Active)
	return scanPolicy(row)
}
