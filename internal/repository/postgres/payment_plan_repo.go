package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// PaymentPlanRepository implements domain.PaymentPlanRepository using
// PostgreSQL.
type PaymentPlanRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentPlanRepository creates a new PaymentPlanRepository.
func NewPaymentPlanRepository(pool *pgxpool.Pool) *PaymentPlanRepository {
	return &PaymentPlanRepository{pool: pool}
}

const planColumns = `id, deal_id, details, created_by, status, accepted, version, discount_percent, created_at, updated_at`

func scanPlan(row pgx.Row) (*domain.PaymentPlan, error) {
	var (
		p        domain.PaymentPlan
		details  []byte
		status   string
		discount pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.DealID, &details, &p.CreatedBy, &status, &p.Accepted, &p.Version, &discount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Payment plan not found")
		}
		return nil, err
	}
	p.Status = domain.PlanStatus(status)
	p.DiscountPercent = pgNumericToDecimal(discount)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &p.Details); err != nil {
			return nil, fmt.Errorf("decode plan details: %w", err)
		}
	}
	return &p, nil
}

// CreateTx inserts a new payment plan within the caller's transaction.
func (r *PaymentPlanRepository) CreateTx(ctx context.Context, tx domain.Tx, plan *domain.PaymentPlan) (*domain.PaymentPlan, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	details, err := json.Marshal(plan.Details)
	if err != nil {
		return nil, fmt.Errorf("encode plan details: %w", err)
	}
	discount, err := decimalToPgNumeric(plan.DiscountPercent)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `
		INSERT INTO payment_plans (id, deal_id, details, created_by, status, accepted, version, discount_percent)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7)
		RETURNING `+planColumns,
		plan.ID, plan.DealID, details, plan.CreatedBy, string(plan.Status), plan.Version, discount)
	return scanPlan(row)
}

// GetByID retrieves a payment plan.
func (r *PaymentPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1`, id)
	return scanPlan(row)
}

// GetForUpdateTx retrieves a payment plan under a row lock.
func (r *PaymentPlanRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.PaymentPlan, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1 FOR UPDATE`, id)
	return scanPlan(row)
}

// UpdateTx writes the mutable plan fields within the caller's transaction.
func (r *PaymentPlanRepository) UpdateTx(ctx context.Context, tx domain.Tx, plan *domain.PaymentPlan) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	details, err := json.Marshal(plan.Details)
	if err != nil {
		return fmt.Errorf("encode plan details: %w", err)
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE payment_plans
		SET details = $2, status = $3, accepted = $4, updated_at = now()
		WHERE id = $1`,
		plan.ID, details, string(plan.Status), plan.Accepted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Payment plan not found")
	}
	return nil
}

// SetAcceptedTx marks one plan accepted and clears every sibling of the same
// deal inside the caller's transaction.
func (r *PaymentPlanRepository) SetAcceptedTx(ctx context.Context, tx domain.Tx, dealID, planID uuid.UUID) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, err := pgxTx.Exec(ctx, `
		UPDATE payment_plans SET accepted = false, updated_at = now()
		WHERE deal_id = $1 AND accepted`, dealID); err != nil {
		return err
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE payment_plans SET accepted = true, updated_at = now()
		WHERE id = $1 AND deal_id = $2`, planID, dealID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Payment plan not found")
	}
	return nil
}

// ListByStatus returns the approval queue for one status, oldest first.
func (r *PaymentPlanRepository) ListByStatus(ctx context.Context, status domain.PlanStatus) ([]*domain.PaymentPlan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+planColumns+` FROM payment_plans
		WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPlans(rows)
}

// ListByDeal returns all plans of a deal, newest version first.
func (r *PaymentPlanRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.PaymentPlan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+planColumns+` FROM payment_plans
		WHERE deal_id = $1 ORDER BY version DESC`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPlans(rows)
}

// NextVersion returns the next plan version for a deal, starting at 1.
func (r *PaymentPlanRepository) NextVersion(ctx context.Context, dealID uuid.UUID) (int, error) {
	var version int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM payment_plans WHERE deal_id = $1`, dealID).Scan(&version)
	return version, err
}

func collectPlans(rows pgx.Rows) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
