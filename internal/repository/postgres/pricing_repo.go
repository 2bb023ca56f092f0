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

// StandardPricingRepository implements domain.StandardPricingRepository using
// PostgreSQL.
type StandardPricingRepository struct {
	pool *pgxpool.Pool
}

// NewStandardPricingRepository creates a new StandardPricingRepository.
func NewStandardPricingRepository(pool *pgxpool.Pool) *StandardPricingRepository {
	return &StandardPricingRepository{pool: pool}
}

const pricingColumns = `id, unit_id, total_price, annual_rate_percent, standard_pv, active`

func scanPricing(row pgx.Row) (*domain.StandardPricing, error) {
	var (
		p          domain.StandardPricing
		unitID     pgtype.UUID
		price      pgtype.Numeric
		rate       pgtype.Numeric
		standardPV pgtype.Numeric
	)
	err := row.Scan(&p.ID, &unitID, &price, &rate, &standardPV, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Standard pricing not found")
		}
		return nil, err
	}
	p.UnitID = uuidPtr(unitID)
	p.TotalPrice = pgNumericToDecimal(price)
	p.AnnualRatePercent = pgNumericToDecimal(rate)
	p.StandardPV = pgNumericToDecimal(standardPV)
	return &p, nil
}

// GetByID retrieves a standard pricing row.
func (r *StandardPricingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StandardPricing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pricingColumns+` FROM standard_pricings WHERE id = $1`, id)
	return scanPricing(row)
}

// GetActiveByUnit returns the active standard pricing for a unit.
func (r *StandardPricingRepository) GetActiveByUnit(ctx context.Context, unitID uuid.UUID) (*domain.StandardPricing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+pricingColumns+` FROM standard_pricings
		WHERE unit_id = $1 AND active LIMIT 1`, unitID)
	return scanPricing(row)
}
