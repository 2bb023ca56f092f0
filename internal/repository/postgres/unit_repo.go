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

// UnitRepository implements domain.UnitRepository using PostgreSQL.
type UnitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository creates a new UnitRepository.
func NewUnitRepository(pool *pgxpool.Pool) *UnitRepository {
	return &UnitRepository{pool: pool}
}

const unitColumns = `id, code, unit_status, available, model_id, total_price`

func scanUnit(row pgx.Row) (*domain.Unit, error) {
	var (
		u       domain.Unit
		status  string
		modelID pgtype.UUID
		price   pgtype.Numeric
	)
	err := row.Scan(&u.ID, &u.Code, &status, &u.Available, &modelID, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Unit not found")
		}
		return nil, err
	}
	u.UnitStatus = domain.UnitStatus(status)
	u.ModelID = uuidPtr(modelID)
	u.TotalPrice = pgNumericToDecimal(price)
	return &u, nil
}

// GetByID retrieves a unit.
func (r *UnitRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Unit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id)
	return scanUnit(row)
}

// GetForUpdateTx retrieves a unit under a row lock.
func (r *UnitRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Unit, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1 FOR UPDATE`, id)
	return scanUnit(row)
}

// SetStatusTx writes unit_status and available in one statement so the
// availability invariant holds at every commit point.
func (r *UnitRepository) SetStatusTx(ctx context.Context, tx domain.Tx, id uuid.UUID, status domain.UnitStatus, available bool) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE units SET unit_status = $2, available = $3, updated_at = now()
		WHERE id = $1`, id, string(status), available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Unit not found")
	}
	return nil
}
