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

// DealRepository implements domain.DealRepository using PostgreSQL.
type DealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository creates a new DealRepository.
func NewDealRepository(pool *pgxpool.Pool) *DealRepository {
	return &DealRepository{pool: pool}
}

const dealColumns = `id, title, amount, status, needs_override, override_approved_at, fm_review_at, created_by, created_at, updated_at, details`

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var (
		d                  domain.Deal
		amount             pgtype.Numeric
		status             string
		overrideApprovedAt pgtype.Timestamptz
		fmReviewAt         pgtype.Timestamptz
		details            []byte
	)
	err := row.Scan(&d.ID, &d.Title, &amount, &status, &d.NeedsOverride, &overrideApprovedAt, &fmReviewAt, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &details)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Deal not found")
		}
		return nil, err
	}
	d.Amount = pgNumericToDecimal(amount)
	d.Status = domain.DealStatus(status)
	d.OverrideApprovedAt = timePtr(overrideApprovedAt)
	d.FMReviewAt = timePtr(fmReviewAt)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &d.Details); err != nil {
			return nil, fmt.Errorf("decode deal details: %w", err)
		}
	}
	return &d, nil
}

// CreateTx inserts a new deal within the caller's transaction.
func (r *DealRepository) CreateTx(ctx context.Context, tx domain.Tx, deal *domain.Deal) (*domain.Deal, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	amount, err := decimalToPgNumeric(deal.Amount)
	if err != nil {
		return nil, err
	}
	details, err := json.Marshal(deal.Details)
	if err != nil {
		return nil, fmt.Errorf("encode deal details: %w", err)
	}
	row := pgxTx.QueryRow(ctx, `
		INSERT INTO deals (id, title, amount, status, needs_override, created_by, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+dealColumns,
		deal.ID, deal.Title, amount, string(deal.Status), deal.NeedsOverride, deal.CreatedBy, details)
	return scanDeal(row)
}

// GetByID retrieves a deal.
func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

// GetForUpdateTx retrieves a deal under a row lock.
func (r *DealRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Deal, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id)
	return scanDeal(row)
}

// UpdateTx writes the mutable deal fields within the caller's transaction.
func (r *DealRepository) UpdateTx(ctx context.Context, tx domain.Tx, deal *domain.Deal) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	details, err := json.Marshal(deal.Details)
	if err != nil {
		return fmt.Errorf("encode deal details: %w", err)
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE deals
		SET status = $2, needs_override = $3, override_approved_at = $4, fm_review_at = $5, details = $6, updated_at = now()
		WHERE id = $1`,
		deal.ID, string(deal.Status), deal.NeedsOverride,
		pgTimestamptzPtr(deal.OverrideApprovedAt), pgTimestamptzPtr(deal.FMReviewAt), details)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Deal not found")
	}
	return nil
}

// List returns deals, optionally filtered by status, newest first.
func (r *DealRepository) List(ctx context.Context, status *domain.DealStatus) ([]*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals ORDER BY created_at DESC`
	args := []any{}
	if status != nil {
		query = `SELECT ` + dealColumns + ` FROM deals WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, string(*status))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []*domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
