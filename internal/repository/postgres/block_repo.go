package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// BlockRepository implements domain.BlockRepository using PostgreSQL.
type BlockRepository struct {
	pool *pgxpool.Pool
}

// NewBlockRepository creates a new BlockRepository.
func NewBlockRepository(pool *pgxpool.Pool) *BlockRepository {
	return &BlockRepository{pool: pool}
}

const blockColumns = `id, unit_id, requested_by, duration_days, initial_duration_days, status, override_status, blocked_until, extension_count, financial_decision, reason, next_notify_at, created_at, updated_at`

func scanBlock(row pgx.Row) (*domain.Block, error) {
	var (
		b            domain.Block
		status       string
		override     string
		decision     pgtype.Text
		reason       pgtype.Text
		nextNotifyAt pgtype.Timestamptz
	)
	err := row.Scan(&b.ID, &b.UnitID, &b.RequestedBy, &b.DurationDays, &b.InitialDurationDays, &status, &override, &b.BlockedUntil, &b.ExtensionCount, &decision, &reason, &nextNotifyAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Block not found")
		}
		return nil, err
	}
	b.Status = domain.BlockStatus(status)
	b.OverrideStatus = domain.OverrideStatus(override)
	b.FinancialDecision = textPtr(decision)
	b.Reason = textPtr(reason)
	b.NextNotifyAt = timePtr(nextNotifyAt)
	return &b, nil
}

// CreateTx inserts a new block request within the caller's transaction.
func (r *BlockRepository) CreateTx(ctx context.Context, tx domain.Tx, block *domain.Block) (*domain.Block, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	row := pgxTx.QueryRow(ctx, `
		INSERT INTO blocks (id, unit_id, requested_by, duration_days, initial_duration_days, status, override_status, blocked_until, extension_count, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
		RETURNING `+blockColumns,
		block.ID, block.UnitID, block.RequestedBy, block.DurationDays, block.InitialDurationDays,
		string(block.Status), string(block.OverrideStatus), block.BlockedUntil, pgText(block.Reason))
	return scanBlock(row)
}

// GetByID retrieves a block.
func (r *BlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Block, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id)
	return scanBlock(row)
}

// GetForUpdateTx retrieves a block under a row lock.
func (r *BlockRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Block, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1 FOR UPDATE`, id)
	return scanBlock(row)
}

// UpdateTx writes the mutable block fields within the caller's transaction.
func (r *BlockRepository) UpdateTx(ctx context.Context, tx domain.Tx, block *domain.Block) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE blocks
		SET duration_days = $2, status = $3, override_status = $4, blocked_until = $5,
		    extension_count = $6, financial_decision = $7, reason = $8, next_notify_at = $9,
		    updated_at = now()
		WHERE id = $1`,
		block.ID, block.DurationDays, string(block.Status), string(block.OverrideStatus),
		block.BlockedUntil, block.ExtensionCount, pgText(block.FinancialDecision),
		pgText(block.Reason), pgTimestamptzPtr(block.NextNotifyAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Block not found")
	}
	return nil
}

const activeBlockQuery = `SELECT ` + blockColumns + ` FROM blocks
	WHERE unit_id = $1 AND status = 'approved' AND blocked_until > $2
	ORDER BY blocked_until DESC LIMIT 1`

// ActiveForUnit returns the approved, unexpired block holding the unit.
func (r *BlockRepository) ActiveForUnit(ctx context.Context, unitID uuid.UUID, now time.Time) (*domain.Block, error) {
	row := r.pool.QueryRow(ctx, activeBlockQuery, unitID, now)
	return scanBlock(row)
}

// ActiveForUnitTx is ActiveForUnit read under the caller's transaction.
func (r *BlockRepository) ActiveForUnitTx(ctx context.Context, tx domain.Tx, unitID uuid.UUID, now time.Time) (*domain.Block, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, activeBlockQuery, unitID, now)
	return scanBlock(row)
}

// ListExpiredForUpdateTx row-locks approved blocks past blocked_until. Rows
// held by a concurrent scheduler run are skipped rather than waited on.
func (r *BlockRepository) ListExpiredForUpdateTx(ctx context.Context, tx domain.Tx, now time.Time, limit int) ([]*domain.Block, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	rows, err := pgxTx.Query(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE status = 'approved' AND blocked_until <= $1
		ORDER BY blocked_until
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

// ListReminderDueForUpdateTx row-locks active blocks whose reminder is due.
func (r *BlockRepository) ListReminderDueForUpdateTx(ctx context.Context, tx domain.Tx, now time.Time, limit int) ([]*domain.Block, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	rows, err := pgxTx.Query(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE status = 'approved' AND blocked_until > $1
		  AND next_notify_at IS NOT NULL AND next_notify_at <= $1
		ORDER BY next_notify_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

// ListByStatus returns blocks in one lifecycle state, oldest first.
func (r *BlockRepository) ListByStatus(ctx context.Context, status domain.BlockStatus) ([]*domain.Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func collectBlocks(rows pgx.Rows) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
