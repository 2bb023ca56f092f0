package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// ContractRepository implements domain.ContractRepository using PostgreSQL.
type ContractRepository struct {
	pool *pgxpool.Pool
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

const contractColumns = `id, reservation_form_id, status, settings_locked, settings, details, created_by, created_at, updated_at`

func scanContract(row pgx.Row) (*domain.Contract, error) {
	var (
		c        domain.Contract
		status   string
		settings []byte
		details  []byte
	)
	err := row.Scan(&c.ID, &c.ReservationFormID, &status, &c.ContractSettingsLocked, &settings, &details, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Contract not found")
		}
		return nil, err
	}
	c.Status = domain.ContractStatus(status)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &c.Settings); err != nil {
			return nil, fmt.Errorf("decode contract settings: %w", err)
		}
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &c.Details); err != nil {
			return nil, fmt.Errorf("decode contract details: %w", err)
		}
	}
	return &c, nil
}

// CreateTx inserts a contract within the caller's transaction, alongside the
// gate checks on its reservation form.
func (r *ContractRepository) CreateTx(ctx context.Context, tx domain.Tx, contract *domain.Contract) (*domain.Contract, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	settings, err := json.Marshal(contract.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode contract settings: %w", err)
	}
	details, err := json.Marshal(contract.Details)
	if err != nil {
		return nil, fmt.Errorf("encode contract details: %w", err)
	}
	row := pgxTx.QueryRow(ctx, `
		INSERT INTO contracts (id, reservation_form_id, status, settings_locked, settings, details, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+contractColumns,
		contract.ID, contract.ReservationFormID, string(contract.Status),
		contract.ContractSettingsLocked, settings, details, contract.CreatedBy)
	return scanContract(row)
}

// GetByID retrieves a contract.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	return scanContract(row)
}

// GetForUpdateTx retrieves a contract under a row lock.
func (r *ContractRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.Contract, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
	return scanContract(row)
}

// UpdateTx writes the mutable contract fields within the caller's transaction.
func (r *ContractRepository) UpdateTx(ctx context.Context, tx domain.Tx, contract *domain.Contract) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(contract.Settings)
	if err != nil {
		return fmt.Errorf("encode contract settings: %w", err)
	}
	details, err := json.Marshal(contract.Details)
	if err != nil {
		return fmt.Errorf("encode contract details: %w", err)
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE contracts
		SET status = $2, settings_locked = $3, settings = $4, details = $5, updated_at = now()
		WHERE id = $1`,
		contract.ID, string(contract.Status), contract.ContractSettingsLocked, settings, details)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Contract not found")
	}
	return nil
}

// ListByStatus returns contracts in one lifecycle state, oldest first.
func (r *ContractRepository) ListByStatus(ctx context.Context, status domain.ContractStatus) ([]*domain.Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
