package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// TxManager implements domain.TxManager over a pgx pool. Transactions run
// serializable: every state-machine transition re-reads its row under lock
// inside one of these.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn in a serializable transaction, committing on nil and
// rolling back otherwise.
func (m *TxManager) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	pgxTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgxTx.Rollback(ctx)

	if err := fn(pgxTx); err != nil {
		return err
	}
	return pgxTx.Commit(ctx)
}

// asTx asserts the opaque transaction handle to a pgx transaction.
func asTx(tx domain.Tx) (pgx.Tx, error) {
	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, errors.New("invalid transaction type")
	}
	return pgxTx, nil
}
