package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// HistoryRepository implements domain.HistoryRepository using PostgreSQL.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// InsertTx appends a history entry within the caller's transaction so audit
// records commit atomically with the transition they describe.
func (r *HistoryRepository) InsertTx(ctx context.Context, tx domain.Tx, entry *domain.HistoryEntry) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err = pgxTx.Exec(ctx, `
		INSERT INTO history_entries (id, entity, entity_id, change_type, changed_by, old_values, new_values)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Entity, entry.EntityID, entry.ChangeType, entry.ChangedBy,
		[]byte(entry.OldValues), []byte(entry.NewValues))
	return err
}

// ListByEntity returns the audit trail of one entity, oldest first.
func (r *HistoryRepository) ListByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]*domain.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity, entity_id, change_type, changed_by, old_values, new_values, at
		FROM history_entries
		WHERE entity = $1 AND entity_id = $2
		ORDER BY at`, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var (
			e         domain.HistoryEntry
			oldValues []byte
			newValues []byte
		)
		if err := rows.Scan(&e.ID, &e.Entity, &e.EntityID, &e.ChangeType, &e.ChangedBy, &oldValues, &newValues, &e.At); err != nil {
			return nil, err
		}
		e.OldValues = oldValues
		e.NewValues = newValues
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
