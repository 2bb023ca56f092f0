package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using
// PostgreSQL. Notifications are staged in the business transaction and
// delivered after commit; rows keep delivered_at NULL until then.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// StageTx inserts staged notifications within the caller's transaction.
func (r *NotificationRepository) StageTx(ctx context.Context, tx domain.Tx, notifications []*domain.Notification) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		recipients, err := json.Marshal(n.Recipients)
		if err != nil {
			return fmt.Errorf("encode recipients: %w", err)
		}
		if _, err := pgxTx.Exec(ctx, `
			INSERT INTO notifications (id, recipients, type, ref_entity, ref_id, message)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, recipients, n.Type, n.RefEntity, n.RefID, n.Message); err != nil {
			return err
		}
	}
	return nil
}

// MarkDelivered stamps delivered_at on the given notifications.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET delivered_at = $2
		WHERE id = ANY($1) AND delivered_at IS NULL`, ids, at)
	return err
}

// ListUndelivered returns staged notifications awaiting delivery, oldest
// first. The delivery retry sweep drains this.
func (r *NotificationRepository) ListUndelivered(ctx context.Context, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipients, type, ref_entity, ref_id, message, created_at, delivered_at
		FROM notifications
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var (
			n           domain.Notification
			recipients  []byte
			deliveredAt pgtype.Timestamptz
		)
		if err := rows.Scan(&n.ID, &recipients, &n.Type, &n.RefEntity, &n.RefID, &n.Message, &n.CreatedAt, &deliveredAt); err != nil {
			return nil, err
		}
		if len(recipients) > 0 {
			if err := json.Unmarshal(recipients, &n.Recipients); err != nil {
				return nil, fmt.Errorf("decode recipients: %w", err)
			}
		}
		n.DeliveredAt = timePtr(deliveredAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}
