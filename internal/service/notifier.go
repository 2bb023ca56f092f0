package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog"
)

// Notifier stages notifications inside business transactions and delivers
// them after commit. Delivery failures are logged, never propagated: the
// staged row keeps delivered_at NULL and the retry sweep picks it up.
type Notifier struct {
	repo   domain.NotificationRepository
	sink   domain.NotificationSink
	logger zerolog.Logger
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo domain.NotificationRepository, sink domain.NotificationSink, logger zerolog.Logger) *Notifier {
	return &Notifier{
		repo:   repo,
		sink:   sink,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// ToRoles builds recipient criteria for every active holder of the roles.
func ToRoles(roles ...domain.Role) domain.RecipientCriteria {
	return domain.RecipientCriteria{Roles: roles}
}

// ToUsers builds recipient criteria for explicit users.
func ToUsers(ids ...uuid.UUID) domain.RecipientCriteria {
	return domain.RecipientCriteria{UserIDs: ids}
}

// ToRoleAndUsers builds recipient criteria covering every active holder of
// the role plus explicit users. Recipients matching both receive one copy.
func ToRoleAndUsers(role domain.Role, ids ...uuid.UUID) domain.RecipientCriteria {
	return domain.RecipientCriteria{Roles: []domain.Role{role}, UserIDs: ids}
}

// Event builds a staged notification.
func Event(recipients domain.RecipientCriteria, eventType, refEntity string, refID uuid.UUID, message string) *domain.Notification {
	return &domain.Notification{
		Recipients: recipients,
		Type:       eventType,
		RefEntity:  refEntity,
		RefID:      refID,
		Message:    message,
	}
}

// StageTx writes the notifications in the caller's transaction.
func (n *Notifier) StageTx(ctx context.Context, tx domain.Tx, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return n.repo.StageTx(ctx, tx, notifications)
}

// DeliverAfterCommit pushes committed notifications to the sink and stamps
// delivered_at on the ones that went through.
func (n *Notifier) DeliverAfterCommit(ctx context.Context, notifications []*domain.Notification) {
	var delivered []uuid.UUID
	for _, notification := range notifications {
		if err := n.sink.Deliver(ctx, notification); err != nil {
			n.logger.Warn().
				Err(err).
				Str("type", notification.Type).
				Str("ref_id", notification.RefID.String()).
				Msg("Notification delivery failed, will retry")
			continue
		}
		delivered = append(delivered, notification.ID)
	}
	if len(delivered) == 0 {
		return
	}
	if err := n.repo.MarkDelivered(ctx, delivered, time.Now().UTC()); err != nil {
		n.logger.Error().Err(err).Msg("Failed to mark notifications delivered")
	}
}

// DeliverPending drains undelivered notifications, oldest first. Called by
// the reminder sweep so missed deliveries are retried on a schedule.
func (n *Notifier) DeliverPending(ctx context.Context, limit int) error {
	pending, err := n.repo.ListUndelivered(ctx, limit)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		n.logger.Debug().Int("count", len(pending)).Msg("Retrying undelivered notifications")
		n.DeliverAfterCommit(ctx, pending)
	}
	return nil
}
