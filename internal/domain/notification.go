package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification event types emitted by the router.
const (
	NotifyPlanSubmitted        = "plan_submitted"
	NotifyPlanEscalated        = "plan_escalated"
	NotifyPlanApproved         = "plan_approved"
	NotifyPlanRejected         = "plan_rejected"
	NotifyPlanAccepted         = "plan_accepted"
	NotifyBlockRequested       = "block_requested"
	NotifyBlockApproved        = "block_approved"
	NotifyBlockRejected        = "block_rejected"
	NotifyBlockExpired         = "block_expired"
	NotifyBlockExtended        = "block_extended"
	NotifyBlockOverride        = "block_override"
	NotifyBlockReminder        = "block_reminder"
	NotifyReservationCreated   = "reservation_created"
	NotifyReservationApproved  = "reservation_approved"
	NotifyReservationRejected  = "reservation_rejected"
	NotifyReservationCancelled = "reservation_cancelled"
	NotifyAmendmentRequested   = "amendment_requested"
	NotifyAmendmentDecided     = "amendment_decided"
	NotifyContractSubmitted    = "contract_submitted"
	NotifyContractApproved     = "contract_approved"
	NotifyContractRejected     = "contract_rejected"
	NotifyContractExecuted     = "contract_executed"
)

// RecipientCriteria selects notification recipients by role set or explicit
// user ids. Both may be set; the union receives the event.
type RecipientCriteria struct {
	Roles   []Role      `json:"roles,omitempty"`
	UserIDs []uuid.UUID `json:"userIds,omitempty"`
}

// Notification is a staged event produced by a state transition. Events are
// written in the business transaction and delivered post-commit; a delivery
// failure never rolls the transaction back.
type Notification struct {
	ID          uuid.UUID         `json:"id"`
	Recipients  RecipientCriteria `json:"recipients"`
	Type        string            `json:"type"`
	RefEntity   string            `json:"refEntity"`
	RefID       uuid.UUID         `json:"refId"`
	Message     string            `json:"message"`
	CreatedAt   time.Time         `json:"createdAt"`
	DeliveredAt *time.Time        `json:"deliveredAt,omitempty"`
}

type NotificationRepository interface {
	StageTx(ctx context.Context, tx Tx, notifications []*Notification) error
	MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error
	ListUndelivered(ctx context.Context, limit int) ([]*Notification, error)
}

// NotificationSink receives events after commit. Implementations must not
// block the caller indefinitely; errors are logged and swallowed upstream.
type NotificationSink interface {
	Deliver(ctx context.Context, n *Notification) error
}
