package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BlockStatus is the unit block lifecycle state.
type BlockStatus string

const (
	BlockPending  BlockStatus = "pending"
	BlockApproved BlockStatus = "approved"
	BlockRejected BlockStatus = "rejected"
	BlockExpired  BlockStatus = "expired"
)

// OverrideStatus tracks the authoritative override chain walked when the
// financial decision on a block request was REJECT.
type OverrideStatus string

const (
	OverrideNone      OverrideStatus = "none"
	OverridePendingSM OverrideStatus = "pending_sm"
	OverridePendingFM OverrideStatus = "pending_fm"
	OverridePendingTM OverrideStatus = "pending_tm"
	OverrideApproved  OverrideStatus = "approved"
	OverrideRejected  OverrideStatus = "rejected"
)

// Financial decisions recorded on a block request.
const (
	FinancialAccept = "ACCEPT"
	FinancialReject = "REJECT"
)

// Block duration policy: 1..28 days initially, each extension adds up to 7
// days, never more than 3 extensions and never past 28 days in total.
const (
	BlockMinDurationDays = 1
	BlockMaxDurationDays = 28
	BlockMaxExtensions   = 3
	BlockExtensionDays   = 7
)

// Block is a temporary hold on a unit. At most one approved block with
// blocked_until in the future may exist per unit.
type Block struct {
	ID                  uuid.UUID      `json:"id"`
	UnitID              uuid.UUID      `json:"unitId"`
	RequestedBy         uuid.UUID      `json:"requestedBy"`
	DurationDays        int            `json:"durationDays"`
	InitialDurationDays int            `json:"initialDurationDays"`
	Status              BlockStatus    `json:"status"`
	OverrideStatus      OverrideStatus `json:"overrideStatus"`
	BlockedUntil        time.Time      `json:"blockedUntil"`
	ExtensionCount      int            `json:"extensionCount"`
	FinancialDecision   *string        `json:"financialDecision,omitempty"`
	Reason              *string        `json:"reason,omitempty"`
	NextNotifyAt        *time.Time     `json:"nextNotifyAt,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// Active reports whether the block currently holds its unit.
func (b *Block) Active(now time.Time) bool {
	return b.Status == BlockApproved && b.BlockedUntil.After(now)
}

// CanExtend validates an extension request against the duration policy.
func (b *Block) CanExtend(additionalDays int) error {
	if b.Status != BlockApproved {
		return NewStateMismatch("Only approved blocks can be extended")
	}
	if additionalDays < 1 {
		return NewInvalidInput("Invalid extension", FieldError{Field: "additionalDays", Message: "must be at least 1"})
	}
	if b.ExtensionCount >= BlockMaxExtensions {
		return NewStateMismatch("Block has reached the maximum number of extensions")
	}
	total := b.InitialDurationDays + b.ExtensionCount*BlockExtensionDays + additionalDays
	if total > BlockMaxDurationDays {
		return NewInvalidInput("Invalid extension", FieldError{Field: "additionalDays", Message: "total block duration cannot exceed 28 days"})
	}
	return nil
}

type BlockRepository interface {
	CreateTx(ctx context.Context, tx Tx, block *Block) (*Block, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*Block, error)
	UpdateTx(ctx context.Context, tx Tx, block *Block) error
	// ActiveForUnit returns the approved, unexpired block holding the unit,
	// or ErrNotFound.
	ActiveForUnit(ctx context.Context, unitID uuid.UUID, now time.Time) (*Block, error)
	ActiveForUnitTx(ctx context.Context, tx Tx, unitID uuid.UUID, now time.Time) (*Block, error)
	// ListExpiredForUpdateTx row-locks approved blocks past blocked_until,
	// skipping rows locked by a concurrent scheduler instance.
	ListExpiredForUpdateTx(ctx context.Context, tx Tx, now time.Time, limit int) ([]*Block, error)
	// ListReminderDueForUpdateTx row-locks active blocks past next_notify_at.
	ListReminderDueForUpdateTx(ctx context.Context, tx Tx, now time.Time, limit int) ([]*Block, error)
	ListByStatus(ctx context.Context, status BlockStatus) ([]*Block, error)
}
