package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealStatus is the deal lifecycle state.
type DealStatus string

const (
	DealDraft           DealStatus = "draft"
	DealPendingApproval DealStatus = "pending_approval"
	DealApproved        DealStatus = "approved"
	DealRejected        DealStatus = "rejected"
)

// Deal is the root of the sales graph. Invariant: status=approved implies the
// evaluator returned ACCEPT for the frozen snapshot, or needs_override is set
// together with override_approved_at.
type Deal struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	Amount             decimal.Decimal `json:"amount"`
	Status             DealStatus      `json:"status"`
	NeedsOverride      bool            `json:"needsOverride"`
	OverrideApprovedAt *time.Time      `json:"overrideApprovedAt,omitempty"`
	FMReviewAt         *time.Time      `json:"fmReviewAt,omitempty"`
	CreatedBy          uuid.UUID       `json:"createdBy"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Details            DetailsEnvelope `json:"details"`
}

// ContractDocumentReady reports whether a contract document may be rendered
// for this deal: the deal must be approved and, when an override was needed,
// the override must have been approved.
func (d *Deal) ContractDocumentReady() bool {
	if d.Status != DealApproved {
		return false
	}
	if d.NeedsOverride && d.OverrideApprovedAt == nil {
		return false
	}
	return true
}

type DealRepository interface {
	CreateTx(ctx context.Context, tx Tx, deal *Deal) (*Deal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Deal, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*Deal, error)
	UpdateTx(ctx context.Context, tx Tx, deal *Deal) error
	List(ctx context.Context, status *DealStatus) ([]*Deal, error)
}
