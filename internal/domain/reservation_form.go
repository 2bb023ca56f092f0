package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus is the reservation form lifecycle state.
type ReservationStatus string

const (
	ReservationPendingApproval ReservationStatus = "pending_approval"
	ReservationApproved        ReservationStatus = "approved"
	ReservationRejected        ReservationStatus = "rejected"
	ReservationCancelled       ReservationStatus = "cancelled"
)

// AmendmentRequest is a pending change to an approved reservation form.
type AmendmentRequest struct {
	NewReservationDate    time.Time       `json:"newReservationDate"`
	NewPreliminaryPayment decimal.Decimal `json:"newPreliminaryPayment"`
	Reason                string          `json:"reason"`
	RequestedBy           uuid.UUID       `json:"requestedBy"`
	RequestedAt           time.Time       `json:"requestedAt"`
}

// AmendmentRecord archives a decided amendment attempt, carrying the values
// that were current when the request was made.
type AmendmentRecord struct {
	PreviousReservationDate    time.Time       `json:"previousReservationDate"`
	PreviousPreliminaryPayment decimal.Decimal `json:"previousPreliminaryPayment"`
	NewReservationDate         time.Time       `json:"newReservationDate"`
	NewPreliminaryPayment      decimal.Decimal `json:"newPreliminaryPayment"`
	Reason                     string          `json:"reason"`
	RequestedBy                uuid.UUID       `json:"requestedBy"`
	RequestedAt                time.Time       `json:"requestedAt"`
	Outcome                    string          `json:"outcome"` // approved | rejected
	DecidedBy                  uuid.UUID       `json:"decidedBy"`
	DecidedAt                  time.Time       `json:"decidedAt"`
}

// ReservationDetails is the concrete variant stored in the RF details blob.
type ReservationDetails struct {
	AmendmentRequest *AmendmentRequest `json:"amendmentRequest,omitempty"`
	AmendmentHistory []AmendmentRecord `json:"amendmentHistory,omitempty"`
}

// ReservationForm binds an approved payment plan to a blocked unit.
type ReservationForm struct {
	ID                 uuid.UUID          `json:"id"`
	PaymentPlanID      uuid.UUID          `json:"paymentPlanId"`
	UnitID             uuid.UUID          `json:"unitId"`
	ReservationDate    time.Time          `json:"reservationDate"`
	PreliminaryPayment decimal.Decimal    `json:"preliminaryPayment"`
	Status             ReservationStatus  `json:"status"`
	Details            ReservationDetails `json:"details"`
	CreatedBy          uuid.UUID          `json:"createdBy"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

type ReservationFormRepository interface {
	CreateTx(ctx context.Context, tx Tx, form *ReservationForm) (*ReservationForm, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ReservationForm, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*ReservationForm, error)
	UpdateTx(ctx context.Context, tx Tx, form *ReservationForm) error
	// OpenExistsForPlanTx reports a pending_approval or approved form bound
	// to the plan, read under the caller's transaction.
	OpenExistsForPlanTx(ctx context.Context, tx Tx, planID uuid.UUID) (bool, error)
	GetApprovedByPlan(ctx context.Context, planID uuid.UUID) (*ReservationForm, error)
	ListByStatus(ctx context.Context, status ReservationStatus) ([]*ReservationForm, error)
}
