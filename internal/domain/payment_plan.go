package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanStatus is the payment plan approval state.
type PlanStatus string

const (
	PlanPendingSM PlanStatus = "pending_sm"
	PlanPendingFM PlanStatus = "pending_fm"
	PlanPendingTM PlanStatus = "pending_tm"
	PlanApproved  PlanStatus = "approved"
	PlanRejected  PlanStatus = "rejected"
)

// Terminal reports whether s admits no further transitions.
func (s PlanStatus) Terminal() bool {
	return s == PlanApproved || s == PlanRejected
}

// PaymentPlan is a proposed payment schedule for a deal. At most one plan per
// deal carries Accepted=true.
type PaymentPlan struct {
	ID              uuid.UUID       `json:"id"`
	DealID          uuid.UUID       `json:"dealId"`
	Details         DetailsEnvelope `json:"details"`
	CreatedBy       uuid.UUID       `json:"createdBy"`
	Status          PlanStatus      `json:"status"`
	Accepted        bool            `json:"accepted"`
	Version         int             `json:"version"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// InitialPlanStatus routes a newly created plan by creator role: consultants
// enter the SM queue, financial roles go straight to FM review.
func InitialPlanStatus(role Role) (PlanStatus, error) {
	switch role {
	case RolePropertyConsultant:
		return PlanPendingSM, nil
	case RoleFinancialManager, RoleFinancialAdmin, RoleAdmin:
		return PlanPendingFM, nil
	}
	return "", NewForbidden("Role is not permitted to create payment plans")
}

type PaymentPlanRepository interface {
	CreateTx(ctx context.Context, tx Tx, plan *PaymentPlan) (*PaymentPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PaymentPlan, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*PaymentPlan, error)
	UpdateTx(ctx context.Context, tx Tx, plan *PaymentPlan) error
	// SetAcceptedTx marks one plan accepted and clears the flag on every
	// sibling plan of the same deal in the same statement pair.
	SetAcceptedTx(ctx context.Context, tx Tx, dealID, planID uuid.UUID) error
	ListByStatus(ctx context.Context, status PlanStatus) ([]*PaymentPlan, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*PaymentPlan, error)
	NextVersion(ctx context.Context, dealID uuid.UUID) (int, error)
}
