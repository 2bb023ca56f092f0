package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StandardPricing is the FM-maintained standard plan for a unit (or a
// standalone pricing row): list price, discount rate and the standard PV the
// evaluator compares proposals against.
type StandardPricing struct {
	ID                uuid.UUID       `json:"id"`
	UnitID            *uuid.UUID      `json:"unitId,omitempty"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	AnnualRatePercent decimal.Decimal `json:"annualRatePercent"`
	StandardPV        decimal.Decimal `json:"standardPv"`
	Active            bool            `json:"active"`
}

type StandardPricingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*StandardPricing, error)
	GetActiveByUnit(ctx context.Context, unitID uuid.UUID) (*StandardPricing, error)
}
