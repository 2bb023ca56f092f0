package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitStatus is the inventory state of a unit.
type UnitStatus string

const (
	UnitInventoryDraft UnitStatus = "INVENTORY_DRAFT"
	UnitAvailable      UnitStatus = "AVAILABLE"
	UnitBlocked        UnitStatus = "BLOCKED"
	UnitReserved       UnitStatus = "RESERVED"
	UnitSold           UnitStatus = "SOLD"
)

// Unit is a sellable inventory unit. Invariant: Available is true exactly
// when UnitStatus is AVAILABLE. Ownership moves only through the
// block → reserve → sell chain.
type Unit struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	UnitStatus UnitStatus      `json:"unitStatus"`
	Available  bool            `json:"available"`
	ModelID    *uuid.UUID      `json:"modelId,omitempty"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type UnitRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*Unit, error)
	// SetStatusTx writes unit_status and available together so the
	// availability invariant cannot be broken halfway.
	SetStatusTx(ctx context.Context, tx Tx, id uuid.UUID, status UnitStatus, available bool) error
}
