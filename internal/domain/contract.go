package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContractStatus is the contract lifecycle state.
type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractPendingCM ContractStatus = "pending_cm"
	ContractPendingTM ContractStatus = "pending_tm"
	ContractApproved  ContractStatus = "approved"
	ContractRejected  ContractStatus = "rejected"
	ContractExecuted  ContractStatus = "executed"
)

// ContractSettings are the editable terms. They may change only while the
// contract settings are unlocked; locking is one-way and a precondition for
// submission to CM review.
type ContractSettings struct {
	ContractDate    *time.Time `json:"contractDate,omitempty"`
	PowerOfAttorney *string    `json:"powerOfAttorney,omitempty"`
}

// Contract is drafted from an approved reservation form.
type Contract struct {
	ID                     uuid.UUID        `json:"id"`
	ReservationFormID      uuid.UUID        `json:"reservationFormId"`
	Status                 ContractStatus   `json:"status"`
	ContractSettingsLocked bool             `json:"contractSettingsLocked"`
	Settings               ContractSettings `json:"settings"`
	Details                DetailsEnvelope  `json:"details"`
	CreatedBy              uuid.UUID        `json:"createdBy"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}

type ContractRepository interface {
	CreateTx(ctx context.Context, tx Tx, contract *Contract) (*Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	GetForUpdateTx(ctx context.Context, tx Tx, id uuid.UUID) (*Contract, error)
	UpdateTx(ctx context.Context, tx Tx, contract *Contract) error
	ListByStatus(ctx context.Context, status ContractStatus) ([]*Contract, error)
}
