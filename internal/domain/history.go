package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entity names used for history and notification references.
const (
	EntityDeal            = "deal"
	EntityPaymentPlan     = "payment_plan"
	EntityBlock           = "block"
	EntityReservationForm = "reservation_form"
	EntityContract        = "contract"
)

// Change types recorded in history entries.
const (
	ChangeCreate           = "create"
	ChangeSubmit           = "submit"
	ChangeApproveSM        = "approve_sm"
	ChangeApproveFM        = "approve_fm"
	ChangeApproveCM        = "approve_cm"
	ChangeApproveTM        = "approve_tm"
	ChangeApproveTMBypass  = "approve_tm_bypass"
	ChangeReject           = "reject"
	ChangeMarkAccepted     = "mark_accepted"
	ChangeEscalate         = "escalate"
	ChangeExpire           = "expire"
	ChangeExtend           = "extend"
	ChangeCancel           = "cancel"
	ChangeExecute          = "execute"
	ChangeApprove          = "approve"
	ChangeOverrideSM       = "override_sm"
	ChangeOverrideFM       = "override_fm"
	ChangeOverrideTM       = "override_tm"
	ChangeOverrideReject   = "override_reject"
	ChangeRequestAmendment = "request_amendment"
	ChangeApproveAmendment = "approve_amendment"
	ChangeRejectAmendment  = "reject_amendment"
	ChangeUpdateSettings   = "update_settings"
	ChangeLockSettings     = "lock_settings"
)

// HistoryEntry is one append-only audit record for an entity.
type HistoryEntry struct {
	ID         uuid.UUID       `json:"id"`
	Entity     string          `json:"entity"`
	EntityID   uuid.UUID       `json:"entityId"`
	ChangeType string          `json:"changeType"`
	ChangedBy  uuid.UUID       `json:"changedBy"`
	OldValues  json.RawMessage `json:"oldValues,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	At         time.Time       `json:"at"`
}

// NewHistoryEntry snapshots old and new values as JSON. Nil snapshots are
// permitted (creation has no old values).
func NewHistoryEntry(entity string, entityID uuid.UUID, changeType string, changedBy uuid.UUID, oldValues, newValues interface{}) (*HistoryEntry, error) {
	entry := &HistoryEntry{
		Entity:     entity,
		EntityID:   entityID,
		ChangeType: changeType,
		ChangedBy:  changedBy,
	}
	if oldValues != nil {
		data, err := json.Marshal(oldValues)
		if err != nil {
			return nil, err
		}
		entry.OldValues = data
	}
	if newValues != nil {
		data, err := json.Marshal(newValues)
		if err != nil {
			return nil, err
		}
		entry.NewValues = data
	}
	return entry, nil
}

type HistoryRepository interface {
	InsertTx(ctx context.Context, tx Tx, entry *HistoryEntry) error
	ListByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]*HistoryEntry, error)
}
