package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryHarness struct {
	worker  *BlockExpiryWorker
	blocks  *testutil.MockBlockRepository
	units   *testutil.MockUnitRepository
	history *testutil.MockHistoryRepository
	staged  *testutil.MockNotificationRepository
}

func newExpiryHarness(t *testing.T) *expiryHarness {
	t.Helper()
	blocks := testutil.NewMockBlockRepository()
	units := testutil.NewMockUnitRepository()
	history := testutil.NewMockHistoryRepository()
	notifier, staged, _ := newTestNotifier()

	worker := NewBlockExpiryWorker(testutil.NewMockTxManager(), blocks, units, history, notifier, zerolog.Nop(), time.Hour, 100)
	return &expiryHarness{worker: worker, blocks: blocks, units: units, history: history, staged: staged}
}

func (h *expiryHarness) seedHold(unitStatus domain.UnitStatus, until time.Time) (*domain.Block, *domain.Unit) {
	unit := &domain.Unit{Code: "D-401", UnitStatus: unitStatus, Available: unitStatus == domain.UnitAvailable}
	h.units.AddUnit(unit)
	block := &domain.Block{
		UnitID:       unit.ID,
		RequestedBy:  uuid.New(),
		Status:       domain.BlockApproved,
		BlockedUntil: until,
	}
	notify := until.AddDate(0, 0, -1)
	block.NextNotifyAt = &notify
	h.blocks.AddBlock(block)
	return block, unit
}

func TestExpirySweep_ReleasesOverdueHold(t *testing.T) {
	h := newExpiryHarness(t)
	block, unit := h.seedHold(domain.UnitBlocked, time.Now().UTC().AddDate(0, 0, -1))

	h.worker.Sweep(context.Background())

	stored := h.blocks.Blocks[block.ID]
	assert.Equal(t, domain.BlockExpired, stored.Status)
	assert.Nil(t, stored.NextNotifyAt)
	assert.Equal(t, domain.UnitAvailable, unit.UnitStatus)
	assert.True(t, unit.Available)

	assert.Equal(t, []string{domain.ChangeExpire}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockExpired, h.staged.Staged[0].Type)
	// Every active FM hears about the release, and so does the requester.
	assert.Equal(t, []domain.Role{domain.RoleFinancialManager}, h.staged.Staged[0].Recipients.Roles)
	assert.Equal(t, []uuid.UUID{block.RequestedBy}, h.staged.Staged[0].Recipients.UserIDs)
	assert.NotNil(t, h.staged.Staged[0].DeliveredAt)
}

func TestExpirySweep_Idempotent(t *testing.T) {
	h := newExpiryHarness(t)
	h.seedHold(domain.UnitBlocked, time.Now().UTC().AddDate(0, 0, -1))

	h.worker.Sweep(context.Background())
	h.worker.Sweep(context.Background())

	// The second pass finds no approved overdue rows.
	assert.Len(t, h.staged.Staged, 1)
}

func TestExpirySweep_LeavesUnexpiredHolds(t *testing.T) {
	h := newExpiryHarness(t)
	block, unit := h.seedHold(domain.UnitBlocked, time.Now().UTC().AddDate(0, 0, 3))

	h.worker.Sweep(context.Background())

	assert.Equal(t, domain.BlockApproved, h.blocks.Blocks[block.ID].Status)
	assert.Equal(t, domain.UnitBlocked, unit.UnitStatus)
	assert.Empty(t, h.staged.Staged)
}

func TestExpirySweep_UnitMovedOnKeepsState(t *testing.T) {
	h := newExpiryHarness(t)
	block, unit := h.seedHold(domain.UnitReserved, time.Now().UTC().AddDate(0, 0, -1))

	h.worker.Sweep(context.Background())

	// The block still expires, but a unit that moved on to RESERVED is not
	// yanked back to AVAILABLE.
	assert.Equal(t, domain.BlockExpired, h.blocks.Blocks[block.ID].Status)
	assert.Equal(t, domain.UnitReserved, unit.UnitStatus)
	assert.False(t, unit.Available)
}
