package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reminderHarness struct {
	worker *HoldReminderWorker
	blocks *testutil.MockBlockRepository
	staged *testutil.MockNotificationRepository
	sink   *testutil.MockNotificationSink
}

func newReminderHarness(t *testing.T) *reminderHarness {
	t.Helper()
	blocks := testutil.NewMockBlockRepository()
	notifier, staged, sink := newTestNotifier()
	worker := NewHoldReminderWorker(testutil.NewMockTxManager(), blocks, notifier, zerolog.Nop(), time.Hour, 100)
	return &reminderHarness{worker: worker, blocks: blocks, staged: staged, sink: sink}
}

func (h *reminderHarness) seedDueHold(until time.Time) *domain.Block {
	notify := time.Now().UTC().Add(-time.Hour)
	block := &domain.Block{
		UnitID:       uuid.New(),
		RequestedBy:  uuid.New(),
		Status:       domain.BlockApproved,
		BlockedUntil: until,
		NextNotifyAt: &notify,
	}
	h.blocks.AddBlock(block)
	return block
}

func TestReminderSweep_NudgesAndReschedules(t *testing.T) {
	h := newReminderHarness(t)
	block := h.seedDueHold(time.Now().UTC().AddDate(0, 0, 20))

	h.worker.Sweep(context.Background())

	stored := h.blocks.Blocks[block.ID]
	require.NotNil(t, stored.NextNotifyAt)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, domain.BlockExtensionDays), *stored.NextNotifyAt, time.Minute)

	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockReminder, h.staged.Staged[0].Type)
	// Reminders go to every active FM plus the requester.
	assert.Equal(t, []domain.Role{domain.RoleFinancialManager}, h.staged.Staged[0].Recipients.Roles)
	assert.Equal(t, []uuid.UUID{block.RequestedBy}, h.staged.Staged[0].Recipients.UserIDs)
}

func TestReminderSweep_LastReminderBeforeExpiry(t *testing.T) {
	h := newReminderHarness(t)
	block := h.seedDueHold(time.Now().UTC().AddDate(0, 0, 3))

	h.worker.Sweep(context.Background())

	// The hold ends before the next reminder would fire, so none is scheduled.
	assert.Nil(t, h.blocks.Blocks[block.ID].NextNotifyAt)
	assert.Len(t, h.staged.Staged, 1)
}

func TestReminderSweep_SkipsQuietHolds(t *testing.T) {
	h := newReminderHarness(t)
	block := h.seedDueHold(time.Now().UTC().AddDate(0, 0, 20))
	future := time.Now().UTC().AddDate(0, 0, 2)
	block.NextNotifyAt = &future

	h.worker.Sweep(context.Background())
	assert.Empty(t, h.staged.Staged)
}

func TestReminderSweep_RetriesUndeliveredBacklog(t *testing.T) {
	h := newReminderHarness(t)
	ctx := context.Background()

	// A delivery that failed in an earlier transaction sits undelivered.
	h.sink.FailWith = errors.New("hub gone")
	h.worker.Sweep(ctx)
	backlog := h.seedDueHold(time.Now().UTC().AddDate(0, 0, 20))
	h.worker.Sweep(ctx)
	require.NotEmpty(t, h.staged.Staged)
	assert.Nil(t, h.staged.Staged[0].DeliveredAt)

	// Reset NextNotifyAt so the next sweep has nothing new to stage and only
	// drains the backlog.
	h.blocks.Blocks[backlog.ID].NextNotifyAt = nil
	h.sink.FailWith = nil
	h.worker.Sweep(ctx)

	for _, n := range h.staged.Staged {
		assert.NotNil(t, n.DeliveredAt)
	}
}
