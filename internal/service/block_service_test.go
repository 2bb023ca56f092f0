package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockHarness struct {
	svc     *BlockService
	blocks  *testutil.MockBlockRepository
	units   *testutil.MockUnitRepository
	history *testutil.MockHistoryRepository
	staged  *testutil.MockNotificationRepository
	now     time.Time
	unit    *domain.Unit
}

func newBlockHarness(t *testing.T) *blockHarness {
	t.Helper()
	blocks := testutil.NewMockBlockRepository()
	units := testutil.NewMockUnitRepository()
	history := testutil.NewMockHistoryRepository()
	notifier, staged, _ := newTestNotifier()

	svc := NewBlockService(testutil.NewMockTxManager(), blocks, units, history, notifier, zerolog.Nop())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	unit := &domain.Unit{Code: "A-101", UnitStatus: domain.UnitAvailable, Available: true}
	units.AddUnit(unit)

	return &blockHarness{svc: svc, blocks: blocks, units: units, history: history, staged: staged, now: now, unit: unit}
}

func (h *blockHarness) seedBlock(status domain.BlockStatus, days int) *domain.Block {
	block := &domain.Block{
		UnitID:              h.unit.ID,
		RequestedBy:         uuid.New(),
		DurationDays:        days,
		InitialDurationDays: days,
		Status:              status,
		OverrideStatus:      domain.OverrideNone,
	}
	if status == domain.BlockApproved {
		block.BlockedUntil = h.now.AddDate(0, 0, days)
	}
	h.blocks.AddBlock(block)
	return block
}

func TestBlockRequest_RoleGate(t *testing.T) {
	h := newBlockHarness(t)

	_, err := h.svc.Request(context.Background(), asRole(domain.RoleSalesManager),
		RequestBlockInput{UnitID: h.unit.ID, DurationDays: 7})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestBlockRequest_DurationBounds(t *testing.T) {
	h := newBlockHarness(t)

	for _, days := range []int{0, 29} {
		_, err := h.svc.Request(context.Background(), asRole(domain.RolePropertyConsultant),
			RequestBlockInput{UnitID: h.unit.ID, DurationDays: days})
		require.Error(t, err, "days=%d", days)
		assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	}
}

func TestBlockRequest_UnitAlreadyBlocked(t *testing.T) {
	h := newBlockHarness(t)
	h.unit.UnitStatus = domain.UnitBlocked
	h.unit.Available = false

	_, err := h.svc.Request(context.Background(), asRole(domain.RolePropertyConsultant),
		RequestBlockInput{UnitID: h.unit.ID, DurationDays: 7})
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
	assert.Equal(t, "Unit is already blocked", err.Error())
}

func TestBlockRequest_FilesPending(t *testing.T) {
	h := newBlockHarness(t)

	block, err := h.svc.Request(context.Background(), asRole(domain.RolePropertyConsultant),
		RequestBlockInput{UnitID: h.unit.ID, DurationDays: 14, Reason: "client viewing"})
	require.NoError(t, err)

	assert.Equal(t, domain.BlockPending, block.Status)
	assert.Equal(t, domain.OverrideNone, block.OverrideStatus)
	assert.Equal(t, 14, block.InitialDurationDays)
	require.NotNil(t, block.Reason)
	assert.Equal(t, "client viewing", *block.Reason)

	// The unit is untouched until financial approval.
	assert.Equal(t, domain.UnitAvailable, h.unit.UnitStatus)

	assert.Equal(t, []string{domain.ChangeCreate}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockRequested, h.staged.Staged[0].Type)
	assert.Equal(t, []domain.Role{domain.RoleFinancialManager}, h.staged.Staged[0].Recipients.Roles)
}

func TestBlockApprove_StartsHoldClock(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 14)

	approved, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BlockApproved, approved.Status)
	require.NotNil(t, approved.FinancialDecision)
	assert.Equal(t, domain.FinancialAccept, *approved.FinancialDecision)
	assert.Equal(t, h.now.AddDate(0, 0, 14), approved.BlockedUntil)
	require.NotNil(t, approved.NextNotifyAt)
	assert.Equal(t, h.now.AddDate(0, 0, 7), *approved.NextNotifyAt)

	assert.Equal(t, domain.UnitBlocked, h.unit.UnitStatus)
	assert.False(t, h.unit.Available)

	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockApproved, h.staged.Staged[0].Type)
	expected := fmt.Sprintf("Block approved until %s", h.now.AddDate(0, 0, 14).Format(DueDateLayout))
	assert.Equal(t, expected, h.staged.Staged[0].Message)
}

func TestBlockApprove_ShortHoldSkipsReminder(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 5)

	approved, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.NoError(t, err)
	assert.Nil(t, approved.NextNotifyAt)
}

func TestBlockApprove_WrongRole(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)

	_, err := h.svc.Approve(context.Background(), asRole(domain.RolePropertyConsultant), block.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestBlockApprove_RejectedNeedsApprovedOverride(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	decision := domain.FinancialReject
	block.FinancialDecision = &decision
	block.OverrideStatus = domain.OverridePendingFM

	_, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
	assert.Contains(t, err.Error(), "no approved override")

	block.OverrideStatus = domain.OverrideApproved
	approved, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockApproved, approved.Status)
}

func TestBlockApprove_UnitTakenMeanwhile(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	h.unit.UnitStatus = domain.UnitReserved
	h.unit.Available = false

	_, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
}

func TestBlockReject_OpensOverrideChain(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)

	rejected, err := h.svc.Reject(context.Background(), asRole(domain.RoleFinancialManager), block.ID, "unit earmarked for bulk sale")
	require.NoError(t, err)

	// A financial REJECT does not terminate the request; the override chain
	// opens at SM and the block stays pending.
	assert.Equal(t, domain.BlockPending, rejected.Status)
	require.NotNil(t, rejected.FinancialDecision)
	assert.Equal(t, domain.FinancialReject, *rejected.FinancialDecision)
	assert.Equal(t, domain.OverridePendingSM, rejected.OverrideStatus)
	require.NotNil(t, rejected.Reason)
	assert.Equal(t, "unit earmarked for bulk sale", *rejected.Reason)

	assert.Equal(t, []string{domain.NotifyBlockRejected, domain.NotifyBlockOverride}, h.staged.Types())
}

func TestBlockReject_ChainAlreadyOpen(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	block.OverrideStatus = domain.OverridePendingSM

	_, err := h.svc.Reject(context.Background(), asRole(domain.RoleFinancialManager), block.ID, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
}

func TestBlockOverride_ChainWalkToApproval(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	decision := domain.FinancialReject
	block.FinancialDecision = &decision
	block.OverrideStatus = domain.OverridePendingSM

	out, err := h.svc.Override(context.Background(), asRole(domain.RoleSalesManager), block.ID, statemachine.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.OverridePendingFM, out.OverrideStatus)

	out, err = h.svc.Override(context.Background(), asRole(domain.RoleFinancialManager), block.ID, statemachine.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.OverridePendingTM, out.OverrideStatus)

	out, err = h.svc.Override(context.Background(), asRole(domain.RoleTopManagement), block.ID, statemachine.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideApproved, out.OverrideStatus)
	assert.Equal(t, domain.BlockPending, out.Status)

	assert.Equal(t, []string{domain.ChangeOverrideSM, domain.ChangeOverrideFM, domain.ChangeOverrideTM},
		h.history.ChangeTypes(domain.EntityBlock, block.ID))

	// The approved override unlocks the normal financial approval.
	approved, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), block.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockApproved, approved.Status)
	assert.Equal(t, domain.UnitBlocked, h.unit.UnitStatus)
}

func TestBlockOverride_TMBypass(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	block.OverrideStatus = domain.OverridePendingSM

	out, err := h.svc.Override(context.Background(), asRole(domain.RoleTopManagement), block.ID, statemachine.ActionTMBypass)
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideApproved, out.OverrideStatus)
	assert.Equal(t, []string{domain.ChangeApproveTMBypass}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
}

func TestBlockOverride_TMBypassFromFMStage(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	block.OverrideStatus = domain.OverridePendingFM

	out, err := h.svc.Override(context.Background(), asRole(domain.RoleTopManagement), block.ID, statemachine.ActionTMBypass)
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideApproved, out.OverrideStatus)
	assert.Equal(t, []string{domain.ChangeApproveTMBypass}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
}

func TestBlockOverride_TMBypassNeedsTM(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	block.OverrideStatus = domain.OverridePendingSM

	_, err := h.svc.Override(context.Background(), asRole(domain.RoleSalesManager), block.ID, statemachine.ActionTMBypass)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestBlockOverride_RejectClosesBlock(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)
	block.OverrideStatus = domain.OverridePendingSM

	out, err := h.svc.Override(context.Background(), asRole(domain.RoleSalesManager), block.ID, statemachine.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideRejected, out.OverrideStatus)
	assert.Equal(t, domain.BlockRejected, out.Status)
	assert.Equal(t, []string{domain.ChangeOverrideReject}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockRejected, h.staged.Staged[0].Type)
}

func TestBlockOverride_InvalidAction(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)

	_, err := h.svc.Override(context.Background(), asRole(domain.RoleSalesManager), block.ID, statemachine.Action("escalate"))
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestBlockOverride_OnlyPendingBlocks(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockApproved, 7)
	block.OverrideStatus = domain.OverridePendingSM

	_, err := h.svc.Override(context.Background(), asRole(domain.RoleSalesManager), block.ID, statemachine.ActionApprove)
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
}

func TestBlockExtend_AddsDays(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockApproved, 14)
	until := block.BlockedUntil

	extended, err := h.svc.Extend(context.Background(),
		domain.Principal{UserID: block.RequestedBy, Role: domain.RolePropertyConsultant}, block.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, 21, extended.DurationDays)
	assert.Equal(t, until.AddDate(0, 0, 7), extended.BlockedUntil)
	assert.Equal(t, 1, extended.ExtensionCount)
	assert.Equal(t, []string{domain.ChangeExtend}, h.history.ChangeTypes(domain.EntityBlock, block.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyBlockExtended, h.staged.Staged[0].Type)
}

func TestBlockExtend_Limits(t *testing.T) {
	h := newBlockHarness(t)
	requester := func(b *domain.Block) domain.Principal {
		return domain.Principal{UserID: b.RequestedBy, Role: domain.RolePropertyConsultant}
	}

	// A single extension never adds more than 7 days.
	block := h.seedBlock(domain.BlockApproved, 7)
	_, err := h.svc.Extend(context.Background(), requester(block), block.ID, 8)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	// At most 3 extensions.
	block.ExtensionCount = domain.BlockMaxExtensions
	_, err = h.svc.Extend(context.Background(), requester(block), block.ID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))

	// Never past 28 days total.
	long := h.seedBlock(domain.BlockApproved, 28)
	_, err = h.svc.Extend(context.Background(), requester(long), long.ID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	// Only the requester, an FM or an admin may extend.
	other := h.seedBlock(domain.BlockApproved, 7)
	_, err = h.svc.Extend(context.Background(), asRole(domain.RolePropertyConsultant), other.ID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestBlockCancel_ApprovedReleasesUnit(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockApproved, 14)
	notify := h.now.AddDate(0, 0, 7)
	block.NextNotifyAt = &notify
	h.unit.UnitStatus = domain.UnitBlocked
	h.unit.Available = false

	cancelled, err := h.svc.Cancel(context.Background(),
		domain.Principal{UserID: block.RequestedBy, Role: domain.RolePropertyConsultant}, block.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BlockExpired, cancelled.Status)
	assert.Nil(t, cancelled.NextNotifyAt)
	assert.Equal(t, domain.UnitAvailable, h.unit.UnitStatus)
	assert.True(t, h.unit.Available)
}

func TestBlockCancel_PendingWithdraws(t *testing.T) {
	h := newBlockHarness(t)
	block := h.seedBlock(domain.BlockPending, 7)

	cancelled, err := h.svc.Cancel(context.Background(),
		domain.Principal{UserID: block.RequestedBy, Role: domain.RolePropertyConsultant}, block.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BlockRejected, cancelled.Status)
	assert.Equal(t, domain.UnitAvailable, h.unit.UnitStatus)
}
