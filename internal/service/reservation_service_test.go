package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reservationHarness struct {
	svc     *ReservationService
	forms   *testutil.MockReservationFormRepository
	plans   *testutil.MockPaymentPlanRepository
	units   *testutil.MockUnitRepository
	blocks  *testutil.MockBlockRepository
	history *testutil.MockHistoryRepository
	staged  *testutil.MockNotificationRepository
	now     time.Time
	unit    *domain.Unit
	plan    *domain.PaymentPlan
}

// newReservationHarness seeds the happy-path setup: a BLOCKED unit under an
// active block and an approved payment plan.
func newReservationHarness(t *testing.T) *reservationHarness {
	t.Helper()
	forms := testutil.NewMockReservationFormRepository()
	plans := testutil.NewMockPaymentPlanRepository()
	units := testutil.NewMockUnitRepository()
	blocks := testutil.NewMockBlockRepository()
	history := testutil.NewMockHistoryRepository()
	notifier, staged, _ := newTestNotifier()

	svc := NewReservationService(testutil.NewMockTxManager(), forms, plans, units, blocks, history, notifier, zerolog.Nop())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	unit := &domain.Unit{Code: "B-204", UnitStatus: domain.UnitBlocked, Available: false}
	units.AddUnit(unit)
	blocks.AddBlock(&domain.Block{
		UnitID:       unit.ID,
		RequestedBy:  uuid.New(),
		Status:       domain.BlockApproved,
		BlockedUntil: now.AddDate(0, 0, 10),
	})
	plan := &domain.PaymentPlan{DealID: uuid.New(), Status: domain.PlanApproved, Version: 1, CreatedBy: uuid.New()}
	plans.AddPlan(plan)

	return &reservationHarness{
		svc: svc, forms: forms, plans: plans, units: units, blocks: blocks,
		history: history, staged: staged, now: now, unit: unit, plan: plan,
	}
}

func (h *reservationHarness) createInput() CreateReservationInput {
	return CreateReservationInput{
		PaymentPlanID:      h.plan.ID,
		UnitID:             h.unit.ID,
		ReservationDate:    h.now,
		PreliminaryPayment: decimal.NewFromInt(50_000),
	}
}

func (h *reservationHarness) seedForm(status domain.ReservationStatus) *domain.ReservationForm {
	form := &domain.ReservationForm{
		PaymentPlanID:      h.plan.ID,
		UnitID:             h.unit.ID,
		ReservationDate:    h.now,
		PreliminaryPayment: decimal.NewFromInt(50_000),
		Status:             status,
		CreatedBy:          uuid.New(),
	}
	h.forms.AddForm(form)
	return form
}

func TestReservationCreate_Files(t *testing.T) {
	h := newReservationHarness(t)

	form, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationPendingApproval, form.Status)
	assert.Equal(t, []string{domain.ChangeCreate}, h.history.ChangeTypes(domain.EntityReservationForm, form.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyReservationCreated, h.staged.Staged[0].Type)
	assert.Equal(t, []domain.Role{domain.RoleFinancialManager}, h.staged.Staged[0].Recipients.Roles)

	// Filing does not touch the unit.
	assert.Equal(t, domain.UnitBlocked, h.unit.UnitStatus)
}

func TestReservationCreate_UnitNotBlocked(t *testing.T) {
	h := newReservationHarness(t)
	h.unit.UnitStatus = domain.UnitAvailable
	h.unit.Available = true

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
	assert.Equal(t, "Reservation forms can only be created for units that are currently BLOCKED", err.Error())
}

func TestReservationCreate_NoActiveBlock(t *testing.T) {
	h := newReservationHarness(t)
	for _, block := range h.blocks.Blocks {
		block.BlockedUntil = h.now.AddDate(0, 0, -1)
	}

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.Error(t, err)
	assert.Equal(t, "Unit has no active block", err.Error())
}

func TestReservationCreate_PlanNotApproved(t *testing.T) {
	h := newReservationHarness(t)
	h.plan.Status = domain.PlanPendingFM

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.Error(t, err)
	assert.Equal(t, "Reservation forms require an approved payment plan", err.Error())
}

func TestReservationCreate_OpenFormExists(t *testing.T) {
	h := newReservationHarness(t)
	h.seedForm(domain.ReservationPendingApproval)

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.Error(t, err)
	assert.Equal(t, "An open reservation form already exists for this payment plan", err.Error())
}

func TestReservationCreate_ClosedFormDoesNotBlock(t *testing.T) {
	h := newReservationHarness(t)
	h.seedForm(domain.ReservationRejected)

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), h.createInput())
	require.NoError(t, err)
}

func TestReservationCreate_NegativePayment(t *testing.T) {
	h := newReservationHarness(t)
	input := h.createInput()
	input.PreliminaryPayment = decimal.NewFromInt(-1)

	_, err := h.svc.Create(context.Background(), asRole(domain.RoleFinancialAdmin), input)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestReservationCreate_WrongRole(t *testing.T) {
	h := newReservationHarness(t)

	_, err := h.svc.Create(context.Background(), asRole(domain.RolePropertyConsultant), h.createInput())
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	assert.Empty(t, h.forms.Forms)
}

func TestReservationApprove_ReservesUnit(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationPendingApproval)

	approved, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), form.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationApproved, approved.Status)
	assert.Equal(t, domain.UnitReserved, h.unit.UnitStatus)
	assert.False(t, h.unit.Available)
	assert.Equal(t, []string{domain.ChangeApproveFM}, h.history.ChangeTypes(domain.EntityReservationForm, form.ID))
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyReservationApproved, h.staged.Staged[0].Type)
}

func TestReservationApprove_UnitLeftBlocked(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationPendingApproval)
	h.unit.UnitStatus = domain.UnitAvailable
	h.unit.Available = true

	_, err := h.svc.Approve(context.Background(), asRole(domain.RoleFinancialManager), form.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvariantViolation, domain.KindOf(err))
}

func TestReservationApprove_WrongRole(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationPendingApproval)

	_, err := h.svc.Approve(context.Background(), asRole(domain.RolePropertyConsultant), form.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestReservationReject_UnitStaysBlocked(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationPendingApproval)

	rejected, err := h.svc.Reject(context.Background(), asRole(domain.RoleFinancialManager), form.ID, "payment bounced")
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationRejected, rejected.Status)
	assert.Equal(t, domain.UnitBlocked, h.unit.UnitStatus)
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyReservationRejected, h.staged.Staged[0].Type)
	assert.Equal(t, "Reservation form rejected: payment bounced", h.staged.Staged[0].Message)
}

func TestReservationCancel_PendingOnly(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationPendingApproval)

	cancelled, err := h.svc.Cancel(context.Background(), asRole(domain.RoleFinancialAdmin), form.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	assert.Equal(t, []string{domain.ChangeCancel}, h.history.ChangeTypes(domain.EntityReservationForm, form.ID))

	approved := h.seedForm(domain.ReservationApproved)
	_, err = h.svc.Cancel(context.Background(), asRole(domain.RoleFinancialAdmin), approved.ID, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
}

func TestReservationAmendment_RequestAndApprove(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationApproved)

	newDate := h.now.AddDate(0, 1, 0)
	requester := asRole(domain.RoleFinancialAdmin)
	out, err := h.svc.RequestAmendment(context.Background(), requester, form.ID, AmendmentInput{
		NewReservationDate:    newDate,
		NewPreliminaryPayment: decimal.NewFromInt(75_000),
		Reason:                "client pushed the date",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Details.AmendmentRequest)
	assert.Equal(t, requester.UserID, out.Details.AmendmentRequest.RequestedBy)
	require.Len(t, h.staged.Staged, 1)
	assert.Equal(t, domain.NotifyAmendmentRequested, h.staged.Staged[0].Type)

	decided, err := h.svc.DecideAmendment(context.Background(), asRole(domain.RoleFinancialManager), form.ID, true)
	require.NoError(t, err)

	// Approval applies the new terms and archives the attempt.
	assert.Nil(t, decided.Details.AmendmentRequest)
	assert.Equal(t, newDate, decided.ReservationDate)
	assert.True(t, decided.PreliminaryPayment.Equal(decimal.NewFromInt(75_000)))
	require.Len(t, decided.Details.AmendmentHistory, 1)
	record := decided.Details.AmendmentHistory[0]
	assert.Equal(t, "approved", record.Outcome)
	assert.Equal(t, h.now, record.PreviousReservationDate)
	assert.True(t, record.PreviousPreliminaryPayment.Equal(decimal.NewFromInt(50_000)))

	assert.Equal(t, []string{domain.ChangeRequestAmendment, domain.ChangeApproveAmendment},
		h.history.ChangeTypes(domain.EntityReservationForm, form.ID))
}

func TestReservationAmendment_RejectKeepsTerms(t *testing.T) {
	h := newReservationHarness(t)
	form := h.seedForm(domain.ReservationApproved)

	_, err := h.svc.RequestAmendment(context.Background(), asRole(domain.RoleFinancialAdmin), form.ID, AmendmentInput{
		NewReservationDate:    h.now.AddDate(0, 1, 0),
		NewPreliminaryPayment: decimal.NewFromInt(75_000),
	})
	require.NoError(t, err)

	decided, err := h.svc.DecideAmendment(context.Background(), asRole(domain.RoleFinancialManager), form.ID, false)
	require.NoError(t, err)

	assert.Equal(t, h.now, decided.ReservationDate)
	assert.True(t, decided.PreliminaryPayment.Equal(decimal.NewFromInt(50_000)))
	require.Len(t, decided.Details.AmendmentHistory, 1)
	assert.Equal(t, "rejected", decided.Details.AmendmentHistory[0].Outcome)
}

func TestReservationAmendment_Gates(t *testing.T) {
	h := newReservationHarness(t)
	pending := h.seedForm(domain.ReservationPendingApproval)

	// Requesting is a financial admin call.
	_, err := h.svc.RequestAmendment(context.Background(), asRole(domain.RolePropertyConsultant), pending.ID, AmendmentInput{})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = h.svc.RequestAmendment(context.Background(), asRole(domain.RoleFinancialAdmin), pending.ID, AmendmentInput{})
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))

	approved := h.seedForm(domain.ReservationApproved)
	_, err = h.svc.RequestAmendment(context.Background(), asRole(domain.RoleFinancialAdmin), approved.ID, AmendmentInput{})
	require.NoError(t, err)

	// Only one amendment may be pending at a time.
	_, err = h.svc.RequestAmendment(context.Background(), asRole(domain.RoleFinancialAdmin), approved.ID, AmendmentInput{})
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))

	// Deciding is an FM call.
	_, err = h.svc.DecideAmendment(context.Background(), asRole(domain.RolePropertyConsultant), approved.ID, true)
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	// Nothing pending after the decision.
	_, err = h.svc.DecideAmendment(context.Background(), asRole(domain.RoleFinancialManager), approved.ID, true)
	require.NoError(t, err)
	_, err = h.svc.DecideAmendment(context.Background(), asRole(domain.RoleFinancialManager), approved.ID, true)
	require.Error(t, err)
	assert.Equal(t, domain.KindStateMismatch, domain.KindOf(err))
}
