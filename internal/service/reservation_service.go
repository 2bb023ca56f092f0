package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReservationService owns reservation forms: gated creation against a
// blocked unit and an approved plan, FM review, cancellation, and the
// amendment sub-protocol on approved forms.
type ReservationService struct {
	txm         domain.TxManager
	formRepo    domain.ReservationFormRepository
	planRepo    domain.PaymentPlanRepository
	unitRepo    domain.UnitRepository
	blockRepo   domain.BlockRepository
	historyRepo domain.HistoryRepository
	notifier    *Notifier
	machine     *statemachine.Machine
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	txm domain.TxManager,
	formRepo domain.ReservationFormRepository,
	planRepo domain.PaymentPlanRepository,
	unitRepo domain.UnitRepository,
	blockRepo domain.BlockRepository,
	historyRepo domain.HistoryRepository,
	notifier *Notifier,
	logger zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		txm:         txm,
		formRepo:    formRepo,
		planRepo:    planRepo,
		unitRepo:    unitRepo,
		blockRepo:   blockRepo,
		historyRepo: historyRepo,
		notifier:    notifier,
		machine:     statemachine.Reservations(),
		logger:      logger.With().Str("component", "reservation_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateReservationInput is a new reservation form request.
type CreateReservationInput struct {
	PaymentPlanID      uuid.UUID
	UnitID             uuid.UUID
	ReservationDate    time.Time
	PreliminaryPayment decimal.Decimal
}

// Create files a reservation form. All gates are checked under row locks in
// one transaction: the unit must be BLOCKED with an active block, the plan
// approved, and no open form may exist for the plan.
func (s *ReservationService) Create(ctx context.Context, principal domain.Principal, input CreateReservationInput) (*domain.ReservationForm, error) {
	switch principal.Role {
	case domain.RoleFinancialAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a financial admin may create reservation forms")
	}
	if input.PreliminaryPayment.IsNegative() {
		return nil, domain.NewInvalidInput("Invalid reservation form",
			domain.FieldError{Field: "preliminaryPayment", Message: "must not be negative"})
	}
	var (
		form   *domain.ReservationForm
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		unit, err := s.unitRepo.GetForUpdateTx(ctx, tx, input.UnitID)
		if err != nil {
			return err
		}
		if unit.UnitStatus != domain.UnitBlocked {
			return domain.NewStateMismatch("Reservation forms can only be created for units that are currently BLOCKED")
		}
		if _, err := s.blockRepo.ActiveForUnitTx(ctx, tx, input.UnitID, s.now()); err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				return domain.NewStateMismatch("Unit has no active block")
			}
			return err
		}
		plan, err := s.planRepo.GetForUpdateTx(ctx, tx, input.PaymentPlanID)
		if err != nil {
			return err
		}
		if plan.Status != domain.PlanApproved {
			return domain.NewStateMismatch("Reservation forms require an approved payment plan")
		}
		open, err := s.formRepo.OpenExistsForPlanTx(ctx, tx, input.PaymentPlanID)
		if err != nil {
			return err
		}
		if open {
			return domain.NewStateMismatch("An open reservation form already exists for this payment plan")
		}

		form, err = s.formRepo.CreateTx(ctx, tx, &domain.ReservationForm{
			PaymentPlanID:      input.PaymentPlanID,
			UnitID:             input.UnitID,
			ReservationDate:    input.ReservationDate,
			PreliminaryPayment: input.PreliminaryPayment,
			Status:             domain.ReservationPendingApproval,
			CreatedBy:          principal.UserID,
		})
		if err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityReservationForm, form.ID, domain.ChangeCreate, principal.UserID, nil, form)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(domain.RoleFinancialManager),
			domain.NotifyReservationCreated,
			domain.EntityReservationForm,
			form.ID,
			fmt.Sprintf("Reservation form filed for unit %s", unit.Code),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return form, nil
}

// Approve confirms the reservation and moves the unit from BLOCKED to
// RESERVED.
func (s *ReservationService) Approve(ctx context.Context, principal domain.Principal, formID uuid.UUID) (*domain.ReservationForm, error) {
	var (
		form   *domain.ReservationForm
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		form, err = s.formRepo.GetForUpdateTx(ctx, tx, formID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(form.Status), statemachine.ActionApprove, principal.Role)
		if err != nil {
			return err
		}
		unit, err := s.unitRepo.GetForUpdateTx(ctx, tx, form.UnitID)
		if err != nil {
			return err
		}
		if unit.UnitStatus != domain.UnitBlocked {
			return domain.NewInvariantViolation(fmt.Sprintf("Unit left BLOCKED while its reservation form was pending (status %s)", unit.UnitStatus))
		}

		old := *form
		form.Status = domain.ReservationStatus(next)
		if err := s.formRepo.UpdateTx(ctx, tx, form); err != nil {
			return err
		}
		if err := s.unitRepo.SetStatusTx(ctx, tx, unit.ID, domain.UnitReserved, false); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityReservationForm, form.ID, domain.ChangeApproveFM, principal.UserID, &old, form)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(form.CreatedBy),
			domain.NotifyReservationApproved,
			domain.EntityReservationForm,
			form.ID,
			fmt.Sprintf("Reservation approved; unit %s is now reserved", unit.Code),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return form, nil
}

// Reject declines a pending form. The unit stays BLOCKED under its block.
func (s *ReservationService) Reject(ctx context.Context, principal domain.Principal, formID uuid.UUID, reason string) (*domain.ReservationForm, error) {
	return s.close(ctx, principal, formID, statemachine.ActionReject, domain.NotifyReservationRejected, reason)
}

// Cancel withdraws a pending form.
func (s *ReservationService) Cancel(ctx context.Context, principal domain.Principal, formID uuid.UUID, reason string) (*domain.ReservationForm, error) {
	return s.close(ctx, principal, formID, statemachine.ActionCancel, domain.NotifyReservationCancelled, reason)
}

func (s *ReservationService) close(ctx context.Context, principal domain.Principal, formID uuid.UUID, action statemachine.Action, eventType, reason string) (*domain.ReservationForm, error) {
	var (
		form   *domain.ReservationForm
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		form, err = s.formRepo.GetForUpdateTx(ctx, tx, formID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(form.Status), action, principal.Role)
		if err != nil {
			return err
		}
		old := *form
		form.Status = domain.ReservationStatus(next)
		if err := s.formRepo.UpdateTx(ctx, tx, form); err != nil {
			return err
		}
		changeType := domain.ChangeReject
		if action == statemachine.ActionCancel {
			changeType = domain.ChangeCancel
		}
		entry, err := domain.NewHistoryEntry(domain.EntityReservationForm, form.ID, changeType, principal.UserID, &old, form)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		message := fmt.Sprintf("Reservation form %s", form.Status)
		if reason != "" {
			message = fmt.Sprintf("%s: %s", message, reason)
		}
		staged = []*domain.Notification{Event(ToUsers(form.CreatedBy), eventType, domain.EntityReservationForm, form.ID, message)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return form, nil
}

// AmendmentInput is a requested change to an approved form.
type AmendmentInput struct {
	NewReservationDate    time.Time
	NewPreliminaryPayment decimal.Decimal
	Reason                string
}

// RequestAmendment files a pending amendment on an approved form. Only one
// amendment may be pending at a time.
func (s *ReservationService) RequestAmendment(ctx context.Context, principal domain.Principal, formID uuid.UUID, input AmendmentInput) (*domain.ReservationForm, error) {
	switch principal.Role {
	case domain.RoleFinancialAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a financial admin may request amendments")
	}
	if input.NewPreliminaryPayment.IsNegative() {
		return nil, domain.NewInvalidInput("Invalid amendment",
			domain.FieldError{Field: "newPreliminaryPayment", Message: "must not be negative"})
	}
	var (
		form   *domain.ReservationForm
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		form, err = s.formRepo.GetForUpdateTx(ctx, tx, formID)
		if err != nil {
			return err
		}
		if form.Status != domain.ReservationApproved {
			return domain.NewStateMismatch("Only approved reservation forms can be amended")
		}
		if form.Details.AmendmentRequest != nil {
			return domain.NewStateMismatch("An amendment request is already pending")
		}

		old := *form
		form.Details.AmendmentRequest = &domain.AmendmentRequest{
			NewReservationDate:    input.NewReservationDate,
			NewPreliminaryPayment: input.NewPreliminaryPayment,
			Reason:                input.Reason,
			RequestedBy:           principal.UserID,
			RequestedAt:           s.now(),
		}
		if err := s.formRepo.UpdateTx(ctx, tx, form); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityReservationForm, form.ID, domain.ChangeRequestAmendment, principal.UserID, &old, form)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(domain.RoleFinancialManager),
			domain.NotifyAmendmentRequested,
			domain.EntityReservationForm,
			form.ID,
			"Reservation amendment awaiting review",
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return form, nil
}

// DecideAmendment approves or rejects the pending amendment. Approval applies
// the new terms; either way the attempt is archived with the values that were
// current when it was requested.
func (s *ReservationService) DecideAmendment(ctx context.Context, principal domain.Principal, formID uuid.UUID, approve bool) (*domain.ReservationForm, error) {
	switch principal.Role {
	case domain.RoleFinancialManager, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a financial manager may decide amendments")
	}
	var (
		form   *domain.ReservationForm
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		form, err = s.formRepo.GetForUpdateTx(ctx, tx, formID)
		if err != nil {
			return err
		}
		request := form.Details.AmendmentRequest
		if request == nil {
			return domain.NewStateMismatch("No amendment request is pending")
		}

		old := *form
		record := domain.AmendmentRecord{
			PreviousReservationDate:    form.ReservationDate,
			PreviousPreliminaryPayment: form.PreliminaryPayment,
			NewReservationDate:         request.NewReservationDate,
			NewPreliminaryPayment:      request.NewPreliminaryPayment,
			Reason:                     request.Reason,
			RequestedBy:                request.RequestedBy,
			RequestedAt:                request.RequestedAt,
			Outcome:                    "rejected",
			DecidedBy:                  principal.UserID,
			DecidedAt:                  s.now(),
		}
		changeType := domain.ChangeRejectAmendment
		if approve {
			record.Outcome = "approved"
			changeType = domain.ChangeApproveAmendment
			form.ReservationDate = request.NewReservationDate
			form.PreliminaryPayment = request.NewPreliminaryPayment
		}
		form.Details.AmendmentRequest = nil
		form.Details.AmendmentHistory = append(form.Details.AmendmentHistory, record)
		if err := s.formRepo.UpdateTx(ctx, tx, form); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityReservationForm, form.ID, changeType, principal.UserID, &old, form)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(record.RequestedBy),
			domain.NotifyAmendmentDecided,
			domain.EntityReservationForm,
			form.ID,
			fmt.Sprintf("Reservation amendment %s", record.Outcome),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return form, nil
}

// GetByID returns one reservation form.
func (s *ReservationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationForm, error) {
	return s.formRepo.GetByID(ctx, id)
}

// ListByStatus returns forms in one lifecycle state.
func (s *ReservationService) ListByStatus(ctx context.Context, status domain.ReservationStatus) ([]*domain.ReservationForm, error) {
	return s.formRepo.ListByStatus(ctx, status)
}

// History returns the audit trail of a form.
func (s *ReservationService) History(ctx context.Context, formID uuid.UUID) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.ListByEntity(ctx, domain.EntityReservationForm, formID)
}
