package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/rs/zerolog"
)

// BlockService owns the unit hold lifecycle: request, financial review with
// the override chain, extension, cancellation and release. Every transition
// that touches the unit runs with both rows locked.
type BlockService struct {
	txm         domain.TxManager
	blockRepo   domain.BlockRepository
	unitRepo    domain.UnitRepository
	historyRepo domain.HistoryRepository
	notifier    *Notifier
	machine     *statemachine.Machine
	overrides   *statemachine.Machine
	logger      zerolog.Logger
	now         func() time.Time
}

// NewBlockService creates a new BlockService.
func NewBlockService(
	txm domain.TxManager,
	blockRepo domain.BlockRepository,
	unitRepo domain.UnitRepository,
	historyRepo domain.HistoryRepository,
	notifier *Notifier,
	logger zerolog.Logger,
) *BlockService {
	return &BlockService{
		txm:         txm,
		blockRepo:   blockRepo,
		unitRepo:    unitRepo,
		historyRepo: historyRepo,
		notifier:    notifier,
		machine:     statemachine.Blocks(),
		overrides:   statemachine.BlockOverrides(),
		logger:      logger.With().Str("component", "block_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequestBlockInput is a new hold request.
type RequestBlockInput struct {
	UnitID       uuid.UUID
	DurationDays int
	Reason       string
}

// Request files a pending block on an available unit. The checks here are
// advisory; approval re-validates them under row locks.
func (s *BlockService) Request(ctx context.Context, principal domain.Principal, input RequestBlockInput) (*domain.Block, error) {
	switch principal.Role {
	case domain.RolePropertyConsultant, domain.RoleFinancialManager, domain.RoleFinancialAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Role may not request unit blocks")
	}
	if input.DurationDays < domain.BlockMinDurationDays || input.DurationDays > domain.BlockMaxDurationDays {
		return nil, domain.NewInvalidInput("Invalid block duration",
			domain.FieldError{Field: "durationDays", Message: "must be between 1 and 28"})
	}

	unit, err := s.unitRepo.GetByID(ctx, input.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.UnitStatus != domain.UnitAvailable {
		if unit.UnitStatus == domain.UnitBlocked {
			return nil, domain.NewStateMismatch("Unit is already blocked")
		}
		return nil, domain.NewStateMismatch(fmt.Sprintf("Unit is not available (status %s)", unit.UnitStatus))
	}

	var reason *string
	if input.Reason != "" {
		reason = &input.Reason
	}
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err = s.txm.WithTx(ctx, func(tx domain.Tx) error {
		block, err = s.blockRepo.CreateTx(ctx, tx, &domain.Block{
			UnitID:              input.UnitID,
			RequestedBy:         principal.UserID,
			DurationDays:        input.DurationDays,
			InitialDurationDays: input.DurationDays,
			Status:              domain.BlockPending,
			OverrideStatus:      domain.OverrideNone,
			Reason:              reason,
		})
		if err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeCreate, principal.UserID, nil, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(domain.RoleFinancialManager),
			domain.NotifyBlockRequested,
			domain.EntityBlock,
			block.ID,
			fmt.Sprintf("Block requested on unit %s for %d days", unit.Code, input.DurationDays),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// Approve grants a pending block: the unit flips to BLOCKED and the hold
// clock starts. A block financially rejected needs an approved override
// before it can pass here.
func (s *BlockService) Approve(ctx context.Context, principal domain.Principal, blockID uuid.UUID) (*domain.Block, error) {
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		block, err = s.blockRepo.GetForUpdateTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(block.Status), statemachine.ActionApprove, principal.Role)
		if err != nil {
			return err
		}
		if block.FinancialDecision != nil && *block.FinancialDecision == domain.FinancialReject &&
			block.OverrideStatus != domain.OverrideApproved {
			return domain.NewStateMismatch("Block was rejected by financial review and has no approved override")
		}

		unit, err := s.unitRepo.GetForUpdateTx(ctx, tx, block.UnitID)
		if err != nil {
			return err
		}
		if unit.UnitStatus != domain.UnitAvailable {
			if unit.UnitStatus == domain.UnitBlocked {
				return domain.NewStateMismatch("Unit is already blocked")
			}
			return domain.NewStateMismatch(fmt.Sprintf("Unit is not available (status %s)", unit.UnitStatus))
		}
		if _, err := s.blockRepo.ActiveForUnitTx(ctx, tx, block.UnitID, s.now()); err == nil {
			return domain.NewStateMismatch("Unit is already blocked")
		} else if domain.KindOf(err) != domain.KindNotFound {
			return err
		}

		now := s.now()
		old := *block
		decision := domain.FinancialAccept
		block.Status = domain.BlockStatus(next)
		block.FinancialDecision = &decision
		block.BlockedUntil = now.AddDate(0, 0, block.DurationDays)
		nextNotify := now.AddDate(0, 0, domain.BlockExtensionDays)
		if nextNotify.Before(block.BlockedUntil) {
			block.NextNotifyAt = &nextNotify
		}
		if err := s.blockRepo.UpdateTx(ctx, tx, block); err != nil {
			return err
		}
		if err := s.unitRepo.SetStatusTx(ctx, tx, unit.ID, domain.UnitBlocked, false); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeApproveFM, principal.UserID, &old, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(block.RequestedBy),
			domain.NotifyBlockApproved,
			domain.EntityBlock,
			block.ID,
			fmt.Sprintf("Block approved until %s", block.BlockedUntil.Format(DueDateLayout)),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// Reject records a REJECT financial decision. The first rejection opens the
// override chain at SM instead of terminating the request; the block only
// turns rejected when the chain is exhausted or the requester withdraws.
func (s *BlockService) Reject(ctx context.Context, principal domain.Principal, blockID uuid.UUID, reason string) (*domain.Block, error) {
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		block, err = s.blockRepo.GetForUpdateTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		if _, err := s.machine.Resolve(statemachine.State(block.Status), statemachine.ActionReject, principal.Role); err != nil {
			return err
		}
		if block.OverrideStatus != domain.OverrideNone {
			return domain.NewStateMismatch("Block already has an open override chain")
		}

		old := *block
		decision := domain.FinancialReject
		block.FinancialDecision = &decision
		block.OverrideStatus = domain.OverridePendingSM
		if reason != "" {
			block.Reason = &reason
		}
		if err := s.blockRepo.UpdateTx(ctx, tx, block); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeReject, principal.UserID, &old, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{
			Event(ToUsers(block.RequestedBy), domain.NotifyBlockRejected, domain.EntityBlock, block.ID,
				"Block request rejected by financial review; override chain opened"),
			Event(ToRoles(domain.RoleSalesManager), domain.NotifyBlockOverride, domain.EntityBlock, block.ID,
				"Block override awaiting sales manager review"),
		}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// Override advances the override chain one stage: approve walks SM to FM to
// TM, TM may bypass from any pending stage, and reject closes the chain and
// the block with it.
func (s *BlockService) Override(ctx context.Context, principal domain.Principal, blockID uuid.UUID, action statemachine.Action) (*domain.Block, error) {
	switch action {
	case statemachine.ActionApprove, statemachine.ActionReject, statemachine.ActionTMBypass:
	default:
		return nil, domain.NewInvalidInput("Invalid override action",
			domain.FieldError{Field: "action", Message: "must be approve, reject or approve_tm_bypass"})
	}
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		block, err = s.blockRepo.GetForUpdateTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		if block.Status != domain.BlockPending {
			return domain.NewStateMismatch("Only pending blocks carry an override chain")
		}
		next, err := s.overrides.Resolve(statemachine.State(block.OverrideStatus), action, principal.Role)
		if err != nil {
			return err
		}

		old := *block
		block.OverrideStatus = domain.OverrideStatus(next)
		changeType := overrideChange(old.OverrideStatus, action)
		if block.OverrideStatus == domain.OverrideRejected {
			block.Status = domain.BlockRejected
		}
		if err := s.blockRepo.UpdateTx(ctx, tx, block); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, changeType, principal.UserID, &old, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}

		staged = overrideNotifications(block)
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// Extend lengthens an approved hold by up to 7 days, at most 3 times, never
// past 28 days total.
func (s *BlockService) Extend(ctx context.Context, principal domain.Principal, blockID uuid.UUID, additionalDays int) (*domain.Block, error) {
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		block, err = s.blockRepo.GetForUpdateTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		if principal.UserID != block.RequestedBy && principal.Role != domain.RoleAdmin &&
			principal.Role != domain.RoleFinancialManager {
			return domain.NewForbidden("Only the requester or a financial manager may extend a block")
		}
		if additionalDays > domain.BlockExtensionDays {
			return domain.NewInvalidInput("Invalid extension",
				domain.FieldError{Field: "additionalDays", Message: "a single extension adds at most 7 days"})
		}
		if err := block.CanExtend(additionalDays); err != nil {
			return err
		}

		old := *block
		block.DurationDays += additionalDays
		block.BlockedUntil = block.BlockedUntil.AddDate(0, 0, additionalDays)
		block.ExtensionCount++
		if err := s.blockRepo.UpdateTx(ctx, tx, block); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeExtend, principal.UserID, &old, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(block.RequestedBy),
			domain.NotifyBlockExtended,
			domain.EntityBlock,
			block.ID,
			fmt.Sprintf("Block extended until %s (%d of %d extensions used)",
				block.BlockedUntil.Format(DueDateLayout), block.ExtensionCount, domain.BlockMaxExtensions),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// Cancel withdraws a pending request, or releases an approved hold and frees
// its unit.
func (s *BlockService) Cancel(ctx context.Context, principal domain.Principal, blockID uuid.UUID) (*domain.Block, error) {
	var (
		block  *domain.Block
		staged []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		block, err = s.blockRepo.GetForUpdateTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(block.Status), statemachine.ActionCancel, principal.Role)
		if err != nil {
			return err
		}
		wasApproved := block.Status == domain.BlockApproved

		old := *block
		block.Status = domain.BlockStatus(next)
		block.NextNotifyAt = nil
		if err := s.blockRepo.UpdateTx(ctx, tx, block); err != nil {
			return err
		}
		if wasApproved {
			if err := s.releaseUnitTx(ctx, tx, block.UnitID); err != nil {
				return err
			}
		}
		entry, err := domain.NewHistoryEntry(domain.EntityBlock, block.ID, domain.ChangeCancel, principal.UserID, &old, block)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(domain.RoleFinancialManager),
			domain.NotifyBlockExpired,
			domain.EntityBlock,
			block.ID,
			"Block cancelled by requester",
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return block, nil
}

// releaseUnitTx frees a unit held by a block. Units already moved on to
// RESERVED or SOLD are left alone.
func (s *BlockService) releaseUnitTx(ctx context.Context, tx domain.Tx, unitID uuid.UUID) error {
	unit, err := s.unitRepo.GetForUpdateTx(ctx, tx, unitID)
	if err != nil {
		return err
	}
	if unit.UnitStatus != domain.UnitBlocked {
		return nil
	}
	return s.unitRepo.SetStatusTx(ctx, tx, unitID, domain.UnitAvailable, true)
}

// GetByID returns one block.
func (s *BlockService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Block, error) {
	return s.blockRepo.GetByID(ctx, id)
}

// ListByStatus returns blocks in one lifecycle state.
func (s *BlockService) ListByStatus(ctx context.Context, status domain.BlockStatus) ([]*domain.Block, error) {
	return s.blockRepo.ListByStatus(ctx, status)
}

// History returns the audit trail of a block.
func (s *BlockService) History(ctx context.Context, blockID uuid.UUID) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.ListByEntity(ctx, domain.EntityBlock, blockID)
}

func overrideChange(from domain.OverrideStatus, action statemachine.Action) string {
	if action == statemachine.ActionReject {
		return domain.ChangeOverrideReject
	}
	if action == statemachine.ActionTMBypass {
		return domain.ChangeApproveTMBypass
	}
	switch from {
	case domain.OverridePendingSM:
		return domain.ChangeOverrideSM
	case domain.OverridePendingFM:
		return domain.ChangeOverrideFM
	}
	return domain.ChangeOverrideTM
}

func overrideNotifications(block *domain.Block) []*domain.Notification {
	switch block.OverrideStatus {
	case domain.OverridePendingFM:
		return []*domain.Notification{Event(ToRoles(domain.RoleFinancialManager), domain.NotifyBlockOverride,
			domain.EntityBlock, block.ID, "Block override awaiting financial manager review")}
	case domain.OverridePendingTM:
		return []*domain.Notification{Event(ToRoles(domain.RoleTopManagement), domain.NotifyBlockOverride,
			domain.EntityBlock, block.ID, "Block override awaiting top management review")}
	case domain.OverrideApproved:
		return []*domain.Notification{
			Event(ToUsers(block.RequestedBy), domain.NotifyBlockOverride, domain.EntityBlock, block.ID,
				"Block override approved"),
			Event(ToRoles(domain.RoleFinancialManager), domain.NotifyBlockOverride, domain.EntityBlock, block.ID,
				"Block override approved; the block may now be approved"),
		}
	case domain.OverrideRejected:
		return []*domain.Notification{Event(ToUsers(block.RequestedBy), domain.NotifyBlockRejected,
			domain.EntityBlock, block.ID, "Block override rejected")}
	}
	return nil
}
