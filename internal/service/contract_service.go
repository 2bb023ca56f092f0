package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/repository/storage"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/propline/dealdesk-backend/internal/words"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DocumentURLTTL bounds how long an archived document link stays valid.
const DocumentURLTTL = 15 * time.Minute

// ContractService owns the contract lifecycle from drafting off an approved
// reservation form through CM and TM review to execution, which marks the
// unit SOLD. It also renders the printable contract payload and archives
// signed documents in object storage.
type ContractService struct {
	txm          domain.TxManager
	contractRepo domain.ContractRepository
	formRepo     domain.ReservationFormRepository
	planRepo     domain.PaymentPlanRepository
	dealRepo     domain.DealRepository
	unitRepo     domain.UnitRepository
	historyRepo  domain.HistoryRepository
	documents    storage.DocumentRepository
	notifier     *Notifier
	machine      *statemachine.Machine
	logger       zerolog.Logger
}

// NewContractService creates a new ContractService.
func NewContractService(
	txm domain.TxManager,
	contractRepo domain.ContractRepository,
	formRepo domain.ReservationFormRepository,
	planRepo domain.PaymentPlanRepository,
	dealRepo domain.DealRepository,
	unitRepo domain.UnitRepository,
	historyRepo domain.HistoryRepository,
	documents storage.DocumentRepository,
	notifier *Notifier,
	logger zerolog.Logger,
) *ContractService {
	return &ContractService{
		txm:          txm,
		contractRepo: contractRepo,
		formRepo:     formRepo,
		planRepo:     planRepo,
		dealRepo:     dealRepo,
		unitRepo:     unitRepo,
		historyRepo:  historyRepo,
		documents:    documents,
		notifier:     notifier,
		machine:      statemachine.Contracts(),
		logger:       logger.With().Str("component", "contract_service").Logger(),
	}
}

// Create drafts a contract from an approved reservation form.
func (s *ContractService) Create(ctx context.Context, principal domain.Principal, reservationFormID uuid.UUID) (*domain.Contract, error) {
	switch principal.Role {
	case domain.RoleContractAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a contract admin may draft contracts")
	}
	var (
		contract *domain.Contract
		staged   []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		form, err := s.formRepo.GetForUpdateTx(ctx, tx, reservationFormID)
		if err != nil {
			return err
		}
		if form.Status != domain.ReservationApproved {
			return domain.NewStateMismatch("Contracts require an approved reservation form")
		}

		contract, err = s.contractRepo.CreateTx(ctx, tx, &domain.Contract{
			ReservationFormID: reservationFormID,
			Status:            domain.ContractDraft,
			CreatedBy:         principal.UserID,
		})
		if err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityContract, contract.ID, domain.ChangeCreate, principal.UserID, nil, contract)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToRoles(domain.RoleContractManager),
			domain.NotifyContractSubmitted,
			domain.EntityContract,
			contract.ID,
			"Contract drafted",
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return contract, nil
}

// UpdateSettings edits the contract terms. Settings are mutable only on a
// draft whose settings are not yet locked.
func (s *ContractService) UpdateSettings(ctx context.Context, principal domain.Principal, contractID uuid.UUID, settings domain.ContractSettings) (*domain.Contract, error) {
	switch principal.Role {
	case domain.RoleContractAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a contract admin may edit contract settings")
	}
	var contract *domain.Contract
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		contract, err = s.contractRepo.GetForUpdateTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if contract.Status != domain.ContractDraft {
			return domain.NewStateMismatch("Contract settings can only be edited on a draft")
		}
		if contract.ContractSettingsLocked {
			return domain.NewStateMismatch("Contract settings are locked")
		}
		old := *contract
		contract.Settings = settings
		if err := s.contractRepo.UpdateTx(ctx, tx, contract); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityContract, contract.ID, domain.ChangeUpdateSettings, principal.UserID, &old, contract)
		if err != nil {
			return err
		}
		return s.historyRepo.InsertTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// LockSettings freezes the contract terms. Locking is one-way and requires a
// contract date; submission refuses unlocked contracts.
func (s *ContractService) LockSettings(ctx context.Context, principal domain.Principal, contractID uuid.UUID) (*domain.Contract, error) {
	switch principal.Role {
	case domain.RoleContractAdmin, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only a contract admin may lock contract settings")
	}
	var contract *domain.Contract
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		contract, err = s.contractRepo.GetForUpdateTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if contract.ContractSettingsLocked {
			return domain.NewStateMismatch("Contract settings are already locked")
		}
		if contract.Settings.ContractDate == nil {
			return domain.NewInvalidInput("Cannot lock incomplete settings",
				domain.FieldError{Field: "contractDate", Message: "required before locking"})
		}
		old := *contract
		contract.ContractSettingsLocked = true
		if err := s.contractRepo.UpdateTx(ctx, tx, contract); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityContract, contract.ID, domain.ChangeLockSettings, principal.UserID, &old, contract)
		if err != nil {
			return err
		}
		return s.historyRepo.InsertTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Submit sends a locked draft to CM review.
func (s *ContractService) Submit(ctx context.Context, principal domain.Principal, contractID uuid.UUID) (*domain.Contract, error) {
	return s.transition(ctx, principal, contractID, statemachine.ActionSubmit, func(contract *domain.Contract) error {
		if !contract.ContractSettingsLocked {
			return domain.NewStateMismatch("Contract settings must be locked before submission")
		}
		return nil
	})
}

// Approve advances the contract through CM and then TM review.
func (s *ContractService) Approve(ctx context.Context, principal domain.Principal, contractID uuid.UUID) (*domain.Contract, error) {
	return s.transition(ctx, principal, contractID, statemachine.ActionApprove, nil)
}

// Reject declines the contract at its current review stage.
func (s *ContractService) Reject(ctx context.Context, principal domain.Principal, contractID uuid.UUID) (*domain.Contract, error) {
	return s.transition(ctx, principal, contractID, statemachine.ActionReject, nil)
}

// Execute finalises an approved contract and marks the unit SOLD.
func (s *ContractService) Execute(ctx context.Context, principal domain.Principal, contractID uuid.UUID) (*domain.Contract, error) {
	var (
		contract *domain.Contract
		staged   []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		contract, err = s.contractRepo.GetForUpdateTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		next, err := s.machine.Resolve(statemachine.State(contract.Status), statemachine.ActionExecute, principal.Role)
		if err != nil {
			return err
		}
		form, err := s.formRepo.GetForUpdateTx(ctx, tx, contract.ReservationFormID)
		if err != nil {
			return err
		}
		unit, err := s.unitRepo.GetForUpdateTx(ctx, tx, form.UnitID)
		if err != nil {
			return err
		}
		if unit.UnitStatus != domain.UnitReserved {
			return domain.NewInvariantViolation(fmt.Sprintf("Unit left RESERVED while its contract was in review (status %s)", unit.UnitStatus))
		}

		old := *contract
		contract.Status = domain.ContractStatus(next)
		if err := s.contractRepo.UpdateTx(ctx, tx, contract); err != nil {
			return err
		}
		if err := s.unitRepo.SetStatusTx(ctx, tx, unit.ID, domain.UnitSold, false); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityContract, contract.ID, domain.ChangeExecute, principal.UserID, &old, contract)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{Event(
			ToUsers(contract.CreatedBy, form.CreatedBy),
			domain.NotifyContractExecuted,
			domain.EntityContract,
			contract.ID,
			fmt.Sprintf("Contract executed; unit %s sold", unit.Code),
		)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return contract, nil
}

func (s *ContractService) transition(ctx context.Context, principal domain.Principal, contractID uuid.UUID, action statemachine.Action, guard func(*domain.Contract) error) (*domain.Contract, error) {
	var (
		contract *domain.Contract
		staged   []*domain.Notification
	)
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		contract, err = s.contractRepo.GetForUpdateTx(ctx, tx, contractID)
		if err != nil {
			return err
		}
		from := contract.Status
		next, err := s.machine.Resolve(statemachine.State(from), action, principal.Role)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(contract); err != nil {
				return err
			}
		}
		old := *contract
		contract.Status = domain.ContractStatus(next)
		if err := s.contractRepo.UpdateTx(ctx, tx, contract); err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityContract, contract.ID, contractChange(from, action), principal.UserID, &old, contract)
		if err != nil {
			return err
		}
		if err := s.historyRepo.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		staged = []*domain.Notification{contractNotification(contract)}
		return s.notifier.StageTx(ctx, tx, staged)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.DeliverAfterCommit(ctx, staged)
	return contract, nil
}

// ContractDocument is the renderable payload handed to the PDF pipeline.
type ContractDocument struct {
	ContractID         uuid.UUID              `json:"contractId"`
	ContractDate       *time.Time             `json:"contractDate,omitempty"`
	PowerOfAttorney    *string                `json:"powerOfAttorney,omitempty"`
	UnitCode           string                 `json:"unitCode"`
	TotalPrice         decimal.Decimal        `json:"totalPrice"`
	TotalPriceInWords  string                 `json:"totalPriceInWords"`
	PreliminaryPayment decimal.Decimal        `json:"preliminaryPayment"`
	PreliminaryInWords string                 `json:"preliminaryInWords"`
	ReservationDate    time.Time              `json:"reservationDate"`
	PlanVersion        int                    `json:"planVersion"`
	PlanDetails        domain.DetailsEnvelope `json:"planDetails"`
}

// Document builds the printable contract payload, amounts spelled out. The
// plan's deal must be approved, with an override stamp when one was needed.
func (s *ContractService) Document(ctx context.Context, contractID uuid.UUID) (*ContractDocument, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	form, err := s.formRepo.GetByID(ctx, contract.ReservationFormID)
	if err != nil {
		return nil, err
	}
	plan, err := s.planRepo.GetByID(ctx, form.PaymentPlanID)
	if err != nil {
		return nil, err
	}
	deal, err := s.dealRepo.GetByID(ctx, plan.DealID)
	if err != nil {
		return nil, err
	}
	if !deal.ContractDocumentReady() {
		if deal.Status != domain.DealApproved {
			return nil, domain.NewStateMismatch("Contract documents require an approved deal")
		}
		return nil, domain.NewStateMismatch("Contract documents require an approved override for this deal")
	}
	unit, err := s.unitRepo.GetByID(ctx, form.UnitID)
	if err != nil {
		return nil, err
	}
	return &ContractDocument{
		ContractID:         contract.ID,
		ContractDate:       contract.Settings.ContractDate,
		PowerOfAttorney:    contract.Settings.PowerOfAttorney,
		UnitCode:           unit.Code,
		TotalPrice:         unit.TotalPrice,
		TotalPriceInWords:  words.Title(unit.TotalPrice),
		PreliminaryPayment: form.PreliminaryPayment,
		PreliminaryInWords: words.Title(form.PreliminaryPayment),
		ReservationDate:    form.ReservationDate,
		PlanVersion:        plan.Version,
		PlanDetails:        plan.Details,
	}, nil
}

// ArchiveDocument stores a rendered contract PDF and returns its object path.
func (s *ContractService) ArchiveDocument(ctx context.Context, principal domain.Principal, contractID uuid.UUID, pdf io.Reader, size int64) (string, error) {
	switch principal.Role {
	case domain.RoleContractAdmin, domain.RoleContractManager, domain.RoleAdmin:
	default:
		return "", domain.NewForbidden("Only contract staff may archive documents")
	}
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return "", err
	}
	objectPath := storage.DocumentObjectPath(domain.EntityContract, contract.ID, string(contract.Status))
	return s.documents.Upload(ctx, objectPath, pdf, "application/pdf", size)
}

// DocumentURL returns a short-lived presigned link to an archived document.
func (s *ContractService) DocumentURL(ctx context.Context, objectPath string) (string, error) {
	return s.documents.GeneratePresignedURL(ctx, objectPath, DocumentURLTTL)
}

// GetByID returns one contract.
func (s *ContractService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	return s.contractRepo.GetByID(ctx, id)
}

// ListByStatus returns contracts in one lifecycle state.
func (s *ContractService) ListByStatus(ctx context.Context, status domain.ContractStatus) ([]*domain.Contract, error) {
	return s.contractRepo.ListByStatus(ctx, status)
}

// History returns the audit trail of a contract.
func (s *ContractService) History(ctx context.Context, contractID uuid.UUID) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.ListByEntity(ctx, domain.EntityContract, contractID)
}

func contractChange(from domain.ContractStatus, action statemachine.Action) string {
	switch action {
	case statemachine.ActionSubmit:
		return domain.ChangeSubmit
	case statemachine.ActionReject:
		return domain.ChangeReject
	}
	if from == domain.ContractPendingCM {
		return domain.ChangeApproveCM
	}
	return domain.ChangeApproveTM
}

func contractNotification(contract *domain.Contract) *domain.Notification {
	switch contract.Status {
	case domain.ContractPendingCM:
		return Event(ToRoles(domain.RoleContractManager), domain.NotifyContractSubmitted,
			domain.EntityContract, contract.ID, "Contract submitted for CM review")
	case domain.ContractPendingTM:
		return Event(ToRoles(domain.RoleTopManagement), domain.NotifyContractSubmitted,
			domain.EntityContract, contract.ID, "Contract awaiting top management approval")
	case domain.ContractApproved:
		return Event(ToUsers(contract.CreatedBy), domain.NotifyContractApproved,
			domain.EntityContract, contract.ID, "Contract approved and ready for execution")
	default:
		return Event(ToUsers(contract.CreatedBy), domain.NotifyContractRejected,
			domain.EntityContract, contract.ID, "Contract rejected")
	}
}
