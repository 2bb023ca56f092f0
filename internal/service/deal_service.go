package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DealService owns the deal aggregate. Deals are created as drafts and move
// to approved when one of their plans clears review and is marked accepted;
// the plan service drives that transition.
type DealService struct {
	txm         domain.TxManager
	dealRepo    domain.DealRepository
	historyRepo domain.HistoryRepository
	logger      zerolog.Logger
}

// NewDealService creates a new DealService.
func NewDealService(txm domain.TxManager, dealRepo domain.DealRepository, historyRepo domain.HistoryRepository, logger zerolog.Logger) *DealService {
	return &DealService{
		txm:         txm,
		dealRepo:    dealRepo,
		historyRepo: historyRepo,
		logger:      logger.With().Str("component", "deal_service").Logger(),
	}
}

// CreateDealInput is a new deal.
type CreateDealInput struct {
	Title  string
	Amount decimal.Decimal
}

// Create files a draft deal.
func (s *DealService) Create(ctx context.Context, principal domain.Principal, input CreateDealInput) (*domain.Deal, error) {
	if input.Title == "" {
		return nil, domain.NewInvalidInput("Invalid deal",
			domain.FieldError{Field: "title", Message: "required"})
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewInvalidInput("Invalid deal",
			domain.FieldError{Field: "amount", Message: "must be positive"})
	}
	var deal *domain.Deal
	err := s.txm.WithTx(ctx, func(tx domain.Tx) error {
		var err error
		deal, err = s.dealRepo.CreateTx(ctx, tx, &domain.Deal{
			Title:     input.Title,
			Amount:    input.Amount,
			Status:    domain.DealDraft,
			CreatedBy: principal.UserID,
		})
		if err != nil {
			return err
		}
		entry, err := domain.NewHistoryEntry(domain.EntityDeal, deal.ID, domain.ChangeCreate, principal.UserID, nil, deal)
		if err != nil {
			return err
		}
		return s.historyRepo.InsertTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("deal_id", deal.ID.String()).Msg("Deal created")
	return deal, nil
}

// GetByID returns one deal.
func (s *DealService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	return s.dealRepo.GetByID(ctx, id)
}

// List returns deals, optionally filtered by status.
func (s *DealService) List(ctx context.Context, status *domain.DealStatus) ([]*domain.Deal, error) {
	return s.dealRepo.List(ctx, status)
}

// History returns the audit trail of a deal.
func (s *DealService) History(ctx context.Context, dealID uuid.UUID) ([]*domain.HistoryEntry, error) {
	return s.historyRepo.ListByEntity(ctx, domain.EntityDeal, dealID)
}
