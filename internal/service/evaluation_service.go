package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/words"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DueDateLayout is the wire format for schedule due dates.
const DueDateLayout = "02/01/2006"

// EvaluationService resolves pricing and policy rows and runs the plan
// evaluator. It owns no state transitions; the plan service calls it to
// freeze calculator snapshots.
type EvaluationService struct {
	pricingRepo domain.StandardPricingRepository
	policyRepo  domain.PolicyRepository
	logger      zerolog.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(pricingRepo domain.StandardPricingRepository, policyRepo domain.PolicyRepository, logger zerolog.Logger) *EvaluationService {
	return &EvaluationService{
		pricingRepo: pricingRepo,
		policyRepo:  policyRepo,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

// CalculateInput selects the pricing benchmark and carries the proposal.
// Exactly one of PricingID, UnitID or Standard must be provided.
type CalculateInput struct {
	PricingID *uuid.UUID
	UnitID    *uuid.UUID
	Standard  *planner.StandardPlan
	Proposal  planner.Inputs
}

// Calculate evaluates a proposed plan against the standard pricing and the
// active acceptance policy.
func (s *EvaluationService) Calculate(ctx context.Context, input CalculateInput) (*planner.Result, error) {
	std, err := s.resolveStandard(ctx, input)
	if err != nil {
		return nil, err
	}
	policy := s.resolvePolicy(ctx)
	return planner.Evaluate(*std, input.Proposal, policy)
}

// GeneratePlanInput is a calculate request plus the start date the dated
// schedule is anchored on.
type GeneratePlanInput struct {
	CalculateInput
	StartDate string // dd/MM/yyyy
}

// ScheduledPayment is one dated row of a generated plan.
type ScheduledPayment struct {
	Label         string          `json:"label"`
	DueDate       string          `json:"dueDate"` // dd/MM/yyyy
	MonthOffset   int             `json:"monthOffset"`
	Amount        decimal.Decimal `json:"amount"`
	AmountInWords string          `json:"amountInWords"`
	Type          string          `json:"type"`
}

// GeneratedPlan is the printable schedule handed to sales.
type GeneratedPlan struct {
	StartDate string             `json:"startDate"`
	Payments  []ScheduledPayment `json:"payments"`
	Result    *planner.Result    `json:"result"`
}

// GeneratePlan evaluates the proposal and renders the dated schedule with
// amounts in words. The caller's discount authority is enforced here: a
// proposal above the role cap is rejected outright, before any review queue.
func (s *EvaluationService) GeneratePlan(ctx context.Context, principal domain.Principal, input GeneratePlanInput) (*GeneratedPlan, error) {
	limit, err := domain.DiscountCap(principal.Role)
	if err != nil {
		return nil, err
	}
	if input.Proposal.SalesDiscountPercent.GreaterThan(limit) {
		return nil, domain.NewForbidden("Requested discount exceeds your authority")
	}

	start, err := time.Parse(DueDateLayout, input.StartDate)
	if err != nil {
		return nil, domain.NewInvalidInput("Invalid start date",
			domain.FieldError{Field: "startDate", Message: "must be dd/MM/yyyy"})
	}
	if input.Proposal.AnchorDate == nil {
		input.Proposal.AnchorDate = &start
	}

	result, err := s.Calculate(ctx, input.CalculateInput)
	if err != nil {
		return nil, err
	}

	payments := make([]ScheduledPayment, 0, len(result.Schedule))
	for _, entry := range result.Schedule {
		due := start.AddDate(0, entry.MonthOffset, 0)
		payments = append(payments, ScheduledPayment{
			Label:         entry.Label,
			DueDate:       due.Format(DueDateLayout),
			MonthOffset:   entry.MonthOffset,
			Amount:        entry.Amount,
			AmountInWords: words.Title(entry.Amount),
			Type:          entry.Type,
		})
	}

	return &GeneratedPlan{
		StartDate: start.Format(DueDateLayout),
		Payments:  payments,
		Result:    result,
	}, nil
}

func (s *EvaluationService) resolveStandard(ctx context.Context, input CalculateInput) (*planner.StandardPlan, error) {
	var (
		pricing *domain.StandardPricing
		err     error
	)
	switch {
	case input.PricingID != nil:
		pricing, err = s.pricingRepo.GetByID(ctx, *input.PricingID)
	case input.UnitID != nil:
		pricing, err = s.pricingRepo.GetActiveByUnit(ctx, *input.UnitID)
	case input.Standard != nil:
		return input.Standard, nil
	default:
		return nil, domain.NewConfigMissing("No standard pricing reference provided")
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewConfigMissing("No active standard pricing for the unit")
		}
		return nil, err
	}
	return &planner.StandardPlan{
		TotalPrice:        pricing.TotalPrice,
		AnnualRatePercent: pricing.AnnualRatePercent,
		StandardPV:        pricing.StandardPV,
	}, nil
}

// resolvePolicy returns the active global policy, falling back to the
// built-in defaults when none is configured.
func (s *EvaluationService) resolvePolicy(ctx context.Context) *domain.PolicyConfig {
	policy, err := s.policyRepo.GetActiveGlobal(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Policy lookup failed, using defaults")
		}
		return domain.DefaultPolicy()
	}
	return policy
}
