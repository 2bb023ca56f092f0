package service

import (
	"context"
	"errors"

	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PolicyService reads and writes the acceptance policy. Only top management
// may change it; everyone may read the effective values.
type PolicyService struct {
	policyRepo domain.PolicyRepository
	logger     zerolog.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(policyRepo domain.PolicyRepository, logger zerolog.Logger) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		logger:     logger.With().Str("component", "policy_service").Logger(),
	}
}

// Effective returns the governing policy, falling back to the built-in
// defaults when none is configured.
func (s *PolicyService) Effective(ctx context.Context) (*domain.PolicyConfig, error) {
	policy, err := s.policyRepo.GetActiveGlobal(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DefaultPolicy(), nil
		}
		return nil, err
	}
	return policy, nil
}

// Update installs a new active global policy row. Older rows stay for audit;
// the newest active row governs.
func (s *PolicyService) Update(ctx context.Context, principal domain.Principal, policy domain.PolicyConfig) (*domain.PolicyConfig, error) {
	switch principal.Role {
	case domain.RoleTopManagement, domain.RoleAdmin:
	default:
		return nil, domain.NewForbidden("Only top management may change the acceptance policy")
	}
	if fields := validatePolicy(policy); len(fields) > 0 {
		return nil, domain.NewInvalidInput("Invalid policy", fields...)
	}
	policy.ScopeType = domain.ScopeGlobal
	policy.Active = true
	created, err := s.policyRepo.Create(ctx, &policy)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("policy_id", created.ID.String()).
		Str("policy_limit", created.PolicyLimitPercent.String()).
		Msg("Acceptance policy updated")
	return created, nil
}

func validatePolicy(p domain.PolicyConfig) []domain.FieldError {
	var fields []domain.FieldError
	hundred := decimal.NewFromInt(100)
	percent := func(field string, v decimal.Decimal) {
		if v.IsNegative() || v.GreaterThan(hundred) {
			fields = append(fields, domain.FieldError{Field: field, Message: "must be between 0 and 100"})
		}
	}
	percent("policyLimitPercent", p.PolicyLimitPercent)
	percent("year1MinPercent", p.Year1MinPercent)
	percent("year2MinPercent", p.Year2MinPercent)
	percent("year3MinPercent", p.Year3MinPercent)
	percent("handoverMinPercent", p.HandoverMinPercent)
	if p.PVTolerancePercent.LessThanOrEqual(decimal.Zero) {
		fields = append(fields, domain.FieldError{Field: "pvTolerancePercent", Message: "must be positive"})
	}
	bound := func(field string, min decimal.Decimal, max *decimal.Decimal) {
		if max != nil && max.LessThan(min) {
			fields = append(fields, domain.FieldError{Field: field, Message: "must not be below the matching minimum"})
		}
	}
	bound("year1MaxPercent", p.Year1MinPercent, p.Year1MaxPercent)
	bound("year2MaxPercent", p.Year2MinPercent, p.Year2MaxPercent)
	bound("year3MaxPercent", p.Year3MinPercent, p.Year3MaxPercent)
	bound("handoverMaxPercent", p.HandoverMinPercent, p.HandoverMaxPercent)
	return fields
}
