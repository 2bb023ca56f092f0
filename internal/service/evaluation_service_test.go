package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluationHarness(t *testing.T) (*EvaluationService, *testutil.MockStandardPricingRepository, *testutil.MockPolicyRepository) {
	t.Helper()
	pricing := testutil.NewMockStandardPricingRepository()
	policies := testutil.NewMockPolicyRepository()
	return NewEvaluationService(pricing, policies, zerolog.Nop()), pricing, policies
}

func TestCalculate_InlineStandard(t *testing.T) {
	svc, _, _ := newEvaluationHarness(t)

	result, err := svc.Calculate(context.Background(), CalculateInput{Standard: testStandard(), Proposal: testProposal()})
	require.NoError(t, err)
	assert.Equal(t, planner.DecisionAccept, result.Evaluation.Decision)
	assert.Len(t, result.Schedule, 17)
}

func TestCalculate_ResolvesPricingByID(t *testing.T) {
	svc, pricing, _ := newEvaluationHarness(t)
	row := &domain.StandardPricing{
		TotalPrice:        decimal.NewFromInt(1_000_000),
		AnnualRatePercent: decimal.NewFromInt(12),
		StandardPV:        decimal.NewFromInt(1_000_000),
		Active:            true,
	}
	pricing.AddPricing(row)

	result, err := svc.Calculate(context.Background(), CalculateInput{PricingID: &row.ID, Proposal: testProposal()})
	require.NoError(t, err)
	assert.Equal(t, planner.DecisionAccept, result.Evaluation.Decision)
}

func TestCalculate_ResolvesActiveUnitPricing(t *testing.T) {
	svc, pricing, _ := newEvaluationHarness(t)
	unitID := uuid.New()
	pricing.AddPricing(&domain.StandardPricing{
		UnitID:            &unitID,
		TotalPrice:        decimal.NewFromInt(1_000_000),
		AnnualRatePercent: decimal.NewFromInt(12),
		StandardPV:        decimal.NewFromInt(1_000_000),
		Active:            true,
	})

	_, err := svc.Calculate(context.Background(), CalculateInput{UnitID: &unitID, Proposal: testProposal()})
	require.NoError(t, err)

	// Units without an active pricing row cannot be evaluated.
	orphan := uuid.New()
	_, err = svc.Calculate(context.Background(), CalculateInput{UnitID: &orphan, Proposal: testProposal()})
	require.Error(t, err)
	assert.Equal(t, domain.KindConfigMissing, domain.KindOf(err))
}

func TestCalculate_NoPricingReference(t *testing.T) {
	svc, _, _ := newEvaluationHarness(t)

	_, err := svc.Calculate(context.Background(), CalculateInput{Proposal: testProposal()})
	require.Error(t, err)
	assert.Equal(t, domain.KindConfigMissing, domain.KindOf(err))
}

func TestCalculate_StoredPolicyGoverns(t *testing.T) {
	svc, _, policies := newEvaluationHarness(t)
	policy := domain.DefaultPolicy()
	policy.PVTolerancePercent = decimal.NewFromInt(90)
	policies.Policy = policy

	proposal := testProposal()
	proposal.SalesDiscountPercent = decimal.NewFromInt(5)

	result, err := svc.Calculate(context.Background(), CalculateInput{Standard: testStandard(), Proposal: proposal})
	require.NoError(t, err)

	// A 5% discount fails the default 100% PV check but passes at 90%.
	assert.Equal(t, planner.DecisionAccept, result.Evaluation.Decision)
}

func TestGeneratePlan_DatedSchedule(t *testing.T) {
	svc, _, _ := newEvaluationHarness(t)

	plan, err := svc.GeneratePlan(context.Background(), asRole(domain.RoleFinancialManager), GeneratePlanInput{
		CalculateInput: CalculateInput{Standard: testStandard(), Proposal: testProposal()},
		StartDate:      "15/03/2026",
	})
	require.NoError(t, err)

	assert.Equal(t, "15/03/2026", plan.StartDate)
	require.Len(t, plan.Payments, 17)
	assert.Equal(t, "15/03/2026", plan.Payments[0].DueDate)
	assert.Equal(t, "15/06/2026", plan.Payments[1].DueDate)
	for _, payment := range plan.Payments {
		assert.NotEmpty(t, payment.AmountInWords, payment.Label)
	}
	assert.Equal(t, planner.DecisionAccept, plan.Result.Evaluation.Decision)
}

func TestGeneratePlan_InvalidStartDate(t *testing.T) {
	svc, _, _ := newEvaluationHarness(t)

	_, err := svc.GeneratePlan(context.Background(), asRole(domain.RoleFinancialManager), GeneratePlanInput{
		CalculateInput: CalculateInput{Standard: testStandard(), Proposal: testProposal()},
		StartDate:      "2026-03-15",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}

func TestGeneratePlan_DiscountAuthority(t *testing.T) {
	svc, _, _ := newEvaluationHarness(t)

	proposal := testProposal()
	proposal.SalesDiscountPercent = decimal.NewFromInt(3) // consultant cap is 2

	_, err := svc.GeneratePlan(context.Background(), asRole(domain.RolePropertyConsultant), GeneratePlanInput{
		CalculateInput: CalculateInput{Standard: testStandard(), Proposal: proposal},
		StartDate:      "15/03/2026",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	// Reviewers without generation authority are rejected outright.
	_, err = svc.GeneratePlan(context.Background(), asRole(domain.RoleSalesManager), GeneratePlanInput{
		CalculateInput: CalculateInput{Standard: testStandard(), Proposal: testProposal()},
		StartDate:      "15/03/2026",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}
