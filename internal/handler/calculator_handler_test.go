package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalculatorHandler(t *testing.T) *CalculatorHandler {
	t.Helper()
	evaluation := service.NewEvaluationService(
		testutil.NewMockStandardPricingRepository(),
		testutil.NewMockPolicyRepository(),
		zerolog.Nop(),
	)
	return NewCalculatorHandler(evaluation)
}

const calculateBody = `{
	"stdPlan": {"totalPrice": "1000000", "annualRatePercent": "12", "standardPv": "1000000"},
	"inputs": {
		"dpType": "percentage",
		"downPaymentValue": "20",
		"planDurationYears": 4,
		"installmentFrequency": "quarterly",
		"handoverYear": 2
	}
}`

func TestCalculate_AcceptWithMeta(t *testing.T) {
	h := newCalculatorHandler(t)

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/calculate", calculateBody)

	require.NoError(t, h.Calculate(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data *planner.Result `json:"data"`
		Meta calculateMeta   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.Equal(t, planner.DecisionAccept, envelope.Data.Evaluation.Decision)
	assert.Len(t, envelope.Data.Schedule, 17)
	assert.Equal(t, planner.ModeInstallments, envelope.Meta.Mode)
	assert.NotEmpty(t, envelope.Meta.EvaluatedAt)
}

func TestCalculate_NoPricingReference(t *testing.T) {
	h := newCalculatorHandler(t)

	body := `{
		"inputs": {
			"dpType": "percentage",
			"downPaymentValue": "20",
			"planDurationYears": 4,
			"installmentFrequency": "quarterly"
		}
	}`
	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/calculate", body)

	require.NoError(t, h.Calculate(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	assert.Equal(t, "No standard pricing reference provided", envelope.Error.Message)
}

func TestGeneratePlan_DatedSchedule(t *testing.T) {
	h := newCalculatorHandler(t)

	body := `{
		"stdPlan": {"totalPrice": "1000000", "annualRatePercent": "12", "standardPv": "1000000"},
		"inputs": {
			"dpType": "percentage",
			"downPaymentValue": "20",
			"planDurationYears": 4,
			"installmentFrequency": "quarterly",
			"handoverYear": 2
		},
		"startDate": "15/03/2026"
	}`
	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/generate-plan", body)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleFinancialManager})

	require.NoError(t, h.GeneratePlan(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data *service.GeneratedPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.Equal(t, "15/03/2026", envelope.Data.StartDate)
	require.NotEmpty(t, envelope.Data.Payments)
	assert.Equal(t, "15/03/2026", envelope.Data.Payments[0].DueDate)
	assert.NotEmpty(t, envelope.Data.Payments[0].AmountInWords)
}

func TestGeneratePlan_NoPrincipal(t *testing.T) {
	h := newCalculatorHandler(t)

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/generate-plan", calculateBody)

	require.NoError(t, h.GeneratePlan(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
