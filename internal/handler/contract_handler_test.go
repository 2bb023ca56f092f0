package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contractHandlerHarness struct {
	handler   *ContractHandler
	contracts *testutil.MockContractRepository
	units     *testutil.MockUnitRepository
	unit      *domain.Unit
	form      *domain.ReservationForm
}

func newContractHandlerHarness(t *testing.T) *contractHandlerHarness {
	t.Helper()
	contracts := testutil.NewMockContractRepository()
	forms := testutil.NewMockReservationFormRepository()
	plans := testutil.NewMockPaymentPlanRepository()
	deals := testutil.NewMockDealRepository()
	units := testutil.NewMockUnitRepository()
	history := testutil.NewMockHistoryRepository()
	documents := testutil.NewMockDocumentRepository()
	notifier := service.NewNotifier(testutil.NewMockNotificationRepository(), testutil.NewMockNotificationSink(), zerolog.Nop())

	svc := service.NewContractService(testutil.NewMockTxManager(), contracts, forms, plans, deals, units, history, documents, notifier, zerolog.Nop())

	unit := &domain.Unit{Code: "C-310", UnitStatus: domain.UnitReserved, TotalPrice: decimal.NewFromInt(1_000_000)}
	units.AddUnit(unit)
	deal := &domain.Deal{Status: domain.DealApproved, CreatedBy: uuid.New()}
	deals.AddDeal(deal)
	plan := &domain.PaymentPlan{DealID: deal.ID, Status: domain.PlanApproved, Accepted: true, Version: 3, CreatedBy: uuid.New()}
	plans.AddPlan(plan)
	form := &domain.ReservationForm{
		PaymentPlanID:      plan.ID,
		UnitID:             unit.ID,
		ReservationDate:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		PreliminaryPayment: decimal.NewFromInt(50_000),
		Status:             domain.ReservationApproved,
		CreatedBy:          uuid.New(),
	}
	forms.AddForm(form)

	return &contractHandlerHarness{
		handler:   NewContractHandler(svc),
		contracts: contracts,
		units:     units,
		unit:      unit,
		form:      form,
	}
}

func (h *contractHandlerHarness) seedContract(status domain.ContractStatus, locked bool) *domain.Contract {
	contract := &domain.Contract{
		ReservationFormID:      h.form.ID,
		Status:                 status,
		ContractSettingsLocked: locked,
		CreatedBy:              uuid.New(),
	}
	if locked {
		date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		contract.Settings.ContractDate = &date
	}
	h.contracts.AddContract(contract)
	return contract
}

func TestCreateContract_Drafts(t *testing.T) {
	h := newContractHandlerHarness(t)

	body := fmt.Sprintf(`{"reservationFormId": %q}`, h.form.ID)
	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/contracts", body)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleContractAdmin})

	require.NoError(t, h.handler.CreateContract(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		Data *domain.Contract `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.Equal(t, domain.ContractDraft, envelope.Data.Status)
}

func TestCreateContract_WrongRole(t *testing.T) {
	h := newContractHandlerHarness(t)

	body := fmt.Sprintf(`{"reservationFormId": %q}`, h.form.ID)
	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/contracts", body)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleFinancialManager})

	require.NoError(t, h.handler.CreateContract(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.contracts.Contracts)
}

func TestUpdateSettings_BadDate(t *testing.T) {
	h := newContractHandlerHarness(t)
	contract := h.seedContract(domain.ContractDraft, false)

	c, rec := jsonRequest(t, http.MethodPatch, "/api/v1/contracts/x/settings",
		`{"contractDate":"01-04-2026"}`)
	c.SetParamNames("id")
	c.SetParamValues(contract.ID.String())
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleContractAdmin})

	require.NoError(t, h.handler.UpdateSettings(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	require.Len(t, envelope.Error.Details, 1)
	assert.Equal(t, "contractDate", envelope.Error.Details[0].Field)
}

func TestSubmitContract_Unlocked(t *testing.T) {
	h := newContractHandlerHarness(t)
	contract := h.seedContract(domain.ContractDraft, false)

	c, rec := jsonRequest(t, http.MethodPatch, "/api/v1/contracts/x/submit", "")
	c.SetParamNames("id")
	c.SetParamValues(contract.ID.String())
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleContractAdmin})

	require.NoError(t, h.handler.SubmitContract(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	envelope := decodeError(t, rec)
	assert.Equal(t, "Contract settings must be locked before submission", envelope.Error.Message)
}

func TestApproveContract_MovesToTMReview(t *testing.T) {
	h := newContractHandlerHarness(t)
	contract := h.seedContract(domain.ContractPendingCM, true)

	c, rec := jsonRequest(t, http.MethodPatch, "/api/v1/contracts/x/approve", "")
	c.SetParamNames("id")
	c.SetParamValues(contract.ID.String())
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleContractManager})

	require.NoError(t, h.handler.ApproveContract(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data *domain.Contract `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, domain.ContractPendingTM, envelope.Data.Status)
}

func TestGetContractDocument_RendersModel(t *testing.T) {
	h := newContractHandlerHarness(t)
	contract := h.seedContract(domain.ContractApproved, true)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/contracts/x/document", "")
	c.SetParamNames("id")
	c.SetParamValues(contract.ID.String())

	require.NoError(t, h.handler.GetContractDocument(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data *service.ContractDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	assert.Equal(t, "C-310", envelope.Data.UnitCode)
	assert.Equal(t, 3, envelope.Data.PlanVersion)
}

func TestListContracts_BadStatusFilter(t *testing.T) {
	h := newContractHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/contracts?status=signed", "")

	require.NoError(t, h.handler.ListContracts(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
