package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/propline/dealdesk-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dealHandlerHarness struct {
	handler *DealHandler
	deals   *testutil.MockDealRepository
	history *testutil.MockHistoryRepository
}

func newDealHandlerHarness(t *testing.T) *dealHandlerHarness {
	t.Helper()
	deals := testutil.NewMockDealRepository()
	history := testutil.NewMockHistoryRepository()
	svc := service.NewDealService(testutil.NewMockTxManager(), deals, history, zerolog.Nop())
	return &dealHandlerHarness{
		handler: NewDealHandler(svc),
		deals:   deals,
		history: history,
	}
}

func jsonRequest(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestCreateDeal_Created(t *testing.T) {
	h := newDealHandlerHarness(t)
	principal := domain.Principal{UserID: uuid.New(), Role: domain.RolePropertyConsultant}

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/deals",
		`{"title":"Marina Tower C-310","amount":"1000000"}`)
	middleware.WithPrincipal(c, principal)

	require.NoError(t, h.handler.CreateDeal(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		OK   bool         `json:"ok"`
		Data *domain.Deal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.OK)
	require.NotNil(t, envelope.Data)
	assert.Equal(t, "Marina Tower C-310", envelope.Data.Title)
	assert.Equal(t, domain.DealDraft, envelope.Data.Status)
	assert.Equal(t, principal.UserID, envelope.Data.CreatedBy)
	require.Len(t, h.deals.Deals, 1)
}

func TestCreateDeal_NoPrincipal(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/deals",
		`{"title":"Marina Tower C-310","amount":"1000000"}`)

	require.NoError(t, h.handler.CreateDeal(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.deals.Deals)
}

func TestCreateDeal_BadAmount(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/deals",
		`{"title":"Marina Tower C-310","amount":"one million"}`)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin})

	require.NoError(t, h.handler.CreateDeal(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	require.Len(t, envelope.Error.Details, 1)
	assert.Equal(t, "amount", envelope.Error.Details[0].Field)
	assert.Empty(t, h.deals.Deals)
}

func TestCreateDeal_ServiceValidation(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodPost, "/api/v1/deals",
		`{"title":"","amount":"1000000"}`)
	middleware.WithPrincipal(c, domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin})

	require.NoError(t, h.handler.CreateDeal(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	require.Len(t, envelope.Error.Details, 1)
	assert.Equal(t, "title", envelope.Error.Details[0].Field)
}

func TestGetDeal_NotFound(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/deals/x", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	require.NoError(t, h.handler.GetDeal(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDeal_BadID(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/deals/x", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	require.NoError(t, h.handler.GetDeal(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListDeals_StatusFilter(t *testing.T) {
	h := newDealHandlerHarness(t)
	h.deals.AddDeal(&domain.Deal{Title: "Draft", Status: domain.DealDraft})
	h.deals.AddDeal(&domain.Deal{Title: "Done", Status: domain.DealApproved})

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/deals?status=approved", "")

	require.NoError(t, h.handler.ListDeals(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []*domain.Deal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Done", envelope.Data[0].Title)
}

func TestListDeals_BadStatusFilter(t *testing.T) {
	h := newDealHandlerHarness(t)

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/deals?status=closed", "")

	require.NoError(t, h.handler.ListDeals(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	envelope := decodeError(t, rec)
	require.Len(t, envelope.Error.Details, 1)
	assert.Equal(t, "status", envelope.Error.Details[0].Field)
}

func TestGetDealHistory_ReturnsTrail(t *testing.T) {
	h := newDealHandlerHarness(t)
	deal := &domain.Deal{Title: "Tracked", Status: domain.DealDraft}
	h.deals.AddDeal(deal)
	entry, err := domain.NewHistoryEntry(domain.EntityDeal, deal.ID, domain.ChangeCreate, uuid.New(), nil, deal)
	require.NoError(t, err)
	require.NoError(t, h.history.InsertTx(context.Background(), nil, entry))

	c, rec := jsonRequest(t, http.MethodGet, "/api/v1/deals/x/history", "")
	c.SetParamNames("id")
	c.SetParamValues(deal.ID.String())

	require.NoError(t, h.handler.GetDealHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []*domain.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, domain.ChangeCreate, envelope.Data[0].ChangeType)
}
