package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DealHandler handles deal HTTP requests.
type DealHandler struct {
	dealService *service.DealService
}

// NewDealHandler creates a new DealHandler.
func NewDealHandler(dealService *service.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// CreateDealRequest represents the create deal request body.
type CreateDealRequest struct {
	Title  string `json:"title"`
	Amount string `json:"amount"`
}

// CreateDeal handles POST /api/v1/deals
func (h *DealHandler) CreateDeal(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req CreateDealRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return BadRequest(c, "Invalid deal",
			domain.FieldError{Field: "amount", Message: "must be a valid decimal number"})
	}

	deal, err := h.dealService.Create(c.Request().Context(), principal, service.CreateDealInput{
		Title:  req.Title,
		Amount: amount,
	})
	if err != nil {
		return Fail(c, err)
	}

	log.Info().Str("deal_id", deal.ID.String()).Str("created_by", principal.UserID.String()).Msg("Deal created")
	return OK(c, http.StatusCreated, deal)
}

// GetDeal handles GET /api/v1/deals/:id
func (h *DealHandler) GetDeal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid deal ID")
	}

	deal, err := h.dealService.GetByID(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, deal)
}

// ListDeals handles GET /api/v1/deals
func (h *DealHandler) ListDeals(c echo.Context) error {
	var status *domain.DealStatus
	if param := c.QueryParam("status"); param != "" {
		s := domain.DealStatus(param)
		switch s {
		case domain.DealDraft, domain.DealPendingApproval, domain.DealApproved, domain.DealRejected:
			status = &s
		default:
			return BadRequest(c, "Invalid status filter",
				domain.FieldError{Field: "status", Message: "must be draft, pending_approval, approved or rejected"})
		}
	}

	deals, err := h.dealService.List(c.Request().Context(), status)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, deals)
}

// GetDealHistory handles GET /api/v1/deals/:id/history
func (h *DealHandler) GetDealHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid deal ID")
	}

	entries, err := h.dealService.History(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, entries)
}
