package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/rs/zerolog/log"
)

// PaymentPlanHandler handles payment plan HTTP requests.
type PaymentPlanHandler struct {
	planService *service.PlanService
}

// NewPaymentPlanHandler creates a new PaymentPlanHandler.
func NewPaymentPlanHandler(planService *service.PlanService) *PaymentPlanHandler {
	return &PaymentPlanHandler{planService: planService}
}

// CreatePlanRequest represents the create payment plan request body. The
// calculator fields mirror POST /calculate; the evaluation result is frozen
// into the plan snapshot.
type CreatePlanRequest struct {
	DealID uuid.UUID `json:"dealId"`
	CalculateRequest
}

// RejectRequest carries the reviewer's reason for a rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

type approveMeta struct {
	Escalated          bool   `json:"escalated"`
	PolicyLimitPercent string `json:"policyLimitPercent"`
}

// CreatePlan handles POST /api/v1/payment-plans
func (h *PaymentPlanHandler) CreatePlan(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	plan, err := h.planService.Create(c.Request().Context(), principal, service.CreatePlanInput{
		DealID:    req.DealID,
		Calculate: req.toInput(),
	})
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("plan_id", plan.ID.String()).
		Str("deal_id", plan.DealID.String()).
		Str("status", string(plan.Status)).
		Int("version", plan.Version).
		Msg("Payment plan created")
	return OK(c, http.StatusCreated, plan)
}

// ApprovePlan handles PATCH /api/v1/payment-plans/:id/approve
func (h *PaymentPlanHandler) ApprovePlan(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid payment plan ID")
	}

	result, err := h.planService.Approve(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}

	if result.Escalated {
		log.Info().
			Str("plan_id", id.String()).
			Str("policy_limit", result.PolicyLimitPercent.String()).
			Msg("Payment plan escalated to top management")
		return OKMeta(c, http.StatusOK, result.Plan, approveMeta{
			Escalated:          true,
			PolicyLimitPercent: result.PolicyLimitPercent.String(),
		})
	}
	return OK(c, http.StatusOK, result.Plan)
}

// RejectPlan handles PATCH /api/v1/payment-plans/:id/reject
func (h *PaymentPlanHandler) RejectPlan(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid payment plan ID")
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	plan, err := h.planService.Reject(c.Request().Context(), principal, id, req.Reason)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, plan)
}

// MarkAccepted handles PATCH /api/v1/payment-plans/:id/mark-accepted
func (h *PaymentPlanHandler) MarkAccepted(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid payment plan ID")
	}

	plan, err := h.planService.MarkAccepted(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().Str("plan_id", plan.ID.String()).Str("deal_id", plan.DealID.String()).Msg("Payment plan marked accepted")
	return OK(c, http.StatusOK, plan)
}

// GetQueue handles GET /api/v1/payment-plans/queue. The queue matching the
// caller's role is returned; roles without a review queue get 403.
func (h *PaymentPlanHandler) GetQueue(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	plans, err := h.planService.Queue(c.Request().Context(), principal)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, plans)
}

// GetPlan handles GET /api/v1/payment-plans/:id
func (h *PaymentPlanHandler) GetPlan(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid payment plan ID")
	}

	plan, err := h.planService.GetByID(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, plan)
}

// ListPlansByDeal handles GET /api/v1/deals/:id/payment-plans
func (h *PaymentPlanHandler) ListPlansByDeal(c echo.Context) error {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid deal ID")
	}

	plans, err := h.planService.ListByDeal(c.Request().Context(), dealID)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, plans)
}

// GetPlanHistory handles GET /api/v1/payment-plans/:id/history
func (h *PaymentPlanHandler) GetPlanHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid payment plan ID")
	}

	entries, err := h.planService.History(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, entries)
}
