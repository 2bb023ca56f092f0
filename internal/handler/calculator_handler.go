package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/planner"
	"github.com/propline/dealdesk-backend/internal/service"
)

// CalculatorHandler handles plan evaluation requests.
type CalculatorHandler struct {
	evaluation *service.EvaluationService
}

// NewCalculatorHandler creates a new CalculatorHandler.
func NewCalculatorHandler(evaluation *service.EvaluationService) *CalculatorHandler {
	return &CalculatorHandler{evaluation: evaluation}
}

// CalculateRequest selects the pricing benchmark and carries the proposal.
// Exactly one of standardPricingId, unitId or stdPlan must be provided.
type CalculateRequest struct {
	StandardPricingID *uuid.UUID            `json:"standardPricingId,omitempty"`
	UnitID            *uuid.UUID            `json:"unitId,omitempty"`
	StdPlan           *planner.StandardPlan `json:"stdPlan,omitempty"`
	Inputs            planner.Inputs        `json:"inputs"`
}

// GeneratePlanRequest is a calculate request plus the schedule start date.
type GeneratePlanRequest struct {
	CalculateRequest
	StartDate string `json:"startDate"` // dd/MM/yyyy
}

type calculateMeta struct {
	Mode        string `json:"mode"`
	EvaluatedAt string `json:"evaluatedAt"`
}

func (r CalculateRequest) toInput() service.CalculateInput {
	return service.CalculateInput{
		PricingID: r.StandardPricingID,
		UnitID:    r.UnitID,
		Standard:  r.StdPlan,
		Proposal:  r.Inputs,
	}
}

// Calculate handles POST /api/v1/calculate
func (h *CalculatorHandler) Calculate(c echo.Context) error {
	var req CalculateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	result, err := h.evaluation.Calculate(c.Request().Context(), req.toInput())
	if err != nil {
		return Fail(c, err)
	}

	mode := req.Inputs.Mode
	if mode == "" {
		mode = planner.ModeInstallments
	}
	return OKMeta(c, http.StatusOK, result, calculateMeta{
		Mode:        mode,
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// GeneratePlan handles POST /api/v1/generate-plan
func (h *CalculatorHandler) GeneratePlan(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req GeneratePlanRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	plan, err := h.evaluation.GeneratePlan(c.Request().Context(), principal, service.GeneratePlanInput{
		CalculateInput: req.toInput(),
		StartDate:      req.StartDate,
	})
	if err != nil {
		return Fail(c, err)
	}

	return OK(c, http.StatusOK, plan)
}
