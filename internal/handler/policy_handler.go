package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/rs/zerolog/log"
)

// PolicyHandler handles acceptance policy HTTP requests.
type PolicyHandler struct {
	policyService *service.PolicyService
}

// NewPolicyHandler creates a new PolicyHandler.
func NewPolicyHandler(policyService *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policyService: policyService}
}

// GetPolicy handles GET /api/v1/policy
func (h *PolicyHandler) GetPolicy(c echo.Context) error {
	policy, err := h.policyService.Effective(c.Request().Context())
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, policy)
}

// UpdatePolicy handles PUT /api/v1/policy. The decimal fields bind from
// quoted or bare JSON numbers; scope and active flags are forced server-side.
func (h *PolicyHandler) UpdatePolicy(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req domain.PolicyConfig
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	policy, err := h.policyService.Update(c.Request().Context(), principal, req)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("policy_id", policy.ID.String()).
		Str("updated_by", principal.UserID.String()).
		Msg("Acceptance policy replaced")
	return OK(c, http.StatusOK, policy)
}
