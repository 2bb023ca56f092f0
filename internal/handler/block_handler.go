package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/propline/dealdesk-backend/internal/statemachine"
	"github.com/rs/zerolog/log"
)

// BlockHandler handles unit block HTTP requests.
type BlockHandler struct {
	blockService *service.BlockService
}

// NewBlockHandler creates a new BlockHandler.
func NewBlockHandler(blockService *service.BlockService) *BlockHandler {
	return &BlockHandler{blockService: blockService}
}

// RequestBlockRequest represents the block request body.
type RequestBlockRequest struct {
	UnitID       uuid.UUID `json:"unitId"`
	DurationDays int       `json:"durationDays"`
	Reason       string    `json:"reason"`
}

// ExtendBlockRequest represents the extend block request body.
type ExtendBlockRequest struct {
	AdditionalDays int `json:"additionalDays"`
}

// RequestBlock handles POST /api/v1/blocks/request
func (h *BlockHandler) RequestBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req RequestBlockRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	block, err := h.blockService.Request(c.Request().Context(), principal, service.RequestBlockInput{
		UnitID:       req.UnitID,
		DurationDays: req.DurationDays,
		Reason:       req.Reason,
	})
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("block_id", block.ID.String()).
		Str("unit_id", block.UnitID.String()).
		Int("duration_days", block.DurationDays).
		Msg("Block requested")
	return OK(c, http.StatusCreated, block)
}

// ApproveBlock handles PATCH /api/v1/blocks/:id/approve
func (h *BlockHandler) ApproveBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	block, err := h.blockService.Approve(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().Str("block_id", block.ID.String()).Time("blocked_until", block.BlockedUntil).Msg("Block approved")
	return OK(c, http.StatusOK, block)
}

// RejectBlock handles PATCH /api/v1/blocks/:id/reject. A financial rejection
// opens the override chain rather than closing the block.
func (h *BlockHandler) RejectBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	block, err := h.blockService.Reject(c.Request().Context(), principal, id, req.Reason)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, block)
}

// OverrideBlock handles PATCH /api/v1/blocks/:id/override/:action with
// action approve, reject or approve_tm_bypass.
func (h *BlockHandler) OverrideBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	block, err := h.blockService.Override(c.Request().Context(), principal, id, statemachine.Action(c.Param("action")))
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("block_id", block.ID.String()).
		Str("override_status", string(block.OverrideStatus)).
		Msg("Block override advanced")
	return OK(c, http.StatusOK, block)
}

// ExtendBlock handles PATCH /api/v1/blocks/:id/extend
func (h *BlockHandler) ExtendBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	var req ExtendBlockRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	block, err := h.blockService.Extend(c.Request().Context(), principal, id, req.AdditionalDays)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, block)
}

// CancelBlock handles PATCH /api/v1/blocks/:id/cancel
func (h *BlockHandler) CancelBlock(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	block, err := h.blockService.Cancel(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, block)
}

// GetBlock handles GET /api/v1/blocks/:id
func (h *BlockHandler) GetBlock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	block, err := h.blockService.GetByID(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, block)
}

// ListBlocks handles GET /api/v1/blocks?status=
func (h *BlockHandler) ListBlocks(c echo.Context) error {
	status := domain.BlockStatus(c.QueryParam("status"))
	switch status {
	case domain.BlockPending, domain.BlockApproved, domain.BlockRejected, domain.BlockExpired:
	default:
		return BadRequest(c, "Invalid status filter",
			domain.FieldError{Field: "status", Message: "must be pending, approved, rejected or expired"})
	}

	blocks, err := h.blockService.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, blocks)
}

// GetBlockHistory handles GET /api/v1/blocks/:id/history
func (h *BlockHandler) GetBlockHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid block ID")
	}

	entries, err := h.blockService.History(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, entries)
}
