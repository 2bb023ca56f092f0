package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/propline/dealdesk-backend/internal/middleware"
	"github.com/propline/dealdesk-backend/internal/service"
	"github.com/rs/zerolog/log"
)

// ContractHandler handles contract HTTP requests.
type ContractHandler struct {
	contractService *service.ContractService
}

// NewContractHandler creates a new ContractHandler.
func NewContractHandler(contractService *service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// CreateContractRequest represents the create contract body.
type CreateContractRequest struct {
	ReservationFormID uuid.UUID `json:"reservationFormId"`
}

// UpdateContractSettingsRequest represents the settings update body.
type UpdateContractSettingsRequest struct {
	ContractDate    *string `json:"contractDate,omitempty"` // YYYY-MM-DD
	PowerOfAttorney *string `json:"powerOfAttorney,omitempty"`
}

// ArchiveDocumentResponse carries the stored object path and a presigned URL.
type ArchiveDocumentResponse struct {
	ObjectPath string `json:"objectPath"`
	URL        string `json:"url"`
}

// CreateContract handles POST /api/v1/contracts
func (h *ContractHandler) CreateContract(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req CreateContractRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	contract, err := h.contractService.Create(c.Request().Context(), principal, req.ReservationFormID)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("contract_id", contract.ID.String()).
		Str("form_id", contract.ReservationFormID.String()).
		Msg("Contract drafted")
	return OK(c, http.StatusCreated, contract)
}

// UpdateSettings handles PATCH /api/v1/contracts/:id/settings
func (h *ContractHandler) UpdateSettings(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	var req UpdateContractSettingsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}
	settings := domain.ContractSettings{PowerOfAttorney: req.PowerOfAttorney}
	if req.ContractDate != nil {
		date, err := time.Parse("2006-01-02", *req.ContractDate)
		if err != nil {
			return BadRequest(c, "Invalid contract settings",
				domain.FieldError{Field: "contractDate", Message: "must be in YYYY-MM-DD format"})
		}
		settings.ContractDate = &date
	}

	contract, err := h.contractService.UpdateSettings(c.Request().Context(), principal, id, settings)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, contract)
}

// LockSettings handles PATCH /api/v1/contracts/:id/lock-settings
func (h *ContractHandler) LockSettings(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	contract, err := h.contractService.LockSettings(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, contract)
}

// SubmitContract handles PATCH /api/v1/contracts/:id/submit
func (h *ContractHandler) SubmitContract(c echo.Context) error {
	return h.transition(c, "submit")
}

// ApproveContract handles PATCH /api/v1/contracts/:id/approve
func (h *ContractHandler) ApproveContract(c echo.Context) error {
	return h.transition(c, "approve")
}

// RejectContract handles PATCH /api/v1/contracts/:id/reject
func (h *ContractHandler) RejectContract(c echo.Context) error {
	return h.transition(c, "reject")
}

// ExecuteContract handles PATCH /api/v1/contracts/:id/execute
func (h *ContractHandler) ExecuteContract(c echo.Context) error {
	return h.transition(c, "execute")
}

func (h *ContractHandler) transition(c echo.Context, action string) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	ctx := c.Request().Context()
	var contract *domain.Contract
	switch action {
	case "submit":
		contract, err = h.contractService.Submit(ctx, principal, id)
	case "approve":
		contract, err = h.contractService.Approve(ctx, principal, id)
	case "reject":
		contract, err = h.contractService.Reject(ctx, principal, id)
	case "execute":
		contract, err = h.contractService.Execute(ctx, principal, id)
	}
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("contract_id", contract.ID.String()).
		Str("status", string(contract.Status)).
		Msg("Contract transitioned")
	return OK(c, http.StatusOK, contract)
}

// GetContract handles GET /api/v1/contracts/:id
func (h *ContractHandler) GetContract(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	contract, err := h.contractService.GetByID(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, contract)
}

// ListContracts handles GET /api/v1/contracts?status=
func (h *ContractHandler) ListContracts(c echo.Context) error {
	status := domain.ContractStatus(c.QueryParam("status"))
	switch status {
	case domain.ContractDraft, domain.ContractPendingCM, domain.ContractPendingTM,
		domain.ContractApproved, domain.ContractRejected, domain.ContractExecuted:
	default:
		return BadRequest(c, "Invalid status filter",
			domain.FieldError{Field: "status", Message: "must be a contract status"})
	}

	contracts, err := h.contractService.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, contracts)
}

// GetContractDocument handles GET /api/v1/contracts/:id/document. The joined
// document model is rendered to PDF by the external template service.
func (h *ContractHandler) GetContractDocument(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	doc, err := h.contractService.Document(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, doc)
}

// ArchiveContractDocument handles POST /api/v1/contracts/:id/document. The
// body is the rendered PDF; the response carries the stored object path and
// a presigned download URL.
func (h *ContractHandler) ArchiveContractDocument(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	ctx := c.Request().Context()
	objectPath, err := h.contractService.ArchiveDocument(ctx, principal, id, c.Request().Body, c.Request().ContentLength)
	if err != nil {
		return Fail(c, err)
	}
	url, err := h.contractService.DocumentURL(ctx, objectPath)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().Str("contract_id", id.String()).Str("object_path", objectPath).Msg("Contract document archived")
	return OK(c, http.StatusCreated, ArchiveDocumentResponse{ObjectPath: objectPath, URL: url})
}

// GetContractHistory handles GET /api/v1/contracts/:id/history
func (h *ContractHandler) GetContractHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid contract ID")
	}

	entries, err := h.contractService.History(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, entries)
}
