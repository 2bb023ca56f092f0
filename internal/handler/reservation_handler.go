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
	"github.com/shopspring/decimal"
)

// ReservationHandler handles reservation form HTTP requests.
type ReservationHandler struct {
	reservationService *service.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(reservationService *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// CreateReservationRequest represents the create reservation form body.
type CreateReservationRequest struct {
	PaymentPlanID      uuid.UUID `json:"paymentPlanId"`
	UnitID             uuid.UUID `json:"unitId"`
	ReservationDate    string    `json:"reservationDate"` // YYYY-MM-DD
	PreliminaryPayment string    `json:"preliminaryPayment"`
}

// AmendmentRequestBody represents the request-amendment body.
type AmendmentRequestBody struct {
	NewReservationDate    string `json:"newReservationDate"` // YYYY-MM-DD
	NewPreliminaryPayment string `json:"newPreliminaryPayment"`
	Reason                string `json:"reason"`
}

// CreateReservation handles POST /api/v1/reservation-forms
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}

	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}
	reservationDate, err := time.Parse("2006-01-02", req.ReservationDate)
	if err != nil {
		return BadRequest(c, "Invalid reservation form",
			domain.FieldError{Field: "reservationDate", Message: "must be in YYYY-MM-DD format"})
	}
	preliminary, err := decimal.NewFromString(req.PreliminaryPayment)
	if err != nil {
		return BadRequest(c, "Invalid reservation form",
			domain.FieldError{Field: "preliminaryPayment", Message: "must be a valid decimal number"})
	}

	form, err := h.reservationService.Create(c.Request().Context(), principal, service.CreateReservationInput{
		PaymentPlanID:      req.PaymentPlanID,
		UnitID:             req.UnitID,
		ReservationDate:    reservationDate,
		PreliminaryPayment: preliminary,
	})
	if err != nil {
		return Fail(c, err)
	}

	log.Info().
		Str("form_id", form.ID.String()).
		Str("unit_id", form.UnitID.String()).
		Str("plan_id", form.PaymentPlanID.String()).
		Msg("Reservation form created")
	return OK(c, http.StatusCreated, form)
}

// ApproveReservation handles PATCH /api/v1/reservation-forms/:id/approve
func (h *ReservationHandler) ApproveReservation(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	form, err := h.reservationService.Approve(c.Request().Context(), principal, id)
	if err != nil {
		return Fail(c, err)
	}

	log.Info().Str("form_id", form.ID.String()).Msg("Reservation form approved")
	return OK(c, http.StatusOK, form)
}

// RejectReservation handles PATCH /api/v1/reservation-forms/:id/reject
func (h *ReservationHandler) RejectReservation(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	form, err := h.reservationService.Reject(c.Request().Context(), principal, id, req.Reason)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, form)
}

// CancelReservation handles PATCH /api/v1/reservation-forms/:id/cancel
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}

	form, err := h.reservationService.Cancel(c.Request().Context(), principal, id, req.Reason)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, form)
}

// RequestAmendment handles PATCH /api/v1/reservation-forms/:id/request-amendment
func (h *ReservationHandler) RequestAmendment(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	var req AmendmentRequestBody
	if err := c.Bind(&req); err != nil {
		return BadRequest(c, "Invalid request body")
	}
	newDate, err := time.Parse("2006-01-02", req.NewReservationDate)
	if err != nil {
		return BadRequest(c, "Invalid amendment",
			domain.FieldError{Field: "newReservationDate", Message: "must be in YYYY-MM-DD format"})
	}
	newPayment, err := decimal.NewFromString(req.NewPreliminaryPayment)
	if err != nil {
		return BadRequest(c, "Invalid amendment",
			domain.FieldError{Field: "newPreliminaryPayment", Message: "must be a valid decimal number"})
	}

	form, err := h.reservationService.RequestAmendment(c.Request().Context(), principal, id, service.AmendmentInput{
		NewReservationDate:    newDate,
		NewPreliminaryPayment: newPayment,
		Reason:                req.Reason,
	})
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, form)
}

// ApproveAmendment handles PATCH /api/v1/reservation-forms/:id/approve-amendment
func (h *ReservationHandler) ApproveAmendment(c echo.Context) error {
	return h.decideAmendment(c, true)
}

// RejectAmendment handles PATCH /api/v1/reservation-forms/:id/reject-amendment
func (h *ReservationHandler) RejectAmendment(c echo.Context) error {
	return h.decideAmendment(c, false)
}

func (h *ReservationHandler) decideAmendment(c echo.Context, approve bool) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return Unauthorized(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	form, err := h.reservationService.DecideAmendment(c.Request().Context(), principal, id, approve)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, form)
}

// GetReservation handles GET /api/v1/reservation-forms/:id
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	form, err := h.reservationService.GetByID(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, form)
}

// ListReservations handles GET /api/v1/reservation-forms?status=
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	status := domain.ReservationStatus(c.QueryParam("status"))
	switch status {
	case domain.ReservationPendingApproval, domain.ReservationApproved,
		domain.ReservationRejected, domain.ReservationCancelled:
	default:
		return BadRequest(c, "Invalid status filter",
			domain.FieldError{Field: "status", Message: "must be pending_approval, approved, rejected or cancelled"})
	}

	forms, err := h.reservationService.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, forms)
}

// GetReservationHistory handles GET /api/v1/reservation-forms/:id/history
func (h *ReservationHandler) GetReservationHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequest(c, "Invalid reservation form ID")
	}

	entries, err := h.reservationService.History(c.Request().Context(), id)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, http.StatusOK, entries)
}
