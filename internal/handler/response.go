package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// Envelope wraps every successful JSON response.
type Envelope struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
	Meta interface{} `json:"meta,omitempty"`
}

// ErrorBody is the error payload surfaced to clients.
type ErrorBody struct {
	Message string              `json:"message"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// ErrorEnvelope wraps every failed JSON response.
type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{OK: true, Data: data})
}

// OKMeta writes a success envelope with a meta block.
func OKMeta(c echo.Context, status int, data, meta interface{}) error {
	return c.JSON(status, Envelope{OK: true, Data: data, Meta: meta})
}

// statusForKind maps engine error kinds to HTTP statuses.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput, domain.KindConfigMissing:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStateMismatch, domain.KindInvariantViolation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Fail translates an engine error into the error envelope. Unclassified
// errors are logged and surfaced as a generic internal failure.
func Fail(c echo.Context, err error) error {
	var engineErr *domain.Error
	if !errors.As(err, &engineErr) {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Unhandled error")
		return c.JSON(http.StatusInternalServerError, ErrorEnvelope{
			Error:     ErrorBody{Message: "Internal server error"},
			Timestamp: time.Now().UTC(),
		})
	}
	status := statusForKind(engineErr.Kind)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Internal error")
	}
	return c.JSON(status, ErrorEnvelope{
		Error:     ErrorBody{Message: engineErr.Message, Details: engineErr.Fields},
		Timestamp: time.Now().UTC(),
	})
}

// Unauthorized writes a 401 error envelope.
func Unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, ErrorEnvelope{
		Error:     ErrorBody{Message: message},
		Timestamp: time.Now().UTC(),
	})
}

// BadRequest writes an INVALID_INPUT envelope for malformed request bodies.
func BadRequest(c echo.Context, message string, details ...domain.FieldError) error {
	return Fail(c, domain.NewInvalidInput(message, details...))
}
