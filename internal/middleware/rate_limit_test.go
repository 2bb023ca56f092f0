package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 2)
	defer rl.Stop()
	userID := uuid.New()

	assert.True(t, rl.Allow(userID))
	assert.True(t, rl.Allow(userID))
	assert.False(t, rl.Allow(userID), "third request within the burst window")
}

func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	throttled := uuid.New()
	assert.True(t, rl.Allow(throttled))
	assert.False(t, rl.Allow(throttled))

	// Another user's budget is untouched.
	assert.True(t, rl.Allow(uuid.New()))
}

func TestRateLimiterMiddleware_RequiresPrincipal(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	handler := rl.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := handler(c)
	require.Error(t, err)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRateLimiterMiddleware_TooManyRequests(t *testing.T) {
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	handler := rl.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	principal := domain.Principal{UserID: uuid.New(), Role: domain.RolePropertyConsultant}

	newCtx := func() (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)
		WithPrincipal(c, principal)
		return c, rec
	}

	c, _ := newCtx()
	require.NoError(t, handler(c))

	c, rec := newCtx()
	err := handler(c)
	require.Error(t, err)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
