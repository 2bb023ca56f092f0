package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// CustomClaims carries the role claim issued by the identity service.
type CustomClaims struct {
	Role string `json:"role"`
}

// Validate implements validator.CustomClaims. Role validity is checked in
// the middleware so the error can name the claim.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// AuthMiddleware provides JWT validation middleware
type AuthMiddleware struct {
	validator *validator.Validator
}

// NewAuthMiddleware creates an AuthMiddleware validating HS256 tokens signed
// with the shared secret.
func NewAuthMiddleware(secret, issuer, audience string) (*AuthMiddleware, error) {
	jwtValidator, err := validator.New(
		func(ctx context.Context) (interface{}, error) {
			return []byte(secret), nil
		},
		validator.HS256,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{validator: jwtValidator}, nil
}

// Authenticate returns an Echo middleware that validates JWT tokens and
// injects the authenticated principal into the request context.
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			claims, err := m.validator.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			validatedClaims, ok := claims.(*validator.ValidatedClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
			}

			principal, err := principalFromClaims(validatedClaims)
			if err != nil {
				log.Debug().Err(err).Msg("Principal extraction failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			ctx := context.WithValue(c.Request().Context(), ClaimsKey, validatedClaims)
			ctx = context.WithValue(ctx, PrincipalKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func principalFromClaims(claims *validator.ValidatedClaims) (domain.Principal, error) {
	userID, err := uuid.Parse(claims.RegisteredClaims.Subject)
	if err != nil {
		return domain.Principal{}, err
	}
	custom, ok := claims.CustomClaims.(*CustomClaims)
	if !ok {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing role claim")
	}
	role := domain.Role(custom.Role)
	if !domain.ValidRole(role) {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "unknown role")
	}
	return domain.Principal{UserID: userID, Role: role}, nil
}

// GetPrincipal extracts the authenticated principal from the context.
func GetPrincipal(c echo.Context) (domain.Principal, bool) {
	principal, ok := c.Request().Context().Value(PrincipalKey).(domain.Principal)
	return principal, ok
}

// WithPrincipal injects a principal into the request context. Test helper.
func WithPrincipal(c echo.Context, principal domain.Principal) {
	ctx := context.WithValue(c.Request().Context(), PrincipalKey, principal)
	c.SetRequest(c.Request().WithContext(ctx))
}
