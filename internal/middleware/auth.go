package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/deppfellow/go-crud-api/internal/errs"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware guards the model API with Clerk session tokens.
type AuthMiddleware struct {
	server *server.Server
}

// NewAuthMiddleware constructs an AuthMiddleware.
func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{server: s}
}

// RequireAuth lets a request through only with a valid
// "Authorization: Bearer <session token>" header. The caller's id, org
// role and org permissions are stored under UserIDKey, UserRoleKey and
// PermissionsKey.
//
// Clerk rejects bad tokens itself (see unauthorized); a request without
// any token reaches the inner handler with no claims and is rejected there.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	verify := clerkhttp.WithHeaderAuthorization(
		clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(auth.unauthorized)),
	)

	return echo.WrapMiddleware(verify)(func(c echo.Context) error {
		claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
		if !ok {
			GetLogger(c).Warn().
				Str("path", c.Request().URL.Path).
				Msg("request without session token")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(UserRoleKey, claims.ActiveOrganizationRole)
		c.Set(PermissionsKey, claims.Claims.ActiveOrganizationPermissions)

		GetLogger(c).Debug().
			Str("user_id", claims.Subject).
			Str("user_role", claims.ActiveOrganizationRole).
			Msg("user authenticated")

		return next(c)
	})
}

// unauthorized is Clerk's failure handler. It runs outside Echo, so it
// writes the errs.HTTPError body itself.
func (auth *AuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(http.StatusUnauthorized)

	logger := auth.server.Logger.With().Str("path", r.URL.Path).Logger()

	if err := json.NewEncoder(w).Encode(errs.NewUnauthorizedError("Unauthorized", false)); err != nil {
		logger.Error().Err(err).Msg("failed to write unauthorized response")
		return
	}
	logger.Warn().Msg("rejected invalid session token")
}
