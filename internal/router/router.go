// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the route groups, mapping
// paths to their handlers.
package router

import (
	"github.com/deppfellow/go-crud-api/internal/handler"
	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/deppfellow/go-crud-api/internal/service"
	"github.com/labstack/echo/v4"
)

// NewRouter builds the Echo instance with global middleware, the system
// routes and the model API.
func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	m := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = m.Global.GlobalErrorHandler

	// Order matters: the request id and the New Relic transaction must
	// exist before the context logger is built, and the logger before
	// anything logs.
	router.Use(
		m.RateLimit.Limit(),
		m.Global.CORS(),
		m.Global.Secure(),
		middleware.RequestID(),
		m.Tracing.NewRelicMiddleware(),
		m.Tracing.EnhanceTracing(),
		m.ContextEnhancer.EnhanceContext(),
		m.Global.RequestLogger(),
		m.Global.Recover(),
	)

	registerSystemRoutes(router, h)
	registerModelRoutes(router, s, h, services, m)

	return router
}
