package router

import (
	"github.com/deppfellow/go-crud-api/internal/handler"
	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/deppfellow/go-crud-api/internal/service"
	"github.com/labstack/echo/v4"
)

// registerModelRoutes mounts the model API as a catch-all under the
// configured prefix, for every HTTP method.
//
//	/api/model/user/findMany -> Crud with param "*" = "user/findMany"
func registerModelRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers, services *service.Services, m *middleware.Middlewares) {
	api := r.Group(s.Config.API.Prefix)

	if services.Auth.Enabled() {
		api.Use(m.Auth.RequireAuth)
	}

	// The bare prefix is routed too, so a request without a model path
	// gets the adapter's 400 instead of a route 404.
	api.Any("", h.Crud)
	api.Any("/*", h.Crud)
}
