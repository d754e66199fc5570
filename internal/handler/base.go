package handler

import (
	"time"

	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Handler is the base handler type that holds shared application dependencies.
//
// Concrete handlers (HealthHandler, OpenAPIHandler, ...) embed it so they can
// reach config, logger, db and redis through *server.Server.
type Handler struct {
	server *server.Server
}

// NewHandler constructs a base Handler.
func NewHandler(s *server.Server) Handler {
	return Handler{server: s}
}

// instrument wraps next with request logging, timing and New Relic attributes.
//
// Response writing stays with next; instrument only observes. Errors are
// returned unchanged so the global error handler still formats them.
func instrument(operation string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		txn := newrelic.FromContext(c.Request().Context())
		if txn != nil {
			txn.AddAttribute("handler.name", c.Path())
			txn.AddAttribute("handler.operation", operation)
		}

		logger := middleware.GetLogger(c).With().
			Str("operation", operation).
			Str("route", c.Path()).
			Logger()

		logger.Debug().Msg("handling request")

		err := next(c)
		duration := time.Since(start)

		if err != nil {
			logger.Error().
				Err(err).
				Dur("handler_duration", duration).
				Msg("handler execution failed")

			if txn != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
				txn.AddAttribute("handler.status", "error")
				txn.AddAttribute("handler.duration_ms", duration.Milliseconds())
			}
			return err
		}

		if txn != nil {
			txn.AddAttribute("handler.status", "success")
			txn.AddAttribute("handler.duration_ms", duration.Milliseconds())
		}

		logger.Debug().
			Int("status", c.Response().Status).
			Dur("handler_duration", duration).
			Msg("request completed")

		return nil
	}
}
