package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/errs"
	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/rpc"
	"github.com/deppfellow/go-crud-api/internal/schema"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	msgNoClient    = "unable to get database client from request context"
	msgMissingPath = "missing path parameter"
)

// ClientAccessor returns the data-access client for the current request.
type ClientAccessor func(c echo.Context) (crud.Client, error)

// PagesRouteOptions configures NewPagesRouteHandler.
type PagesRouteOptions struct {
	// GetClient is required.
	GetClient ClientAccessor

	// ModelMeta is forwarded to the request handler.
	ModelMeta *crud.ModelMeta

	// Schemas is forwarded as-is when set. Otherwise LoadDefaultSchemas
	// picks the bundle registered with schema.RegisterDefault.
	Schemas            *schema.Bundle
	LoadDefaultSchemas bool

	// Handler defaults to rpc.NewHandler().
	Handler crud.RequestHandler

	// Logger is passed to the request handler untouched.
	Logger *zerolog.Logger

	// Deprecated: responses are always plain JSON. Setting it only logs a warning.
	UseSuperJSON *bool
}

// NewPagesRouteHandler adapts a crud.RequestHandler to an Echo catch-all
// route such as "/api/model/*".
//
// The returned handler always writes exactly one response:
//   - 500 when no client can be obtained
//   - 400 when the request carries no path
//   - the handler's status and body on success
//   - 500 with the error text on any error or panic while delegating
func NewPagesRouteHandler(opts PagesRouteOptions) (echo.HandlerFunc, error) {
	if opts.GetClient == nil {
		return nil, errors.New("GetClient is required")
	}

	bundle := opts.Schemas
	if bundle == nil && opts.LoadDefaultSchemas {
		var err error
		if bundle, err = schema.Default(); err != nil {
			return nil, errors.Wrap(err, "unable to load validation schemas from default location")
		}
	}

	requestHandler := opts.Handler
	if requestHandler == nil {
		requestHandler = rpc.NewHandler()
	}

	if opts.UseSuperJSON != nil {
		warnLogger := &log.Logger
		if opts.Logger != nil {
			warnLogger = opts.Logger
		}
		warnLogger.Warn().Msg(`The option "UseSuperJSON" is deprecated. The server APIs automatically use JSON for serialization.`)
	}

	return func(c echo.Context) error {
		logger := middleware.GetLogger(c)

		client, err := opts.GetClient(c)
		if err != nil || client == nil {
			if err != nil {
				logger.Error().Err(err).Msg("client accessor failed")
			}
			return writeError(c, http.StatusInternalServerError, msgNoClient)
		}

		segments := pathSegments(c)
		if len(segments) == 0 {
			return writeError(c, http.StatusBadRequest, msgMissingPath)
		}
		path := strings.Join(segments, "/")

		if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
			txn.AddAttribute("crud.path", path)
		}

		res, err := delegate(c, requestHandler, crud.Request{
			Method:    c.Request().Method,
			Path:      path,
			Query:     c.QueryParams(),
			Client:    client,
			ModelMeta: opts.ModelMeta,
			Schemas:   bundle,
			Logger:    opts.Logger,
		})
		if err != nil {
			logger.Error().Stack().Err(err).Str("crud_path", path).Msg("request handler failed")
			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
			}
			return writeError(c, http.StatusInternalServerError, fmt.Sprintf("An unhandled error occurred: %v", err))
		}

		return writeResponse(c, res)
	}, nil
}

// delegate reads the body and runs h, turning a panic into an error.
func delegate(c echo.Context, h crud.RequestHandler, req crud.Request) (res crud.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%v", r)
		}
	}()

	if body := c.Request().Body; body != nil {
		raw, err := io.ReadAll(body)
		if err != nil {
			return crud.Response{}, errors.Wrap(err, "failed to read request body")
		}
		req.Body = raw
	}

	return h(c.Request().Context(), req)
}

// pathSegments reads the wildcard route param, falling back to repeated
// "path" query values. Empty segments are dropped on purpose, so "a//b"
// reaches the request handler as "a/b".
func pathSegments(c echo.Context) []string {
	var segments []string
	for _, s := range strings.Split(c.Param("*"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 0 {
		return segments
	}

	for _, s := range c.QueryParams()["path"] {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func writeResponse(c echo.Context, res crud.Response) error {
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	switch body := res.Body.(type) {
	case nil:
		return c.NoContent(status)
	case []byte:
		return c.Blob(status, echo.MIMEOctetStream, body)
	case string:
		return c.String(status, body)
	default:
		return c.JSON(status, body)
	}
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, errs.New(status, message))
}
