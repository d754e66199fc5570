package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deppfellow/go-crud-api/internal/config"
	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/errs"
	"github.com/deppfellow/go-crud-api/internal/middleware"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

func newServer(out *bytes.Buffer, rateLimit float64) *server.Server {
	logger := zerolog.New(out)
	return &server.Server{
		Config: &config.Config{
			Server: config.ServerConfig{RateLimit: rateLimit},
		},
		Logger: &logger,
	}
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func ok(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

var _ = Describe("RequestID", func() {
	It("generates an id when none is sent", func() {
		c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(middleware.RequestID()(ok)(c)).To(Succeed())

		id := middleware.GetRequestID(c)
		Expect(id).To(HaveLen(36))
		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal(id))
	})

	It("reuses the incoming id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		c, rec := newContext(req)

		Expect(middleware.RequestID()(ok)(c)).To(Succeed())
		Expect(middleware.GetRequestID(c)).To(Equal("req-42"))
		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal("req-42"))
	})

	DescribeTable("replaces unusable incoming ids",
		func(incoming string) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(middleware.RequestIDHeader, incoming)
			c, _ := newContext(req)

			Expect(middleware.RequestID()(ok)(c)).To(Succeed())
			Expect(middleware.GetRequestID(c)).NotTo(Equal(incoming))
			Expect(middleware.GetRequestID(c)).To(HaveLen(36))
		},
		Entry("line break", "abc\nlevel=error"),
		Entry("spaces", "a b"),
		Entry("too long", strings.Repeat("a", 129)),
	)

	It("reports no id when the middleware did not run", func() {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(middleware.GetRequestID(c)).To(BeEmpty())
	})
})

var _ = Describe("EnhanceContext", func() {
	It("stores one request logger in the echo and request contexts", func() {
		out := &bytes.Buffer{}
		enhancer := middleware.NewContextEnhancer(newServer(out, 0))

		req := httptest.NewRequest(http.MethodPost, "/api/model/user/create", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-7")
		c, _ := newContext(req)
		c.Set(middleware.UserIDKey, "user_1")

		handler := middleware.RequestID()(enhancer.EnhanceContext()(func(c echo.Context) error {
			Expect(zerolog.Ctx(c.Request().Context())).To(BeIdenticalTo(middleware.GetLogger(c)))
			middleware.GetLogger(c).Info().Msg("hello")
			return nil
		}))
		Expect(handler(c)).To(Succeed())

		var line map[string]any
		Expect(json.Unmarshal(out.Bytes(), &line)).To(Succeed())
		Expect(line).To(HaveKeyWithValue("request_id", "req-7"))
		Expect(line).To(HaveKeyWithValue("method", http.MethodPost))
		Expect(line).To(HaveKeyWithValue("user_id", "user_1"))
	})

	It("falls back to a disabled logger", func() {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(middleware.GetLogger(c).GetLevel()).To(Equal(zerolog.Disabled))
	})
})

var _ = Describe("RateLimit", func() {
	It("passes everything through when disabled", func() {
		limit := middleware.NewRateLimitMiddleware(newServer(&bytes.Buffer{}, 0)).Limit()

		for range 5 {
			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(limit(ok)(c)).To(Succeed())
			Expect(rec.Code).To(Equal(http.StatusOK))
		}
	})

	It("answers 429 once the burst is spent", func() {
		srv := newServer(&bytes.Buffer{}, 1)

		e := echo.New()
		e.HTTPErrorHandler = middleware.NewGlobalMiddlewares(srv).GlobalErrorHandler
		e.Use(middleware.NewRateLimitMiddleware(srv).Limit())
		e.GET("/", ok)

		first := httptest.NewRecorder()
		e.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(first.Code).To(Equal(http.StatusOK))

		second := httptest.NewRecorder()
		e.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(second.Code).To(Equal(http.StatusTooManyRequests))

		var body errs.HTTPError
		Expect(json.Unmarshal(second.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Code).To(Equal("TOO_MANY_REQUESTS"))
		Expect(body.Message).To(Equal("Too many requests"))
	})
})

var _ = Describe("GlobalErrorHandler", func() {
	var global *middleware.GlobalMiddlewares

	BeforeEach(func() {
		global = middleware.NewGlobalMiddlewares(newServer(&bytes.Buffer{}, 0))
	})

	handle := func(err error) (int, errs.HTTPError) {
		c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		global.GlobalErrorHandler(err, c)

		var body errs.HTTPError
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return rec.Code, body
	}

	It("renders HTTP errors as they are", func() {
		status, body := handle(errs.New(http.StatusForbidden, "nope"))
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body.Code).To(Equal("FORBIDDEN"))
		Expect(body.Message).To(Equal("nope"))
	})

	It("renames unknown routes", func() {
		status, body := handle(echo.ErrNotFound)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body.Message).To(Equal("Route not found"))
	})

	It("keeps other echo errors", func() {
		status, body := handle(echo.ErrMethodNotAllowed)
		Expect(status).To(Equal(http.StatusMethodNotAllowed))
		Expect(body.Code).To(Equal("METHOD_NOT_ALLOWED"))
	})

	It("maps data-access errors", func() {
		status, _ := handle(fmt.Errorf("%w: no user matched the filter", crud.ErrNotFound))
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("hides anything else behind a 500", func() {
		status, body := handle(errors.New("disk on fire"))
		Expect(status).To(Equal(http.StatusInternalServerError))
		Expect(body.Message).To(Equal(http.StatusText(http.StatusInternalServerError)))
	})
})

var _ = Describe("RequireAuth", func() {
	It("rejects requests without a session token", func() {
		auth := middleware.NewAuthMiddleware(newServer(&bytes.Buffer{}, 0))
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/api/model/user/findMany", nil))

		called := false
		err := auth.RequireAuth(func(c echo.Context) error {
			called = true
			return nil
		})(c)

		var httpErr *errs.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.Status).To(Equal(http.StatusUnauthorized))
		Expect(called).To(BeFalse())
		Expect(middleware.GetUserID(c)).To(BeEmpty())
	})
})
