package handler_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deppfellow/go-crud-api/internal/config"
	"github.com/deppfellow/go-crud-api/internal/handler"
	"github.com/deppfellow/go-crud-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

var _ = Describe("HealthHandler", func() {
	newServer := func(hc config.HealthChecksConfig) *server.Server {
		obs := config.DefaultObservabilityConfig()
		obs.HealthChecks = hc
		return &server.Server{
			Config: &config.Config{
				Primary:       config.Primary{Env: "test"},
				Observability: obs,
			},
		}
	}

	serve := func(s *server.Server) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		Expect(handler.NewHealthHandler(s).CheckHealth(c)).To(Succeed())
		return rec, decode(rec)
	}

	It("reports liveness when checks are disabled", func() {
		rec, body := serve(newServer(config.HealthChecksConfig{Enabled: false}))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "healthy"))
		Expect(body).To(HaveKeyWithValue("environment", "test"))
		Expect(body["checks"]).To(BeEmpty())
	})

	It("stays healthy when only redis is down", func() {
		s := newServer(config.HealthChecksConfig{
			Enabled: true,
			Timeout: 200 * time.Millisecond,
			Checks:  []string{"redis"},
		})
		s.Redis = redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		DeferCleanup(s.Redis.Close)

		rec, body := serve(s)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("status", "healthy"))
		Expect(body["checks"]).To(HaveKeyWithValue("redis", HaveKeyWithValue("status", "unhealthy")))
	})
})
