package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

func TestMetricsMiddlewareNilPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("METRICS_ENABLED", "true")

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	m := observability.Init(log)
	if m == nil {
		t.Fatalf("metrics should initialize when enabled")
	}

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/v1/frameworks", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frameworks", nil))

	var buf strings.Builder
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	body := buf.String()
	want := `jf_api_requests_total{method="GET",route="/api/v1/frameworks",status="200"}`
	if !strings.Contains(body, want) {
		t.Fatalf("exposition missing %s:\n%s", want, body)
	}
	if !strings.Contains(body, "jf_api_requests_total_all") {
		t.Fatalf("exposition missing total counter:\n%s", body)
	}
}
