package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSubmission(t *testing.T) {
	before := testutil.ToFloat64(PlacementSubmissions.WithLabelValues("created"))
	levelBefore := testutil.ToFloat64(PlacementLevels.WithLabelValues("beginner"))

	ObserveSubmission("created", "beginner")
	ObserveSubmission("duplicate", "")

	assert.Equal(t, before+1, testutil.ToFloat64(PlacementSubmissions.WithLabelValues("created")))
	assert.Equal(t, levelBefore+1, testutil.ToFloat64(PlacementLevels.WithLabelValues("beginner")))
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Init()
	Init()

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204")))

	ObserveSubmission("created", "advanced_beginner")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "placement_submissions_total")
}
