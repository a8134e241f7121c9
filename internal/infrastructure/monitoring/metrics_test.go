package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIntercept("captured")
		m.RecordReplay("locked", time.Second)
		m.RecordMessage("in", "STATE_UPDATE")
		m.RecordDrop("STATE_UPDATE")
		m.IncRelayQueries()
		m.IncPages()
		m.DecPages()
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	})
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordIntercept("suppressed")
	a.RecordIntercept("suppressed")
	b.RecordIntercept("suppressed")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.Intercepts.WithLabelValues("suppressed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Intercepts.WithLabelValues("suppressed")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/pages/:id/state", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/pages/abc/state", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/pages/:id/state", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), "aptools_http_requests_total")
}
