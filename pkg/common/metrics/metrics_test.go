package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsMatchedRoute(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/files", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/files", "204"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/files", "204"))
	require.Equal(t, before+1, after)
}

func TestTerminalCollectors(t *testing.T) {
	SetTerminalSessions(3)
	require.Equal(t, float64(3), testutil.ToFloat64(terminalSessionsActive))

	before := testutil.ToFloat64(terminalBytesTotal.WithLabelValues("in"))
	RecordTerminalInput(5)
	require.Equal(t, before+5, testutil.ToFloat64(terminalBytesTotal.WithLabelValues("in")))
}

func TestHandler_ServesExposition(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	RecordGeneration(true)

	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "sheikah_generations_total")
}
