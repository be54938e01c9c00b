package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
)

func TestMetricsMiddleware_StatusCodesAreNumeric(t *testing.T) {
	m := metrics.Get()
	m.HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/missing", func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })
	router.GET("/down", func(c *gin.Context) { c.JSON(http.StatusServiceUnavailable, gin.H{"degraded": true}) })

	for _, path := range []string{"/ok", "/missing", "/down", "/down"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	// numeric labels keep dashboard queries like status=~"5.." working
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/missing", "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/down", "503")))
	assert.Zero(t, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "OK")))
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.Get()
	m.HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/posts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"p1", "p2", "p3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/posts/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/posts/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
