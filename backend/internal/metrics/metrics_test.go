package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGraphQuery(t *testing.T) {
	c := NewCollector("sonar_test")

	c.ObserveGraphQuery("write", nil, time.Millisecond)
	c.ObserveGraphQuery("write", errors.New("boom"), time.Millisecond)
	c.ObserveGraphQuery("read", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphQueries.WithLabelValues("write", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphQueries.WithLabelValues("write", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GraphQueries.WithLabelValues("read", "ok")))
}

func TestObserveImportBatch(t *testing.T) {
	c := NewCollector("sonar_test")

	c.ObserveImportBatch("citation", 500)
	c.ObserveImportBatch("citation", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ImportBatches.WithLabelValues("citation")))
	assert.Equal(t, 512.0, testutil.ToFloat64(c.ImportItems.WithLabelValues("citation")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveGraphQuery("read", nil, time.Second)
	c.ObserveImportBatch("article", 1)
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCollector("sonar_test")

	router := gin.New()
	router.Use(c.GinMiddleware())
	router.GET("/health", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(c.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/health", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sonar_test_http_requests_total")
}
