package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"almoheat/internal/logger"
	"almoheat/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaces missing or oversized id", func(t *testing.T) {
		for _, incoming := range []string{"", strings.Repeat("x", 65)} {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(RequestIDHeader, incoming)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			got := w.Header().Get(RequestIDHeader)
			assert.Len(t, got, 36)
			assert.Equal(t, got, seen)
		}
	})
}

type itemRequest struct {
	Items []struct {
		ProductID string `json:"product_id" binding:"required"`
	} `json:"items" binding:"required,min=1,dive"`
	Status string `json:"status" binding:"omitempty,oneof=pending paid"`
}

func TestValidationDetails(t *testing.T) {
	SetupValidator()

	var got []FieldError
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req itemRequest
		got = ValidationDetails(c.ShouldBindJSON(&req))
	})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"items":[{}],"status":"void"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, got, 2)
	assert.Contains(t, got, FieldError{Field: "items[0].product_id", Message: "is required"})
	assert.Equal(t, "status", got[1].Field)

	assert.Nil(t, ValidationDetails(assert.AnError))
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	routes := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "almoheat_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					routes[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"/items/:id": 2, "unmatched": 1}, routes)
}
