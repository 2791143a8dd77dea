package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/crimson-sun/sentiment/internal/server/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	echo := func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) }

	t.Run("generates new request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", echo)

		w := serve(router, "GET", "/test", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", echo)

		w := serve(router, "GET", "/test", map[string]string{RequestIDHeader: "custom-request-id-123"})
		assert.Equal(t, "custom-request-id-123", w.Body.String())
		assert.Equal(t, "custom-request-id-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("accepts ID at length limit", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", echo)

		id := strings.Repeat("a", 128)
		w := serve(router, "GET", "/test", map[string]string{RequestIDHeader: id})
		assert.Equal(t, id, w.Body.String())
	})

	rejected := map[string]string{
		"too long":       strings.Repeat("a", 129),
		"contains space": "req id",
		"non-ASCII":      "req-\u00e9t\u00e9",
		"control byte":   "req\x01id",
	}
	for name, id := range rejected {
		t.Run("replaces "+name+" ID", func(t *testing.T) {
			router := gin.New()
			router.Use(RequestID())
			router.GET("/test", echo)

			w := serve(router, "GET", "/test", map[string]string{RequestIDHeader: id})
			got := w.Body.String()
			assert.NotEqual(t, id, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
			assert.Equal(t, got, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"success logs at info", http.StatusOK, zapcore.InfoLevel},
		{"4xx logs at warn", http.StatusBadRequest, zapcore.WarnLevel},
		{"5xx logs at error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			router := gin.New()
			router.Use(RequestID(), Logger(zap.New(core)))
			router.GET("/test", func(c *gin.Context) { c.String(tt.status, "x") })

			w := serve(router, "GET", "/test", nil)
			assert.Equal(t, tt.status, w.Code)

			entries := logs.All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tt.level, entries[0].Level)
				fields := entries[0].ContextMap()
				assert.Equal(t, "/test", fields["path"])
				assert.EqualValues(t, tt.status, fields["status"])
				assert.NotEmpty(t, fields["request_id"])
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		router := gin.New()
		router.Use(RequestID(), Recovery(zap.New(core)))
		router.GET("/test", func(c *gin.Context) { panic("test panic") })

		w := serve(router, "GET", "/test", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
		assert.Contains(t, w.Body.String(), `"success":false`)
		assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	})

	t.Run("passes through when no panic", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID(), Recovery(zap.NewNop()))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		assert.Equal(t, http.StatusOK, serve(router, "GET", "/test", nil).Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("sets CORS headers", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS())
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		w := serve(router, "GET", "/test", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	})

	t.Run("handles OPTIONS preflight", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS())
		router.POST("/api/predict", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		w := serve(router, "OPTIONS", "/api/predict", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve(router, "GET", "/health", nil)
	serve(router, "GET", "/nope", nil)

	assert.Equal(t, 2, mustGatherAndCount(t, m))
}

func mustGatherAndCount(t *testing.T, m *metrics.Metrics) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), "sentiment_http_request_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	return n
}
