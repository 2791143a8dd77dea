package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/model"
	"github.com/crimson-sun/sentiment/internal/output"
	"github.com/crimson-sun/sentiment/internal/pool"
	"github.com/crimson-sun/sentiment/internal/server/metrics"
	"github.com/crimson-sun/sentiment/internal/server/middleware"
)

const testModel = "SentimentAnalysisModel"

// MockPredictor is a mock implementation of Predictor
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, name string, in model.Input) (model.Prediction, error) {
	args := m.Called(ctx, name, in)
	return args.Get(0).(model.Prediction), args.Error(1)
}

func (m *MockPredictor) Ready() bool {
	return m.Called().Bool(0)
}

func (m *MockPredictor) Models() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockPredictor) ReloadAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type memoryOutput struct {
	mu      sync.Mutex
	records []output.Record
}

func (o *memoryOutput) Write(_ context.Context, rec output.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
	return nil
}

func (o *memoryOutput) Close() error { return nil }

func setupTestRouter(p Predictor, audit output.Output, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	ph := NewPredictHandler(p, testModel, 50, audit, m, zap.NewNop())
	hh := NewHealthHandler(p)
	ah := NewAdminHandler(p, zap.NewNop())
	r.POST("/api/predict", ph.Predict)
	r.POST("/api/predict/detail", ph.PredictDetail)
	r.GET("/health", hh.Health)
	r.GET("/ready", hh.Ready)
	r.POST("/admin/reload", ah.Reload)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func gatherAndCount(t *testing.T, m *metrics.Metrics, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(m.Registry(), name)
	require.NoError(t, err)
	return n
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.NotNil(t, resp.Meta)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Meta.RequestID)
	return resp
}

func TestPredict_Success(t *testing.T) {
	p := new(MockPredictor)
	in := model.Input{Text: "I love this spaghetti."}
	p.On("Predict", mock.Anything, testModel, in).
		Return(model.Prediction{Text: in.Text, Label: true, Probability: 0.93, Score: 2.6}, nil)
	audit := &memoryOutput{}
	m := metrics.New()
	router := setupTestRouter(p, audit, m)

	w := post(router, "/api/predict", `{"sentimentText":"I love this spaghetti."}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"Positive"`, w.Body.String())
	p.AssertExpectations(t)

	require.Len(t, audit.records, 1)
	assert.Equal(t, testModel, audit.records[0].Model)
	assert.Equal(t, "Positive", audit.records[0].Sentiment)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), audit.records[0].RequestID)

	assert.Equal(t, 1, gatherAndCount(t, m, "sentiment_predictions_total"))
}

func TestPredict_Negative(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, testModel, mock.Anything).
		Return(model.Prediction{Text: "this was an extremely bad steak", Probability: 0.08, Score: -2.4}, nil)
	router := setupTestRouter(p, nil, nil)

	w := post(router, "/api/predict", `{"sentimentText":"this was an extremely bad steak"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"Negative"`, w.Body.String())
}

func TestPredictDetail(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, testModel, model.Input{Text: "meh"}).
		Return(model.Prediction{Text: "meh", Label: false, Probability: 0.4, Score: -0.4}, nil)
	router := setupTestRouter(p, nil, nil)

	w := post(router, "/api/predict/detail", `{"sentimentText":"meh"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got PredictDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, PredictDetail{Text: "meh", Prediction: "Negative", Label: false, Probability: 0.4, Score: -0.4}, got)
}

func TestPredict_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"sentimentText":`},
		{"empty body", ``},
		{"missing field", `{}`},
		{"null text", `{"sentimentText":null}`},
		{"empty text", `{"sentimentText":""}`},
		{"whitespace text", `{"sentimentText":"  \t\n "}`},
		{"wrong type", `{"sentimentText":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPredictor)
			m := metrics.New()
			router := setupTestRouter(p, nil, m)

			w := post(router, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, CodeInvalidRequest, decodeError(t, w).Error.Code)
			p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, 1, gatherAndCount(t, m, "sentiment_prediction_errors_total"))
		})
	}
}

func TestPredict_TooLong(t *testing.T) {
	p := new(MockPredictor)
	router := setupTestRouter(p, nil, nil)

	body, _ := json.Marshal(map[string]string{"sentimentText": strings.Repeat("é", 51)})
	w := post(router, "/api/predict", string(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, CodePayloadTooLarge, decodeError(t, w).Error.Code)

	// Far beyond the body cap.
	w = post(router, "/api/predict", `{"sentimentText":"`+strings.Repeat("a", 10_000)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
}

func TestPredict_AtLimit(t *testing.T) {
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, testModel, mock.Anything).Return(model.Prediction{Label: true}, nil)
	router := setupTestRouter(p, nil, nil)

	body, _ := json.Marshal(map[string]string{"sentimentText": strings.Repeat("é", 50)})
	assert.Equal(t, http.StatusOK, post(router, "/api/predict", string(body)).Code)
}

func TestPredict_PoolErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown model", errors.Wrap(pool.ErrModelNotFound, `"x"`), http.StatusInternalServerError, CodeInternal},
		{"inference failure", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, CodeUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, CodeUnavailable},
		{"closed", pool.ErrClosed, http.StatusServiceUnavailable, CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPredictor)
			p.On("Predict", mock.Anything, testModel, mock.Anything).Return(model.Prediction{}, tt.err)
			audit := &memoryOutput{}
			router := setupTestRouter(p, audit, nil)

			w := post(router, "/api/predict", `{"sentimentText":"fine"}`)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "boom", "internal details are not exposed")
			assert.Empty(t, audit.records, "no partial result is recorded")
		})
	}
}

func TestHealth(t *testing.T) {
	p := new(MockPredictor)
	p.On("Ready").Return(false)
	router := setupTestRouter(p, nil, nil)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, "not loaded", got.Components["model"])
}

func TestReady(t *testing.T) {
	t.Run("not ready without a model", func(t *testing.T) {
		p := new(MockPredictor)
		p.On("Ready").Return(false)
		router := setupTestRouter(p, nil, nil)

		req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("ready with a model", func(t *testing.T) {
		p := new(MockPredictor)
		p.On("Ready").Return(true)
		p.On("Models").Return([]string{testModel})
		router := setupTestRouter(p, nil, nil)

		req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","models":["SentimentAnalysisModel"]}`, w.Body.String())
	})
}

func TestReload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := new(MockPredictor)
		p.On("ReloadAll", mock.Anything).Return(nil)
		w := post(setupTestRouter(p, nil, nil), "/admin/reload", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		p.AssertExpectations(t)
	})

	t.Run("failure", func(t *testing.T) {
		p := new(MockPredictor)
		p.On("ReloadAll", mock.Anything).Return(errors.New("corrupt artifact"))
		w := post(setupTestRouter(p, nil, nil), "/admin/reload", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, CodeInternal, decodeError(t, w).Error.Code)
	})
}
