package handler

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/model"
	"github.com/crimson-sun/sentiment/internal/output"
	"github.com/crimson-sun/sentiment/internal/server/metrics"
)

// Predictor is the part of the prediction pool the handlers use.
type Predictor interface {
	Predict(ctx context.Context, name string, in model.Input) (model.Prediction, error)
	Ready() bool
	Models() []string
	ReloadAll(ctx context.Context) error
}

// PredictRequest is the request body for both predict routes.
type PredictRequest struct {
	SentimentText *string `json:"sentimentText"`
}

// PredictDetail is the body of POST /api/predict/detail.
type PredictDetail struct {
	Text        string  `json:"text"`
	Prediction  string  `json:"prediction"`
	Label       bool    `json:"label"`
	Probability float64 `json:"probability"`
	Score       float64 `json:"score"`
}

// PredictHandler serves predictions from one named model.
type PredictHandler struct {
	predictor     Predictor
	model         string
	maxTextLength int
	audit         output.Output
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewPredictHandler creates a predict handler. audit and m may be nil.
func NewPredictHandler(p Predictor, modelName string, maxTextLength int, audit output.Output, m *metrics.Metrics, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		predictor:     p,
		model:         modelName,
		maxTextLength: maxTextLength,
		audit:         audit,
		metrics:       m,
		logger:        logger,
	}
}

// Predict handles POST /api/predict. The body is the JSON string
// "Positive" or "Negative".
func (h *PredictHandler) Predict(c *gin.Context) {
	pred, ok := h.predict(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.SentimentOf(pred.Label))
}

// PredictDetail handles POST /api/predict/detail.
func (h *PredictHandler) PredictDetail(c *gin.Context) {
	pred, ok := h.predict(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, PredictDetail{
		Text:        pred.Text,
		Prediction:  model.SentimentOf(pred.Label),
		Label:       pred.Label,
		Probability: pred.Probability,
		Score:       pred.Score,
	})
}

// predict validates the request and runs it through the pool. On failure
// the error response has already been written.
func (h *PredictHandler) predict(c *gin.Context) (model.Prediction, bool) {
	text, err := h.bind(c)
	if err != nil {
		resp := handleError(c, err)
		h.metrics.ObserveError(resp.Code)
		return model.Prediction{}, false
	}

	ctx := c.Request.Context()
	start := time.Now()
	pred, err := h.predictor.Predict(ctx, h.model, model.Input{Text: text})
	if err != nil {
		resp := handleError(c, err)
		h.metrics.ObserveError(resp.Code)
		return model.Prediction{}, false
	}
	h.metrics.ObservePrediction(model.SentimentOf(pred.Label), time.Since(start))

	if h.audit != nil {
		if err := h.audit.Write(ctx, output.NewRecord(h.model, requestID(c), pred)); err != nil {
			h.logger.Warn("audit write failed", zap.String("request_id", requestID(c)), zap.Error(err))
		}
	}
	return pred, true
}

// bind decodes and validates the request body.
func (h *PredictHandler) bind(c *gin.Context) (string, error) {
	// Allow for JSON escaping: every rune may take up to 6 bytes encoded.
	limit := int64(h.maxTextLength)*6 + 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return "", err
		}
		return "", errors.Wrap(ErrInvalidText, err.Error())
	}
	if req.SentimentText == nil || strings.TrimSpace(*req.SentimentText) == "" {
		return "", ErrInvalidText
	}
	if utf8.RuneCountInString(*req.SentimentText) > h.maxTextLength {
		return "", errors.Wrapf(ErrTextTooLong, "limit %d characters", h.maxTextLength)
	}
	return *req.SentimentText, nil
}
