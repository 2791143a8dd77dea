package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crimson-sun/sentiment/internal/output"
	"github.com/crimson-sun/sentiment/internal/server/handler"
	"github.com/crimson-sun/sentiment/internal/server/metrics"
	"github.com/crimson-sun/sentiment/internal/server/middleware"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Predictor     handler.Predictor
	ModelName     string
	MaxTextLength int
	Audit         output.Output    // optional
	Metrics       *metrics.Metrics // optional
	Logger        *zap.Logger
}

// Setup creates and configures the Gin router
func Setup(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(d.Logger))
	router.Use(middleware.Recovery(d.Logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(d.Metrics))

	// Health endpoints
	healthHandler := handler.NewHealthHandler(d.Predictor)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Prometheus metrics
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	predictHandler := handler.NewPredictHandler(d.Predictor, d.ModelName, d.MaxTextLength, d.Audit, d.Metrics, d.Logger)
	api := router.Group("/api")
	{
		api.POST("/predict", predictHandler.Predict)
		api.POST("/predict/detail", predictHandler.PredictDetail)
	}

	adminHandler := handler.NewAdminHandler(d.Predictor, d.Logger)
	admin := router.Group("/admin")
	{
		admin.POST("/reload", adminHandler.Reload)
	}

	return router
}
