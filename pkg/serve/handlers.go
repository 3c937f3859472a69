package serve

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fraudml/pkg/artifact"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
)

// Handler provides the prediction endpoints
type Handler struct {
	scorer       *Scorer
	defaultModel string
}

// NewHandler creates a prediction handler. Requests without a model query
// parameter use defaultModel.
func NewHandler(scorer *Scorer, defaultModel string) *Handler {
	if defaultModel == "" {
		defaultModel = string(model.FamilyLinear)
	}
	return &Handler{scorer: scorer, defaultModel: defaultModel}
}

// RegisterRoutes sets up prediction routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Home)
	r.GET("/models", h.ListModels)
	r.GET("/get-models", h.ListModels)
	r.POST("/predict", h.Predict)
	r.POST("/predict-batch", h.PredictBatch)
}

// PredictRequest is one raw transaction in features.KaggleOrder.
type PredictRequest struct {
	Features []float64 `json:"features" binding:"required"`
}

// PredictResponse is the result of POST /predict.
type PredictResponse struct {
	ModelUsed string `json:"model_used"`
	Prediction
}

// BatchRequest carries several raw transactions.
type BatchRequest struct {
	Rows [][]float64 `json:"rows" binding:"required"`
}

// BatchResponse is the result of POST /predict-batch, in request order.
type BatchResponse struct {
	ModelUsed string       `json:"model_used"`
	Results   []Prediction `json:"results"`
}

// Home handles GET /
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Fraud Detection API running successfully!"})
}

// ListModels handles GET /models
func (h *Handler) ListModels(c *gin.Context) {
	names, err := h.scorer.Available(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": err.Error(),
		})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"available_models": names,
		"default_model":    h.defaultModel,
	})
}

// Predict handles POST /predict?model=<family>
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	name := c.DefaultQuery("model", h.defaultModel)
	out, err := h.scorer.Score(c.Request.Context(), name, [][]float64{req.Features})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PredictResponse{ModelUsed: name, Prediction: out[0]})
}

// PredictBatch handles POST /predict-batch?model=<family>
func (h *Handler) PredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	name := c.DefaultQuery("model", h.defaultModel)
	out, err := h.scorer.Score(c.Request.Context(), name, req.Rows)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{ModelUsed: name, Results: out})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_model", "message": err.Error()})
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
	case errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "model_not_trained", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction_failed", "message": err.Error()})
	}
}

// NewRouter builds the gin engine with recovery, request logging, health
// and, when m is set, /metrics.
func NewRouter(h *Handler, m *metrics.Collector, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.GetHandler()))
	}
	h.RegisterRoutes(r)
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
