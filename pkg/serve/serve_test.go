package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fraudml/pkg/artifact"
	"fraudml/pkg/features"
	"fraudml/pkg/metrics"
	"fraudml/pkg/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// row returns a raw transaction whose first feature carries the class signal.
func row(v float64) []float64 {
	r := make([]float64, features.Width)
	r[0] = v
	return r
}

// trainedStore saves a dt and a probability-free knn model into a fresh
// file store and returns its directory.
func trainedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	var X [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		X = append(X, row(float64(i%10)/10))
		y = append(y, 0)
		X = append(X, row(5+float64(i%10)/10))
		y = append(y, 1)
	}

	dir := t.TempDir()
	store := artifact.NewFileStore(dir)
	dt := model.NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))
	knn := model.NewKNN(3, model.WithVoteProba(false))
	require.NoError(t, knn.Fit(X, y))

	for name, clf := range map[string]model.Classifier{"dt": dt, "knn": knn} {
		a, err := model.NewArtifact(clf, model.InputLayout{}, model.Metadata{RunID: "test"})
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, name, a))
	}
	return dir
}

func routerFor(dir string) *gin.Engine {
	m := metrics.NewCollector(nil)
	scorer := NewScorer(artifact.NewCache(artifact.NewFileStore(dir), nil), m, nil)
	return NewRouter(NewHandler(scorer, "logreg"), m, nil)
}

func setupRouter(t *testing.T) *gin.Engine {
	return routerFor(trainedStore(t))
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHome(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "running")
}

func TestListModels(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Available []string `json:"available_models"`
		Default   string   `json:"default_model"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"dt", "knn"}, resp.Available)
	assert.Equal(t, "logreg", resp.Default)
}

func TestPredictWithProbability(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodPost, "/predict?model=dt", PredictRequest{Features: row(5.5)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dt", resp.ModelUsed)
	assert.Equal(t, 1, resp.Prediction.Prediction)
	require.NotNil(t, resp.FraudProbability)
	assert.Equal(t, 1.0, *resp.FraudProbability)
	assert.False(t, resp.Padded)
}

func TestPredictWithoutProbability(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodPost, "/predict?model=knn", PredictRequest{Features: row(0.2)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw, "fraud_probability")
	assert.Nil(t, raw["fraud_probability"], "unknown probability is explicit null")
	assert.Equal(t, 0.0, raw["prediction"])
}

func TestPredictPadsShortVectors(t *testing.T) {
	r := setupRouter(t)
	w := do(t, r, http.MethodPost, "/predict?model=dt", PredictRequest{Features: []float64{6, 0, 0}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Padded)
	assert.Equal(t, 1, resp.Prediction.Prediction)
}

func TestPredictErrors(t *testing.T) {
	r := setupRouter(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"default model not trained", "/predict", PredictRequest{Features: row(1)}, http.StatusNotFound, "model_not_trained"},
		{"unknown model", "/predict?model=svm", PredictRequest{Features: row(1)}, http.StatusBadRequest, "unknown_model"},
		{"too many features", "/predict?model=dt", PredictRequest{Features: make([]float64, features.Width+1)}, http.StatusBadRequest, "invalid_input"},
		{"empty batch", "/predict-batch?model=dt", BatchRequest{Rows: [][]float64{}}, http.StatusBadRequest, "invalid_input"},
		{"missing body", "/predict?model=dt", nil, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestPredictBatchPreservesOrder(t *testing.T) {
	r := setupRouter(t)
	body := BatchRequest{Rows: [][]float64{row(0.1), row(5.2), row(0.3), row(5.9)}}
	w := do(t, r, http.MethodPost, "/predict-batch?model=dt", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 4)
	got := []int{}
	for _, p := range resp.Results {
		got = append(got, p.Prediction)
	}
	assert.Equal(t, []int{0, 1, 0, 1}, got)

	mw := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), `fraudml_predictions_total{label="fraud",model="dt"} 2`)
}

func TestPredictCorruptArtifactIsServerError(t *testing.T) {
	dir := trainedStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rf.gob"), []byte("not a gob stream"), 0o644))
	r := routerFor(dir)

	w := do(t, r, http.MethodPost, "/predict?model=rf", PredictRequest{Features: row(1)})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "prediction_failed")
}

func TestScoreRejectsNonFiniteValues(t *testing.T) {
	scorer := NewScorer(artifact.NewCache(artifact.NewFileStore(trainedStore(t)), nil), metrics.NewCollector(nil), nil)
	ctx := context.Background()

	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		bad := row(5.5)
		bad[3] = v
		out, err := scorer.Score(ctx, "dt", [][]float64{row(0.1), bad})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, model.ErrNonFinite)
		assert.ErrorContains(t, err, "row 1")
		assert.Nil(t, out)
	}

	huge := row(math.MaxFloat64)
	huge[1] = -math.MaxFloat64
	out, err := scorer.Score(ctx, "dt", [][]float64{huge})
	require.NoError(t, err)
	require.NotNil(t, out[0].FraudProbability)
	assert.False(t, math.IsNaN(*out[0].FraudProbability))
}

func TestScoreRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	scorer := NewScorer(artifact.NewCache(artifact.NewFileStore(trainedStore(t)), nil), nil, nil)
	_, err := scorer.Score(context.Background(), "dt", [][]float64{row(0.1), row(5.1)})
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "rf", [][]float64{row(0.1)})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "serve.score", s.Name())
	}
	assert.Contains(t, spans[0].Attributes(), attribute.String("model.family", "dt"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("rows", 2))
	assert.Empty(t, spans[0].Events())
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}
