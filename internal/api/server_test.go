package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edtech-engine/backend/internal/api"
	"github.com/edtech-engine/backend/internal/config"
	"github.com/edtech-engine/backend/internal/engine"
	"github.com/edtech-engine/backend/internal/learner"
	"github.com/edtech-engine/backend/internal/provider"
	"github.com/edtech-engine/backend/internal/storage"
)

// Mocks

type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockLLMProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func setupServer(t *testing.T) (*api.Server, *MockLLMProvider) {
	t.Helper()
	cfg := config.Load()
	dir := t.TempDir()
	store, err := storage.NewFileStorage(filepath.Join(dir, "catalog"))
	require.NoError(t, err)
	activity, err := storage.NewActivityLog(filepath.Join(dir, "activity.jsonl"))
	require.NoError(t, err)

	mockLLM := new(MockLLMProvider)
	mockLLM.On("Name").Return("mock").Maybe()

	logger := logrus.New().WithField("test", "api")
	eng := engine.NewEngine(cfg, logger, store, activity, mockLLM)
	eng.Source = nil

	return api.NewServer(eng, logger), mockLLM
}

func do(server *api.Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)
	return rr
}

const catalogJSON = `[
	{"id": "a1", "title": "Algebra Basics", "description": "linear equations", "subject": "Math", "url": "https://example.com/a1", "difficulty": "Beginner"},
	{"id": "b1", "title": "Photosynthesis", "description": "plant biology", "subject": "Science"}
]`

func TestHandleStatus(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Items)
	assert.Empty(t, resp.LastBuild)
}

func TestHandleRecommend_NoCatalog(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, http.MethodGet, "/api/v1/recommendations?q=algebra", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleIngestAndRecommend(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, http.MethodPost, "/api/v1/catalog", catalogJSON)
	require.Equal(t, http.StatusCreated, rr.Code)

	var ingest api.IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ingest))
	assert.Equal(t, 2, ingest.Ingested)
	assert.Equal(t, 2, ingest.CatalogSize)

	rr = do(server, http.MethodGet, "/api/v1/recommendations?q=algebra+equations&top_n=1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.RecommendResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "algebra equations", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Algebra Basics", resp.Results[0].Title)
	assert.Equal(t, "https://example.com/a1", resp.Results[0].URL)
	assert.Greater(t, resp.Results[0].Score, 0.0)
}

func TestHandleRecommend_InvalidTopN(t *testing.T) {
	server, _ := setupServer(t)
	require.Equal(t, http.StatusCreated, do(server, http.MethodPost, "/api/v1/catalog", catalogJSON).Code)

	for _, raw := range []string{"0", "-1", "abc", "1000"} {
		rr := do(server, http.MethodGet, "/api/v1/recommendations?q=x&top_n="+raw, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, "top_n=%s", raw)
	}
}

func TestHandleIngest_BadInput(t *testing.T) {
	server, _ := setupServer(t)

	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/catalog", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/catalog", "[]").Code)
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/catalog", `[{"id":"x"}]`).Code)
}

func TestHandleReload(t *testing.T) {
	server, _ := setupServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, do(server, http.MethodPost, "/api/v1/catalog/reload", "").Code)

	require.Equal(t, http.StatusCreated, do(server, http.MethodPost, "/api/v1/catalog", catalogJSON).Code)
	rr := do(server, http.MethodPost, "/api/v1/catalog/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Builds)
}

func TestHandleLearnerFlow(t *testing.T) {
	server, _ := setupServer(t)

	records := []learner.Record{
		{UserID: 7, Topic: "Algebra", QuizScore: 85, Rating: 5},
		{UserID: 8, Topic: "Geometry", QuizScore: 40, Rating: 2},
	}
	for _, rec := range records {
		body, _ := json.Marshal(rec)
		assert.Equal(t, http.StatusCreated, do(server, http.MethodPost, "/api/v1/activity", string(body)).Code)
	}
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/activity", `{"user_id":7,"topic":"","rating":3}`).Code)

	rr := do(server, http.MethodGet, "/api/v1/learners/7/topics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var topics api.TopicsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topics))
	assert.Equal(t, []string{"Geometry"}, topics.Topics)

	rr = do(server, http.MethodGet, "/api/v1/learners/7/assessment", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var assessment learner.Assessment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &assessment))
	assert.Equal(t, learner.Advanced, assessment.Level)

	assert.Equal(t, http.StatusNotFound, do(server, http.MethodGet, "/api/v1/learners/99/assessment", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodGet, "/api/v1/learners/abc/topics", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodGet, "/api/v1/learners/7/topics?k=0", "").Code)
}

func TestHandleTutor(t *testing.T) {
	server, mockLLM := setupServer(t)
	require.Equal(t, http.StatusCreated, do(server, http.MethodPost, "/api/v1/catalog", catalogJSON).Code)

	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return("Generated Answer", nil)

	rr := do(server, http.MethodPost, "/api/v1/tutor", `{"question": "explain algebra"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.TutorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Generated Answer", resp.Answer)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, "a1", resp.Resources[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/tutor", `{}`).Code)
}

func TestHandleTutor_ProviderFailure(t *testing.T) {
	server, mockLLM := setupServer(t)
	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string")).
		Return("", fmt.Errorf("%w: down", provider.ErrProvider))

	rr := do(server, http.MethodPost, "/api/v1/tutor", `{"question": "hi"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestHandleSentiment(t *testing.T) {
	server, mockLLM := setupServer(t)
	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return("NEGATIVE", nil).Once()
	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string")).
		Return("", fmt.Errorf("%w: down", provider.ErrProvider)).Once()

	rr := do(server, http.MethodPost, "/api/v1/feedback/sentiment", `{"feedback": "The quiz was confusing."}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp api.SentimentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, provider.SentimentNegative, resp.Sentiment.Label)

	assert.Equal(t, http.StatusBadGateway, do(server, http.MethodPost, "/api/v1/feedback/sentiment", `{"feedback": "ok"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(server, http.MethodPost, "/api/v1/feedback/sentiment", `{"feedback": ""}`).Code)
}

func TestHandleTutor_ClientGone(t *testing.T) {
	server, mockLLM := setupServer(t)
	mockLLM.On("Generate", mock.Anything, mock.AnythingOfType("string")).
		Return("", fmt.Errorf("%w: ollama: %w", provider.ErrProvider, context.Canceled))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutor", strings.NewReader(`{"question": "hi"}`)).WithContext(ctx)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, 499, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupServer(t)
	do(server, http.MethodGet, "/api/v1/status", "")

	rr := do(server, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "edtech_http_requests_total")
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := setupServer(t)

	rr := do(server, http.MethodDelete, "/api/v1/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
