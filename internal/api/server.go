package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/edtech-engine/backend/internal/engine"
	"github.com/edtech-engine/backend/internal/learner"
	"github.com/edtech-engine/backend/internal/metrics"
	"github.com/edtech-engine/backend/internal/provider"
	"github.com/edtech-engine/backend/internal/search"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// statusClientClosedRequest is reported when the caller disconnects mid-request.
const statusClientClosedRequest = 499

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router chi.Router
}

func NewServer(eng *engine.Engine, logger *logrus.Entry) *Server {
	s := &Server{
		Engine: eng,
		Logger: logger,
		Router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(metrics.Middleware())
	s.Router.Use(s.requestLogger)

	s.Router.Handle("/metrics", promhttp.Handler())

	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommendations", s.handleRecommend)
		r.Post("/catalog", s.handleIngest)
		r.Post("/catalog/reload", s.handleReload)
		r.Get("/status", s.handleStatus)
		r.Post("/activity", s.handleActivity)
		r.Get("/learners/{userID}/topics", s.handleTopics)
		r.Get("/learners/{userID}/assessment", s.handleAssessment)
		r.Post("/tutor", s.handleTutor)
		r.Post("/feedback/sentiment", s.handleSentiment)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.Router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("Handled request")
	})
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type RecommendResponse struct {
	Query   string               `json:"query"`
	Results []RecommendationView `json:"results"`
}

type RecommendationView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Subject     string  `json:"subject"`
	Difficulty  string  `json:"difficulty"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type IngestResponse struct {
	Ingested    int `json:"ingested"`
	CatalogSize int `json:"catalog_size"`
}

type StatusResponse struct {
	Items          int    `json:"items"`
	VocabularySize int    `json:"vocabulary_size"`
	Builds         int64  `json:"builds"`
	LastBuild      string `json:"last_build,omitempty"`
	LastError      string `json:"last_error,omitempty"`
	Uptime         string `json:"uptime"`
}

type TopicsResponse struct {
	UserID int      `json:"user_id"`
	Topics []string `json:"recommended_topics"`
}

type TutorRequest struct {
	Question string `json:"question"`
}

type TutorResponse struct {
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Resources []RecommendationView `json:"resources"`
}

type SentimentRequest struct {
	Feedback string `json:"feedback"`
}

type SentimentResponse struct {
	Sentiment SentimentView `json:"feedback_sentiment"`
}

type SentimentView struct {
	Label string `json:"label"`
}

// Handlers

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	topN := 0
	if raw := r.URL.Query().Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "top_n must be a positive integer"})
			return
		}
		topN = n
	}

	results, err := s.Engine.Recommend(query, topN)
	if err != nil {
		s.handleError(w, err)
		return
	}

	response := RecommendResponse{
		Query:   query,
		Results: make([]RecommendationView, len(results)),
	}
	for i, res := range results {
		response.Results[i] = toView(res.Item, res.Score)
	}

	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var items []search.Item
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&items); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	if len(items) == 0 {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "at least one item is required"})
		return
	}

	size, err := s.Engine.Ingest(items)
	if err != nil {
		s.handleError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, IngestResponse{Ingested: len(items), CatalogSize: size})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Rebuild(); err != nil {
		s.handleError(w, err)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Engine.Stats()

	resp := StatusResponse{
		Items:          stats.Items,
		VocabularySize: stats.VocabularySize,
		Builds:         stats.Builds,
		LastError:      stats.LastError,
		Uptime:         time.Since(stats.StartTime).Round(time.Second).String(),
	}
	if !stats.LastBuild.IsZero() {
		resp.LastBuild = stats.LastBuild.UTC().Format(time.RFC3339)
	}

	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var rec learner.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}

	if err := s.Engine.SubmitActivity(rec); err != nil {
		s.handleError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{"message": "Data submitted successfully."})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "k must be a positive integer"})
			return
		}
		k = n
	}

	topics, err := s.Engine.SuggestTopics(userID, k)
	if err != nil {
		s.handleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, TopicsResponse{UserID: userID, Topics: topics})
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	assessment, err := s.Engine.Assess(userID)
	if err != nil {
		s.handleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, assessment)
}

func (s *Server) handleTutor(w http.ResponseWriter, r *http.Request) {
	var req TutorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}
	if req.Question == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "question is required"})
		return
	}

	answer, resources, err := s.Engine.AskTutor(r.Context(), req.Question)
	if err != nil {
		s.handleError(w, err)
		return
	}

	resp := TutorResponse{
		Question:  req.Question,
		Answer:    answer,
		Resources: make([]RecommendationView, len(resources)),
	}
	for i, it := range resources {
		resp.Resources[i] = toView(it, 0)
	}

	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}

	label, err := s.Engine.AnalyzeFeedback(r.Context(), req.Feedback)
	if err != nil {
		s.handleError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, SentimentResponse{Sentiment: SentimentView{Label: label}})
}

// handleError maps domain errors to HTTP statuses.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		s.Logger.WithError(err).Debug("Client went away")
		jsonResponse(w, statusClientClosedRequest, ErrorResponse{Error: "request cancelled"})
	case errors.Is(err, search.ErrInvalidArgument),
		errors.Is(err, engine.ErrInvalidItem),
		errors.Is(err, engine.ErrEmptyFeedback),
		errors.Is(err, learner.ErrInvalidRecord):
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, learner.ErrUnknownLearner):
		jsonResponse(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, search.ErrNoIndex), errors.Is(err, search.ErrEmptyCatalog):
		jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: "catalog is empty; ingest items first"})
	case errors.Is(err, provider.ErrProvider):
		jsonResponse(w, http.StatusBadGateway, ErrorResponse{Error: "language model is unavailable"})
	default:
		s.Logger.WithError(err).Error("Request failed")
		jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID <= 0 {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "userID must be a positive integer"})
		return 0, false
	}
	return userID, true
}

func toView(it search.Item, score float64) RecommendationView {
	return RecommendationView{
		ID:          it.ID,
		Title:       it.Title,
		URL:         it.URL,
		Subject:     it.Subject,
		Difficulty:  it.Difficulty,
		Description: it.Description,
		Score:       score,
	}
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
