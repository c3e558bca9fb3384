package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edtech-engine/backend/internal/catalog"
	"github.com/edtech-engine/backend/internal/config"
	"github.com/edtech-engine/backend/internal/learner"
	"github.com/edtech-engine/backend/internal/metrics"
	"github.com/edtech-engine/backend/internal/provider"
	"github.com/edtech-engine/backend/internal/search"
	"github.com/edtech-engine/backend/internal/storage"
)

var (
	// ErrInvalidItem is returned when an ingested item fails validation.
	ErrInvalidItem = errors.New("invalid catalog item")
	// ErrEmptyFeedback is returned when there is no feedback text to classify.
	ErrEmptyFeedback = errors.New("feedback text is required")
)

// ActivityStore persists learner records
type ActivityStore interface {
	Append(rec learner.Record) error
	All() ([]learner.Record, error)
}

// CatalogSource loads the initial catalog
type CatalogSource func(ctx context.Context) ([]search.Item, error)

// Engine orchestrates the catalog, the recommender and the learner features
type Engine struct {
	Config      *config.Config
	Logger      *logrus.Entry
	Storage     storage.CatalogStorage
	Activity    ActivityStore
	Recommender *search.Recommender
	LLM         provider.LLMProvider
	Source      CatalogSource

	// rebuilds are serialized; queries never take this lock
	buildMu sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	statsMu sync.RWMutex
	stats   Stats
}

type Stats struct {
	Items          int
	VocabularySize int
	Builds         int64
	LastBuild      time.Time
	LastBuildTook  time.Duration
	LastError      string
	StartTime      time.Time
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, store storage.CatalogStorage, activity ActivityStore, llm provider.LLMProvider) *Engine {
	return &Engine{
		Config:      cfg,
		Logger:      logger,
		Storage:     store,
		Activity:    activity,
		Recommender: search.NewRecommender(),
		LLM:         llm,
		Source:      SourceFromConfig(cfg.Catalog),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:       Stats{StartTime: time.Now()},
	}
}

// NewLLMProvider picks the tutor backend named in the config
func NewLLMProvider(cfg config.LLMConfig) provider.LLMProvider {
	var llm provider.LLMProvider
	switch cfg.Provider {
	case "openai":
		llm = provider.NewOpenAIProvider(cfg.BaseURL, cfg.Model, cfg.APIKey)
	default:
		llm = provider.NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout)
	}
	return provider.WithRetry(llm, cfg.RetryBudget)
}

// SourceFromConfig returns the configured catalog source, or nil when none is set.
func SourceFromConfig(cfg config.CatalogConfig) CatalogSource {
	switch {
	case cfg.URL != "":
		f := catalog.NewFetcher(cfg.FetchTimeout, cfg.FetchBudget)
		return func(ctx context.Context) ([]search.Item, error) {
			return f.Fetch(ctx, cfg.URL)
		}
	case cfg.Path != "":
		return func(context.Context) ([]search.Item, error) {
			return catalog.LoadFile(cfg.Path)
		}
	}
	return nil
}

// SetRand replaces the topic sampling source
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng = rng
}

// Load imports the configured catalog into empty storage and builds the index.
// An empty catalog is not an error; the service waits for ingestion.
func (e *Engine) Load(ctx context.Context) error {
	count, err := e.Storage.Count()
	if err != nil {
		return fmt.Errorf("failed to count catalog: %w", err)
	}

	if count == 0 && e.Source != nil && e.Config.Catalog.ImportOnEmpty {
		items, err := e.Source(ctx)
		if err != nil {
			return fmt.Errorf("failed to load catalog source: %w", err)
		}
		for _, it := range items {
			if err := e.Storage.Save(it); err != nil {
				return fmt.Errorf("failed to import item %s: %w", it.ID, err)
			}
		}
		e.Logger.WithField("items", len(items)).Info("Imported catalog source")
	}

	if err := e.Rebuild(); err != nil {
		if errors.Is(err, search.ErrEmptyCatalog) {
			e.Logger.Warn("Catalog is empty; recommendations unavailable until items are ingested")
			return nil
		}
		return err
	}
	return nil
}

// Rebuild builds a fresh index from storage and swaps it in
func (e *Engine) Rebuild() error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	items, err := e.Storage.List()
	if err != nil {
		return fmt.Errorf("failed to list catalog: %w", err)
	}

	start := time.Now()
	idx, err := e.Recommender.Rebuild(items)
	took := time.Since(start)
	if err != nil {
		e.recordError(err)
		return err
	}
	metrics.IndexBuildDuration.Observe(took.Seconds())
	metrics.CatalogItems.Set(float64(idx.Len()))
	metrics.VocabularySize.Set(float64(idx.VocabularySize()))

	e.statsMu.Lock()
	e.stats.Items = idx.Len()
	e.stats.VocabularySize = idx.VocabularySize()
	e.stats.Builds++
	e.stats.LastBuild = idx.BuiltAt()
	e.stats.LastBuildTook = took
	e.stats.LastError = ""
	e.statsMu.Unlock()

	e.Logger.WithFields(logrus.Fields{
		"items":      idx.Len(),
		"vocabulary": idx.VocabularySize(),
		"took":       took,
	}).Info("Rebuilt recommendation index")
	return nil
}

// Ingest stores new or updated items and rebuilds the index
func (e *Engine) Ingest(items []search.Item) (int, error) {
	seen := make(map[string]bool, len(items))
	for i := range items {
		items[i].ID = strings.TrimSpace(items[i].ID)
		if items[i].ID == "" {
			return 0, fmt.Errorf("%w: item %d has no id", ErrInvalidItem, i)
		}
		if seen[items[i].ID] {
			return 0, fmt.Errorf("%w: duplicate id %s", ErrInvalidItem, items[i].ID)
		}
		seen[items[i].ID] = true
		if strings.TrimSpace(items[i].Title) == "" {
			return 0, fmt.Errorf("%w: item %s has no title", ErrInvalidItem, items[i].ID)
		}
		items[i].Description = catalog.StripMarkup(items[i].Description)
	}

	for _, it := range items {
		if err := e.Storage.Save(it); err != nil {
			return 0, fmt.Errorf("failed to save item %s: %w", it.ID, err)
		}
	}

	if err := e.Rebuild(); err != nil {
		return 0, err
	}
	return e.Stats().Items, nil
}

// Recommend returns up to topN items for the query; topN 0 means the configured default.
func (e *Engine) Recommend(query string, topN int) ([]search.Result, error) {
	if topN == 0 {
		topN = e.Config.Recommender.DefaultTopN
	}
	if topN > e.Config.Recommender.MaxTopN {
		metrics.RecommendationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: topN must not exceed %d", search.ErrInvalidArgument, e.Config.Recommender.MaxTopN)
	}

	results, err := e.Recommender.Rank(query, topN)
	switch {
	case errors.Is(err, search.ErrInvalidArgument):
		metrics.RecommendationsTotal.WithLabelValues("invalid").Inc()
	case err != nil:
		metrics.RecommendationsTotal.WithLabelValues("unavailable").Inc()
	default:
		metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	}
	return results, err
}

// SubmitActivity validates and stores a learner record
func (e *Engine) SubmitActivity(rec learner.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return e.Activity.Append(rec)
}

// SuggestTopics samples topics the learner has not studied
func (e *Engine) SuggestTopics(userID, k int) ([]string, error) {
	if k == 0 {
		k = e.Config.Recommender.DefaultTopicCount
	}
	records, err := e.Activity.All()
	if err != nil {
		return nil, err
	}

	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return learner.SuggestTopics(records, userID, k, e.rng)
}

// Assess returns the adaptive assessment for a learner
func (e *Engine) Assess(userID int) (*learner.Assessment, error) {
	records, err := e.Activity.All()
	if err != nil {
		return nil, err
	}
	return learner.Assess(records, userID)
}

// AskTutor performs the full flow: Recommend -> Build Prompt -> LLM Generation
func (e *Engine) AskTutor(ctx context.Context, question string) (string, []search.Item, error) {
	var resources []search.Item
	results, err := e.Recommender.Rank(question, e.Config.Recommender.TutorContext)
	if err != nil && !errors.Is(err, search.ErrNoIndex) {
		return "", nil, err
	}
	for _, r := range results {
		if r.Score > 0 {
			resources = append(resources, r.Item)
		}
	}

	prompt := provider.BuildTutorPrompt(question, resources)
	answer, err := e.LLM.Generate(ctx, prompt)
	if err != nil {
		metrics.TutorRequestsTotal.WithLabelValues(e.LLM.Name(), e.generationFailed(err, "Tutor generation failed")).Inc()
		return "", nil, err
	}
	metrics.TutorRequestsTotal.WithLabelValues(e.LLM.Name(), "ok").Inc()
	return answer, resources, nil
}

// AnalyzeFeedback classifies learner feedback as POSITIVE, NEGATIVE or NEUTRAL
func (e *Engine) AnalyzeFeedback(ctx context.Context, feedback string) (string, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return "", ErrEmptyFeedback
	}

	answer, err := e.LLM.Generate(ctx, provider.BuildSentimentPrompt(feedback))
	if err != nil {
		metrics.SentimentRequestsTotal.WithLabelValues(e.LLM.Name(), e.generationFailed(err, "Sentiment analysis failed")).Inc()
		return "", err
	}
	label, err := provider.ParseSentiment(answer)
	if err != nil {
		metrics.SentimentRequestsTotal.WithLabelValues(e.LLM.Name(), e.generationFailed(err, "Sentiment analysis failed")).Inc()
		return "", err
	}
	metrics.SentimentRequestsTotal.WithLabelValues(e.LLM.Name(), "ok").Inc()
	return label, nil
}

// generationFailed logs a provider failure and returns its metric outcome.
// A caller that went away is not an error.
func (e *Engine) generationFailed(err error, msg string) string {
	if errors.Is(err, context.Canceled) {
		e.Logger.WithError(err).Debug(msg)
		return "cancelled"
	}
	e.Logger.WithError(err).Error(msg)
	return "error"
}

// Stats returns a copy of the engine statistics
func (e *Engine) Stats() Stats {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

func (e *Engine) recordError(err error) {
	e.statsMu.Lock()
	e.stats.LastError = err.Error()
	e.statsMu.Unlock()
}
