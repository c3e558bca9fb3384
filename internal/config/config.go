package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the learning service
type Config struct {
	Server      ServerConfig
	Catalog     CatalogConfig
	Recommender RecommenderConfig
	Storage     StorageConfig
	LLM         LLMConfig
	Log         LogConfig
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CatalogConfig names the source imported when storage is empty
type CatalogConfig struct {
	Path          string
	URL           string
	FetchTimeout  time.Duration
	FetchBudget   time.Duration
	ImportOnEmpty bool
}

type RecommenderConfig struct {
	DefaultTopN       int
	MaxTopN           int
	TutorContext      int
	DefaultTopicCount int
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	DataDir     string
	ActivityLog string
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	RetryBudget time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	dataDir := GetStringEnv("DATA_DIR", "./data")
	return &Config{
		Server: ServerConfig{
			Addr:            GetStringEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:     GetDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    GetDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: GetDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Catalog: CatalogConfig{
			Path:          GetStringEnv("CATALOG_PATH", ""),
			URL:           GetStringEnv("CATALOG_URL", ""),
			FetchTimeout:  GetDurationEnv("CATALOG_FETCH_TIMEOUT", 30*time.Second),
			FetchBudget:   GetDurationEnv("CATALOG_FETCH_BUDGET", 2*time.Minute),
			ImportOnEmpty: GetBoolEnv("CATALOG_IMPORT_ON_EMPTY", true),
		},
		Recommender: RecommenderConfig{
			DefaultTopN:       GetIntEnv("RECOMMENDER_DEFAULT_TOP_N", 5),
			MaxTopN:           GetIntEnv("RECOMMENDER_MAX_TOP_N", 100),
			TutorContext:      GetIntEnv("RECOMMENDER_TUTOR_CONTEXT", 3),
			DefaultTopicCount: GetIntEnv("RECOMMENDER_TOPIC_COUNT", 3),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			ActivityLog: GetStringEnv("ACTIVITY_LOG", dataDir+"/activity/records.jsonl"),
		},
		LLM: LLMConfig{
			Provider:    GetStringEnv("LLM_PROVIDER", "ollama"),
			BaseURL:     GetStringEnv("LLM_BASE_URL", ""),
			Model:       GetStringEnv("LLM_MODEL", "qwen3:1.7b"),
			APIKey:      GetStringEnv("LLM_API_KEY", ""),
			Timeout:     GetDurationEnv("LLM_TIMEOUT", 60*time.Second),
			RetryBudget: GetDurationEnv("LLM_RETRY_BUDGET", 30*time.Second),
		},
		Log: LogConfig{
			Level:  GetStringEnv("LOG_LEVEL", "info"),
			Format: GetStringEnv("LOG_FORMAT", "text"),
		},
	}
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
