// ABOUTME: Centralized configuration for the library Q&A service
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Embedding and generation backends understood by the service
const (
	BackendHash   = "hash"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

// Config holds all configuration for the library Q&A service
type Config struct {
	// Storage locations
	DataDir         string
	VectorStorePath string
	DocumentsDir    string
	RulesFile       string

	// Backend selection
	EmbeddingBackend string
	GeneratorBackend string

	// Ollama settings
	OllamaURL      string
	ChatModel      string
	EmbeddingModel string

	// OpenAI-compatible settings
	OpenAIKey            string
	OpenAIBaseURL        string
	OpenAIChatModel      string
	OpenAIEmbeddingModel string

	// Remote call behavior
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Caches
	SearchCacheSize int
	AnswerCacheTTL  time.Duration
	AnswerCacheMax  int

	// Charm settings
	CharmHost   string
	CharmDBName string

	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	dataDir := getEnv("LIBQA_DATA_DIR", defaultDataDir())

	cfg := &Config{
		DataDir:              dataDir,
		VectorStorePath:      getEnv("LIBQA_VECTOR_STORE", filepath.Join(dataDir, "vector_store")),
		DocumentsDir:         getEnv("LIBQA_DOCS_DIR", "pdfs"),
		RulesFile:            os.Getenv("LIBQA_RULES_FILE"),
		EmbeddingBackend:     strings.ToLower(getEnv("LIBQA_EMBEDDER", BackendHash)),
		GeneratorBackend:     strings.ToLower(getEnv("LIBQA_GENERATOR", BackendOllama)),
		OllamaURL:            getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		ChatModel:            getEnv("CHAT_MODEL", "qwen:0.5b"),
		EmbeddingModel:       getEnv("EMBEDDING_MODEL", "all-minilm:latest"),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		OpenAIChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		Timeout:              getEnvDuration("LIBQA_TIMEOUT", 60*time.Second),
		MaxRetries:           getEnvInt("LIBQA_MAX_RETRIES", 3),
		RetryDelay:           getEnvDuration("LIBQA_RETRY_DELAY", time.Second),
		SearchCacheSize:      getEnvInt("LIBQA_SEARCH_CACHE", 50),
		AnswerCacheTTL:       getEnvDuration("LIBQA_ANSWER_TTL", 24*time.Hour),
		AnswerCacheMax:       getEnvInt("LIBQA_ANSWER_CACHE_MAX", 100),
		CharmHost:            getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName:          getEnv("CHARM_DB", "libraryqa"),
		LogLevel:             getEnv("LIBQA_LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("LIBQA_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.SearchCacheSize <= 0 {
		return fmt.Errorf("LIBQA_SEARCH_CACHE must be positive, got %d", c.SearchCacheSize)
	}
	if c.AnswerCacheMax < 0 {
		return fmt.Errorf("LIBQA_ANSWER_CACHE_MAX must not be negative, got %d", c.AnswerCacheMax)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("LIBQA_TIMEOUT must be positive, got %s", c.Timeout)
	}
	switch c.EmbeddingBackend {
	case BackendHash, BackendOllama, BackendOpenAI:
	default:
		return fmt.Errorf("LIBQA_EMBEDDER must be one of hash, ollama, openai; got %q", c.EmbeddingBackend)
	}
	switch c.GeneratorBackend {
	case BackendOllama, BackendOpenAI, BackendNone:
	default:
		return fmt.Errorf("LIBQA_GENERATOR must be one of ollama, openai, none; got %q", c.GeneratorBackend)
	}
	if (c.EmbeddingBackend == BackendOpenAI || c.GeneratorBackend == BackendOpenAI) && c.OpenAIKey == "" && c.OpenAIBaseURL == "" {
		return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai backend")
	}
	return nil
}

// DatabasePath is the SQLite file holding the answer cache and ingest log
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "libraryqa.db")
}

// defaultDataDir respects XDG_DATA_HOME so tests can redirect it
func defaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "libraryqa")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
