// ABOUTME: Builds the long-lived services from configuration in one place
// ABOUTME: Commands and the MCP server share a single App instead of package globals
package app

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/charm"
	"github.com/harper/libraryqa/internal/config"
	"github.com/harper/libraryqa/internal/core"
	"github.com/harper/libraryqa/internal/docs"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/storage"
	"github.com/harper/libraryqa/internal/storage/sqlite"
	openai "github.com/sashabaranov/go-openai"
)

// App holds every service a command needs
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Rules       *core.Rules
	Store       *storage.VectorStore
	Embedder    llm.Embedder
	Generator   llm.Generator
	DB          *sqlite.DB
	AnswerCache *sqlite.AnswerCache
	IngestLog   *sqlite.IngestLog
	Retriever   *core.Retriever
	Answerer    *core.Answerer
	Ingestor    *core.Ingestor

	mirrorOnce sync.Once
	mirror     *charm.Client
	mirrorErr  error
}

// Build wires the services and loads the persisted vector store.
// A nil logger logs to stderr at the configured level.
func Build(cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = logging.New(os.Stderr, cfg.LogLevel)
	}

	rules, err := core.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewVectorStore(storage.Options{
		Dir:       cfg.VectorStorePath,
		CacheSize: cfg.SearchCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load vector store: %w", err)
	}

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	generator, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Rules:       rules,
		Store:       store,
		Embedder:    embedder,
		Generator:   generator,
		DB:          db,
		AnswerCache: sqlite.NewAnswerCache(db, cfg.AnswerCacheTTL, cfg.AnswerCacheMax),
		IngestLog:   sqlite.NewIngestLog(db),
	}

	a.Retriever = core.NewRetriever(store, embedder, rules, logger)
	a.Answerer = core.NewAnswerer(a.Retriever, generator, a.AnswerCache, cfg.Timeout, logger)
	a.Ingestor = core.NewIngestor(
		docs.NewLoader(logger),
		core.NewSegmenter(rules, logger),
		embedder,
		store,
		a.IngestLog,
		logger,
	)

	logger.Debug("services ready",
		"embedder", embedder.Name(),
		"generator", cfg.GeneratorBackend,
		"chunks", store.Len())
	return a, nil
}

// NewEmbedder returns the configured embedder. Remote backends are wrapped
// so failures degrade to hash embeddings.
func NewEmbedder(cfg *config.Config, logger *log.Logger) (llm.Embedder, error) {
	switch cfg.EmbeddingBackend {
	case config.BackendHash, "":
		return llm.NewHashEmbedder(), nil
	case config.BackendOllama:
		client, err := newOllama(cfg)
		if err != nil {
			return nil, err
		}
		return llm.NewFallbackEmbedder(client, logger), nil
	case config.BackendOpenAI:
		client, err := newOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return llm.NewFallbackEmbedder(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
	}
}

// NewGenerator returns the configured generator, or nil for none
func NewGenerator(cfg *config.Config) (llm.Generator, error) {
	switch cfg.GeneratorBackend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendOllama:
		return newOllama(cfg)
	case config.BackendOpenAI:
		return newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.GeneratorBackend)
	}
}

func newOllama(cfg *config.Config) (*llm.OllamaClient, error) {
	return llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        cfg.OllamaURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	})
}

func newOpenAI(cfg *config.Config) (*llm.OpenAIClient, error) {
	clientCfg := llm.DefaultConfig(cfg.OpenAIKey)
	clientCfg.BaseURL = cfg.OpenAIBaseURL
	clientCfg.ChatModel = cfg.OpenAIChatModel
	clientCfg.EmbeddingModel = openai.EmbeddingModel(cfg.OpenAIEmbeddingModel)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = cfg.MaxRetries
	clientCfg.RetryDelay = cfg.RetryDelay
	return llm.NewOpenAIClientWithConfig(clientCfg)
}

// Mirror opens the Charm mirror on first use
func (a *App) Mirror() (*charm.Client, error) {
	a.mirrorOnce.Do(func() {
		a.mirror, a.mirrorErr = charm.NewClient(&charm.Config{
			Host:     a.Config.CharmHost,
			DBName:   a.Config.CharmDBName,
			AutoSync: true,
		})
	})
	return a.mirror, a.mirrorErr
}

// Close releases the database and the mirror
func (a *App) Close() error {
	var errs []error
	if a.mirror != nil {
		errs = append(errs, a.mirror.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
