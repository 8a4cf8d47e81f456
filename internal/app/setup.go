package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crepilot/crepilot/db"
	"github.com/crepilot/crepilot/internal/agent"
	"github.com/crepilot/crepilot/internal/config"
	"github.com/crepilot/crepilot/internal/database"
	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/ingest"
	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/prompt"
	"github.com/crepilot/crepilot/internal/tools"
	"github.com/crepilot/crepilot/internal/vectorstore"
	"github.com/crepilot/crepilot/internal/web"
)

// Setup constructs the application. On failure everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Documents = document.NewStore(pool, logger.With("component", "document"))
	a.Vectors = vectorstore.New(
		vectorstore.NewPGQuerier(pool, logger.With("component", "vectorstore")),
		logger.With("component", "vectorstore"),
	)

	pipeline, err := ingest.New(ingest.Config{
		Documents:          a.Documents,
		Index:              a.Vectors,
		Embedder:           embedder,
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		EmbedRatePerSecond: cfg.EmbedRatePerSecond,
		Logger:             logger.With("component", "ingest"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingest pipeline: %w", err)
	}
	a.Pipeline = pipeline

	registry, err := provideTools(cfg, embedder, a.Vectors, logger)
	if err != nil {
		return nil, err
	}
	a.Tools = registry

	a.Prompts = prompt.NewStore(pool, logger.With("component", "prompt"))

	orchestrator, err := agent.New(agent.Config{
		Model:   agent.NewGenkitModel(g, cfg.FullModelName(), float64(cfg.Temperature)),
		Tools:   registry,
		Prompts: a.Prompts,
		Logger:  logger.With("component", "agent"),
		Breaker: agent.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			Timeout:          time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orchestrator

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelBackground = cancel

	server, err := web.NewServer(web.Config{
		Chat:           orchestrator,
		Tools:          registry,
		Documents:      a.Documents,
		Pipeline:       pipeline,
		Prompts:        a.Prompts,
		DB:             pool,
		Logger:         logger.With("component", "web"),
		MaxUploadBytes: cfg.MaxUploadBytes,
		BackgroundCtx:  bgCtx,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideTools builds the registry with every executor the assistant can
// call. Web search and economic data degrade at call time when their API
// keys are missing, so they are always registered.
func provideTools(cfg *config.Config, embedder ai.Embedder, index *vectorstore.Store, logger log.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry(logger.With("component", "tools"))

	ws, err := tools.NewWebSearch(cfg.Tavily, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("creating web search tool: %w", err)
	}
	econ, err := tools.NewEconomicData(cfg.FRED, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("creating economic data tool: %w", err)
	}
	market, err := tools.NewMarketAnalysis()
	if err != nil {
		return nil, fmt.Errorf("creating market analysis tool: %w", err)
	}
	property, err := tools.NewPropertyAnalysis()
	if err != nil {
		return nil, fmt.Errorf("creating property analysis tool: %w", err)
	}
	valueProp, err := tools.NewValueProposition()
	if err != nil {
		return nil, fmt.Errorf("creating value proposition tool: %w", err)
	}
	docSearch, err := tools.NewDocumentSearch(embedder, index)
	if err != nil {
		return nil, fmt.Errorf("creating document search tool: %w", err)
	}

	for _, exec := range []tools.Executor{ws, econ, market, property, valueProp, docSearch} {
		if err := registry.Register(exec); err != nil {
			return nil, fmt.Errorf("registering tool: %w", err)
		}
	}
	return registry, nil
}
