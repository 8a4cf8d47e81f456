// Package app assembles the application: configuration, database, Genkit,
// the ingestion pipeline, the tool registry, the chat orchestrator, and the
// HTTP server. Components are constructed by provide* functions in setup.go
// and owned by App, which releases them in Close.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crepilot/crepilot/internal/agent"
	"github.com/crepilot/crepilot/internal/config"
	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/ingest"
	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/prompt"
	"github.com/crepilot/crepilot/internal/tools"
	"github.com/crepilot/crepilot/internal/vectorstore"
	"github.com/crepilot/crepilot/internal/web"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Documents *document.Store
	Vectors   *vectorstore.Store
	Pipeline  *ingest.Pipeline
	Tools     *tools.Registry
	Prompts   *prompt.Store

	Orchestrator *agent.Orchestrator
	Server       *web.Server

	cancelBackground func()
}

// Close releases resources in reverse construction order. Background
// ingestions are canceled and drained before the database pool closes so no
// goroutine touches a closed pool.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.cancelBackground != nil {
		a.cancelBackground()
	}
	if a.Server != nil {
		a.Server.Wait()
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
