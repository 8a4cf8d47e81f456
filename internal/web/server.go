// Package web exposes the HTTP API: streaming chat, direct tool invocation,
// document administration, and health checks.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/crepilot/crepilot/internal/agent"
	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/prompt"
	"github.com/crepilot/crepilot/internal/tools"
)

const defaultMaxUploadBytes = 32 << 20

// Chatter runs chat turns.
type Chatter interface {
	Chat(ctx context.Context, req agent.Request) (<-chan agent.Event, error)
}

// ToolRunner is the registry surface the HTTP layer needs.
type ToolRunner interface {
	IDs() []string
	Get(name string) (tools.Executor, bool)
	Run(ctx context.Context, name string, input json.RawMessage) tools.Result
}

// DocumentStore reads and creates document records.
type DocumentStore interface {
	Create(ctx context.Context, d document.Document) (document.Document, error)
	Get(ctx context.Context, id string) (document.Document, error)
	List(ctx context.Context) ([]document.Document, error)
}

// Ingestor processes uploads and removals.
type Ingestor interface {
	Ingest(ctx context.Context, docID, filename string, data []byte) error
	Remove(ctx context.Context, docID string) error
}

// PromptStore manages the operator system message.
type PromptStore interface {
	Active(ctx context.Context) (prompt.Message, error)
	Set(ctx context.Context, content string) (prompt.Message, error)
}

// Pinger checks storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Chat      Chatter
	Tools     ToolRunner
	Documents DocumentStore
	Pipeline  Ingestor
	Prompts   PromptStore
	DB        Pinger // optional; nil skips the database health probe
	Logger    log.Logger

	// MaxUploadBytes caps one document upload. Zero uses the default.
	MaxUploadBytes int64

	// BackgroundCtx outlives requests; ingestion started by an upload
	// continues on it after the 202 response is sent.
	BackgroundCtx context.Context
}

func (cfg Config) validate() error {
	if cfg.Chat == nil {
		return errors.New("chat orchestrator is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool registry is required")
	}
	if cfg.Documents == nil {
		return errors.New("document store is required")
	}
	if cfg.Pipeline == nil {
		return errors.New("ingest pipeline is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompt store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Server is the HTTP API server.
type Server struct {
	mux       *http.ServeMux
	chat      Chatter
	tools     ToolRunner
	documents DocumentStore
	pipeline  Ingestor
	prompts   PromptStore
	db        Pinger
	logger    log.Logger

	maxUploadBytes int64
	bgCtx          context.Context
	wg             sync.WaitGroup
}

// NewServer creates a server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.BackgroundCtx == nil {
		cfg.BackgroundCtx = context.Background()
	}

	s := &Server{
		mux:            http.NewServeMux(),
		chat:           cfg.Chat,
		tools:          cfg.Tools,
		documents:      cfg.Documents,
		pipeline:       cfg.Pipeline,
		prompts:        cfg.Prompts,
		db:             cfg.DB,
		logger:         cfg.Logger,
		maxUploadBytes: cfg.MaxUploadBytes,
		bgCtx:          cfg.BackgroundCtx,
	}

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /tools", s.handleListTools)
	s.mux.HandleFunc("POST /tools/{name}", s.handleRunTool)
	s.mux.HandleFunc("GET /admin/documents", s.handleListDocuments)
	s.mux.HandleFunc("POST /admin/documents/upload", s.handleUploadDocument)
	s.mux.HandleFunc("GET /admin/documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /admin/documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /admin/system-message", s.handleGetSystemMessage)
	s.mux.HandleFunc("PUT /admin/system-message", s.handleSetSystemMessage)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	return s, nil
}

// ServeHTTP applies the middleware stack: recovery outermost, then logging.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := recoveryMiddleware(s.logger)(loggingMiddleware(s.logger)(s.mux))
	handler.ServeHTTP(w, r)
}

// Wait blocks until background ingestions started by uploads have finished.
// Called during graceful shutdown.
func (s *Server) Wait() {
	s.wg.Wait()
}
