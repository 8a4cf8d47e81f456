package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/prompt"
	"github.com/crepilot/crepilot/internal/tools"
)

const (
	// eventBuffer decouples the producer from a slow consumer without
	// holding the whole response in memory.
	eventBuffer = 32

	// toolConcurrency bounds the tool fan-out per chat turn.
	toolConcurrency = 4
)

// Sentinel errors returned synchronously from Chat.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrUnknownTool  = errors.New("unknown tool")
)

// ToolRunner is the registry surface the orchestrator needs.
type ToolRunner interface {
	Has(name string) bool
	RunForMessage(ctx context.Context, name, message string) tools.Result
}

// PromptSource resolves the active system message.
type PromptSource interface {
	Active(ctx context.Context) (prompt.Message, error)
}

// Request is one chat turn. Tools lists the tool ids to consult before
// generating; an empty list means the model answers from the message alone.
type Request struct {
	Message string   `json:"message"`
	Tools   []string `json:"tools,omitempty"`
}

// Config carries the orchestrator dependencies.
type Config struct {
	Model   Model
	Tools   ToolRunner
	Prompts PromptSource // optional; nil always uses the default system message
	Logger  log.Logger

	Retry   RetryConfig          // zero value uses defaults
	Breaker CircuitBreakerConfig // zero value uses defaults
	Limiter *rate.Limiter        // optional proactive rate limiting
}

func (cfg Config) validate() error {
	if cfg.Model == nil {
		return errors.New("model is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool runner is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator runs chat turns. It is stateless across requests and safe for
// concurrent use.
type Orchestrator struct {
	model   Model
	tools   ToolRunner
	prompts PromptSource
	logger  log.Logger

	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	return &Orchestrator{
		model:   cfg.Model,
		tools:   cfg.Tools,
		prompts: cfg.Prompts,
		logger:  cfg.Logger,
		retry:   retry,
		breaker: NewCircuitBreaker(cfg.Breaker),
		limiter: cfg.Limiter,
	}, nil
}

// Chat starts one chat turn and returns its event stream. Validation errors
// (empty message, unknown tool id) are returned synchronously; everything
// after that arrives on the channel, which carries zero or more deltas
// followed by exactly one Done or Error and is then closed. Canceling ctx
// stops the producer.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (<-chan Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	for _, id := range req.Tools {
		if !o.tools.Has(id) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, id)
		}
	}

	events := make(chan Event, eventBuffer)
	go o.run(ctx, req, events)
	return events, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	defer close(events)

	results := o.runTools(ctx, req)
	system := o.systemMessage(ctx)
	promptText := buildPrompt(req.Message, results)

	text, err := o.generate(ctx, system, promptText, func(cbCtx context.Context, delta string) error {
		if delta == "" {
			return nil
		}
		if !o.emit(ctx, events, Event{Type: EventDelta, Delta: delta}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		o.emit(ctx, events, Event{Type: EventError, Err: err})
		return
	}
	o.emit(ctx, events, Event{Type: EventDone, Text: text})
}

// emit sends unless the request context is gone. A false return means the
// consumer is no longer listening.
func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// runTools executes the requested tools concurrently. Results keep the
// request order regardless of completion order, and a failed tool never
// aborts the turn: its result carries the error and is summarized as
// unavailable.
func (o *Orchestrator) runTools(ctx context.Context, req Request) []tools.Result {
	if len(req.Tools) == 0 {
		return nil
	}

	results := make([]tools.Result, len(req.Tools))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(toolConcurrency)
	for i, id := range req.Tools {
		g.Go(func() error {
			results[i] = o.tools.RunForMessage(gctx, id, req.Message)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Status != tools.StatusSuccess {
			o.logger.Warn("tool unavailable for chat turn",
				"tool", r.ToolID, "kind", r.Err.Kind)
		}
	}
	return results
}

func (o *Orchestrator) systemMessage(ctx context.Context) string {
	if o.prompts == nil {
		return prompt.DefaultSystemMessage
	}
	m, err := o.prompts.Active(ctx)
	if errors.Is(err, prompt.ErrNoActive) {
		return prompt.DefaultSystemMessage
	}
	if err != nil {
		o.logger.Warn("fetching active system message", "error", err)
		return prompt.DefaultSystemMessage
	}
	return m.Message
}

// buildPrompt folds tool summaries into a context block ahead of the user
// message. Without tools the message passes through unchanged.
func buildPrompt(message string, results []tools.Result) string {
	if len(results) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("Tool results:\n\n")
	for _, r := range results {
		b.WriteString(r.Summary())
		b.WriteString("\n\n")
	}
	b.WriteString("User message: ")
	b.WriteString(message)
	return b.String()
}

func (o *Orchestrator) generate(ctx context.Context, system, promptText string, onDelta func(context.Context, string) error) (string, error) {
	if err := o.breaker.Allow(); err != nil {
		o.logger.Warn("rejecting chat turn", "circuit", o.breaker.State().String())
		return "", fmt.Errorf("model unavailable: %w", err)
	}

	text, err := o.generateWithRetry(ctx, system, promptText, onDelta)
	if err != nil {
		o.breaker.Failure()
		return "", err
	}
	o.breaker.Success()
	return text, nil
}
