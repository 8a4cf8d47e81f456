package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/log"
)

// Executor is one tool implementation. Input arrives as raw JSON that has
// already been validated against InputSchema when called through the
// Registry.
type Executor interface {
	// Name returns the stable tool identifier.
	Name() string

	// Description is shown to API consumers listing the tools.
	Description() string

	// InputSchema describes and constrains the input document.
	InputSchema() *jsonschema.Schema

	// Timeout bounds one execution.
	Timeout() time.Duration

	// FromMessage builds a best-effort input from a free-form chat
	// message, used when the orchestrator invokes the tool without
	// explicit arguments.
	FromMessage(message string) any

	// Execute runs the tool.
	Execute(ctx context.Context, input json.RawMessage) (any, error)
}

type registration struct {
	exec     Executor
	resolved *jsonschema.Resolved
}

// Registry holds the registered executors and runs them with input
// validation and timeout enforcement. Registration happens at startup;
// afterwards the registry is read-only and safe for concurrent use.
type Registry struct {
	entries map[string]*registration
	logger  log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*registration),
		logger:  logger,
	}
}

// Register adds an executor, resolving its input schema once.
func (r *Registry) Register(exec Executor) error {
	name := exec.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	resolved, err := exec.InputSchema().Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolving schema for %q: %w", name, err)
	}
	r.entries[name] = &registration{exec: exec, resolved: resolved}
	return nil
}

// Has reports whether a tool id is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Get returns the executor for a tool id.
func (r *Registry) Get(name string) (Executor, bool) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return reg.exec, true
}

// IDs returns the registered tool ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run executes one tool. It always returns a Result: unknown id, invalid
// input, timeout, and executor failure all produce an error Result with the
// matching kind. A failure here never escapes as a panic or a bare error.
func (r *Registry) Run(ctx context.Context, name string, input json.RawMessage) Result {
	start := time.Now()
	reg, ok := r.entries[name]
	if !ok {
		return Result{
			ToolID:   name,
			Status:   StatusError,
			Err:      NewToolError(KindNotFound, "unknown tool %q", name),
			Duration: time.Since(start),
		}
	}

	// Validate before executing; an invalid document never reaches the
	// executor.
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	var instance any
	if err := json.Unmarshal(input, &instance); err != nil {
		return r.errResult(name, start, NewToolError(KindInvalidInput, "input is not valid JSON: %v", err))
	}
	if err := reg.resolved.Validate(instance); err != nil {
		return r.errResult(name, start, NewToolError(KindInvalidInput, "input rejected by schema: %v", err))
	}

	execCtx, cancel := context.WithTimeout(ctx, reg.exec.Timeout())
	defer cancel()

	type outcome struct {
		data any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		data, err := reg.exec.Execute(execCtx, input)
		done <- outcome{data: data, err: err}
	}()

	select {
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return r.errResult(name, start, NewToolError(KindTimeout, "tool exceeded %s", reg.exec.Timeout()))
		}
		return r.errResult(name, start, NewToolError(KindUpstreamFailure, "canceled: %v", execCtx.Err()))
	case out := <-done:
		if out.err != nil {
			return r.errResult(name, start, asToolError(out.err))
		}
		r.logger.Debug("tool executed", "tool", name, "duration", time.Since(start))
		return Result{
			ToolID:   name,
			Status:   StatusSuccess,
			Data:     out.data,
			Duration: time.Since(start),
		}
	}
}

// RunForMessage derives the tool input from a free-form chat message via the
// executor's FromMessage and then executes it like Run.
func (r *Registry) RunForMessage(ctx context.Context, name, message string) Result {
	reg, ok := r.entries[name]
	if !ok {
		return Result{
			ToolID: name,
			Status: StatusError,
			Err:    NewToolError(KindNotFound, "unknown tool %q", name),
		}
	}
	input, err := json.Marshal(reg.exec.FromMessage(message))
	if err != nil {
		return r.errResult(name, time.Now(), NewToolError(KindInvalidInput, "building input from message: %v", err))
	}
	return r.Run(ctx, name, input)
}

func (r *Registry) errResult(name string, start time.Time, terr *ToolError) Result {
	r.logger.Warn("tool failed", "tool", name, "kind", terr.Kind, "error", terr.Message)
	return Result{
		ToolID:   name,
		Status:   StatusError,
		Err:      terr,
		Duration: time.Since(start),
	}
}

// asToolError keeps typed tool errors intact and classifies everything else
// as an upstream failure.
func asToolError(err error) *ToolError {
	var terr *ToolError
	if errors.As(err, &terr) {
		return terr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewToolError(KindTimeout, "%v", err)
	}
	return NewToolError(KindUpstreamFailure, "%v", err)
}
