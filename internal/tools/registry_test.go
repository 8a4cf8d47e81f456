package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/log"
)

// stubInput is the schema for stubExecutor.
type stubInput struct {
	Value string `json:"value" jsonschema:"Required test value"`
}

// stubExecutor is a configurable test tool.
type stubExecutor struct {
	name     string
	timeout  time.Duration
	execErr  error
	delay    time.Duration
	panicMsg string
	called   int
}

func (s *stubExecutor) Name() string        { return s.name }
func (*stubExecutor) Description() string   { return "test tool" }
func (s *stubExecutor) InputSchema() *jsonschema.Schema {
	schema, err := jsonschema.For[stubInput](nil)
	if err != nil {
		panic(err)
	}
	return schema
}

func (s *stubExecutor) Timeout() time.Duration {
	if s.timeout > 0 {
		return s.timeout
	}
	return time.Second
}

func (*stubExecutor) FromMessage(message string) any {
	return stubInput{Value: message}
}

func (s *stubExecutor) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	s.called++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.execErr != nil {
		return nil, s.execErr
	}
	var in stubInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	return map[string]string{"echo": in.Value}, nil
}

func newTestRegistry(t *testing.T, execs ...Executor) *Registry {
	t.Helper()
	r := NewRegistry(log.NewNop())
	for _, e := range execs {
		if err := r.Register(e); err != nil {
			t.Fatalf("Register(%s) error: %v", e.Name(), err)
		}
	}
	return r
}

func TestRunSuccess(t *testing.T) {
	stub := &stubExecutor{name: "stub"}
	r := newTestRegistry(t, stub)

	res := r.Run(context.Background(), "stub", json.RawMessage(`{"value":"hello"}`))
	if res.Status != StatusSuccess {
		t.Fatalf("Run() status = %q, err = %v", res.Status, res.Err)
	}
	if res.ToolID != "stub" {
		t.Fatalf("Run() tool id = %q", res.ToolID)
	}
	if res.Err != nil {
		t.Fatalf("success result carries error: %v", res.Err)
	}
	if res.Duration <= 0 {
		t.Fatal("duration not recorded")
	}
}

func TestRunUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Run(context.Background(), "nope", nil)
	if res.Status != StatusError || res.Err.Kind != KindNotFound {
		t.Fatalf("Run() = %+v, want NotFound error", res)
	}
}

func TestRunInvalidInputDoesNotExecute(t *testing.T) {
	stub := &stubExecutor{name: "stub"}
	r := newTestRegistry(t, stub)

	tests := []struct {
		name  string
		input json.RawMessage
	}{
		{"not json", json.RawMessage(`{{`)},
		{"missing required field", json.RawMessage(`{}`)},
		{"wrong type", json.RawMessage(`{"value":42}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Run(context.Background(), "stub", tt.input)
			if res.Status != StatusError || res.Err.Kind != KindInvalidInput {
				t.Fatalf("Run(%s) = %+v, want InvalidInput error", tt.input, res)
			}
		})
	}
	if stub.called != 0 {
		t.Fatalf("executor ran %d times on invalid input", stub.called)
	}
}

func TestRunTimeout(t *testing.T) {
	stub := &stubExecutor{name: "slow", timeout: 30 * time.Millisecond, delay: time.Second}
	r := newTestRegistry(t, stub)

	res := r.Run(context.Background(), "slow", json.RawMessage(`{"value":"x"}`))
	if res.Status != StatusError || res.Err.Kind != KindTimeout {
		t.Fatalf("Run() = %+v, want Timeout error", res)
	}
}

func TestRunExecutorErrorBecomesUpstreamFailure(t *testing.T) {
	stub := &stubExecutor{name: "broken", execErr: errors.New("backend down")}
	r := newTestRegistry(t, stub)

	res := r.Run(context.Background(), "broken", json.RawMessage(`{"value":"x"}`))
	if res.Status != StatusError || res.Err.Kind != KindUpstreamFailure {
		t.Fatalf("Run() = %+v, want UpstreamFailure error", res)
	}
}

func TestRunPreservesTypedToolError(t *testing.T) {
	stub := &stubExecutor{name: "typed", execErr: NewToolError(KindInvalidInput, "bad field")}
	r := newTestRegistry(t, stub)

	res := r.Run(context.Background(), "typed", json.RawMessage(`{"value":"x"}`))
	if res.Err == nil || res.Err.Kind != KindInvalidInput {
		t.Fatalf("Run() = %+v, want preserved InvalidInput kind", res)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	stub := &stubExecutor{name: "panics", panicMsg: "boom"}
	r := newTestRegistry(t, stub)

	res := r.Run(context.Background(), "panics", json.RawMessage(`{"value":"x"}`))
	if res.Status != StatusError || res.Err.Kind != KindUpstreamFailure {
		t.Fatalf("Run() = %+v, want UpstreamFailure after panic", res)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry(t, &stubExecutor{name: "dup"})
	if err := r.Register(&stubExecutor{name: "dup"}); err == nil {
		t.Fatal("Register() should reject duplicate names")
	}
}

func TestIDsSorted(t *testing.T) {
	r := newTestRegistry(t,
		&stubExecutor{name: "zeta"},
		&stubExecutor{name: "alpha"},
		&stubExecutor{name: "mid"})
	ids := r.IDs()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}

func TestResultSummary(t *testing.T) {
	ok := Result{ToolID: "stub", Status: StatusSuccess, Data: map[string]string{"k": "v"}}
	if s := ok.Summary(); s == "" || s[0] != '[' {
		t.Fatalf("Summary() = %q", s)
	}
	bad := Result{ToolID: "stub", Status: StatusError, Err: NewToolError(KindTimeout, "too slow")}
	if s := bad.Summary(); s != "[stub] unavailable: too slow" {
		t.Fatalf("Summary() = %q", s)
	}
}
