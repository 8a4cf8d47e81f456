package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/agent"
	"github.com/crepilot/crepilot/internal/document"
	"github.com/crepilot/crepilot/internal/log"
	"github.com/crepilot/crepilot/internal/prompt"
	"github.com/crepilot/crepilot/internal/tools"
)

// fakeChatter replays scripted events or fails synchronously.
type fakeChatter struct {
	events []agent.Event
	err    error
}

func (f *fakeChatter) Chat(_ context.Context, req agent.Request) (<-chan agent.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan agent.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// fakeExecutor satisfies tools.Executor for listing.
type fakeExecutor struct {
	name, desc string
}

func (f *fakeExecutor) Name() string                             { return f.name }
func (f *fakeExecutor) Description() string                      { return f.desc }
func (*fakeExecutor) InputSchema() *jsonschema.Schema            { return &jsonschema.Schema{} }
func (*fakeExecutor) Timeout() time.Duration                     { return time.Second }
func (*fakeExecutor) FromMessage(string) any                     { return nil }
func (*fakeExecutor) Execute(context.Context, json.RawMessage) (any, error) {
	return nil, nil
}

// fakeToolRunner serves canned results.
type fakeToolRunner struct {
	execs   map[string]*fakeExecutor
	results map[string]tools.Result
}

func (f *fakeToolRunner) IDs() []string {
	ids := make([]string, 0, len(f.execs))
	for id := range f.execs {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeToolRunner) Get(name string) (tools.Executor, bool) {
	e, ok := f.execs[name]
	return e, ok
}

func (f *fakeToolRunner) Run(_ context.Context, name string, _ json.RawMessage) tools.Result {
	if r, ok := f.results[name]; ok {
		r.ToolID = name
		return r
	}
	return tools.Result{
		ToolID: name,
		Status: tools.StatusError,
		Err:    tools.NewToolError(tools.KindNotFound, "unknown tool"),
	}
}

// fakeDocs is an in-memory document store.
type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]document.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]document.Document)}
}

func (f *fakeDocs) Create(_ context.Context, d document.Document) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.CreatedAt = time.Now()
	f.docs[d.ID] = d
	return d, nil
}

func (f *fakeDocs) Get(_ context.Context, id string) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	return d, nil
}

func (f *fakeDocs) List(_ context.Context) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]document.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

// fakePipeline records ingest and remove calls.
type fakePipeline struct {
	mu        sync.Mutex
	ingested  []string
	removed   []string
	ingestErr error
	removeErr error
}

func (f *fakePipeline) Ingest(_ context.Context, docID, _ string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, docID)
	return f.ingestErr
}

func (f *fakePipeline) Remove(_ context.Context, docID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, docID)
	return nil
}

// fakePrompts holds at most one active message.
type fakePrompts struct {
	active *prompt.Message
}

func (f *fakePrompts) Active(_ context.Context) (prompt.Message, error) {
	if f.active == nil {
		return prompt.Message{}, prompt.ErrNoActive
	}
	return *f.active, nil
}

func (f *fakePrompts) Set(_ context.Context, content string) (prompt.Message, error) {
	m := prompt.Message{ID: "msg-1", Message: content, IsActive: true}
	f.active = &m
	return m, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type serverFixture struct {
	server   *Server
	chat     *fakeChatter
	runner   *fakeToolRunner
	docs     *fakeDocs
	pipeline *fakePipeline
	prompts  *fakePrompts
	pinger   *fakePinger
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		chat: &fakeChatter{},
		runner: &fakeToolRunner{
			execs:   map[string]*fakeExecutor{"web-search": {name: "web-search", desc: "searches the web"}},
			results: map[string]tools.Result{},
		},
		docs:    newFakeDocs(),
		prompts: &fakePrompts{},
		pinger:  &fakePinger{},
	}
	f.pipeline = &fakePipeline{}

	srv, err := NewServer(Config{
		Chat:      f.chat,
		Tools:     f.runner,
		Documents: f.docs,
		Pipeline:  f.pipeline,
		Prompts:   f.prompts,
		DB:        f.pinger,
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.server = srv
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestChatStreamsSSE(t *testing.T) {
	f := newFixture(t)
	f.chat.events = []agent.Event{
		{Type: agent.EventDelta, Delta: "NOI is "},
		{Type: agent.EventDelta, Delta: "$500k."},
		{Type: agent.EventDone, Text: "NOI is $500k."},
	}

	rec := f.do(t, http.MethodPost, "/chat", agent.Request{Message: "What is the NOI?"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	want := "data: NOI is \n\ndata: $500k.\n\ndata: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("body = %q, want %q", got, want)
	}
}

func TestChatStreamError(t *testing.T) {
	f := newFixture(t)
	f.chat.events = []agent.Event{
		{Type: agent.EventDelta, Delta: "partial"},
		{Type: agent.EventError, Err: errors.New("model unavailable")},
	}

	rec := f.do(t, http.MethodPost, "/chat", agent.Request{Message: "hi"})
	if !strings.Contains(rec.Body.String(), "data: ERROR:model unavailable\n\n") {
		t.Fatalf("body = %q, want ERROR frame", rec.Body.String())
	}
}

func TestChatValidationErrors(t *testing.T) {
	f := newFixture(t)

	f.chat.err = agent.ErrEmptyMessage
	rec := f.do(t, http.MethodPost, "/chat", agent.Request{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", rec.Code)
	}

	f.chat.err = fmt.Errorf("%w: %q", agent.ErrUnknownTool, "nope")
	rec = f.do(t, http.MethodPost, "/chat", agent.Request{Message: "hi", Tools: []string{"nope"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown tool status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("validation errors must be JSON, got %q", ct)
	}
}

func TestListTools(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/tools", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Tools []toolInfo `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Tools) != 1 || body.Tools[0].Name != "web-search" {
		t.Fatalf("tools = %+v", body.Tools)
	}
}

func TestRunToolStatusMapping(t *testing.T) {
	f := newFixture(t)
	f.runner.results["ok"] = tools.Result{Status: tools.StatusSuccess, Data: map[string]any{"x": 1}}
	f.runner.results["bad-input"] = tools.Result{Status: tools.StatusError, Err: tools.NewToolError(tools.KindInvalidInput, "bad")}
	f.runner.results["slow"] = tools.Result{Status: tools.StatusError, Err: tools.NewToolError(tools.KindTimeout, "slow")}
	f.runner.results["down"] = tools.Result{Status: tools.StatusError, Err: tools.NewToolError(tools.KindUpstreamFailure, "down")}

	tests := []struct {
		tool string
		want int
	}{
		{"ok", http.StatusOK},
		{"bad-input", http.StatusBadRequest},
		{"slow", http.StatusGatewayTimeout},
		{"down", http.StatusBadGateway},
		{"missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/tools/"+tt.tool, map[string]any{})
		if rec.Code != tt.want {
			t.Errorf("POST /tools/%s status = %d, want %d", tt.tool, rec.Code, tt.want)
		}
	}
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, uploadRequest(t, "lease.txt", []byte("lease terms")))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var doc document.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Status != document.StatusPending || doc.Filename != "lease.txt" {
		t.Fatalf("doc = %+v", doc)
	}

	f.server.Wait()
	if len(f.pipeline.ingested) != 1 || f.pipeline.ingested[0] != doc.ID {
		t.Fatalf("ingested = %v, want background ingest of %s", f.pipeline.ingested, doc.ID)
	}
}

func TestUploadAcceptedEvenWhenIngestionFails(t *testing.T) {
	f := newFixture(t)
	f.pipeline.ingestErr = errors.New("unsupported document format")

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, uploadRequest(t, "numbers.exe", []byte("binary")))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; failures surface via document status", rec.Code)
	}
	f.server.Wait()
	if len(f.pipeline.ingested) != 1 {
		t.Fatal("upload must reach the pipeline, which decides the outcome")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/admin/documents/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)
	doc, _ := f.docs.Create(context.Background(), document.Document{ID: "doc1", Filename: "a.txt"})

	rec := f.do(t, http.MethodDelete, "/admin/documents/"+doc.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(f.pipeline.removed) != 1 || f.pipeline.removed[0] != doc.ID {
		t.Fatalf("removed = %v", f.pipeline.removed)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	f := newFixture(t)
	f.pipeline.removeErr = fmt.Errorf("%w: nope", document.ErrNotFound)

	rec := f.do(t, http.MethodDelete, "/admin/documents/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSystemMessageDefaultAndUpdate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/system-message", nil)
	var got systemMessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Default || got.Message != prompt.DefaultSystemMessage {
		t.Fatalf("response = %+v, want compiled-in default", got)
	}

	rec = f.do(t, http.MethodPut, "/admin/system-message", map[string]string{"message": "Be terse."})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/admin/system-message", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Default || got.Message != "Be terse." {
		t.Fatalf("response = %+v, want stored message", got)
	}
}

func TestSetSystemMessageRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/admin/system-message", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f.pinger.err = errors.New("connection refused")
	rec = f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := log.NewNop()
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(logger)(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
