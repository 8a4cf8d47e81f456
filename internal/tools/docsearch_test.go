package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/crepilot/crepilot/internal/vectorstore"
)

// stubEmbedder implements ai.Embedder for testing.
type stubEmbedder struct {
	embedErr error
}

func (*stubEmbedder) Name() string { return "stub-embedder" }

func (*stubEmbedder) Register(_ api.Registry) {}

func (s *stubEmbedder) Embed(_ context.Context, _ *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

// stubSearcher records what Query receives and returns canned matches.
type stubSearcher struct {
	gotEmbedding []float32
	gotOpts      int
	matches      []vectorstore.Match
	queryErr     error
}

func (s *stubSearcher) Query(_ context.Context, embedding []float32, opts ...vectorstore.QueryOption) ([]vectorstore.Match, error) {
	s.gotEmbedding = embedding
	s.gotOpts = len(opts)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func TestDocumentSearchExecute(t *testing.T) {
	searcher := &stubSearcher{matches: []vectorstore.Match{
		{ID: "doc1_chunk_0", Content: "lease terms", Metadata: map[string]string{"document_id": "doc1"}, Similarity: 0.87},
	}}
	exec, err := NewDocumentSearch(&stubEmbedder{}, searcher)
	if err != nil {
		t.Fatal(err)
	}

	out, err := exec.Execute(context.Background(), json.RawMessage(`{"query":"lease escalation clauses"}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(searcher.gotEmbedding) != 3 {
		t.Errorf("query embedding not forwarded: %v", searcher.gotEmbedding)
	}
	// Defaults forward top-k and threshold options, no filter.
	if searcher.gotOpts != 2 {
		t.Errorf("option count = %d, want 2", searcher.gotOpts)
	}

	result := out.(DocumentSearchOutput)
	if result.Query != "lease escalation clauses" {
		t.Errorf("query = %q", result.Query)
	}
	if len(result.Matches) != 1 || result.Matches[0].Similarity != 0.87 {
		t.Fatalf("matches = %+v", result.Matches)
	}
	if result.Matches[0].Metadata["document_id"] != "doc1" {
		t.Errorf("metadata = %v", result.Matches[0].Metadata)
	}
}

func TestDocumentSearchScopedToDocument(t *testing.T) {
	searcher := &stubSearcher{}
	exec, _ := NewDocumentSearch(&stubEmbedder{}, searcher)

	_, err := exec.Execute(context.Background(), json.RawMessage(`{"query":"noi","document_id":"doc42"}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if searcher.gotOpts != 3 {
		t.Fatalf("option count = %d, want document filter appended", searcher.gotOpts)
	}
}

func TestDocumentSearchRequiresQuery(t *testing.T) {
	exec, _ := NewDocumentSearch(&stubEmbedder{}, &stubSearcher{})
	_, err := exec.Execute(context.Background(), json.RawMessage(`{"query":""}`))

	var terr *ToolError
	if !errors.As(err, &terr) || terr.Kind != KindInvalidInput {
		t.Fatalf("Execute() error = %v, want InvalidInput", err)
	}
}

func TestDocumentSearchEmbedFailure(t *testing.T) {
	exec, _ := NewDocumentSearch(&stubEmbedder{embedErr: errors.New("quota exceeded")}, &stubSearcher{})
	_, err := exec.Execute(context.Background(), json.RawMessage(`{"query":"cap rates"}`))

	var terr *ToolError
	if !errors.As(err, &terr) || terr.Kind != KindUpstreamFailure {
		t.Fatalf("Execute() error = %v, want UpstreamFailure", err)
	}
}

func TestDocumentSearchIndexFailure(t *testing.T) {
	exec, _ := NewDocumentSearch(&stubEmbedder{}, &stubSearcher{queryErr: errors.New("connection reset")})
	_, err := exec.Execute(context.Background(), json.RawMessage(`{"query":"cap rates"}`))

	var terr *ToolError
	if !errors.As(err, &terr) || terr.Kind != KindUpstreamFailure {
		t.Fatalf("Execute() error = %v, want UpstreamFailure", err)
	}
}
