package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/vectorstore"
)

const (
	docSearchTimeout          = 15 * time.Second
	docSearchDefaultK         = 5
	docSearchDefaultThreshold = 0.5
)

// Searcher is the vector index surface document search needs.
type Searcher interface {
	Query(ctx context.Context, embedding []float32, opts ...vectorstore.QueryOption) ([]vectorstore.Match, error)
}

// DocumentSearchInput is the input document for the document-search tool.
type DocumentSearchInput struct {
	Query      string   `json:"query" jsonschema:"Search query text"`
	K          int      `json:"k,omitempty" jsonschema:"Number of chunks to return (1-20, default 5)"`
	Threshold  *float64 `json:"threshold,omitempty" jsonschema:"Minimum similarity in [0,1] (default 0.5)"`
	DocumentID string   `json:"document_id,omitempty" jsonschema:"Restrict search to one document"`
}

// DocumentSearchOutput is the document-search result payload.
type DocumentSearchOutput struct {
	Query   string                `json:"query"`
	Matches []DocumentSearchMatch `json:"matches"`
}

// DocumentSearchMatch is one retrieved chunk.
type DocumentSearchMatch struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float32           `json:"similarity"`
}

// DocumentSearch retrieves relevant chunks from the vector index.
type DocumentSearch struct {
	embedder ai.Embedder
	index    Searcher
	schema   *jsonschema.Schema
}

// NewDocumentSearch creates the document-search executor.
func NewDocumentSearch(embedder ai.Embedder, index Searcher) (*DocumentSearch, error) {
	schema, err := jsonschema.For[DocumentSearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("document-search schema: %w", err)
	}
	return &DocumentSearch{embedder: embedder, index: index, schema: schema}, nil
}

func (*DocumentSearch) Name() string { return ToolDocumentSearch }

func (*DocumentSearch) Description() string {
	return "Searches the internal document knowledge base for relevant passages."
}

func (d *DocumentSearch) InputSchema() *jsonschema.Schema { return d.schema }

func (*DocumentSearch) Timeout() time.Duration { return docSearchTimeout }

func (*DocumentSearch) FromMessage(message string) any {
	return DocumentSearchInput{Query: message}
}

func (d *DocumentSearch) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var in DocumentSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.Query == "" {
		return nil, NewToolError(KindInvalidInput, "query is required")
	}
	if in.K < 1 {
		in.K = docSearchDefaultK
	}
	threshold := float32(docSearchDefaultThreshold)
	if in.Threshold != nil {
		threshold = float32(*in.Threshold)
	}

	embedding, err := d.embed(ctx, in.Query)
	if err != nil {
		return nil, NewToolError(KindUpstreamFailure, "embedding query: %v", err)
	}

	// The store clamps k to its maximum and the threshold to [0,1].
	opts := []vectorstore.QueryOption{
		vectorstore.WithTopK(in.K),
		vectorstore.WithThreshold(threshold),
	}
	if in.DocumentID != "" {
		opts = append(opts, vectorstore.WithFilter("document_id", in.DocumentID))
	}

	matches, err := d.index.Query(ctx, embedding, opts...)
	if err != nil {
		return nil, NewToolError(KindUpstreamFailure, "vector search: %v", err)
	}

	out := DocumentSearchOutput{Query: in.Query, Matches: make([]DocumentSearchMatch, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, DocumentSearchMatch{
			ID:         m.ID,
			Content:    m.Content,
			Metadata:   m.Metadata,
			Similarity: m.Similarity,
		})
	}
	return out, nil
}

func (d *DocumentSearch) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := d.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
