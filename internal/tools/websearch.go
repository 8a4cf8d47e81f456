package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/config"
)

// Web search bounds.
const (
	webSearchDefaultResults = 5
	webSearchMaxResults     = 10
	webSearchTimeout        = 15 * time.Second
)

// WebSearchInput is the input document for the web-search tool.
type WebSearchInput struct {
	Query       string `json:"query" jsonschema:"Search query text"`
	MaxResults  int    `json:"max_results,omitempty" jsonschema:"Maximum results to return (1-10, default 5)"`
	SearchDepth string `json:"search_depth,omitempty" jsonschema:"Search depth: basic or advanced"`
}

// WebSearchOutput is the web-search result payload.
type WebSearchOutput struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer,omitempty"`
	Results []WebSearchResult `json:"results"`
}

// WebSearchResult is one search hit.
type WebSearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// WebSearch queries a Tavily-style JSON search API.
type WebSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
	schema  *jsonschema.Schema
}

// NewWebSearch creates the web-search executor. A nil client uses
// http.DefaultClient; per-call deadlines come from the registry timeout.
func NewWebSearch(cfg config.TavilyConfig, client *http.Client) (*WebSearch, error) {
	if client == nil {
		client = http.DefaultClient
	}
	schema, err := jsonschema.For[WebSearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("web-search schema: %w", err)
	}
	return &WebSearch{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  client,
		schema:  schema,
	}, nil
}

func (*WebSearch) Name() string { return ToolWebSearch }

func (*WebSearch) Description() string {
	return "Searches the web for current market trends, news, and commercial real estate information."
}

func (w *WebSearch) InputSchema() *jsonschema.Schema { return w.schema }

func (*WebSearch) Timeout() time.Duration { return webSearchTimeout }

func (*WebSearch) FromMessage(message string) any {
	return WebSearchInput{Query: message}
}

func (w *WebSearch) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var in WebSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.MaxResults < 1 {
		in.MaxResults = webSearchDefaultResults
	}
	if in.MaxResults > webSearchMaxResults {
		in.MaxResults = webSearchMaxResults
	}
	if in.SearchDepth == "" {
		in.SearchDepth = "basic"
	}

	body, err := json.Marshal(map[string]any{
		"api_key":        w.apiKey,
		"query":          in.Query,
		"max_results":    in.MaxResults,
		"search_depth":   in.SearchDepth,
		"include_answer": true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, NewToolError(KindUpstreamFailure, "search request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewToolError(KindUpstreamFailure, "search API returned %d: %s", resp.StatusCode, snippet)
	}

	var apiResp struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, NewToolError(KindUpstreamFailure, "decoding search response: %v", err)
	}

	out := WebSearchOutput{Query: in.Query, Answer: apiResp.Answer}
	for _, r := range apiResp.Results {
		out.Results = append(out.Results, WebSearchResult(r))
	}
	return out, nil
}
