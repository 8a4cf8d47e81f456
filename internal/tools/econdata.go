package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/crepilot/crepilot/internal/config"
)

const (
	econDataTimeout  = 15 * time.Second
	econDefaultUnits = "lin"
	fredDateLayout   = "2006-01-02"
)

// EconomicDataInput selects a FRED series and observation window.
type EconomicDataInput struct {
	SeriesID  string `json:"series_id" jsonschema:"FRED series identifier, e.g. GDP, CPIAUCSL, MORTGAGE30US"`
	StartDate string `json:"start_date,omitempty" jsonschema:"Observation start date YYYY-MM-DD (default one year ago)"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"Observation end date YYYY-MM-DD (default today)"`
	Units     string `json:"units,omitempty" jsonschema:"FRED units transformation (default lin)"`
}

// Observation is one dated series value.
type Observation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// EconomicDataOutput is the economic-data result payload.
type EconomicDataOutput struct {
	SeriesID     string        `json:"series_id"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	Units        string        `json:"units"`
	Count        int           `json:"count"`
	Observations []Observation `json:"observations"`
}

// EconomicData fetches observations from the FRED API.
type EconomicData struct {
	apiKey  string
	baseURL string
	client  *http.Client
	schema  *jsonschema.Schema
	now     func() time.Time
}

// NewEconomicData creates the economic-data executor.
func NewEconomicData(cfg config.FREDConfig, client *http.Client) (*EconomicData, error) {
	if client == nil {
		client = http.DefaultClient
	}
	schema, err := jsonschema.For[EconomicDataInput](nil)
	if err != nil {
		return nil, fmt.Errorf("economic-data schema: %w", err)
	}
	return &EconomicData{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  client,
		schema:  schema,
		now:     time.Now,
	}, nil
}

func (*EconomicData) Name() string { return ToolEconomicData }

func (*EconomicData) Description() string {
	return "Fetches Federal Reserve economic data series such as GDP, CPI, and mortgage rates."
}

func (e *EconomicData) InputSchema() *jsonschema.Schema { return e.schema }

func (*EconomicData) Timeout() time.Duration { return econDataTimeout }

func (*EconomicData) FromMessage(_ string) any {
	// Without explicit arguments a broad activity indicator is the most
	// useful default for CRE context.
	return EconomicDataInput{SeriesID: "GDP"}
}

func (e *EconomicData) Execute(ctx context.Context, input json.RawMessage) (any, error) {
	var in EconomicDataInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.SeriesID == "" {
		return nil, NewToolError(KindInvalidInput, "series_id is required")
	}
	// Default window is the trailing year.
	if in.EndDate == "" {
		in.EndDate = e.now().Format(fredDateLayout)
	}
	if in.StartDate == "" {
		in.StartDate = e.now().AddDate(-1, 0, 0).Format(fredDateLayout)
	}
	if in.Units == "" {
		in.Units = econDefaultUnits
	}

	q := url.Values{}
	q.Set("series_id", in.SeriesID)
	q.Set("observation_start", in.StartDate)
	q.Set("observation_end", in.EndDate)
	q.Set("units", in.Units)
	q.Set("api_key", e.apiKey)
	q.Set("file_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		e.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, NewToolError(KindUpstreamFailure, "FRED request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewToolError(KindUpstreamFailure, "FRED API returned %d: %s", resp.StatusCode, snippet)
	}

	var apiResp struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, NewToolError(KindUpstreamFailure, "decoding FRED response: %v", err)
	}

	out := EconomicDataOutput{
		SeriesID:  in.SeriesID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Units:     in.Units,
	}
	for _, obs := range apiResp.Observations {
		// FRED encodes missing observations as ".".
		if obs.Value == "." {
			continue
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		out.Observations = append(out.Observations, Observation{Date: obs.Date, Value: v})
	}
	out.Count = len(out.Observations)
	return out, nil
}
