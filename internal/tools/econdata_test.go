package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/crepilot/crepilot/internal/config"
)

func TestEconomicDataExecute(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/observations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"observations": []map[string]string{
				{"date": "2025-06-01", "value": "27360.9"},
				{"date": "2025-07-01", "value": "."},
				{"date": "2025-08-01", "value": "27510.2"},
			},
		})
	}))
	defer srv.Close()

	exec, err := NewEconomicData(config.FREDConfig{APIKey: "fred-key", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	exec.now = func() time.Time { return time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC) }

	out, err := exec.Execute(context.Background(), json.RawMessage(`{"series_id":"GDP"}`))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if gotQuery.Get("series_id") != "GDP" {
		t.Errorf("series_id = %q", gotQuery.Get("series_id"))
	}
	if gotQuery.Get("api_key") != "fred-key" {
		t.Errorf("api_key = %q", gotQuery.Get("api_key"))
	}
	if gotQuery.Get("file_type") != "json" {
		t.Errorf("file_type = %q", gotQuery.Get("file_type"))
	}
	if gotQuery.Get("units") != "lin" {
		t.Errorf("units default = %q", gotQuery.Get("units"))
	}
	if gotQuery.Get("observation_end") != "2025-08-20" {
		t.Errorf("observation_end = %q, want today", gotQuery.Get("observation_end"))
	}
	if gotQuery.Get("observation_start") != "2024-08-20" {
		t.Errorf("observation_start = %q, want one year back", gotQuery.Get("observation_start"))
	}

	result := out.(EconomicDataOutput)
	if result.Count != 2 || len(result.Observations) != 2 {
		t.Fatalf("observations = %+v, want missing \".\" value skipped", result.Observations)
	}
	if result.Observations[1].Value != 27510.2 {
		t.Errorf("value = %v", result.Observations[1].Value)
	}
}

func TestEconomicDataRequiresSeries(t *testing.T) {
	exec, _ := NewEconomicData(config.FREDConfig{BaseURL: "http://unused"}, nil)
	_, err := exec.Execute(context.Background(), json.RawMessage(`{}`))

	var terr *ToolError
	if !errors.As(err, &terr) || terr.Kind != KindInvalidInput {
		t.Fatalf("Execute() error = %v, want InvalidInput", err)
	}
}

func TestEconomicDataUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	exec, _ := NewEconomicData(config.FREDConfig{BaseURL: srv.URL}, srv.Client())
	_, err := exec.Execute(context.Background(), json.RawMessage(`{"series_id":"CPIAUCSL"}`))

	var terr *ToolError
	if !errors.As(err, &terr) || terr.Kind != KindUpstreamFailure {
		t.Fatalf("Execute() error = %v, want UpstreamFailure", err)
	}
}
