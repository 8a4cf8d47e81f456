package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

const computeTimeout = 5 * time.Second

// MarketAnalysisInput drives the market-analysis tool. With an Operation it
// runs one metric calculation; without, it composes a full market analysis.
type MarketAnalysisInput struct {
	MarketArea   string             `json:"market_area" jsonschema:"Geographic area to analyze, e.g. Manhattan, NY"`
	PropertyType string             `json:"property_type,omitempty" jsonschema:"Commercial property type, e.g. office, retail, industrial"`
	Timeframe    string             `json:"timeframe,omitempty" jsonschema:"Analysis timeframe (default 12 months)"`
	Operation    string             `json:"operation,omitempty" jsonschema:"Metric calculation: vacancy_rate, absorption_rate, or rent_growth"`
	Values       map[string]float64 `json:"values,omitempty" jsonschema:"Numeric inputs for the selected metric calculation"`
}

// MarketAnalysis composes market condition analyses and calculates market
// metrics.
type MarketAnalysis struct {
	schema *jsonschema.Schema
}

// NewMarketAnalysis creates the market-analysis executor.
func NewMarketAnalysis() (*MarketAnalysis, error) {
	schema, err := jsonschema.For[MarketAnalysisInput](nil)
	if err != nil {
		return nil, fmt.Errorf("market-analysis schema: %w", err)
	}
	return &MarketAnalysis{schema: schema}, nil
}

func (*MarketAnalysis) Name() string { return ToolMarketAnalysis }

func (*MarketAnalysis) Description() string {
	return "Analyzes commercial real estate market conditions: vacancy, absorption, rent growth, trends, and opportunities for an area and property type."
}

func (m *MarketAnalysis) InputSchema() *jsonschema.Schema { return m.schema }

func (*MarketAnalysis) Timeout() time.Duration { return computeTimeout }

func (*MarketAnalysis) FromMessage(message string) any {
	return MarketAnalysisInput{MarketArea: message, PropertyType: "commercial"}
}

func (m *MarketAnalysis) Execute(_ context.Context, input json.RawMessage) (any, error) {
	var in MarketAnalysisInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.MarketArea == "" {
		return nil, NewToolError(KindInvalidInput, "market_area is required")
	}
	if in.PropertyType == "" {
		in.PropertyType = "commercial"
	}
	if in.Timeframe == "" {
		in.Timeframe = "12 months"
	}

	if in.Operation != "" {
		return m.calculate(in.Operation, in.Values)
	}

	return map[string]any{
		"market_area":   in.MarketArea,
		"property_type": in.PropertyType,
		"timeframe":     in.Timeframe,
		"market_overview": map[string]any{
			"market_phase":     "Growth",
			"market_stability": "High",
			"key_drivers":      []string{"Strong job market", "Population growth", "Infrastructure development"},
		},
		"market_metrics": map[string]any{
			"vacancy_rate":       "5.2%",
			"absorption_rate":    "Positive",
			"average_lease_rate": "$25/sq ft/year",
			"cap_rate":           "6.5%",
		},
		"trends": map[string]any{
			"price_trend":       "Upward",
			"vacancy_trend":     "Decreasing",
			"demand_indicators": "Strong",
			"rent_growth":       "3.5% annually",
		},
		"competitive_analysis": map[string]any{
			"competition_level": "Moderate",
			"barriers_to_entry": "High",
			"major_players":     []string{"Local REIT holdings", "Institutional investors", "Private equity firms"},
		},
		"opportunities_and_risks": map[string]any{
			"opportunities":  []string{"Growing demand in tech sector", "Redevelopment potential in submarkets", "Strong rental growth prospects"},
			"risks":          []string{"Potential interest rate increases", "New supply in pipeline", "Economic uncertainty"},
			"recommendation": "Market conditions favorable for investment",
		},
	}, nil
}

func (*MarketAnalysis) calculate(operation string, values map[string]float64) (any, error) {
	switch operation {
	case "vacancy_rate":
		total := values["total_space"]
		if total == 0 {
			return nil, NewToolError(KindInvalidInput, "total_space cannot be zero")
		}
		vacant := values["vacant_space"]
		return map[string]any{
			"vacancy_rate": round2(vacant / total * 100),
			"vacant_space": vacant,
			"total_space":  total,
		}, nil

	case "absorption_rate":
		period := values["time_period"]
		if period == 0 {
			period = 12
		}
		net := values["space_leased"] - values["space_vacated"]
		return map[string]any{
			"net_absorption":     round2(net),
			"monthly_absorption": round2(net / period),
			"time_period":        period,
		}, nil

	case "rent_growth":
		initial := values["initial_rent"]
		if initial == 0 {
			return nil, NewToolError(KindInvalidInput, "initial_rent cannot be zero")
		}
		final := values["final_rent"]
		return map[string]any{
			"rent_growth_rate": round2((final - initial) / initial * 100),
			"initial_rent":     initial,
			"final_rent":       final,
		}, nil

	default:
		return nil, NewToolError(KindInvalidInput, "unsupported operation %q", operation)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
