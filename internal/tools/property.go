package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// PropertyAnalysisInput drives the property-analysis tool. With an Operation
// it runs one metric calculation; without, it composes a full property
// analysis.
type PropertyAnalysisInput struct {
	PropertyType string             `json:"property_type,omitempty" jsonschema:"Commercial property type, e.g. office, retail"`
	Location     string             `json:"location" jsonschema:"Property location or address"`
	SquareFeet   float64            `json:"square_feet,omitempty" jsonschema:"Property size in square feet"`
	Price        float64            `json:"price,omitempty" jsonschema:"Asking or purchase price"`
	YearBuilt    int                `json:"year_built,omitempty" jsonschema:"Construction year"`
	Operation    string             `json:"operation,omitempty" jsonschema:"Metric calculation: price_per_sqft, operating_expense_ratio, or dscr"`
	Values       map[string]float64 `json:"values,omitempty" jsonschema:"Numeric inputs for the selected metric calculation"`
}

// PropertyAnalysis composes property analyses and calculates property
// metrics.
type PropertyAnalysis struct {
	schema *jsonschema.Schema
	now    func() time.Time
}

// NewPropertyAnalysis creates the property-analysis executor.
func NewPropertyAnalysis() (*PropertyAnalysis, error) {
	schema, err := jsonschema.For[PropertyAnalysisInput](nil)
	if err != nil {
		return nil, fmt.Errorf("property-analysis schema: %w", err)
	}
	return &PropertyAnalysis{schema: schema, now: time.Now}, nil
}

func (*PropertyAnalysis) Name() string { return ToolPropertyAnalysis }

func (*PropertyAnalysis) Description() string {
	return "Analyzes a commercial property: overview, location, market metrics including price per square foot, condition by age, and recommendations."
}

func (p *PropertyAnalysis) InputSchema() *jsonschema.Schema { return p.schema }

func (*PropertyAnalysis) Timeout() time.Duration { return computeTimeout }

func (*PropertyAnalysis) FromMessage(message string) any {
	return PropertyAnalysisInput{Location: message, PropertyType: "commercial"}
}

func (p *PropertyAnalysis) Execute(_ context.Context, input json.RawMessage) (any, error) {
	var in PropertyAnalysisInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.Location == "" {
		return nil, NewToolError(KindInvalidInput, "location is required")
	}
	if in.PropertyType == "" {
		in.PropertyType = "commercial"
	}

	if in.Operation != "" {
		return p.calculate(in.Operation, in.Values)
	}

	marketMetrics := map[string]any{
		"market_segment":           in.PropertyType,
		"estimated_occupancy_rate": "95%",
	}
	if in.SquareFeet > 0 && in.Price > 0 {
		marketMetrics["price_per_sqft"] = round2(in.Price / in.SquareFeet)
	}

	return map[string]any{
		"property_overview": map[string]any{
			"type":       in.PropertyType,
			"location":   in.Location,
			"size":       in.SquareFeet,
			"price":      in.Price,
			"year_built": in.YearBuilt,
		},
		"location_analysis": map[string]any{
			"accessibility":         "High",
			"market_demand":         "Strong",
			"development_potential": "Moderate",
		},
		"market_metrics":       marketMetrics,
		"condition_assessment": p.assessCondition(in.YearBuilt),
		"recommendations": []string{
			fmt.Sprintf("Consider market trends for %s properties in %s", in.PropertyType, in.Location),
			"Conduct detailed property inspection",
			"Review tenant history and occupancy rates",
			"Analyze potential for value-add improvements",
		},
	}, nil
}

func (p *PropertyAnalysis) assessCondition(yearBuilt int) map[string]any {
	if yearBuilt <= 0 {
		return map[string]any{"condition": "Unknown"}
	}
	age := p.now().Year() - yearBuilt

	var condition string
	switch {
	case age < 5:
		condition = "Excellent"
	case age < 15:
		condition = "Good"
	case age < 30:
		condition = "Fair"
	default:
		condition = "May need renovation"
	}
	return map[string]any{
		"condition":         condition,
		"age":               age,
		"renovation_needed": age > 30,
	}
}

func (*PropertyAnalysis) calculate(operation string, values map[string]float64) (any, error) {
	switch operation {
	case "price_per_sqft":
		sqft := values["square_feet"]
		if sqft == 0 {
			return nil, NewToolError(KindInvalidInput, "square_feet cannot be zero")
		}
		price := values["price"]
		return map[string]any{
			"price_per_sqft": round2(price / sqft),
			"price":          price,
			"square_feet":    sqft,
		}, nil

	case "operating_expense_ratio":
		income := values["gross_operating_income"]
		if income == 0 {
			return nil, NewToolError(KindInvalidInput, "gross_operating_income cannot be zero")
		}
		expenses := values["operating_expenses"]
		return map[string]any{
			"operating_expense_ratio": round2(expenses / income * 100),
			"operating_expenses":      expenses,
			"gross_operating_income":  income,
		}, nil

	case "dscr":
		debtService := values["debt_service"]
		if debtService == 0 {
			return nil, NewToolError(KindInvalidInput, "debt_service cannot be zero")
		}
		noi := values["noi"]
		dscr := noi / debtService
		return map[string]any{
			"dscr":           round2(dscr),
			"noi":            noi,
			"debt_service":   debtService,
			"interpretation": interpretDSCR(dscr),
		}, nil

	default:
		return nil, NewToolError(KindInvalidInput, "unsupported operation %q", operation)
	}
}

func interpretDSCR(dscr float64) string {
	switch {
	case dscr >= 1.5:
		return "Strong debt service coverage"
	case dscr >= 1.25:
		return "Good debt service coverage"
	case dscr >= 1.0:
		return "Adequate debt service coverage"
	default:
		return "Poor debt service coverage - potential risk"
	}
}
