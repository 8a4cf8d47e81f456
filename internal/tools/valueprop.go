package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValuePropositionInput drives the value-proposition tool. With an Operation
// it runs one financial calculation; without, it composes a templated value
// proposition.
type ValuePropositionInput struct {
	PropertyType     string             `json:"property_type" jsonschema:"Commercial property type, e.g. office, retail"`
	TargetAudience   string             `json:"target_audience,omitempty" jsonschema:"Audience: investors, tenants, or developers"`
	PropertyFeatures []string           `json:"property_features,omitempty" jsonschema:"Notable property features"`
	LocationBenefits []string           `json:"location_benefits,omitempty" jsonschema:"Location-specific benefits"`
	MarketPosition   string             `json:"market_position,omitempty" jsonschema:"Market position, e.g. Premium"`
	Operation        string             `json:"operation,omitempty" jsonschema:"Financial calculation: roi, cap_rate, or noi"`
	Values           map[string]float64 `json:"values,omitempty" jsonschema:"Numeric inputs for the selected financial calculation"`
}

// ValueProposition composes targeted property value propositions and runs
// financial calculations.
type ValueProposition struct {
	schema *jsonschema.Schema
}

// NewValueProposition creates the value-proposition executor.
func NewValueProposition() (*ValueProposition, error) {
	schema, err := jsonschema.For[ValuePropositionInput](nil)
	if err != nil {
		return nil, fmt.Errorf("value-proposition schema: %w", err)
	}
	return &ValueProposition{schema: schema}, nil
}

func (*ValueProposition) Name() string { return ToolValueProposition }

func (*ValueProposition) Description() string {
	return "Generates a value proposition for a commercial property: core proposition, key benefits, competitive advantages, targeted messaging, and ROI potential."
}

func (v *ValueProposition) InputSchema() *jsonschema.Schema { return v.schema }

func (*ValueProposition) Timeout() time.Duration { return computeTimeout }

func (*ValueProposition) FromMessage(_ string) any {
	return ValuePropositionInput{PropertyType: "commercial", TargetAudience: "investors"}
}

func (v *ValueProposition) Execute(_ context.Context, input json.RawMessage) (any, error) {
	var in ValuePropositionInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, NewToolError(KindInvalidInput, "decoding input: %v", err)
	}
	if in.PropertyType == "" {
		return nil, NewToolError(KindInvalidInput, "property_type is required")
	}
	if in.TargetAudience == "" {
		in.TargetAudience = "investors"
	}

	if in.Operation != "" {
		return v.calculate(in.Operation, in.Values)
	}

	return map[string]any{
		"core_value_proposition": corePropositions(in),
		"key_benefits": map[string]any{
			"property_benefits":   featureBenefits(in.PropertyFeatures),
			"location_advantages": locationAdvantages(in.LocationBenefits),
		},
		"competitive_advantages": map[string]any{
			"market_position": marketPosition(in.MarketPosition),
			"unique_features": in.PropertyFeatures,
			"differentiators": []string{"Strategic location", "Modern amenities", "Flexible terms", "Professional management"},
		},
		"target_messaging": map[string]any{
			"value_statements": []string{
				fmt.Sprintf("Ideal %s solution for %s", in.PropertyType, in.TargetAudience),
				"Proven track record of tenant satisfaction",
				"Strategic location in growing market",
			},
			"call_to_action": []string{"Schedule a viewing today", "Request detailed financial analysis", "Explore investment opportunity"},
		},
		"roi_potential": map[string]any{
			"potential_returns": map[string]string{
				"cap_rate_range": "5.5% - 7.5%",
				"cash_on_cash":   "8% - 12%",
				"irr_projection": "15% - 18%",
			},
			"value_add_opportunities": []string{"Operational efficiency improvements", "Amenity upgrades", "Lease optimization"},
		},
	}, nil
}

func corePropositions(in ValuePropositionInput) string {
	audienceBenefits := map[string]string{
		"investors":  "strong ROI potential and stable cash flow",
		"tenants":    "prime location and modern amenities",
		"developers": "development potential and market opportunity",
	}
	benefit, ok := audienceBenefits[strings.ToLower(in.TargetAudience)]
	if !ok {
		benefit = "exceptional value"
	}
	features := in.PropertyFeatures
	if len(features) > 2 {
		features = features[:2]
	}
	highlight := strings.Join(features, ", ")
	if highlight == "" {
		highlight = "modern facilities"
	}
	return fmt.Sprintf("A premium %s property offering %s, featuring %s in a strategic location.",
		in.PropertyType, benefit, highlight)
}

func featureBenefits(features []string) []string {
	benefitMapping := []struct{ keyword, benefit string }{
		{"parking", "Convenient parking for employees and visitors"},
		{"security", "Enhanced safety and peace of mind"},
		{"amenities", "Improved tenant satisfaction and retention"},
		{"location", "Reduced commute times and better accessibility"},
		{"modern", "Lower operating costs and improved efficiency"},
	}

	benefits := make([]string, 0, len(features))
	for _, f := range features {
		benefit := fmt.Sprintf("Enhanced value through %s", f)
		for _, m := range benefitMapping {
			if strings.Contains(strings.ToLower(f), m.keyword) {
				benefit = m.benefit
				break
			}
		}
		benefits = append(benefits, benefit)
	}
	return benefits
}

func locationAdvantages(benefits []string) []string {
	if len(benefits) > 0 {
		return benefits
	}
	return []string{"Excellent accessibility", "Strong market presence", "Growing neighborhood"}
}

func marketPosition(pos string) string {
	if pos == "" {
		return "Premium"
	}
	return pos
}

func (*ValueProposition) calculate(operation string, values map[string]float64) (any, error) {
	switch operation {
	case "roi":
		investment := values["initial_investment"]
		if investment == 0 {
			return nil, NewToolError(KindInvalidInput, "initial_investment cannot be zero")
		}
		profit := values["net_profit"]
		return map[string]any{
			"roi":                round2(profit / investment * 100),
			"initial_investment": investment,
			"net_profit":         profit,
		}, nil

	case "cap_rate":
		value := values["property_value"]
		if value == 0 {
			return nil, NewToolError(KindInvalidInput, "property_value cannot be zero")
		}
		noi := values["noi"]
		return map[string]any{
			"cap_rate":       round2(noi / value * 100),
			"noi":            noi,
			"property_value": value,
		}, nil

	case "noi":
		income := values["gross_income"]
		expenses := values["operating_expenses"]
		return map[string]any{
			"noi":                income - expenses,
			"gross_income":       income,
			"operating_expenses": expenses,
		}, nil

	default:
		return nil, NewToolError(KindInvalidInput, "unsupported operation %q", operation)
	}
}
