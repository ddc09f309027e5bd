package observability

import (
	"strconv"
	"strings"
)

// Pricing constants
const (
	tokensPerKilo       = 1000.0
	costFormatPrecision = 6

	// Claude Haiku 4.5 pricing
	haiku45InputPrice  = 0.001
	haiku45OutputPrice = 0.005

	// Claude Sonnet 4.5 pricing
	sonnet45InputPrice  = 0.003
	sonnet45OutputPrice = 0.015

	// Claude Opus 4.1 pricing
	opus41InputPrice  = 0.015
	opus41OutputPrice = 0.075

	defaultPricingModel = "claude-haiku-4-5"
)

// ModelPricing contains pricing information per 1K tokens
type ModelPricing struct {
	InputPricePer1K  float64 // Price per 1K input tokens in USD
	OutputPricePer1K float64 // Price per 1K output tokens in USD
}

// PricingTable contains pricing for known generation models
var PricingTable = map[string]ModelPricing{
	"claude-haiku-4-5": {
		InputPricePer1K:  haiku45InputPrice,
		OutputPricePer1K: haiku45OutputPrice,
	},
	"claude-sonnet-4-5": {
		InputPricePer1K:  sonnet45InputPrice,
		OutputPricePer1K: sonnet45OutputPrice,
	},
	"claude-opus-4-1": {
		InputPricePer1K:  opus41InputPrice,
		OutputPricePer1K: opus41OutputPrice,
	},
}

// pricingFor resolves a model id, ignoring dated suffixes such as "-20251001"
func pricingFor(model string) ModelPricing {
	if pricing, ok := PricingTable[model]; ok {
		return pricing
	}
	for name, pricing := range PricingTable {
		if strings.HasPrefix(model, name+"-") {
			return pricing
		}
	}
	return PricingTable[defaultPricingModel]
}

// CalculateCost calculates the cost in USD of a generation call
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	pricing := pricingFor(model)

	inputCost := (float64(inputTokens) / tokensPerKilo) * pricing.InputPricePer1K
	outputCost := (float64(outputTokens) / tokensPerKilo) * pricing.OutputPricePer1K
	return inputCost + outputCost
}

// FormatCost formats a cost value as a USD string
func FormatCost(cost float64) string {
	return "$" + formatFloat(cost, costFormatPrecision)
}

// formatFloat formats a float with specified precision using strconv
func formatFloat(f float64, precision int) string {
	return strconv.FormatFloat(f, 'f', precision, 64)
}
