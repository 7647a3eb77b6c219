package provider

// ModelPricing contains pricing per 1M tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultModelPricing contains pricing for known Claude models.
var DefaultModelPricing = map[string]ModelPricing{
	"claude-opus-4-5-20251101":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-sonnet-20241022": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// CostFor computes the dollar cost of a call for the given model.
// Unknown models cost zero; callers treat the result as advisory.
func CostFor(model string, promptTokens, completionTokens int64) float64 {
	pricing, ok := DefaultModelPricing[model]
	if !ok {
		return 0.0
	}
	inputCost := float64(promptTokens) / 1_000_000 * pricing.InputPerMillion
	outputCost := float64(completionTokens) / 1_000_000 * pricing.OutputPerMillion
	return inputCost + outputCost
}
