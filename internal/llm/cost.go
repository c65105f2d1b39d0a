package llm

import (
	"sort"
	"strings"
)

// Pricing is a model's price in USD per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// prices are keyed by model family. Dated or suffixed variants such as
// "gemini-2.5-flash-preview-05-20" match the longest family prefix.
var prices = map[string]Pricing{
	"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.0-flash-lite": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-2.0-flash":      {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-1.5-flash":      {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-1.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 5.00},

	"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"gpt-4.1":      {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},

	"claude-haiku-4-5":  {InputPerMillion: 1.00, OutputPerMillion: 5.00},
	"claude-sonnet-4-5": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-sonnet-4":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-opus-4":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
}

var priceKeys = func() []string {
	keys := make([]string, 0, len(prices))
	for k := range prices {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return keys
}()

// PriceFor returns the pricing of model. Gateway names such as
// "google/gemini-2.5-flash" are matched on the part after the slash.
func PriceFor(model string) (Pricing, bool) {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	for _, key := range priceKeys {
		if strings.HasPrefix(model, key) {
			return prices[key], true
		}
	}
	return Pricing{}, false
}

// EstimateCost returns the estimated cost in USD, or 0 for unknown models
// such as local Ollama ones.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := PriceFor(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
}
