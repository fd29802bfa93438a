// Package cost estimates vision-model spend from token usage.
package cost

import (
	"go.uber.org/zap"
)

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to their pricing.
type Rates map[string]ModelRate

// Calculator computes costs for model calls.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens returns the cost of one call. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int64) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Log records token usage and estimated cost for one call.
func (c *Calculator) Log(model, stage string, input, output int64) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Float64("estimated_cost_usd", c.Tokens(model, input, output)),
	)
}

// DefaultRates returns list prices for the supported vision models.
func DefaultRates() Rates {
	return Rates{
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		"gpt-4.1":                    {Input: 2.00, Output: 8.00},
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"gemini-1.5-flash":           {Input: 0.075, Output: 0.30},
		"gemini-1.5-pro":             {Input: 1.25, Output: 5.00},
	}
}

// Merge returns the defaults overlaid with overrides.
func Merge(base, overrides Rates) Rates {
	out := make(Rates, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
