package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{
		"gpt-4o": {Input: 2.50, Output: 10.00},
	})

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{"known model", "gpt-4o", 1_000_000, 100_000, 2.50 + 1.00},
		{"typical extraction", "gpt-4o", 1200, 8, 0.003 + 0.00008},
		{"zero tokens", "gpt-4o", 0, 0, 0},
		{"unknown model", "llava", 1_000_000, 1_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Tokens(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestTokens_NilCalculator(t *testing.T) {
	var c *Calculator
	assert.Zero(t, c.Tokens("gpt-4o", 100, 100))
}

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	for _, m := range []string{"gpt-4o", "claude-sonnet-4-5-20250929", "gemini-1.5-flash"} {
		r, ok := rates[m]
		assert.True(t, ok, m)
		assert.Positive(t, r.Input, m)
		assert.Greater(t, r.Output, r.Input, m)
	}
}

func TestMerge(t *testing.T) {
	merged := Merge(DefaultRates(), Rates{
		"gpt-4o":      {Input: 1, Output: 2},
		"local-llava": {Input: 0, Output: 0},
	})

	assert.Equal(t, ModelRate{Input: 1, Output: 2}, merged["gpt-4o"])
	assert.Contains(t, merged, "local-llava")
	assert.Contains(t, merged, "gemini-1.5-pro")
	assert.Equal(t, 2.50, DefaultRates()["gpt-4o"].Input, "defaults untouched")
}

func TestLog(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	assert.NotPanics(t, func() { calc.Log("gpt-4o", "extract", 1000, 5) })
}
