package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/cost"
	"github.com/sells-group/serialscan/pkg/anthropic"
	"github.com/sells-group/serialscan/pkg/gemini"
	"github.com/sells-group/serialscan/pkg/openai"
)

// NewVision builds the configured vision provider. The returned close func
// releases provider resources and is never nil.
func NewVision(ctx context.Context, cfg config.LLMConfig) (Vision, func() error, error) {
	noop := func() error { return nil }
	if cfg.APIKey == "" {
		return nil, noop, eris.Errorf("llm: %s provider requires llm.api_key", cfg.Provider)
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		model := cfg.Model
		if model == "" {
			model = openai.DefaultModel
		}
		return &OpenAIVision{
			Client: openai.NewClient(cfg.APIKey, openai.WithBaseURL(cfg.BaseURL)),
			Model:  model,
		}, noop, nil
	case "anthropic":
		model := cfg.Model
		if model == "" {
			model = anthropic.DefaultModel
		}
		return &AnthropicVision{
			Client: anthropic.NewClient(cfg.APIKey, anthropic.WithBaseURL(cfg.BaseURL)),
			Model:  model,
		}, noop, nil
	case "gemini":
		model := cfg.Model
		if model == "" {
			model = gemini.DefaultModel
		}
		gc, err := gemini.NewClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, noop, eris.Wrap(err, "llm: gemini client")
		}
		return &GeminiVision{Client: gc, Model: model}, gc.Close, nil
	default:
		return nil, noop, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// New builds a Client for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig, calc *cost.Calculator) (*Client, func() error, error) {
	v, closeFn, err := NewVision(ctx, cfg)
	if err != nil {
		return nil, closeFn, err
	}
	return NewClient(v,
		WithMaxTokens(cfg.MaxTokens),
		WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
		WithRateLimit(cfg.RateLimitRPS),
		WithCost(calc),
	), closeFn, nil
}
