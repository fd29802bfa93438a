package llm

import (
	"context"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/serialscan/internal/cost"
	"github.com/sells-group/serialscan/internal/imaging"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/resilience"
)

const (
	defaultMaxTokens = 50
	defaultTimeout   = 30 * time.Second
)

// Extractor reads the serial number off a label image.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) model.Answer
}

// Verifier picks the correct serial number given two candidates.
type Verifier interface {
	Verify(ctx context.Context, img image.Image, ocrText, extracted string) model.Answer
}

// Client implements Extractor and Verifier over a Vision model. Failures are
// logged and reported as FailedAnswer; nothing is retried.
type Client struct {
	vision    Vision
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	costs     *cost.Calculator
}

// Option configures a Client.
type Option func(*Client)

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit throttles calls client-side. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithCost logs estimated spend per call.
func WithCost(calc *cost.Calculator) Option {
	return func(c *Client) { c.costs = calc }
}

// NewClient wraps a Vision model.
func NewClient(v Vision, opts ...Option) *Client {
	c := &Client{
		vision:    v,
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, img image.Image) model.Answer {
	return c.ask(ctx, "extract", img, ExtractionPrompt)
}

// Verify implements Verifier.
func (c *Client) Verify(ctx context.Context, img image.Image, ocrText, extracted string) model.Answer {
	return c.ask(ctx, "verify", img, VerificationPrompt(ocrText, extracted))
}

func (c *Client) ask(ctx context.Context, stage string, img image.Image, prompt string) model.Answer {
	log := zap.L().With(zap.String("provider", c.vision.Name()), zap.String("stage", stage))

	png, err := imaging.EncodePNG(img)
	if err != nil {
		log.Warn("llm: encode image", zap.Error(err))
		return model.FailedAnswer()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			log.Warn("llm: rate limit wait", zap.Error(err))
			return model.FailedAnswer()
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.vision.Describe(callCtx, VisionRequest{
		Prompt:    prompt,
		PNG:       png,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		log.Warn("llm: call failed",
			zap.String("class", string(resilience.Classify(err))),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return model.FailedAnswer()
	}

	if c.costs != nil {
		c.costs.Log(resp.Model, stage, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	ans := Normalize(resp.Text)
	log.Debug("llm: answer",
		zap.String("status", ans.Status.String()),
		zap.String("value", ans.Value()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ans
}
