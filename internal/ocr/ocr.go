// Package ocr reads a serial number candidate from a label image using either
// the remote serial-OCR service or a local Tesseract engine.
package ocr

import (
	"context"
	"image"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/resilience"
)

// Reading is what a provider found on the label. An empty Serial with a
// confidence is a real, if useless, answer.
type Reading struct {
	Serial     string
	Confidence float64
}

// Provider is a concrete OCR backend. Any error means the backend could not
// produce a reading.
type Provider interface {
	Name() string
	Read(ctx context.Context, img image.Image) (Reading, error)
}

// Recognizer turns an image into an OCR candidate.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) model.Candidate
}

// Client adapts a Provider to the Recognizer contract: errors become an
// unreachable candidate and are logged, never returned.
type Client struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBreaker guards the provider with a circuit breaker. While the circuit is
// open the provider is not called and the candidate is unreachable.
func WithBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient wraps a provider.
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{provider: p}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recognize runs the provider once. No retries are attempted.
func (c *Client) Recognize(ctx context.Context, img image.Image) model.Candidate {
	start := time.Now()

	var (
		r   Reading
		err error
	)
	if c.breaker != nil {
		r, err = resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (Reading, error) {
			return c.provider.Read(ctx, img)
		})
	} else {
		r, err = c.provider.Read(ctx, img)
	}

	if err != nil {
		zap.L().Warn("ocr: service unreachable",
			zap.String("provider", c.provider.Name()),
			zap.String("class", string(resilience.Classify(err))),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return model.Unreachable()
	}

	zap.L().Debug("ocr: reading",
		zap.String("provider", c.provider.Name()),
		zap.String("serial", r.Serial),
		zap.Float64("confidence", r.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return model.OCRCandidate(r.Serial, r.Confidence)
}

// New builds the configured OCR client.
func New(cfg config.OCRConfig) (*Client, error) {
	var p Provider
	switch cfg.Provider {
	case "http", "":
		if cfg.URL == "" {
			return nil, eris.New("ocr: http provider requires ocr.url")
		}
		p = NewHTTP(cfg.URL,
			WithAPIKey(cfg.APIKey),
			WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
			WithJPEGQuality(cfg.JPEGQuality),
		)
	case "tesseract":
		t, err := NewTesseract(cfg.Language)
		if err != nil {
			return nil, err
		}
		p = t
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}

	var opts []ClientOption
	if cfg.Circuit.FailureThreshold > 0 {
		opts = append(opts, WithBreaker(resilience.NewCircuitBreaker(
			resilience.BreakerConfigFrom("ocr", cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs),
		)))
	}
	return NewClient(p, opts...), nil
}
