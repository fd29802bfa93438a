// Package notion reads serial lists kept in Notion databases.
package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxPageSize is the largest page the Notion query endpoint returns.
	MaxPageSize = 100

	// DefaultRateLimit matches Notion's documented average of 3 requests
	// per second per integration.
	DefaultRateLimit = 3
)

// Client is the subset of the Notion API used to read serial databases.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit sets the request rate. Zero or less disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// notionClient throttles calls to a *notionapi.Client and wraps its errors.
type notionClient struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

// NewClient creates a client for an integration token, throttled to
// DefaultRateLimit unless WithRateLimit says otherwise.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(DefaultRateLimit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "notion: wait for rate limit on %s", dbID)
		}
	}

	start := time.Now()
	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query database %s", dbID)
	}

	zap.L().Debug("notion: database page",
		zap.String("database", dbID),
		zap.Int("pages", len(resp.Results)),
		zap.Bool("has_more", resp.HasMore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}
