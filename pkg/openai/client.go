// Package openai wraps go-openai for single-image chat completions.
package openai

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/rotisserie/eris"
	goopenai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when a request names no model.
const DefaultModel = goopenai.GPT4o

// Client defines the OpenAI operations used by the scanner.
type Client interface {
	DescribeImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// ImageRequest asks a question about one PNG image.
type ImageRequest struct {
	Model     string
	Prompt    string
	PNG       []byte
	MaxTokens int
	// Detail is "low", "high" or "auto" (default).
	Detail string
}

// ImageResponse is the first choice of a chat completion.
type ImageResponse struct {
	ID               string
	Model            string
	Text             string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
}

// Option configures the client.
type Option func(*goopenai.ClientConfig)

// WithBaseURL targets an OpenAI-compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *goopenai.ClientConfig) {
		if u != "" {
			c.BaseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *goopenai.ClientConfig) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

type sdkClient struct {
	client *goopenai.Client
}

// NewClient creates an OpenAI client.
func NewClient(apiKey string, opts ...Option) Client {
	cfg := goopenai.DefaultConfig(apiKey)
	for _, o := range opts {
		o(&cfg)
	}
	return &sdkClient{client: goopenai.NewClientWithConfig(cfg)}
}

// DataURL renders PNG bytes as an inline image URL.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func (c *sdkClient) DescribeImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	detail := goopenai.ImageURLDetailAuto
	if req.Detail != "" {
		detail = goopenai.ImageURLDetail(req.Detail)
	}

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: req.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt},
					{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
						URL:    DataURL(req.PNG),
						Detail: detail,
					}},
				},
			},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: no response choices")
	}

	choice := resp.Choices[0]
	return &ImageResponse{
		ID:               resp.ID,
		Model:            resp.Model,
		Text:             choice.Message.Content,
		FinishReason:     string(choice.FinishReason),
		PromptTokens:     int64(resp.Usage.PromptTokens),
		CompletionTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}
