// Package gemini wraps the Google generative AI client for single-image
// prompts.
package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gemini-1.5-flash"

// Client defines the Gemini operations used by the scanner.
type Client interface {
	DescribeImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
	Close() error
}

// ImageRequest asks a question about one PNG image.
type ImageRequest struct {
	Model     string
	Prompt    string
	PNG       []byte
	MaxTokens int
}

// ImageResponse is the text of the first candidate.
type ImageResponse struct {
	Model            string
	Text             string
	FinishReason     string
	PromptTokens     int64
	CompletionTokens int64
}

// generator is the slice of *genai.GenerativeModel the client uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	client *genai.Client
	model  func(name string, maxTokens int) generator
}

// NewClient creates a Gemini client authenticated with an API key.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	c := &sdkClient{client: client}
	c.model = func(name string, maxTokens int) generator {
		m := client.GenerativeModel(name)
		if maxTokens > 0 {
			m.SetMaxOutputTokens(int32(maxTokens))
		}
		return m
	}
	return c, nil
}

func (c *sdkClient) DescribeImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	name := req.Model
	if name == "" {
		name = DefaultModel
	}

	resp, err := c.model(name, req.MaxTokens).GenerateContent(ctx, genai.ImageData("png", req.PNG), genai.Text(req.Prompt))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	out, err := fromResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = name
	return out, nil
}

func (c *sdkClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func fromResponse(resp *genai.GenerateContentResponse) (*ImageResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, eris.New("gemini: no response candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	out := &ImageResponse{
		Text:         sb.String(),
		FinishReason: cand.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
