package llm

import (
	"context"

	"github.com/sells-group/serialscan/pkg/anthropic"
	"github.com/sells-group/serialscan/pkg/gemini"
	"github.com/sells-group/serialscan/pkg/openai"
)

// OpenAIVision adapts an OpenAI client to Vision.
type OpenAIVision struct {
	Client openai.Client
	Model  string
}

// Name implements Vision.
func (v *OpenAIVision) Name() string { return "openai" }

// Describe implements Vision.
func (v *OpenAIVision) Describe(ctx context.Context, req VisionRequest) (VisionResponse, error) {
	resp, err := v.Client.DescribeImage(ctx, openai.ImageRequest{
		Model:     v.Model,
		Prompt:    req.Prompt,
		PNG:       req.PNG,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return VisionResponse{}, err
	}
	return VisionResponse{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: Usage{InputTokens: resp.PromptTokens, OutputTokens: resp.CompletionTokens},
	}, nil
}

// AnthropicVision adapts an Anthropic client to Vision.
type AnthropicVision struct {
	Client anthropic.Client
	Model  string
}

// Name implements Vision.
func (v *AnthropicVision) Name() string { return "anthropic" }

// Describe implements Vision.
func (v *AnthropicVision) Describe(ctx context.Context, req VisionRequest) (VisionResponse, error) {
	resp, err := v.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.Model,
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []anthropic.Image{{MediaType: "image/png", Data: req.PNG}},
		}},
	})
	if err != nil {
		return VisionResponse{}, err
	}
	return VisionResponse{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}, nil
}

// GeminiVision adapts a Gemini client to Vision.
type GeminiVision struct {
	Client gemini.Client
	Model  string
}

// Name implements Vision.
func (v *GeminiVision) Name() string { return "gemini" }

// Describe implements Vision.
func (v *GeminiVision) Describe(ctx context.Context, req VisionRequest) (VisionResponse, error) {
	resp, err := v.Client.DescribeImage(ctx, gemini.ImageRequest{
		Model:     v.Model,
		Prompt:    req.Prompt,
		PNG:       req.PNG,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return VisionResponse{}, err
	}
	return VisionResponse{
		Text:  resp.Text,
		Model: resp.Model,
		Usage: Usage{InputTokens: resp.PromptTokens, OutputTokens: resp.CompletionTokens},
	}, nil
}
