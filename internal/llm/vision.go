// Package llm asks a vision model to extract or verify a serial number and
// converts its free-text reply into a tagged answer.
package llm

import (
	"context"
)

// VisionRequest is one prompt about one PNG image.
type VisionRequest struct {
	Prompt    string
	PNG       []byte
	MaxTokens int
}

// Usage counts tokens for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// VisionResponse is the model's raw reply.
type VisionResponse struct {
	Text  string
	Model string
	Usage Usage
}

// Vision is a vision-capable model endpoint.
type Vision interface {
	Name() string
	Describe(ctx context.Context, req VisionRequest) (VisionResponse, error)
}
