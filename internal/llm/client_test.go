package llm

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/serialscan/internal/cost"
	"github.com/sells-group/serialscan/internal/model"
)

type mockVision struct {
	mock.Mock
}

func (m *mockVision) Name() string { return "mock" }

func (m *mockVision) Describe(ctx context.Context, req VisionRequest) (VisionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(VisionResponse), args.Error(1)
}

func label() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	return img
}

func TestExtract_Value(t *testing.T) {
	v := &mockVision{}
	v.On("Describe", mock.Anything, mock.MatchedBy(func(r VisionRequest) bool {
		return r.Prompt == ExtractionPrompt && r.MaxTokens == 50 && len(r.PNG) > 8 && string(r.PNG[1:4]) == "PNG"
	})).Return(VisionResponse{Text: " D00494\n", Model: "gpt-4o"}, nil).Once()

	c := NewClient(v, WithCost(cost.NewCalculator(cost.DefaultRates())))
	got := c.Extract(context.Background(), label())

	assert.Equal(t, model.AnswerValue("D00494"), got)
	v.AssertExpectations(t)
}

func TestExtract_Sentinel(t *testing.T) {
	for _, reply := range []string{"None", "none", "NONE", " 'None' ", ""} {
		v := &mockVision{}
		v.On("Describe", mock.Anything, mock.Anything).Return(VisionResponse{Text: reply}, nil).Once()

		got := NewClient(v).Extract(context.Background(), label())
		assert.Equal(t, model.AnswerNone, got.Status, "reply %q", reply)
		assert.True(t, got.Received())
		assert.Empty(t, got.Value())
	}
}

func TestExtract_FailureIsFailedAnswer(t *testing.T) {
	v := &mockVision{}
	v.On("Describe", mock.Anything, mock.Anything).Return(VisionResponse{}, errors.New("503 overloaded")).Once()

	got := NewClient(v).Extract(context.Background(), label())
	assert.Equal(t, model.FailedAnswer(), got)
	assert.False(t, got.Received())
	v.AssertNumberOfCalls(t, "Describe", 1)
}

func TestVerify_PromptCarriesCandidates(t *testing.T) {
	v := &mockVision{}
	v.On("Describe", mock.Anything, mock.MatchedBy(func(r VisionRequest) bool {
		return r.Prompt == VerificationPrompt("X9", "Y8")
	})).Return(VisionResponse{Text: "X9"}, nil).Once()

	got := NewClient(v).Verify(context.Background(), label(), "X9", "Y8")
	assert.Equal(t, model.AnswerValue("X9"), got)
	v.AssertExpectations(t)
}

func TestClient_TimeoutApplied(t *testing.T) {
	v := &mockVision{}
	v.On("Describe", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
	}).Return(VisionResponse{Text: "AB1234"}, nil).Once()

	c := NewClient(v, WithTimeout(2*time.Second), WithMaxTokens(20))
	assert.Equal(t, model.AnswerValue("AB1234"), c.Extract(context.Background(), label()))
	assert.Equal(t, 20, c.maxTokens)
}

func TestClient_RateLimitCancelled(t *testing.T) {
	v := &mockVision{}
	c := NewClient(v, WithRateLimit(0.001))
	// Drain the single burst token.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, model.FailedAnswer(), c.Extract(ctx, label()))
	v.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything)
}

func TestWithRateLimit_ZeroDisables(t *testing.T) {
	c := NewClient(&mockVision{}, WithRateLimit(5), WithRateLimit(0))
	assert.Nil(t, c.limiter)
}
