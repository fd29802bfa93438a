package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/serialscan/internal/arbitration"
	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/knowledge"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/store"
)

type fakeRecognizer struct{ cand model.Candidate }

func (f fakeRecognizer) Recognize(context.Context, image.Image) model.Candidate { return f.cand }

type fakeModels struct {
	extract model.Answer
	verify  model.Answer
}

func (f fakeModels) Extract(context.Context, image.Image) model.Answer { return f.extract }

func (f fakeModels) Verify(context.Context, image.Image, string, string) model.Answer {
	return f.verify
}

// newTestEnv builds a scan environment on a temp sqlite store with fixed
// stage answers. S04878 is the only known serial.
func newTestEnv(t *testing.T, cand model.Candidate, extract, verify model.Answer) *scanEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	kb := knowledge.New("S04878")
	models := fakeModels{extract: extract, verify: verify}
	floor := 0.5
	env := &scanEnv{
		Store:     st,
		Engine:    arbitration.NewEngine(fakeRecognizer{cand: cand}, models, models, kb, arbitration.DefaultEarlyAcceptThreshold),
		Knowledge: kb,
		arbitration: config.ArbitrationConfig{
			Variant:              "standard",
			EarlyAcceptThreshold: arbitration.DefaultEarlyAcceptThreshold,
			MinConfidenceFloor:   &floor,
		},
		timeline: config.TimelineConfig{Zone: "UTC"},
		maxDim:   64,
	}
	t.Cleanup(env.Close)
	return env
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for x := 0; x < 32; x++ {
		img.Set(x, 8, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
