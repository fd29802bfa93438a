package store

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/model"
)

func TestResultFilter_Match(t *testing.T) {
	rec := *sampleRecord("r1", "S04878", time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))

	assert.True(t, ResultFilter{}.Match(rec))
	assert.True(t, ResultFilter{Serial: "S04878", Source: model.SourceGPTVerify, Agent: "standard"}.Match(rec))
	assert.False(t, ResultFilter{Serial: "other"}.Match(rec))
	assert.False(t, ResultFilter{Source: model.SourceOCR}.Match(rec))
	assert.False(t, ResultFilter{Agent: "scanner"}.Match(rec))
	assert.False(t, ResultFilter{Since: rec.CreatedAt.Add(time.Second)}.Match(rec))
	assert.True(t, ResultFilter{Since: rec.CreatedAt}.Match(rec))
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "nested", "r.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StoreConfig{Driver: "csv", CSVPath: filepath.Join(dir, "out", "experiments.csv")})
	require.NoError(t, err)
	assert.IsType(t, &CSVStore{}, s)
	_, statErr := os.Stat(filepath.Join(dir, "out"))
	assert.NoError(t, statErr)

	_, err = Open(ctx, config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mongo"`)

	_, err = Open(ctx, config.StoreConfig{Driver: "postgres", DatabaseURL: "::not a url::"})
	require.Error(t, err)
}

func TestImageDir_SaveImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	path, err := NewImageDir(dir).SaveImage("abc", img)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.jpg"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
