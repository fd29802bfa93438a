package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/serialscan/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_SaveAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	rec := sampleRecord("r1", "S04878", created)
	rec.IsKnownGood = true
	rec.Edited = true
	require.NoError(t, s.SaveResult(ctx, rec))

	got, err := s.GetResult(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "S04878", got.Serial)
	assert.Equal(t, "case-r1", got.CaseID)
	assert.Equal(t, model.InputCamera, got.InputType)
	assert.Equal(t, model.SourceGPTVerify, got.Source)
	assert.True(t, got.IsKnownGood)
	assert.True(t, got.Edited)
	assert.Equal(t, 0.5, got.Confidence)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, rec.Timeline, got.Timeline)
}

func TestSQLite_GetNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetResult(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveFillsDefaults(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := &model.CaseRecord{CaseID: "c", Task: model.TaskSerialNumber, Agent: "scanner", InputType: model.InputUpload, Serial: "X9"}
	require.NoError(t, s.SaveResult(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.GetResult(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceNone, got.Source)
	assert.Empty(t, got.Timeline)
}

func TestSQLite_DuplicateID(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, sampleRecord("dup", "A", time.Now().UTC())))
	err := s.SaveResult(ctx, sampleRecord("dup", "B", time.Now().UTC()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert result dup")
}

func TestSQLite_ListResults(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	for i, serial := range []string{"A1", "B2", "C3"} {
		rec := sampleRecord(serial, serial, base.Add(time.Duration(i)*time.Hour))
		if serial == "B2" {
			rec.Source = model.SourceOCR
			rec.Agent = "scanner"
		}
		require.NoError(t, s.SaveResult(ctx, rec))
	}

	all, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C3", all[0].Serial, "newest first")
	assert.Equal(t, "A1", all[2].Serial)

	bySource, err := s.ListResults(ctx, ResultFilter{Source: model.SourceOCR})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "B2", bySource[0].Serial)

	byAgent, err := s.ListResults(ctx, ResultFilter{Agent: "standard"})
	require.NoError(t, err)
	assert.Len(t, byAgent, 2)

	since, err := s.ListResults(ctx, ResultFilter{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "C3", since[0].Serial)

	paged, err := s.ListResults(ctx, ResultFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "B2", paged[0].Serial)
}
