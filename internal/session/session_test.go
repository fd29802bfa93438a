package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/serialscan/internal/arbitration"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/timeline"
)

type mockRunner struct {
	mock.Mock
	variant arbitration.Variant
}

func (m *mockRunner) Run(ctx context.Context, img image.Image, st timeline.Stamper) arbitration.Outcome {
	args := m.Called(ctx, img, st)
	timeline.Stamp(st, timeline.OCRResult)
	return args.Get(0).(arbitration.Outcome)
}

func (m *mockRunner) Variant() arbitration.Variant { return m.variant }

type memorySink struct {
	mu      sync.Mutex
	records []*model.CaseRecord
	err     error
}

func (s *memorySink) SaveResult(_ context.Context, rec *model.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type memoryImages struct{ saved []string }

func (m *memoryImages) SaveImage(id string, _ image.Image) (string, error) {
	path := "/images/" + id + ".jpg"
	m.saved = append(m.saved, path)
	return path, nil
}

func outcome(serial string, conf float64, src model.Source, known bool, d arbitration.Disposition) arbitration.Outcome {
	return arbitration.Outcome{
		Result:      model.NewScanResult(serial, conf, src, known),
		State:       arbitration.StateResolved,
		Disposition: d,
		Variant:     "standard",
	}
}

func newSession(t *testing.T, out arbitration.Outcome, opts ...Option) (*Session, *mockRunner, *memorySink) {
	t.Helper()
	r := &mockRunner{variant: arbitration.Variant{Name: out.Variant}}
	r.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(out)
	sink := &memorySink{}

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(100 * time.Millisecond)
		return now
	}
	return New(r, sink, append([]Option{WithClock(clock)}, opts...)...), r, sink
}

var testImage = image.NewGray(image.Rect(0, 0, 2, 2))

func TestSession_AcceptFlow(t *testing.T) {
	s, r, sink := newSession(t, outcome("X9", 0.3, model.SourceGPTVerify, false, arbitration.DispositionReview))
	ctx := context.Background()

	started := s.StartCamera()
	c := s.PressScan()
	assert.Same(t, started, c, "scan press reuses the active camera case")

	out, rec, err := s.Scan(ctx, testImage)
	require.NoError(t, err)
	assert.Nil(t, rec, "review disposition waits for the user")
	assert.Equal(t, "X9", out.Result.SerialValue())
	r.AssertNumberOfCalls(t, "Run", 1)

	rec, err = s.Accept(ctx)
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	assert.Same(t, rec, sink.records[0])

	assert.Equal(t, c.ID, rec.CaseID)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.InputCamera, rec.InputType)
	assert.Equal(t, model.TaskSerialNumber, rec.Task)
	assert.Equal(t, "standard", rec.Agent)
	assert.Equal(t, "X9", rec.Serial)
	assert.Equal(t, 0.3, rec.Confidence)
	assert.Equal(t, model.SourceGPTVerify, rec.Source)
	assert.False(t, rec.Edited)
	for _, m := range []timeline.Milestone{
		timeline.CameraStart, timeline.ScanPressed, timeline.OCRResult,
		timeline.AcceptSavePressed, timeline.ResultSaved,
	} {
		assert.Contains(t, rec.Timeline, m.Field())
	}
	assert.NotContains(t, rec.Timeline, timeline.EditPressed.Field())
	assert.Nil(t, s.Active(), "saving resets the case")
}

func TestSession_EditFlow(t *testing.T) {
	s, _, sink := newSession(t, outcome("S04878", 0.9, model.SourceOCR, true, arbitration.DispositionReview))
	ctx := context.Background()

	s.Upload(testImage)
	_, _, err := s.Scan(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, s.Edit())

	_, err = s.SaveEdited(ctx, "bad#serial")
	require.ErrorIs(t, err, ErrInvalidSerial)
	assert.NotNil(t, s.Active(), "invalid entry keeps the case")

	rec, err := s.SaveEdited(ctx, "  S04879 ")
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	assert.Equal(t, "S04879", rec.Serial)
	assert.True(t, rec.Edited)
	assert.False(t, rec.IsKnownGood, "a changed serial loses its known-good flag")
	assert.Equal(t, model.InputUpload, rec.InputType)
	assert.Contains(t, rec.Timeline, timeline.EditPressed.Field())
	assert.Contains(t, rec.Timeline, timeline.SaveEditedPressed.Field())
	assert.NotContains(t, rec.Timeline, timeline.CameraStart.Field())
}

func TestSession_ManualEntryAfterNoResult(t *testing.T) {
	s, _, sink := newSession(t, outcome("", 0.2, model.SourceNone, false, arbitration.DispositionDiscard))
	ctx := context.Background()

	s.PressScan()
	_, rec, err := s.Scan(ctx, testImage)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.Accept(ctx)
	require.ErrorIs(t, err, ErrNoSerial)

	rec, err = s.SaveEdited(ctx, "Q7-1")
	require.NoError(t, err)
	assert.Equal(t, "Q7-1", rec.Serial)
	assert.Equal(t, model.SourceNone, rec.Source)
	assert.Len(t, sink.records, 1)
}

func TestSession_AutoSaveBypassesReview(t *testing.T) {
	images := &memoryImages{}
	out := outcome("CRIT998", 0.4, model.SourceOCR, true, arbitration.DispositionAutoSave)
	out.Variant = "scanner"
	s, _, sink := newSession(t, out, WithImageSaver(images))
	ctx := context.Background()

	s.PressScan()
	_, rec, err := s.Scan(ctx, testImage)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "scanner", rec.Agent)
	assert.Equal(t, "/images/"+rec.ID+".jpg", rec.ImagePath)
	assert.Equal(t, []string{rec.ImagePath}, images.saved)
	assert.Len(t, sink.records, 1)
	assert.NotContains(t, rec.Timeline, timeline.AcceptSavePressed.Field())
	assert.Contains(t, rec.Timeline, timeline.ResultSaved.Field())
	assert.Nil(t, s.Active())
}

func TestSession_ExplicitAutoSave(t *testing.T) {
	s, _, sink := newSession(t, outcome("X9", 0.6, model.SourceGPTVerify, false, arbitration.DispositionReview))
	ctx := context.Background()

	s.Upload(testImage)
	_, _, err := s.Scan(ctx, nil)
	require.NoError(t, err)

	rec, err := s.AutoSave(ctx)
	require.NoError(t, err)
	assert.Equal(t, "X9", rec.Serial)
	assert.Len(t, sink.records, 1)
}

func TestSession_SinkFailureKeepsCase(t *testing.T) {
	s, _, sink := newSession(t, outcome("X9", 0.6, model.SourceGPTVerify, false, arbitration.DispositionReview))
	sink.err = errors.New("disk full")
	ctx := context.Background()

	c := s.Upload(testImage)
	_, _, err := s.Scan(ctx, nil)
	require.NoError(t, err)

	_, err = s.Accept(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session: save case")
	assert.Same(t, c, s.Active())
	_, stamped := c.Timeline.Get(timeline.ResultSaved)
	assert.False(t, stamped, "a failed save leaves result_saved unset")

	sink.err = nil
	before := c.Timeline.Now()
	rec, err := s.Accept(ctx)
	require.NoError(t, err)

	savedAt, ok := c.Timeline.Get(timeline.ResultSaved)
	require.True(t, ok)
	assert.True(t, savedAt.After(before), "the successful attempt is the recorded save")
	assert.Equal(t, c.Timeline.Fields()[timeline.ResultSaved.Field()], rec.Timeline[timeline.ResultSaved.Field()])
}

func TestSession_NewCaseSupersedes(t *testing.T) {
	s, _, _ := newSession(t, outcome("X9", 0.6, model.SourceGPTVerify, false, arbitration.DispositionReview))

	first := s.StartCamera()
	second := s.Upload(testImage)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Same(t, second, s.Active())

	third := s.StartCamera()
	assert.NotEqual(t, second.ID, third.ID)
	_, ok := third.Timeline.Get(timeline.CameraStart)
	assert.True(t, ok)
}

func TestSession_ActionsNeedACase(t *testing.T) {
	s, r, _ := newSession(t, outcome("X9", 0.6, model.SourceGPTVerify, false, arbitration.DispositionReview))
	ctx := context.Background()

	_, _, err := s.Scan(ctx, testImage)
	assert.ErrorIs(t, err, ErrNoActiveCase)
	_, err = s.Accept(ctx)
	assert.ErrorIs(t, err, ErrNoActiveCase)

	s.StartCamera()
	_, _, err = s.Scan(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image")

	assert.ErrorIs(t, s.Edit(), ErrNotScanned)
	_, err = s.AutoSave(ctx)
	assert.ErrorIs(t, err, ErrNotScanned)

	s.Discard()
	assert.Nil(t, s.Active())
	r.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}
