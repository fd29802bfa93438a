// Package session tracks the case a user is working on: which image is being
// scanned, its timeline, the arbitrated outcome and the review actions that
// end in a saved record.
package session

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serialscan/internal/arbitration"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/timeline"
)

// Errors returned by review actions.
var (
	ErrNoActiveCase = eris.New("session: no active case")
	ErrNotScanned   = eris.New("session: case has not been scanned")
	ErrNoSerial     = eris.New("session: result has no serial number")
)

// Runner produces an arbitrated outcome for an image.
type Runner interface {
	Run(ctx context.Context, img image.Image, st timeline.Stamper) arbitration.Outcome
	Variant() arbitration.Variant
}

// Sink persists saved case records.
type Sink interface {
	SaveResult(ctx context.Context, rec *model.CaseRecord) error
}

// ImageSaver stores a case image and returns where it was written.
type ImageSaver interface {
	SaveImage(id string, img image.Image) (string, error)
}

// Case is one scan attempt from capture to saved record.
type Case struct {
	ID        string
	InputType model.InputType
	CreatedAt time.Time
	Timeline  *timeline.Timeline
	Image     image.Image
	Outcome   *arbitration.Outcome
	Edited    bool
}

// Scanned reports whether the case has an arbitrated outcome.
func (c *Case) Scanned() bool {
	return c != nil && c.Outcome != nil
}

// Option configures a Session.
type Option func(*Session)

// WithImageSaver stores case images alongside saved records.
func WithImageSaver(s ImageSaver) Option {
	return func(ss *Session) { ss.images = s }
}

// WithLocation sets the zone timeline fields are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(ss *Session) { ss.loc = loc }
}

// WithClock overrides the clock used for case timestamps and milestones.
func WithClock(now func() time.Time) Option {
	return func(ss *Session) { ss.now = now }
}

// Session owns at most one active case.
type Session struct {
	runner Runner
	sink   Sink
	images ImageSaver
	loc    *time.Location
	now    func() time.Time

	mu     sync.Mutex
	active *Case
}

// New creates a Session that scans with runner and saves to sink.
func New(runner Runner, sink Sink, opts ...Option) *Session {
	s := &Session{
		runner: runner,
		sink:   sink,
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Active returns the active case or nil.
func (s *Session) Active() *Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StartCamera starts a fresh camera case, replacing any active one.
func (s *Session) StartCamera() *Case {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.begin(model.InputCamera)
	c.Timeline.Stamp(timeline.CameraStart)
	return c
}

// Upload starts a fresh case for an uploaded image, replacing any active one.
func (s *Session) Upload(img image.Image) *Case {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.begin(model.InputUpload)
	c.Image = img
	return c
}

// PressScan marks the scan button press, starting a camera case when none
// is active.
func (s *Session) PressScan() *Case {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.active
	if c == nil {
		c = s.begin(model.InputCamera)
	}
	c.Timeline.Stamp(timeline.ScanPressed)
	return c
}

// Scan arbitrates img for the active case. A nil img scans the image given
// to Upload. When the outcome is auto-save the record is saved at once and
// returned; otherwise the case waits for review and the record is nil.
func (s *Session) Scan(ctx context.Context, img image.Image) (arbitration.Outcome, *model.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.active
	if c == nil {
		return arbitration.Outcome{}, nil, ErrNoActiveCase
	}
	if img != nil {
		c.Image = img
	}
	if c.Image == nil {
		return arbitration.Outcome{}, nil, eris.New("session: no image to scan")
	}

	out := s.runner.Run(ctx, c.Image, c.Timeline)
	c.Outcome = &out

	zap.L().Info("session: case scanned",
		zap.String("case_id", c.ID),
		zap.String("variant", out.Variant),
		zap.String("disposition", out.Disposition.String()),
	)

	if out.Disposition != arbitration.DispositionAutoSave {
		return out, nil, nil
	}
	rec, err := s.save(ctx, c)
	if err != nil {
		return out, nil, err
	}
	return out, rec, nil
}

// Accept saves the scanned serial number as is.
func (s *Session) Accept(ctx context.Context) (*model.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.reviewable()
	if err != nil {
		return nil, err
	}
	if !c.Outcome.Result.HasSerial() {
		return nil, ErrNoSerial
	}
	c.Timeline.Stamp(timeline.AcceptSavePressed)
	return s.save(ctx, c)
}

// Edit marks that the user chose to correct the result by hand.
func (s *Session) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.reviewable()
	if err != nil {
		return err
	}
	c.Timeline.Stamp(timeline.EditPressed)
	return nil
}

// SaveEdited saves a manually corrected serial number.
func (s *Session) SaveEdited(ctx context.Context, text string) (*model.CaseRecord, error) {
	serial, err := ValidateSerial(text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.reviewable()
	if err != nil {
		return nil, err
	}
	c.Timeline.Stamp(timeline.EditPressed)
	c.Timeline.Stamp(timeline.SaveEditedPressed)

	r := c.Outcome.Result
	c.Outcome.Result = model.ScanResult{
		Serial:      &serial,
		Confidence:  r.Confidence,
		Source:      r.Source,
		IsKnownGood: r.IsKnownGood && r.SerialValue() == serial,
	}
	c.Edited = true
	return s.save(ctx, c)
}

// AutoSave saves the scanned result without a review action.
func (s *Session) AutoSave(ctx context.Context) (*model.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.reviewable()
	if err != nil {
		return nil, err
	}
	if !c.Outcome.Result.HasSerial() {
		return nil, ErrNoSerial
	}
	return s.save(ctx, c)
}

// Discard drops the active case without saving.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

func (s *Session) begin(input model.InputType) *Case {
	if s.active != nil {
		zap.L().Debug("session: superseding active case", zap.String("case_id", s.active.ID))
	}
	c := &Case{
		ID:        uuid.New().String(),
		InputType: input,
		CreatedAt: s.now(),
		Timeline:  timeline.New(timeline.WithClock(s.now), timeline.WithLocation(s.loc)),
	}
	s.active = c
	return c
}

func (s *Session) reviewable() (*Case, error) {
	if s.active == nil {
		return nil, ErrNoActiveCase
	}
	if !s.active.Scanned() {
		return nil, ErrNotScanned
	}
	return s.active, nil
}

// save persists c and clears it. On failure the case stays active so the
// save can be retried. result_saved is recorded only once the sink accepts
// the record.
func (s *Session) save(ctx context.Context, c *Case) (*model.CaseRecord, error) {
	savedAt := c.Timeline.Now()

	r := c.Outcome.Result
	rec := &model.CaseRecord{
		ID:          uuid.New().String(),
		CaseID:      c.ID,
		CreatedAt:   s.now().In(s.loc),
		Task:        model.TaskSerialNumber,
		Agent:       c.Outcome.Variant,
		InputType:   c.InputType,
		Serial:      r.SerialValue(),
		Confidence:  r.Confidence,
		Source:      r.Source,
		IsKnownGood: r.IsKnownGood,
		Edited:      c.Edited,
		Timeline:    c.Timeline.FieldsWith(timeline.ResultSaved, savedAt),
	}

	if s.images != nil && c.Image != nil {
		path, err := s.images.SaveImage(rec.ID, c.Image)
		if err != nil {
			return nil, eris.Wrapf(err, "session: save image for case %s", c.ID)
		}
		rec.ImagePath = path
	}

	if err := s.sink.SaveResult(ctx, rec); err != nil {
		return nil, eris.Wrapf(err, "session: save case %s", c.ID)
	}
	c.Timeline.StampAt(timeline.ResultSaved, savedAt)

	zap.L().Info("session: result saved",
		zap.String("case_id", c.ID),
		zap.String("record_id", rec.ID),
		zap.String("serial", rec.Serial),
		zap.Bool("edited", rec.Edited),
	)
	if s.active == c {
		s.active = nil
	}
	return rec, nil
}
