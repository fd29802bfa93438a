// Package timeline records when each milestone of a scan case happened.
package timeline

import (
	"sync"
	"time"
	_ "time/tzdata" // zone data for hosts without a zoneinfo database

	"github.com/rotisserie/eris"
)

// Milestone names one point in the life of a scan case.
type Milestone string

// Milestones in the order they normally occur.
const (
	CameraStart       Milestone = "camera_start"
	ScanPressed       Milestone = "scan_pressed"
	OCRResult         Milestone = "ocr_result"
	GPTResult         Milestone = "gpt_result"
	GPTVerification   Milestone = "gpt_verification"
	AcceptSavePressed Milestone = "accept_save_pressed"
	EditPressed       Milestone = "edit_pressed"
	SaveEditedPressed Milestone = "save_edited_pressed"
	ResultSaved       Milestone = "result_saved"
)

// Milestones lists every milestone in column order.
var Milestones = []Milestone{
	CameraStart,
	ScanPressed,
	OCRResult,
	GPTResult,
	GPTVerification,
	AcceptSavePressed,
	EditPressed,
	SaveEditedPressed,
	ResultSaved,
}

// Field returns the persisted column name for m.
func (m Milestone) Field() string {
	return "ts_" + string(m)
}

// Layout is the timestamp format used for persisted fields.
const Layout = "2006-01-02T15:04:05.000Z07:00"

// DefaultZone is the IANA zone timestamps are rendered in.
const DefaultZone = "Europe/Vienna"

// Stamper is the handle the arbitration engine uses to mark milestones.
type Stamper interface {
	Stamp(m Milestone) bool
}

// Stamp marks m on s. A nil s means no case is active and is a no-op.
func Stamp(s Stamper, m Milestone) bool {
	if s == nil {
		return false
	}
	return s.Stamp(m)
}

// Timeline is the audit record of one case. Once a milestone is set it is
// never overwritten.
type Timeline struct {
	mu    sync.Mutex
	marks map[Milestone]time.Time
	loc   *time.Location
	now   func() time.Time
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) {
		t.now = now
	}
}

// WithLocation sets the zone used when rendering fields.
func WithLocation(loc *time.Location) Option {
	return func(t *Timeline) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// New creates an empty timeline rendering in UTC unless WithLocation is given.
func New(opts ...Option) *Timeline {
	t := &Timeline{
		marks: make(map[Milestone]time.Time, len(Milestones)),
		loc:   time.UTC,
		now:   time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// LoadLocation resolves a zone name, falling back to DefaultZone when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "timeline: load location %q", name)
	}
	return loc, nil
}

// Stamp records the current time for m unless m is already set. It reports
// whether this call wrote the value.
func (t *Timeline) Stamp(m Milestone) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.marks[m]; ok {
		return false
	}
	t.marks[m] = t.now()
	return true
}

// Now reads the timeline's clock without recording anything.
func (t *Timeline) Now() time.Time {
	return t.now()
}

// StampAt records ts for m unless m is already set.
func (t *Timeline) StampAt(m Milestone, ts time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.marks[m]; ok {
		return false
	}
	t.marks[m] = ts
	return true
}

// Get returns the time recorded for m.
func (t *Timeline) Get(m Milestone) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts, ok := t.marks[m]
	return ts, ok
}

// Fields renders every milestone as ts_<name>, with "" for unset ones.
func (t *Timeline) Fields() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.render(nil)
}

// FieldsWith renders the fields as if pending were stamped at ts. The
// timeline itself is left unchanged.
func (t *Timeline) FieldsWith(pending Milestone, ts time.Time) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.render(map[Milestone]time.Time{pending: ts})
}

func (t *Timeline) render(extra map[Milestone]time.Time) map[string]string {
	out := make(map[string]string, len(Milestones))
	for _, m := range Milestones {
		ts, ok := t.marks[m]
		if !ok {
			ts, ok = extra[m]
		}
		if !ok {
			out[m.Field()] = ""
			continue
		}
		out[m.Field()] = ts.In(t.loc).Format(Layout)
	}
	return out
}

// Between returns the elapsed time between two milestones when both are set.
func (t *Timeline) Between(from, to Milestone) (time.Duration, bool) {
	a, okA := t.Get(from)
	b, okB := t.Get(to)
	if !okA || !okB {
		return 0, false
	}
	return b.Sub(a), true
}

// ParseField parses a persisted field value. Empty values report false.
func ParseField(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(Layout, v)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
