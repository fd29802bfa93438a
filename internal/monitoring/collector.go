// Package monitoring summarizes saved results and raises alerts when the
// scanner degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/store"
	"github.com/sells-group/serialscan/internal/timeline"
)

// Stage is a measured span between two milestones.
type Stage struct {
	Name string
	From timeline.Milestone
	To   timeline.Milestone
}

// Stages are the latencies reported in a Snapshot.
var Stages = []Stage{
	{Name: "ocr", From: timeline.ScanPressed, To: timeline.OCRResult},
	{Name: "extraction", From: timeline.OCRResult, To: timeline.GPTResult},
	{Name: "verification", From: timeline.GPTResult, To: timeline.GPTVerification},
}

// Snapshot holds a point-in-time view of scanner results.
type Snapshot struct {
	Total     int                  `json:"total"`
	BySource  map[model.Source]int `json:"by_source"`
	KnownGood int                  `json:"known_good"`
	Edited    int                  `json:"edited"`
	Null      int                  `json:"null"`

	KnownGoodRate float64 `json:"known_good_rate"`
	EditedRate    float64 `json:"edited_rate"`
	NullRate      float64 `json:"null_rate"`

	// MeanLatencyMs is keyed by stage name. Stages without samples are absent.
	MeanLatencyMs map[string]float64 `json:"mean_latency_ms"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ResultLister abstracts the store method the collector needs.
type ResultLister interface {
	ListResults(ctx context.Context, filter store.ResultFilter) ([]model.CaseRecord, error)
}

// Collector gathers metrics from the result store.
type Collector struct {
	results ResultLister
	now     func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(results ResultLister) *Collector {
	return &Collector{results: results, now: time.Now}
}

// Collect summarizes results saved within the lookback window. A window of
// zero or less covers every result.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		BySource:      make(map[model.Source]int),
		MeanLatencyMs: make(map[string]float64),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	var filter store.ResultFilter
	if lookbackHours > 0 {
		filter.Since = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	recs, err := c.results.ListResults(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list results")
	}

	sums := make(map[string]time.Duration, len(Stages))
	counts := make(map[string]int, len(Stages))

	for _, r := range recs {
		snap.Total++
		snap.BySource[r.Source]++
		if r.IsKnownGood {
			snap.KnownGood++
		}
		if r.Edited {
			snap.Edited++
		}
		if r.Serial == "" {
			snap.Null++
		}
		for _, st := range Stages {
			if d, ok := stageLatency(r.Timeline, st); ok {
				sums[st.Name] += d
				counts[st.Name]++
			}
		}
	}

	if snap.Total > 0 {
		total := float64(snap.Total)
		snap.KnownGoodRate = float64(snap.KnownGood) / total
		snap.EditedRate = float64(snap.Edited) / total
		snap.NullRate = float64(snap.Null) / total
	}
	for name, n := range counts {
		snap.MeanLatencyMs[name] = float64(sums[name].Milliseconds()) / float64(n)
	}
	return snap, nil
}

func stageLatency(fields map[string]string, st Stage) (time.Duration, bool) {
	from, ok := timeline.ParseField(fields[st.From.Field()])
	if !ok {
		return 0, false
	}
	to, ok := timeline.ParseField(fields[st.To.Field()])
	if !ok || to.Before(from) {
		return 0, false
	}
	return to.Sub(from), true
}
