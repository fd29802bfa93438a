package arbitration

import (
	"context"
	"image"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/timeline"
)

// Policy configures one variant of the scan state machine.
type Policy struct {
	// EarlyAcceptThreshold overrides the engine's threshold when positive.
	EarlyAcceptThreshold float64
	// MinConfidenceFloor nulls results below it. Nil disables the floor.
	MinConfidenceFloor *float64
	AutoSave           bool
}

// Disposition says what the caller should do with a result.
type Disposition int

const (
	// DispositionDiscard means there is no serial to save.
	DispositionDiscard Disposition = iota
	// DispositionReview means a person must accept or edit the serial.
	DispositionReview
	// DispositionAutoSave means the serial is saved without review.
	DispositionAutoSave
)

func (d Disposition) String() string {
	switch d {
	case DispositionDiscard:
		return "discard"
	case DispositionReview:
		return "review"
	case DispositionAutoSave:
		return "auto_save"
	default:
		return "unknown"
	}
}

// MarshalText renders the disposition by name in JSON.
func (d Disposition) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ApplyFloor nulls a result whose confidence is strictly below the floor.
// Known-good results are kept: an allow-list match overrides confidence.
func ApplyFloor(r model.ScanResult, p Policy) model.ScanResult {
	if p.MinConfidenceFloor == nil || !r.HasSerial() || r.IsKnownGood {
		return r
	}
	if r.Confidence < *p.MinConfidenceFloor {
		return model.NoResult(r.Confidence)
	}
	return r
}

// Decide picks the disposition for a result.
func Decide(r model.ScanResult, p Policy) Disposition {
	switch {
	case !r.HasSerial():
		return DispositionDiscard
	case p.AutoSave, r.IsKnownGood:
		return DispositionAutoSave
	default:
		return DispositionReview
	}
}

// Variant is a named policy.
type Variant struct {
	Name   string
	Label  string
	Policy Policy
}

// Variants returns the built-in variants. The scanner variant uses floor, which
// may be nil.
func Variants(threshold float64, floor *float64) map[string]Variant {
	return map[string]Variant{
		"standard": {
			Name:   "standard",
			Label:  "Serial number with manual review",
			Policy: Policy{EarlyAcceptThreshold: threshold},
		},
		"scanner": {
			Name:   "scanner",
			Label:  "Serial number scanner (auto-save)",
			Policy: Policy{EarlyAcceptThreshold: threshold, MinConfidenceFloor: floor, AutoSave: true},
		},
	}
}

// VariantNames lists the built-in variant names in order.
func VariantNames() []string {
	names := make([]string, 0, 2)
	for n := range Variants(0, nil) {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupVariant returns the named variant.
func LookupVariant(name string, threshold float64, floor *float64) (Variant, error) {
	if name == "" {
		name = "standard"
	}
	v, ok := Variants(threshold, floor)[name]
	if !ok {
		return Variant{}, eris.Errorf("arbitration: unknown variant %q", name)
	}
	return v, nil
}

// Outcome is an arbitrated result with its disposition.
type Outcome struct {
	Result      model.ScanResult `json:"result"`
	State       State            `json:"state"`
	Disposition Disposition      `json:"disposition"`
	Variant     string           `json:"variant"`
}

// Arbiter applies a variant's policy on top of an Engine.
type Arbiter struct {
	engine  *Engine
	variant Variant
}

// NewArbiter creates an Arbiter. The variant's early-accept threshold, when
// set, takes precedence over the engine's.
func NewArbiter(e *Engine, v Variant) *Arbiter {
	return &Arbiter{engine: e, variant: v}
}

// Variant returns the arbiter's variant.
func (a *Arbiter) Variant() Variant {
	return a.variant
}

// Run scans img and decides what to do with the result.
func (a *Arbiter) Run(ctx context.Context, img image.Image, st timeline.Stamper) Outcome {
	r, state := a.engine.EvaluateWith(ctx, img, st, a.variant.Policy.EarlyAcceptThreshold)
	r = ApplyFloor(r, a.variant.Policy)
	return Outcome{
		Result:      r,
		State:       state,
		Disposition: Decide(r, a.variant.Policy),
		Variant:     a.variant.Name,
	}
}
