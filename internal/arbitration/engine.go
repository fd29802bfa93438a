// Package arbitration turns the OCR reading, the two vision-model answers and
// the knowledge base into a single ScanResult.
package arbitration

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/sells-group/serialscan/internal/knowledge"
	"github.com/sells-group/serialscan/internal/llm"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/ocr"
	"github.com/sells-group/serialscan/internal/timeline"
)

// DefaultEarlyAcceptThreshold is the OCR confidence at or above which the
// model stages are skipped.
const DefaultEarlyAcceptThreshold = 0.95

// State is the terminal state a scan ended in.
type State string

// Terminal states.
const (
	StateOCRUnreachable             State = "ocr_unreachable"
	StateEarlyAccepted              State = "early_accepted"
	StateKnownGoodAfterOCR          State = "known_good_after_ocr"
	StateKnownGoodAfterExtraction   State = "known_good_after_extraction"
	StateKnownGoodAfterVerification State = "known_good_after_verification"
	StateResolved                   State = "resolved"
	StateUnresolved                 State = "unresolved"
)

// Engine sequences OCR, extraction and verification. It keeps no per-scan
// state, so one Engine may serve concurrent cases.
type Engine struct {
	recognizer  ocr.Recognizer
	extractor   llm.Extractor
	verifier    llm.Verifier
	known       *knowledge.Base
	earlyAccept float64
}

// NewEngine creates an Engine. A nil knowledge base knows nothing.
func NewEngine(r ocr.Recognizer, x llm.Extractor, v llm.Verifier, kb *knowledge.Base, earlyAccept float64) *Engine {
	return &Engine{
		recognizer:  r,
		extractor:   x,
		verifier:    v,
		known:       kb,
		earlyAccept: earlyAccept,
	}
}

// Scan runs one scan attempt and stamps milestones on st, which may be nil.
func (e *Engine) Scan(ctx context.Context, img image.Image, st timeline.Stamper) model.ScanResult {
	r, _ := e.Evaluate(ctx, img, st)
	return r
}

// Evaluate is Scan that also reports the terminal state.
func (e *Engine) Evaluate(ctx context.Context, img image.Image, st timeline.Stamper) (model.ScanResult, State) {
	return e.EvaluateWith(ctx, img, st, e.earlyAccept)
}

// EvaluateWith is Evaluate with an explicit early-accept threshold. A
// threshold of zero or less uses the engine's own.
func (e *Engine) EvaluateWith(ctx context.Context, img image.Image, st timeline.Stamper, earlyAccept float64) (model.ScanResult, State) {
	if earlyAccept <= 0 {
		earlyAccept = e.earlyAccept
	}
	r, state := e.evaluate(ctx, img, st, earlyAccept)
	zap.L().Info("arbitration: scan finished",
		zap.String("state", string(state)),
		zap.String("serial", r.SerialValue()),
		zap.Float64("confidence", r.Confidence),
		zap.String("source", string(r.Source)),
		zap.Bool("known_good", r.IsKnownGood),
		zap.Float64("early_accept", earlyAccept),
	)
	return r, state
}

func (e *Engine) evaluate(ctx context.Context, img image.Image, st timeline.Stamper, earlyAccept float64) (model.ScanResult, State) {
	cand := e.recognizer.Recognize(ctx, img)
	if !cand.Reachable() {
		return model.NoResult(0), StateOCRUnreachable
	}
	timeline.Stamp(st, timeline.OCRResult)

	if cand.HasText() && cand.Confidence >= earlyAccept {
		return model.NewScanResult(cand.Text, cand.Confidence, model.SourceOCR, e.known.IsKnown(cand.Text)), StateEarlyAccepted
	}
	if cand.HasText() && e.known.IsKnown(cand.Text) {
		return model.NewScanResult(cand.Text, cand.Confidence, model.SourceOCR, true), StateKnownGoodAfterOCR
	}

	extracted := e.extractor.Extract(ctx, img)
	if extracted.Received() {
		timeline.Stamp(st, timeline.GPTResult)
	}
	if v := extracted.Value(); v != "" && e.known.IsKnown(v) {
		return model.NewScanResult(v, cand.Confidence, model.SourceGPTExtract, true), StateKnownGoodAfterExtraction
	}

	verified := e.verifier.Verify(ctx, img, cand.Text, extracted.Value())
	if verified.Received() {
		timeline.Stamp(st, timeline.GPTVerification)
	}
	if v := verified.Value(); v != "" {
		if e.known.IsKnown(v) {
			return model.NewScanResult(v, cand.Confidence, model.SourceGPTVerify, true), StateKnownGoodAfterVerification
		}
		return model.NewScanResult(v, cand.Confidence, model.SourceGPTVerify, false), StateResolved
	}
	return model.NoResult(cand.Confidence), StateUnresolved
}
