package main

import (
	"context"
	"image"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/serialscan/internal/arbitration"
	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/cost"
	"github.com/sells-group/serialscan/internal/imaging"
	"github.com/sells-group/serialscan/internal/knowledge"
	"github.com/sells-group/serialscan/internal/llm"
	"github.com/sells-group/serialscan/internal/ocr"
	"github.com/sells-group/serialscan/internal/session"
	"github.com/sells-group/serialscan/internal/store"
	"github.com/sells-group/serialscan/internal/timeline"
	"github.com/sells-group/serialscan/pkg/notion"
)

// scanEnv holds everything the scan and serve commands need to run cases.
type scanEnv struct {
	Store     store.ResultStore
	Engine    *arbitration.Engine
	Knowledge *knowledge.Base
	Images    session.ImageSaver // may be nil

	arbitration config.ArbitrationConfig
	timeline    config.TimelineConfig
	maxDim      int
	closers     []func() error
}

// Close releases resources held by the environment.
func (e *scanEnv) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Arbiter returns an arbiter for the named variant, or the configured one
// when name is empty.
func (e *scanEnv) Arbiter(name string) (*arbitration.Arbiter, error) {
	if name == "" {
		name = e.arbitration.Variant
	}
	v, err := arbitration.LookupVariant(name, e.arbitration.EarlyAcceptThreshold, e.arbitration.MinConfidenceFloor)
	if err != nil {
		return nil, err
	}
	return arbitration.NewArbiter(e.Engine, v), nil
}

// NewSession starts a session that scans with the named variant.
func (e *scanEnv) NewSession(variant string) (*session.Session, error) {
	a, err := e.Arbiter(variant)
	if err != nil {
		return nil, err
	}
	loc, err := timeline.LoadLocation(e.timeline.Zone)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithLocation(loc)}
	if e.Images != nil {
		opts = append(opts, session.WithImageSaver(e.Images))
	}
	return session.New(a, e.Store, opts...), nil
}

// Prepare downsizes img to the configured maximum dimension.
func (e *scanEnv) Prepare(img image.Image) image.Image {
	return imaging.Fit(img, e.maxDim)
}

// initScanEnv builds the store, OCR and vision clients, knowledge base and
// arbitration engine. Callers should defer env.Close().
func initScanEnv(ctx context.Context, command string) (*scanEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	env := &scanEnv{
		Store:       st,
		arbitration: cfg.Arbitration,
		timeline:    cfg.Timeline,
		maxDim:      cfg.Image.MaxDimension,
	}
	if cfg.Store.ImageDir != "" {
		env.Images = store.NewImageDir(cfg.Store.ImageDir)
	}

	kb, err := initKnowledge(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Knowledge = kb

	recognizer, err := ocr.New(cfg.OCR)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init ocr")
	}

	calc := cost.NewCalculator(pricingRates(cfg.Pricing))
	models, closeFn, err := llm.New(ctx, cfg.LLM, calc)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init llm")
	}
	env.closers = append(env.closers, closeFn)

	env.Engine = arbitration.NewEngine(recognizer, models, models, kb, cfg.Arbitration.EarlyAcceptThreshold)

	zap.L().Info("scan environment ready",
		zap.String("ocr", cfg.OCR.Provider),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Driver),
		zap.Int("known_serials", kb.Len()),
	)
	return env, nil
}

// initStore opens the configured result store.
func initStore(ctx context.Context) (store.ResultStore, error) {
	if err := cfg.Validate("results"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	return st, eris.Wrap(err, "open store")
}

// initKnowledge loads the known serial numbers from every configured source.
func initKnowledge(ctx context.Context) (*knowledge.Base, error) {
	var nc notion.Client
	if cfg.Notion.Token != "" {
		nc = notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimitRPS))
	}
	kb, err := knowledge.Load(ctx, knowledge.Sources{
		Serials:      cfg.Knowledge.Serials,
		Files:        cfg.Knowledge.Files,
		NotionDB:     cfg.Knowledge.NotionDB,
		NotionColumn: cfg.Knowledge.NotionColumn,
	}, nc)
	return kb, eris.Wrap(err, "load knowledge")
}

func pricingRates(p config.PricingConfig) cost.Rates {
	overrides := make(cost.Rates, len(p.Models))
	for name, m := range p.Models {
		overrides[name] = cost.ModelRate{Input: m.Input, Output: m.Output}
	}
	return cost.Merge(cost.DefaultRates(), overrides)
}
