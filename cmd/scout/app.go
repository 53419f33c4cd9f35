package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"leadscout/internal/classify"
	"leadscout/internal/config"
	"leadscout/internal/pipeline"
	"leadscout/internal/research"
	"leadscout/internal/store"
	"leadscout/internal/tools"
	"leadscout/internal/tools/reasoning"
	"leadscout/internal/tools/webfetch"
	"leadscout/internal/tools/websearch"
)

// app bundles everything a command needs: the configured pipeline plus the
// raw tool adapters for commands that drive the research loop directly.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	archive  *store.Archive

	search  tools.SearchTool
	fetcher tools.PageFetcher
	llm     tools.ReasoningService

	shutdown []func() error
}

// buildApp loads config and wires the tool adapters it selects.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	switch cfg.Search.Provider {
	case "serper":
		a.search = websearch.NewSerper(cfg.Search.APIKey)
	default:
		a.search = websearch.NewDuckDuckGo()
	}

	switch cfg.Fetch.Provider {
	case "browser":
		bf := webfetch.NewBrowserFetcher()
		a.shutdown = append(a.shutdown, bf.Shutdown)
		a.fetcher = bf
	default:
		a.fetcher = webfetch.NewHTTPFetcher(cfg.FetchTimeout())
	}
	if cfg.Cache.Enabled {
		cache := tools.NewCache(cfg.Cache.Dir, cfg.CacheTTL(), cfg.CacheFailTTL())
		a.fetcher = tools.NewCachedFetcher(a.fetcher, cache)
	}

	switch cfg.LLM.Provider {
	case "gemini":
		g, err := reasoning.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.llm = g
	default:
		oa := reasoning.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
		oa.SetTimeout(cfg.LLMTimeout())
		a.llm = oa
	}

	opts := pipeline.Options{
		MaxRounds:     cfg.Classify.MaxRounds,
		PageBudget:    cfg.Research.PageBudget,
		PageCharLimit: cfg.Research.PageCharLimit,
		Concurrency:   cfg.Classify.Concurrency,
		LLMSlots:      cfg.LLM.Slots,
		Research: research.Config{
			ConcurrentFetch: cfg.Research.ConcurrentFetch,
			QueryAttempts:   cfg.Research.QueryAttempts,
			URLAttempts:     cfg.Research.URLAttempts,
		},
		ICP: classify.ICP{
			Offering: cfg.ICP.Offering,
			Profile:  cfg.ICP.Profile,
		},
	}
	if cfg.Trace.Enabled {
		opts.TraceDir = cfg.Trace.Dir
	}

	a.pipeline = pipeline.New(a.search, a.fetcher, a.llm, opts, logger)

	if cfg.Storage.DatabasePath != "" {
		archive, err := store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.archive = archive
		a.shutdown = append(a.shutdown, archive.Close)
		a.pipeline.SetArchive(archive)
	}

	return a, nil
}

// Close releases adapters in reverse construction order.
func (a *app) Close() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](); err != nil {
			a.logger.Warn("shutdown error", zap.Error(err))
		}
	}
}
