package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pauljones0/fly4deals/internal/ai"
	"github.com/pauljones0/fly4deals/internal/config"
	"github.com/pauljones0/fly4deals/internal/notifier"
	"github.com/pauljones0/fly4deals/internal/processor"
	"github.com/pauljones0/fly4deals/internal/scraper"
	"github.com/pauljones0/fly4deals/internal/storage"
)

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat, quiet))
	return cfg, nil
}

func newLogger(level, format string, quiet bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if quiet {
		opts.Level = slog.LevelError
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// pipeline owns everything a run controller needs and closes it in reverse order.
type pipeline struct {
	controller *processor.RunController
	closers    []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			slog.Warn("Error during shutdown", "error", err)
		}
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	p := &pipeline{}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s state: %w", cfg.StateBackend, err)
	}
	p.closers = append(p.closers, store.Close)

	gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		p.Close()
		return nil, err
	}

	mailer, err := notifier.New(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}

	s, closeScraper := scraper.New(cfg, scraper.LoadConfig(cfg.SelectorsPath))
	p.closers = append(p.closers, closeScraper)

	extractor := ai.NewExtractor(gemini, ai.NewPrompt(time.Now().In(cfg.Location)), cfg.ImageRoot)
	p.controller = processor.New(store, s, extractor, mailer)
	return p, nil
}
