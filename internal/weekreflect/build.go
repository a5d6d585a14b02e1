package weekreflect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/github"
	"github.com/Afrawles/weekreflect/internal/history"
	"github.com/Afrawles/weekreflect/internal/llm"
	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/notion"
	"github.com/Afrawles/weekreflect/internal/publish"
	"github.com/Afrawles/weekreflect/internal/report"
	"github.com/Afrawles/weekreflect/internal/toggl"
)

// build fills every component that was not injected. It makes no network
// calls.
func (a *Application) build(ctx context.Context, logger *zap.Logger) error {
	if a.collector != nil && a.analyzer != nil && a.publisher != nil && a.fallback != nil {
		return nil
	}
	cfg := a.cfg
	if cfg == nil {
		return errors.New("no configuration to build components from")
	}

	if a.collector == nil {
		ghOpts := []github.Option{
			github.WithLogger(logger.Named("github")),
			github.WithAuthor(cfg.GitHub.Author),
			github.WithStats(cfg.GitHub.IncludeStats),
		}
		if cfg.GitHub.BaseURL != "" {
			ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHub.BaseURL))
		}
		reader, err := github.NewReader(ctx, cfg.GitHub.Token.Value(), cfg.GitHub.Timeout, ghOpts...)
		if err != nil {
			return fmt.Errorf("failed to create GitHub reader: %w", err)
		}

		tgOpts := []toggl.Option{
			toggl.WithLogger(logger.Named("toggl")),
			toggl.WithWorkspace(cfg.Toggl.WorkspaceID),
			toggl.WithProjectCache(toggl.NewProjectCache()),
		}
		if cfg.Toggl.BaseURL != "" {
			tgOpts = append(tgOpts, toggl.WithBaseURL(cfg.Toggl.BaseURL))
		}
		entries := toggl.NewReader(cfg.Toggl.APIToken.Value(), cfg.Toggl.Timeout, tgOpts...)

		a.collector = report.NewAggregator(
			github.NewSource(reader, cfg.GitHub.Repos),
			toggl.NewSource(entries),
			logger.Named("aggregator"),
		)
	}

	if a.analyzer == nil {
		gen, err := llm.New(llm.Config{
			Provider: cfg.Generative.Provider,
			APIKey:   cfg.Generative.APIKey.Value(),
			Model:    cfg.Generative.Model,
			BaseURL:  cfg.Generative.BaseURL,
			Timeout:  cfg.Generative.Timeout,
		}, logger.Named("llm"))
		if err != nil {
			// The narrative falls back to templates without a backend.
			logger.Warn("generative backend unavailable", zap.Error(err))
		}
		a.analyzer = narrative.NewAnalyzer(gen,
			narrative.WithLogger(logger.Named("narrative")),
			narrative.WithCallTimeout(cfg.Generative.Timeout),
		)
	}

	if a.publisher == nil {
		var store publish.Store
		if cfg.Notion.Token.IsSet() {
			var opts []notion.Option
			opts = append(opts, notion.WithLogger(logger.Named("notion")))
			if cfg.Notion.BaseURL != "" {
				opts = append(opts, notion.WithBaseURL(cfg.Notion.BaseURL))
			}
			store = notion.NewClient(cfg.Notion.Token.Value(), cfg.Notion.Timeout, opts...)
		}
		a.publisher = publish.NewPublisher(store, cfg.Notion.ParentPageID, logger.Named("publish"))
	}

	if a.fallback == nil {
		a.fallback = report.NewExporter(cfg.Output.Directory)
	}

	if a.history == nil && cfg.History.File != "" {
		a.history = history.NewStore(cfg.History.File)
	}
	return nil
}
