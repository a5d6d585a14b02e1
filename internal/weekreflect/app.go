// Package weekreflect runs one reflection: validate configuration, collect
// activity, narrate it, then publish or fall back to a local file.
package weekreflect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/config"
	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/publish"
	"github.com/Afrawles/weekreflect/internal/report"
)

// OutputType tells the caller where the reflection ended up.
type OutputType string

const (
	OutputRemote  OutputType = "remote"
	OutputLocal   OutputType = "local"
	OutputPreview OutputType = "preview"
)

// Collector gathers and merges activity for a date range.
type Collector interface {
	CollectAndIntegrate(ctx context.Context, r report.DateRange) (*report.IntegratedData, error)
}

// Analyzer turns integrated data into a narrative. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, data *report.IntegratedData, previousTry []string) *narrative.Result
}

type Publisher interface {
	Publish(ctx context.Context, n *narrative.Result, data *report.IntegratedData, opts publish.Options) (*publish.Result, error)
}

// FallbackWriter persists rendered text when publishing fails. It returns
// the intended path even when the write itself failed.
type FallbackWriter interface {
	WriteFallback(text string, r report.DateRange) (string, error)
}

// History remembers the Try items of earlier reflections.
type History interface {
	PreviousTry(r report.DateRange) ([]string, error)
	Save(r report.DateRange, try []string) error
}

// Request is a single run.
type Request struct {
	DateRange   report.DateRange
	DryRun      bool
	PreviousTry []string
	OnProgress  ProgressFunc
}

// Result of a successful run. Exactly one of RemoteURL, LocalPath and
// Preview is set, matching OutputType.
type Result struct {
	RunID      string                 `json:"run_id"`
	Title      string                 `json:"title"`
	OutputType OutputType             `json:"output_type"`
	RemoteURL  string                 `json:"remote_url,omitempty"`
	LocalPath  string                 `json:"local_path,omitempty"`
	Preview    string                 `json:"preview,omitempty"`
	Summary    *narrative.Result      `json:"summary"`
	Data       *report.IntegratedData `json:"-"`
	Warnings   []string               `json:"warnings"`
}

// Application wires the pipeline. Components left nil are built from the
// configuration once it has been validated.
type Application struct {
	cfg    *config.Config
	logger *zap.Logger

	collector Collector
	analyzer  Analyzer
	publisher Publisher
	fallback  FallbackWriter
	history   History
}

type Option func(*Application)

func WithCollector(c Collector) Option {
	return func(a *Application) { a.collector = c }
}

func WithAnalyzer(an Analyzer) Option {
	return func(a *Application) { a.analyzer = an }
}

func WithPublisher(p Publisher) Option {
	return func(a *Application) { a.publisher = p }
}

func WithFallbackWriter(w FallbackWriter) Option {
	return func(a *Application) { a.fallback = w }
}

func WithHistory(h History) Option {
	return func(a *Application) { a.history = h }
}

func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Application{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the pipeline. Only invalid configuration and a total data
// collection failure are returned as errors; everything else degrades into
// warnings on the Result.
func (a *Application) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	logger := a.logger.With(zap.String("run_id", runID))
	p := &pipeline{sink: req.OnProgress, logger: logger}

	res := &Result{RunID: runID, Warnings: []string{}}

	// Config
	p.start(ctx, StageConfig)
	if err := a.validate(req); err != nil {
		p.fail(ctx, StageConfig, err)
		return nil, err
	}
	if err := a.build(ctx, logger); err != nil {
		p.fail(ctx, StageConfig, err)
		return nil, err
	}
	p.complete(ctx, StageConfig, req.DateRange.String())

	// DataCollection
	p.start(ctx, StageDataCollection)
	data, err := a.collector.CollectAndIntegrate(ctx, req.DateRange)
	if err != nil {
		fatal := collectionError(err)
		p.fail(ctx, StageDataCollection, fatal)
		return nil, fatal
	}
	for _, w := range data.Warnings {
		res.Warnings = append(res.Warnings, w.String())
		if w.Kind == report.WarningPartialSource {
			recordFallback(ctx, strings.ToLower(w.Source))
		}
	}
	res.Data = data
	p.complete(ctx, StageDataCollection, fmt.Sprintf("%d records, %d time entries", len(data.Records), len(data.TimeEntries)))

	previousTry := req.PreviousTry
	if len(previousTry) == 0 && a.history != nil {
		prev, err := a.history.PreviousTry(req.DateRange)
		if err != nil {
			logger.Warn("failed to load try history", zap.Error(err))
			res.Warnings = append(res.Warnings, "try history unavailable: "+err.Error())
		}
		previousTry = prev
	}

	// Analysis
	p.start(ctx, StageAnalysis)
	n := a.analyzer.Analyze(ctx, data, previousTry)
	res.Summary = n
	if !n.AIEnabled {
		recordFallback(ctx, "week_summary")
	}
	if !n.SuggestionsAIEnabled {
		recordFallback(ctx, "suggestions")
	}
	p.complete(ctx, StageAnalysis, analysisMessage(n))

	// Publish
	p.start(ctx, StagePublish)
	pub, err := a.publisher.Publish(ctx, n, data, publish.Options{DryRun: req.DryRun, PreviousTry: previousTry})
	switch {
	case err == nil && req.DryRun:
		res.Title = pub.Title
		res.OutputType = OutputPreview
		res.Preview = publish.BuildMarkdown(n, data, previousTry)
		p.complete(ctx, StagePublish, "dry run, nothing published")

	case err == nil:
		res.Title = pub.Title
		res.OutputType = OutputRemote
		res.RemoteURL = pub.RemoteURL
		a.saveHistory(logger, res, req.DateRange, n.Suggestions.Try)
		p.complete(ctx, StagePublish, pub.RemoteURL)

	default:
		logger.Warn("publish failed, saving locally", zap.Error(err))
		recordFallback(ctx, "publish")
		p.fail(ctx, StagePublish, err)

		res.Title = publish.BuildTitle(req.DateRange)
		res.OutputType = OutputLocal
		res.Warnings = append(res.Warnings, err.Error())

		text := publish.BuildMarkdown(n, data, previousTry)
		path, werr := a.fallback.WriteFallback(text, req.DateRange)
		if werr != nil {
			logger.Error("failed to write local fallback", zap.String("path", path), zap.Error(werr))
			res.Warnings = append(res.Warnings, "local fallback not written: "+werr.Error())
		}
		res.LocalPath = path
	}

	logger.Info("reflection complete",
		zap.String("output_type", string(res.OutputType)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

func (a *Application) validate(req Request) error {
	invalid := &config.InvalidError{}
	if a.cfg != nil {
		if err := a.cfg.Validate(req.DryRun); err != nil {
			if !errors.As(err, &invalid) {
				return err
			}
		}
	}
	if req.DateRange.Start.IsZero() || req.DateRange.End.Before(req.DateRange.Start) {
		invalid.Problems = append(invalid.Problems, fmt.Sprintf("invalid date range %s", req.DateRange))
	}
	if len(invalid.MissingFields) > 0 || len(invalid.Problems) > 0 {
		return invalid
	}
	return nil
}

func (a *Application) saveHistory(logger *zap.Logger, res *Result, r report.DateRange, try []string) {
	if a.history == nil || len(try) == 0 {
		return
	}
	if err := a.history.Save(r, try); err != nil {
		logger.Warn("failed to save try history", zap.Error(err))
		res.Warnings = append(res.Warnings, "try history not saved: "+err.Error())
	}
}

func collectionError(err error) error {
	var all *report.AllSourcesFailedError
	if errors.As(err, &all) {
		sources := make([]string, 0, len(all.Errors))
		for _, se := range all.Errors {
			sources = append(sources, se.Source)
		}
		return &DataCollectionFailedError{
			Source:  strings.Join(sources, ", "),
			Message: err.Error(),
			Err:     err,
		}
	}
	return &DataCollectionFailedError{Source: "aggregator", Message: err.Error(), Err: err}
}

func analysisMessage(n *narrative.Result) string {
	summary, suggestions := "template", "rules"
	if n.AIEnabled {
		summary = "generated"
	}
	if n.SuggestionsAIEnabled {
		suggestions = "generated"
	}
	return fmt.Sprintf("summary %s, suggestions %s", summary, suggestions)
}

func recordFallback(ctx context.Context, component string) {
	fallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// pipeline tracks stage timing and forwards events to the sink.
type pipeline struct {
	sink    ProgressFunc
	logger  *zap.Logger
	started time.Time
}

func (p *pipeline) start(_ context.Context, stage Stage) {
	p.started = time.Now()
	p.logger.Debug("stage started", zap.String("stage", string(stage)))
	emit(p.sink, p.logger, ProgressEvent{Stage: stage, Status: StatusStart})
}

func (p *pipeline) complete(ctx context.Context, stage Stage, message string) {
	p.record(ctx, stage, StatusComplete)
	p.logger.Info("stage complete", zap.String("stage", string(stage)), zap.String("detail", message))
	emit(p.sink, p.logger, ProgressEvent{Stage: stage, Status: StatusComplete, Message: message})
}

func (p *pipeline) fail(ctx context.Context, stage Stage, err error) {
	p.record(ctx, stage, StatusError)
	p.logger.Warn("stage failed", zap.String("stage", string(stage)), zap.Error(err))
	emit(p.sink, p.logger, ProgressEvent{Stage: stage, Status: StatusError, Message: err.Error()})
}

func (p *pipeline) record(ctx context.Context, stage Stage, status Status) {
	stageDuration.Record(ctx, time.Since(p.started).Seconds(), metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("status", string(status)),
	))
}
