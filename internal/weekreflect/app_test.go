package weekreflect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Afrawles/weekreflect/internal/config"
	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/publish"
	"github.com/Afrawles/weekreflect/internal/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func week() report.DateRange {
	return report.DateRange{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
	}
}

type fakeCollector struct {
	data  *report.IntegratedData
	err   error
	calls int
}

func (f *fakeCollector) CollectAndIntegrate(_ context.Context, r report.DateRange) (*report.IntegratedData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.data.DateRange = r
	return f.data, nil
}

type fakeAnalyzer struct {
	previousTry []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ *report.IntegratedData, previousTry []string) *narrative.Result {
	f.previousTry = previousTry
	return &narrative.Result{
		WeekSummary: "A steady week.",
		Insights:    []string{"3 commits recorded."},
		Suggestions: narrative.Suggestions{
			Keep:    []string{"Small commits"},
			Problem: []string{"Late starts"},
			Try:     []string{"Plan the day"},
		},
	}
}

type fakePublisher struct {
	err   error
	calls int
	opts  publish.Options
}

func (f *fakePublisher) Publish(_ context.Context, _ *narrative.Result, data *report.IntegratedData, opts publish.Options) (*publish.Result, error) {
	f.calls++
	f.opts = opts
	title := publish.BuildTitle(data.DateRange)
	if opts.DryRun {
		return &publish.Result{Title: title}, nil
	}
	if f.err != nil {
		return nil, &publish.PublishError{Message: f.err.Error(), Err: f.err}
	}
	return &publish.Result{RemoteURL: "https://notion.so/page-1", Title: title}, nil
}

type fakeFallback struct {
	dir  string
	text string
	err  error
}

func (f *fakeFallback) WriteFallback(text string, r report.DateRange) (string, error) {
	f.text = text
	path := filepath.Join(f.dir, "reflection.md")
	if f.err != nil {
		return path, f.err
	}
	return path, os.WriteFile(path, []byte(text), 0o644)
}

type fakeHistory struct {
	previous []string
	loadErr  error
	saved    []string
	saveErr  error
}

func (f *fakeHistory) PreviousTry(report.DateRange) ([]string, error) {
	return f.previous, f.loadErr
}

func (f *fakeHistory) Save(_ report.DateRange, try []string) error {
	f.saved = try
	return f.saveErr
}

type harness struct {
	collector *fakeCollector
	analyzer  *fakeAnalyzer
	publisher *fakePublisher
	fallback  *fakeFallback
	history   *fakeHistory
	events    []ProgressEvent
}

func newHarness(t *testing.T) *harness {
	return &harness{
		collector: &fakeCollector{data: &report.IntegratedData{
			Records:     []report.ActivityRecord{{ID: "c1", Title: "Add parser", Group: "acme/api"}},
			TimeEntries: []report.TimeEntry{},
			Warnings: []report.Warning{{
				Kind:    report.WarningNoTimeEntries,
				Source:  "Toggl",
				Message: "no Toggl time entries found",
			}},
		}},
		analyzer:  &fakeAnalyzer{},
		publisher: &fakePublisher{},
		fallback:  &fakeFallback{dir: t.TempDir()},
		history:   &fakeHistory{},
	}
}

func (h *harness) app(cfg *config.Config, logger *zap.Logger) *Application {
	return New(cfg, logger,
		WithCollector(h.collector),
		WithAnalyzer(h.analyzer),
		WithPublisher(h.publisher),
		WithFallbackWriter(h.fallback),
		WithHistory(h.history),
	)
}

func (h *harness) request(dryRun bool) Request {
	return Request{
		DateRange:  week(),
		DryRun:     dryRun,
		OnProgress: func(ev ProgressEvent) { h.events = append(h.events, ev) },
	}
}

func (h *harness) statuses() []string {
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, string(ev.Stage)+":"+string(ev.Status))
	}
	return out
}

func TestRun_PublishSuccess(t *testing.T) {
	h := newHarness(t)
	h.history.previous = []string{"Old try"}

	res, err := h.app(nil, nil).Run(context.Background(), h.request(false))
	require.NoError(t, err)

	assert.Equal(t, OutputRemote, res.OutputType)
	assert.Equal(t, "https://notion.so/page-1", res.RemoteURL)
	assert.Empty(t, res.LocalPath)
	assert.Empty(t, res.Preview)
	assert.Equal(t, "2024-W10 Reflection (2024-03-04 ~ 2024-03-10)", res.Title)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "A steady week.", res.Summary.WeekSummary)
	assert.Equal(t, []string{"no Toggl time entries found"}, res.Warnings)

	assert.Equal(t, []string{"Old try"}, h.analyzer.previousTry, "history feeds the analyzer")
	assert.Equal(t, []string{"Old try"}, h.publisher.opts.PreviousTry)
	assert.Equal(t, []string{"Plan the day"}, h.history.saved)

	assert.Equal(t, []string{
		"config:start", "config:complete",
		"data_collection:start", "data_collection:complete",
		"analysis:start", "analysis:complete",
		"publish:start", "publish:complete",
	}, h.statuses())
}

func TestRun_CallerPreviousTryWinsOverHistory(t *testing.T) {
	h := newHarness(t)
	h.history.previous = []string{"From history"}

	req := h.request(false)
	req.PreviousTry = []string{"From caller"}
	_, err := h.app(nil, nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"From caller"}, h.analyzer.previousTry)
}

func TestRun_DryRunRendersPreview(t *testing.T) {
	h := newHarness(t)

	res, err := h.app(nil, nil).Run(context.Background(), h.request(true))
	require.NoError(t, err)

	assert.Equal(t, OutputPreview, res.OutputType)
	assert.True(t, strings.HasPrefix(res.Preview, "# 2024-W10 Reflection"))
	assert.Contains(t, res.Preview, "Plan the day")
	assert.Empty(t, res.RemoteURL)
	assert.Empty(t, res.LocalPath)
	assert.Nil(t, h.history.saved, "dry runs are not remembered")
	assert.Empty(t, h.fallback.text)
}

func TestRun_PublishFailureFallsBackLocally(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("notion: service unavailable")

	res, err := h.app(nil, nil).Run(context.Background(), h.request(false))
	require.NoError(t, err, "a local fallback is still a successful run")

	assert.Equal(t, OutputLocal, res.OutputType)
	assert.Empty(t, res.RemoteURL)
	require.NotEmpty(t, res.LocalPath)
	written, readErr := os.ReadFile(res.LocalPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(written), "# 2024-W10 Reflection")
	assert.Contains(t, string(written), res.Summary.WeekSummary)
	suggestions := res.Summary.Suggestions
	for _, items := range [][]string{suggestions.Keep, suggestions.Problem, suggestions.Try} {
		for _, item := range items {
			assert.Contains(t, string(written), "- "+item)
		}
	}

	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[1], "service unavailable")
	assert.Nil(t, h.history.saved)
	assert.Equal(t, "publish:error", h.statuses()[len(h.events)-1])
}

func TestRun_FallbackWriteFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("down")
	h.fallback.err = errors.New("disk full")

	res, err := h.app(nil, nil).Run(context.Background(), h.request(false))
	require.NoError(t, err)
	assert.Equal(t, OutputLocal, res.OutputType)
	assert.NotEmpty(t, res.LocalPath, "path is reported even when the write failed")
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "disk full")
}

func TestRun_AllSourcesFailedIsFatal(t *testing.T) {
	h := newHarness(t)
	h.collector.err = &report.AllSourcesFailedError{Errors: []report.SourceError{
		{Source: "GitHub", Err: errors.New("401")},
		{Source: "Toggl", Err: errors.New("503")},
	}}

	res, err := h.app(nil, nil).Run(context.Background(), h.request(false))
	require.Error(t, err)
	assert.Nil(t, res)

	var dcf *DataCollectionFailedError
	require.ErrorAs(t, err, &dcf)
	assert.Equal(t, "GitHub, Toggl", dcf.Source)
	assert.True(t, report.IsAllSourcesFailed(err))
	assert.Zero(t, h.publisher.calls)
	assert.Equal(t, "data_collection:error", h.statuses()[len(h.events)-1])
}

func TestRun_InvalidConfigStopsBeforeCollection(t *testing.T) {
	h := newHarness(t)
	cfg := &config.Config{Generative: config.GenerativeConfig{Provider: "none"}}

	_, err := h.app(cfg, nil).Run(context.Background(), h.request(false))

	var invalid *config.InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.MissingFields, "GITHUB_TOKEN")
	assert.Contains(t, invalid.MissingFields, "NOTION_PARENT_PAGE_ID")
	assert.Zero(t, h.collector.calls)
	assert.Equal(t, []string{"config:start", "config:error"}, h.statuses())
}

func TestRun_InvalidDateRange(t *testing.T) {
	h := newHarness(t)
	req := h.request(true)
	req.DateRange.End = req.DateRange.Start.Add(-time.Hour)

	_, err := h.app(nil, nil).Run(context.Background(), req)
	var invalid *config.InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.collector.calls)
}

func TestRun_HistoryFailuresAreWarnings(t *testing.T) {
	h := newHarness(t)
	h.history.loadErr = errors.New("corrupt yaml")
	h.history.saveErr = errors.New("read-only")

	res, err := h.app(nil, nil).Run(context.Background(), h.request(false))
	require.NoError(t, err)
	joined := strings.Join(res.Warnings, "\n")
	assert.Contains(t, joined, "corrupt yaml")
	assert.Contains(t, joined, "read-only")
	assert.Equal(t, OutputRemote, res.OutputType)
}

func TestRun_PanickingSinkDoesNotStopPipeline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := newHarness(t)

	req := h.request(false)
	req.OnProgress = func(ProgressEvent) { panic("observer bug") }

	res, err := h.app(nil, zap.New(core)).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, OutputRemote, res.OutputType)
	assert.Equal(t, 8, logs.FilterMessage("progress sink panicked").Len())
}

func TestRun_BuildsFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		GitHub:     config.GitHubConfig{Token: "gh", Repos: []string{"acme/api"}, Timeout: time.Second},
		Toggl:      config.TogglConfig{APIToken: "tg", Timeout: time.Second},
		Generative: config.GenerativeConfig{Provider: "none"},
		Output:     config.OutputConfig{Directory: dir},
		History:    config.HistoryConfig{File: filepath.Join(dir, "history.yaml")},
	}

	app := New(cfg, nil)
	require.NoError(t, app.build(context.Background(), zap.NewNop()))
	assert.NotNil(t, app.collector)
	assert.NotNil(t, app.analyzer)
	assert.NotNil(t, app.publisher)
	assert.NotNil(t, app.fallback)
	assert.NotNil(t, app.history)
}
