// Package narrative turns integrated activity data into a written reflection.
//
// Analyze never fails. The week summary and the Keep/Problem/Try suggestions
// each try the generative backend first and fall back independently to a
// deterministic rendition built from the statistics alone.
package narrative

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Afrawles/weekreflect/internal/llm"
	"github.com/Afrawles/weekreflect/internal/report"
)

const defaultCallTimeout = 90 * time.Second

// DailySummary lists what happened on one active date.
type DailySummary struct {
	Date        string   `json:"date"`
	RecordCount int      `json:"record_count"`
	Hours       float64  `json:"hours"`
	Highlights  []string `json:"highlights"`
}

// Suggestions is a Keep/Problem/Try retrospective. No category is ever empty.
type Suggestions struct {
	Keep    []string `json:"keep"`
	Problem []string `json:"problem"`
	Try     []string `json:"try"`
}

// TrendItem is one bucket's share of the period's activity.
type TrendItem struct {
	Key        report.BucketKey `json:"key"`
	Percentage float64          `json:"percentage"`
}

// Result is the narrative for one period.
type Result struct {
	DailySummaries []DailySummary `json:"daily_summaries"`
	WeekSummary    string         `json:"week_summary"`
	Insights       []string       `json:"insights"`
	Suggestions    Suggestions    `json:"suggestions"`
	Trend          []TrendItem    `json:"trend,omitempty"`

	// AIEnabled reports whether the week summary came from the backend.
	AIEnabled bool `json:"ai_enabled"`
	// SuggestionsAIEnabled reports the same for the suggestions.
	SuggestionsAIEnabled bool `json:"suggestions_ai_enabled"`
}

// Analyzer builds narratives. A nil generator always uses the fallbacks.
type Analyzer struct {
	gen         llm.Generator
	logger      *zap.Logger
	printer     *message.Printer
	callTimeout time.Duration
}

type Option func(*Analyzer)

// WithCallTimeout bounds each generative call.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAnalyzer(gen llm.Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:         gen,
		logger:      zap.NewNop(),
		printer:     message.NewPrinter(language.English),
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze builds the full narrative for data. previousTry carries the Try
// items of the last reflection, if any.
func (a *Analyzer) Analyze(ctx context.Context, data *report.IntegratedData, previousTry []string) *Result {
	res := &Result{
		DailySummaries: BuildDailySummaries(data),
		Insights:       a.insights(data),
		Trend:          BuildTrend(data.ProjectBuckets),
	}

	summary, err := a.aiWeekSummary(ctx, data)
	if err != nil {
		a.logger.Warn("week summary fell back to template", zap.Error(err))
		res.WeekSummary = a.FallbackWeekSummary(data)
	} else {
		res.WeekSummary = summary
		res.AIEnabled = true
	}

	suggestions, err := a.aiSuggestions(ctx, data, res.WeekSummary, previousTry)
	if err != nil {
		a.logger.Warn("suggestions fell back to rules", zap.Error(err))
		res.Suggestions = FallbackSuggestions(data)
	} else {
		res.Suggestions = suggestions
		res.SuggestionsAIEnabled = true
	}

	return res
}

func (a *Analyzer) generate(ctx context.Context, req llm.Request) (string, error) {
	if a.gen == nil {
		return "", llm.ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return a.gen.Generate(ctx, req)
}
