package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Afrawles/weekreflect/internal/llm"
	"github.com/Afrawles/weekreflect/internal/report"
)

const maxPromptItems = 200

const summarySystemPrompt = `You write short weekly work reflections for a software developer.
Given their commits and tracked time as JSON, write 3 to 5 plain sentences describing
what they focused on, how the week went, and anything notable. No headings, no lists,
no markdown.`

// BuildDailySummaries lists one summary per retained daily bucket. Records are
// listed one per line; time entries are merged by project and description.
func BuildDailySummaries(data *report.IntegratedData) []DailySummary {
	recordsByDay := make(map[string][]report.ActivityRecord)
	for _, r := range data.Records {
		recordsByDay[r.Date()] = append(recordsByDay[r.Date()], r)
	}
	entriesByDay := make(map[string][]report.TimeEntry)
	for _, e := range data.TimeEntries {
		entriesByDay[e.Date()] = append(entriesByDay[e.Date()], e)
	}

	out := make([]DailySummary, 0, len(data.DailyBuckets))
	for _, b := range data.DailyBuckets {
		ds := DailySummary{Date: b.Date, RecordCount: b.RecordCount, Hours: b.Hours}

		records := recordsByDay[b.Date]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Timestamp.Before(records[j].Timestamp)
		})
		for _, r := range records {
			ds.Highlights = append(ds.Highlights, recordLine(r))
		}
		for _, c := range consolidate(entriesByDay[b.Date]) {
			ds.Highlights = append(ds.Highlights, fmt.Sprintf("%s (%.1fh)", c.label(), c.hours))
		}
		out = append(out, ds)
	}
	return out
}

type consolidated struct {
	project     string
	description string
	hours       float64
}

func (c consolidated) label() string {
	desc := c.description
	if desc == "" {
		desc = "(no description)"
	}
	if c.project == "" {
		return desc
	}
	return c.project + ": " + desc
}

// consolidate merges entries sharing (project, description), summing hours,
// sorted by hours descending.
func consolidate(entries []report.TimeEntry) []consolidated {
	type key struct{ project, description string }
	index := make(map[key]int)
	var out []consolidated
	for _, e := range entries {
		k := key{e.Project, strings.TrimSpace(e.Description)}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, consolidated{project: k.project, description: k.description})
		}
		out[i].hours += e.Hours()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].hours > out[j].hours
	})
	return out
}

func recordLine(r report.ActivityRecord) string {
	if r.Group == "" {
		return r.Title
	}
	return fmt.Sprintf("[%s] %s", r.Group, r.Title)
}

// insights returns the fixed, ordered statistics sentences.
func (a *Analyzer) insights(data *report.IntegratedData) []string {
	p := a.printer
	records := len(data.Records)
	hours := data.TotalHours()

	out := []string{
		p.Sprintf("%d commits recorded.", records),
		p.Sprintf("%.1f hours tracked.", hours),
	}
	if records > 0 && hours > 0 {
		out = append(out, p.Sprintf("%.2f commits per tracked hour.", float64(records)/hours))
	}
	if day, ok := mostActiveDay(data.DailyBuckets); ok {
		out = append(out, p.Sprintf("Most active day: %s (%s) with %d commits and %.1f hours.",
			day.Date, weekday(day.Date), day.RecordCount, day.Hours))
	}
	if n := len(data.ProjectBuckets); n > 1 {
		out = append(out, p.Sprintf("Work spread across %d repositories and projects.", n))
	}
	return out
}

// mostActiveDay scores each day by commits plus hours. Ties keep the
// earliest date.
func mostActiveDay(buckets []report.DailyBucket) (report.DailyBucket, bool) {
	var best report.DailyBucket
	found := false
	bestScore := -1.0
	for _, b := range buckets {
		score := float64(b.RecordCount) + b.Hours
		if score > bestScore {
			best, bestScore, found = b, score, true
		}
	}
	return best, found
}

func weekday(date string) string {
	t, err := time.Parse(report.DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}

// FallbackWeekSummary renders the deterministic summary, one fact per line.
func (a *Analyzer) FallbackWeekSummary(data *report.IntegratedData) string {
	p := a.printer
	lines := []string{
		p.Sprintf("Period: %s", data.DateRange.String()),
		p.Sprintf("Commits: %d across %d repositories", len(data.Records), data.DistinctGroups()),
		p.Sprintf("Tracked time: %.1f hours across %d projects", data.TotalHours(), data.DistinctProjects()),
		p.Sprintf("Active days: %d", len(data.DailyBuckets)),
	}
	return strings.Join(lines, "\n")
}

type summaryRecord struct {
	Title string `json:"title"`
	Group string `json:"repository"`
	Date  string `json:"date"`
}

type summaryEntry struct {
	Description string  `json:"description"`
	Project     string  `json:"project,omitempty"`
	Hours       float64 `json:"hours"`
	Date        string  `json:"date"`
}

type summaryPayload struct {
	Period      string          `json:"period"`
	Records     []summaryRecord `json:"records"`
	TimeEntries []summaryEntry  `json:"timeEntries"`
}

func (a *Analyzer) aiWeekSummary(ctx context.Context, data *report.IntegratedData) (string, error) {
	payload := summaryPayload{
		Period:      data.DateRange.String(),
		Records:     []summaryRecord{},
		TimeEntries: []summaryEntry{},
	}
	for i, r := range data.Records {
		if i == maxPromptItems {
			break
		}
		payload.Records = append(payload.Records, summaryRecord{Title: r.Title, Group: r.Group, Date: r.Date()})
	}
	for i, e := range data.TimeEntries {
		if i == maxPromptItems {
			break
		}
		payload.TimeEntries = append(payload.TimeEntries, summaryEntry{
			Description: e.Description,
			Project:     e.Project,
			Hours:       round1(e.Hours()),
			Date:        e.Date(),
		})
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary payload: %w", err)
	}

	text, err := a.generate(ctx, llm.Request{
		System:      summarySystemPrompt,
		Prompt:      string(body),
		MaxTokens:   600,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
