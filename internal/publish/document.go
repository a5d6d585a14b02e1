package publish

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/report"
)

// Fixed instruction lines under the retrospective headings.
const (
	KeepInstruction    = "What went well and should continue?"
	ProblemInstruction = "What got in the way this week?"
	TryInstruction     = "What will you try differently next week?"
)

type elementKind int

const (
	kindHeading2 elementKind = iota
	kindHeading3
	kindParagraph
	kindInstruction
	kindBullet
	kindDivider
)

// element is one renderable line. Blocks and markdown are both rendered from
// the same element list so their section order can never drift apart.
type element struct {
	kind elementKind
	text string
	url  string
}

// buildDocument lays out the reflection:
// summary, insights, per-source details, previous Try items, Keep/Problem/Try,
// then per-day details.
func buildDocument(n *narrative.Result, data *report.IntegratedData, previousTry []string) []element {
	var doc []element
	add := func(kind elementKind, text string) {
		doc = append(doc, element{kind: kind, text: text})
	}

	add(kindHeading2, "Week Summary")
	for _, para := range strings.Split(n.WeekSummary, "\n") {
		if para = strings.TrimSpace(para); para != "" {
			add(kindParagraph, para)
		}
	}

	if len(n.Insights) > 0 {
		add(kindHeading2, "Insights")
		for _, in := range n.Insights {
			add(kindBullet, in)
		}
		if len(n.Trend) > 0 {
			add(kindHeading3, "Activity Share")
			for _, t := range n.Trend {
				add(kindBullet, fmt.Sprintf("%s: %.1f%%", t.Key.Name, t.Percentage))
			}
		}
	}

	doc = append(doc, recordSections(data.Records)...)
	doc = append(doc, entrySections(data.TimeEntries)...)

	if len(previousTry) > 0 {
		add(kindHeading2, "Previous Try Items")
		for _, item := range previousTry {
			add(kindBullet, item)
		}
	}

	retro := []struct {
		heading, instruction string
		items                []string
	}{
		{"Keep", KeepInstruction, n.Suggestions.Keep},
		{"Problem", ProblemInstruction, n.Suggestions.Problem},
		{"Try", TryInstruction, n.Suggestions.Try},
	}
	for _, r := range retro {
		add(kindHeading2, r.heading)
		add(kindInstruction, r.instruction)
		for _, item := range r.items {
			add(kindBullet, item)
		}
	}

	if len(n.DailySummaries) > 0 {
		add(kindDivider, "")
		add(kindHeading2, "Daily Details")
		for _, d := range n.DailySummaries {
			add(kindHeading3, fmt.Sprintf("%s (%s)", d.Date, weekday(d.Date)))
			for _, h := range d.Highlights {
				add(kindBullet, h)
			}
		}
	}

	return doc
}

// recordSections groups commits by repository, repositories by name.
func recordSections(records []report.ActivityRecord) []element {
	if len(records) == 0 {
		return nil
	}
	groups := make(map[string][]report.ActivityRecord)
	for _, r := range records {
		groups[r.Group] = append(groups[r.Group], r)
	}

	doc := []element{{kind: kindHeading2, text: "Commits"}}
	for _, name := range sortedKeys(groups) {
		rs := groups[name]
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Timestamp.Before(rs[j].Timestamp)
		})
		doc = append(doc, element{kind: kindHeading3, text: fmt.Sprintf("%s (%d)", name, len(rs))})
		for _, r := range rs {
			doc = append(doc, element{kind: kindBullet, text: r.Date() + " " + r.Title, url: r.URL})
		}
	}
	return doc
}

// entrySections groups time entries by project and merges equal descriptions.
func entrySections(entries []report.TimeEntry) []element {
	if len(entries) == 0 {
		return nil
	}

	type line struct {
		description string
		hours       float64
	}
	groups := make(map[string][]*line)
	totals := make(map[string]float64)
	for _, e := range entries {
		project := e.Project
		if project == "" {
			project = report.UnassignedProject
		}
		desc := strings.TrimSpace(e.Description)
		if desc == "" {
			desc = "(no description)"
		}
		totals[project] += e.Hours()

		var found *line
		for _, l := range groups[project] {
			if l.description == desc {
				found = l
				break
			}
		}
		if found == nil {
			found = &line{description: desc}
			groups[project] = append(groups[project], found)
		}
		found.hours += e.Hours()
	}

	doc := []element{{kind: kindHeading2, text: "Time Tracked"}}
	for _, project := range sortedKeys(groups) {
		lines := groups[project]
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].hours > lines[j].hours
		})
		doc = append(doc, element{kind: kindHeading3, text: fmt.Sprintf("%s (%.1fh)", project, totals[project])})
		for _, l := range lines {
			doc = append(doc, element{kind: kindBullet, text: fmt.Sprintf("%s (%.1fh)", l.description, l.hours)})
		}
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func weekday(date string) string {
	t, err := time.Parse(report.DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}
