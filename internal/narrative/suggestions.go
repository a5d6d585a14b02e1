package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Afrawles/weekreflect/internal/llm"
	"github.com/Afrawles/weekreflect/internal/report"
)

const highlightCount = 3

const suggestionsSystemPrompt = `You help a software developer run a Keep/Problem/Try retrospective.
Keep: practices worth continuing. Problem: what got in the way. Try: concrete experiments
for next week. If previous Try items are given, say in Keep or Problem whether they seem to
have happened. Respond with a single JSON object and nothing else:
{"keep": ["..."], "problem": ["..."], "try": ["..."]}
Use 1 to 3 short items per category.`

const (
	fillerKeep    = "Keep reviewing the week before planning the next one."
	fillerProblem = "No significant problems stood out this period."
	fillerTry     = "Pick one small improvement to try next week."
)

// ParseStatus tags the outcome of reading a backend response.
type ParseStatus int

const (
	Malformed ParseStatus = iota
	Parsed
)

func (s ParseStatus) String() string {
	if s == Parsed {
		return "parsed"
	}
	return "malformed"
}

// ParsedSuggestions is the tagged result of ParseSuggestions. Suggestions is
// only meaningful when Status is Parsed.
type ParsedSuggestions struct {
	Status      ParseStatus
	Suggestions Suggestions
	Reason      string
}

type suggestionsJSON struct {
	Keep     []string `json:"keep"`
	Problem  []string `json:"problem"`
	Try      []string `json:"try"`
	TryItems []string `json:"tryItems"`
}

// ParseSuggestions pulls the first JSON object out of text, tolerating prose
// and code fences around it. A response with no items at all is Malformed.
func ParseSuggestions(text string) ParsedSuggestions {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return ParsedSuggestions{Status: Malformed, Reason: "no JSON object in response"}
	}

	var parsed suggestionsJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return ParsedSuggestions{Status: Malformed, Reason: err.Error()}
	}

	s := Suggestions{
		Keep:    clean(parsed.Keep),
		Problem: clean(parsed.Problem),
		Try:     clean(append(parsed.Try, parsed.TryItems...)),
	}
	if len(s.Keep)+len(s.Problem)+len(s.Try) == 0 {
		return ParsedSuggestions{Status: Malformed, Reason: "all categories empty"}
	}
	return ParsedSuggestions{Status: Parsed, Suggestions: ensureNonEmpty(s)}
}

// ExtractJSONObject returns the first balanced {...} span in text that is
// valid JSON. Braces inside JSON strings are ignored.
func ExtractJSONObject(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

// matchBrace finds the brace closing the one at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func clean(items []string) []string {
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(it), "-*•"))
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

func ensureNonEmpty(s Suggestions) Suggestions {
	if len(s.Keep) == 0 {
		s.Keep = []string{fillerKeep}
	}
	if len(s.Problem) == 0 {
		s.Problem = []string{fillerProblem}
	}
	if len(s.Try) == 0 {
		s.Try = []string{fillerTry}
	}
	return s
}

// FallbackSuggestions derives suggestions from the statistics alone.
func FallbackSuggestions(data *report.IntegratedData) Suggestions {
	var s Suggestions
	records := len(data.Records)
	hours := data.TotalHours()
	activeDays := len(data.DailyBuckets)

	if records > 0 {
		s.Keep = append(s.Keep, fmt.Sprintf("Kept shipping: %d commits across %d repositories.", records, data.DistinctGroups()))
	}
	if hours > 0 {
		s.Keep = append(s.Keep, fmt.Sprintf("Tracked %.1f hours of focused work.", hours))
	}

	switch {
	case records == 0 && hours == 0:
		s.Problem = append(s.Problem, "No commits or tracked time were recorded this period.")
		s.Try = append(s.Try, "Block a short daily slot to commit progress and log time.")
	case activeDays < 3:
		s.Problem = append(s.Problem, fmt.Sprintf("Activity was concentrated on only %d day(s).", activeDays))
		s.Try = append(s.Try, "Spread work across more days with smaller, regular commits.")
	}
	if records > 0 && hours == 0 {
		s.Problem = append(s.Problem, "Commits were made but no time was tracked.")
		s.Try = append(s.Try, "Start a timer whenever picking up a task.")
	}
	if hours > 0 && records == 0 {
		s.Problem = append(s.Problem, "Time was tracked but nothing was committed.")
		s.Try = append(s.Try, "Commit work in progress more often.")
	}

	return ensureNonEmpty(s)
}

// Highlights returns the top records by size and the top time entries by
// duration, one line each.
func Highlights(data *report.IntegratedData) []string {
	records := append([]report.ActivityRecord(nil), data.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Size() > records[j].Size()
	})
	entries := append([]report.TimeEntry(nil), data.TimeEntries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DurationSeconds > entries[j].DurationSeconds
	})

	var out []string
	for i := 0; i < len(records) && i < highlightCount; i++ {
		out = append(out, recordLine(records[i]))
	}
	for i := 0; i < len(entries) && i < highlightCount; i++ {
		e := entries[i]
		c := consolidated{project: e.Project, description: strings.TrimSpace(e.Description), hours: e.Hours()}
		out = append(out, fmt.Sprintf("%s (%.1fh)", c.label(), c.hours))
	}
	return out
}

type suggestionsPayload struct {
	WeekSummary      string   `json:"weekSummary"`
	Highlights       []string `json:"highlights"`
	PreviousTryItems []string `json:"previousTryItems,omitempty"`
}

func (a *Analyzer) aiSuggestions(ctx context.Context, data *report.IntegratedData, weekSummary string, previousTry []string) (Suggestions, error) {
	body, err := json.MarshalIndent(suggestionsPayload{
		WeekSummary:      weekSummary,
		Highlights:       Highlights(data),
		PreviousTryItems: previousTry,
	}, "", "  ")
	if err != nil {
		return Suggestions{}, fmt.Errorf("failed to marshal suggestions payload: %w", err)
	}

	text, err := a.generate(ctx, llm.Request{
		System:      suggestionsSystemPrompt,
		Prompt:      string(body),
		MaxTokens:   800,
		Temperature: 0.4,
	})
	if err != nil {
		return Suggestions{}, err
	}

	parsed := ParseSuggestions(text)
	if parsed.Status != Parsed {
		return Suggestions{}, fmt.Errorf("suggestions response %s: %s", parsed.Status, parsed.Reason)
	}
	return parsed.Suggestions, nil
}
