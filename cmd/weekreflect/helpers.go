package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Afrawles/weekreflect/internal/report"
)

// parseCommaList splits a comma- or pipe-separated string and trims whitespace.
func parseCommaList(input string) []string {
	if input == "" {
		return []string{}
	}

	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '|'
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// previousWeek returns Monday 00:00 to Sunday 23:59:59 UTC of the ISO week
// before the one containing now.
func previousWeek(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	daysSinceMonday := int(now.Weekday() - time.Monday)
	if daysSinceMonday < 0 {
		daysSinceMonday += 7
	}
	monday := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday-7, 0, 0, 0, 0, time.UTC)
	return monday, endOfDay(monday.AddDate(0, 0, 6))
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// resolveRange parses --start and --end. Missing values default to the
// previous ISO week; a lone --start spans the following six days.
func resolveRange(start, end string, now time.Time) (report.DateRange, error) {
	from, to := previousWeek(now)

	if start != "" {
		t, err := time.Parse(report.DateLayout, start)
		if err != nil {
			return report.DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		from = t.UTC()
		to = endOfDay(from.AddDate(0, 0, 6))
	}
	if end != "" {
		t, err := time.Parse(report.DateLayout, end)
		if err != nil {
			return report.DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		to = endOfDay(t)
	}

	return report.NewDateRange(from, to)
}
