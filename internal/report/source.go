package report

import (
	"context"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is an inclusive range of instants, normalized to UTC.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalizes start and end to UTC and checks start <= end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start.UTC(), End: end.UTC()}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("invalid date range: %s is after %s",
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// Contains reports whether t falls inside the range, boundaries included.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days lists every calendar date in the range as YYYY-MM-DD, ascending.
func (r DateRange) Days() []string {
	var days []string
	start := r.Start.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(r.End.UTC()) {
		days = append(days, day.Format(DateLayout))
		day = day.AddDate(0, 0, 1)
	}
	return days
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + " to " + r.End.Format(DateLayout)
}

// ActivityRecord is one commit fetched from a repository.
type ActivityRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Group     string    `json:"group"`
	State     string    `json:"state,omitempty"`
	Additions int       `json:"additions,omitempty"`
	Deletions int       `json:"deletions,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// Size is the metric used to rank records. Line stats win when present,
// otherwise the message length stands in.
func (a ActivityRecord) Size() int {
	if n := a.Additions + a.Deletions; n > 0 {
		return n
	}
	return len(a.Title) + len(a.Body)
}

// Date returns the UTC calendar date of the record.
func (a ActivityRecord) Date() string {
	return a.Timestamp.UTC().Format(DateLayout)
}

// TimeEntry is one stopped unit of tracked time.
type TimeEntry struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	Project         string    `json:"project,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds int64     `json:"duration_seconds"`
	Tags            []string  `json:"tags,omitempty"`
}

// Hours returns the tracked duration in hours.
func (t TimeEntry) Hours() float64 {
	return float64(t.DurationSeconds) / 3600
}

// Date returns the UTC calendar date on which the entry started.
func (t TimeEntry) Date() string {
	return t.Start.UTC().Format(DateLayout)
}

// RecordSource fetches activity records for a date range.
type RecordSource interface {
	Name() string
	FetchRecords(ctx context.Context, r DateRange) ([]ActivityRecord, error)
}

// TimeEntrySource fetches time entries for a date range.
type TimeEntrySource interface {
	Name() string
	FetchTimeEntries(ctx context.Context, r DateRange) ([]TimeEntry, error)
}
