package toggl

import (
	"context"

	"github.com/Afrawles/weekreflect/internal/report"
)

// Source adapts a Reader to report.TimeEntrySource.
type Source struct {
	Reader *Reader
}

func NewSource(reader *Reader) *Source {
	return &Source{Reader: reader}
}

var _ report.TimeEntrySource = (*Source)(nil)

func (s *Source) Name() string {
	return "Toggl"
}

func (s *Source) FetchTimeEntries(ctx context.Context, r report.DateRange) ([]report.TimeEntry, error) {
	return s.Reader.Fetch(ctx, r)
}
