package github

import (
	"context"

	"github.com/Afrawles/weekreflect/internal/report"
)

// Source adapts a Reader and its repositories to report.RecordSource.
type Source struct {
	Reader *Reader
	Repos  []string
}

func NewSource(reader *Reader, repos []string) *Source {
	return &Source{Reader: reader, Repos: repos}
}

var _ report.RecordSource = (*Source)(nil)

func (s *Source) Name() string {
	return "GitHub"
}

func (s *Source) FetchRecords(ctx context.Context, r report.DateRange) ([]report.ActivityRecord, error) {
	return s.Reader.Fetch(ctx, s.Repos, r)
}
