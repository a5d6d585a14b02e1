package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceError records why one source could not be read.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// AllSourcesFailedError is returned when no source produced data.
type AllSourcesFailedError struct {
	Errors []SourceError
}

func (e *AllSourcesFailedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, se := range e.Errors {
		parts = append(parts, se.Error())
	}
	return "failed to fetch from all sources: " + strings.Join(parts, "; ")
}

func (e *AllSourcesFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, se := range e.Errors {
		errs = append(errs, se)
	}
	return errs
}

// Aggregator fetches both sources concurrently and merges them.
type Aggregator struct {
	Records     RecordSource
	TimeEntries TimeEntrySource
	logger      *zap.Logger
}

func NewAggregator(records RecordSource, entries TimeEntrySource, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		Records:     records,
		TimeEntries: entries,
		logger:      logger,
	}
}

// CollectAndIntegrate reads both sources, turns a missing or empty source
// into a warning, and fails only when both sources failed.
func (a *Aggregator) CollectAndIntegrate(ctx context.Context, r DateRange) (*IntegratedData, error) {
	var (
		records    []ActivityRecord
		entries    []TimeEntry
		recordsErr error
		entriesErr error
	)

	// Each branch owns its variables; nothing is shared until Wait returns.
	// A plain Group is used so one failing branch does not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		records, recordsErr = a.Records.FetchRecords(ctx, r)
		return nil
	})
	g.Go(func() error {
		entries, entriesErr = a.TimeEntries.FetchTimeEntries(ctx, r)
		return nil
	})
	_ = g.Wait()

	data := &IntegratedData{DateRange: r}
	var failures []SourceError

	if recordsErr != nil {
		failures = append(failures, SourceError{Source: a.Records.Name(), Err: recordsErr})
		data.Warnings = append(data.Warnings, Warning{
			Kind:    WarningPartialSource,
			Source:  a.Records.Name(),
			Message: recordsErr.Error(),
		})
		a.logger.Warn("source failed", zap.String("source", a.Records.Name()), zap.Error(recordsErr))
		records = nil
	} else if len(records) == 0 {
		data.Warnings = append(data.Warnings, Warning{
			Kind:    WarningNoRecords,
			Source:  a.Records.Name(),
			Message: fmt.Sprintf("no %s activity found for %s", a.Records.Name(), r),
		})
	}

	if entriesErr != nil {
		failures = append(failures, SourceError{Source: a.TimeEntries.Name(), Err: entriesErr})
		data.Warnings = append(data.Warnings, Warning{
			Kind:    WarningPartialSource,
			Source:  a.TimeEntries.Name(),
			Message: entriesErr.Error(),
		})
		a.logger.Warn("source failed", zap.String("source", a.TimeEntries.Name()), zap.Error(entriesErr))
		entries = nil
	} else if len(entries) == 0 {
		data.Warnings = append(data.Warnings, Warning{
			Kind:    WarningNoTimeEntries,
			Source:  a.TimeEntries.Name(),
			Message: fmt.Sprintf("no %s time entries found for %s", a.TimeEntries.Name(), r),
		})
	}

	if len(failures) == 2 {
		return nil, &AllSourcesFailedError{Errors: failures}
	}

	data.Records = nonNil(records)
	data.TimeEntries = nonNil(entries)
	data.DailyBuckets = BuildDailyBuckets(r, data.Records, data.TimeEntries)
	data.ProjectBuckets = BuildProjectBuckets(data.Records, data.TimeEntries)

	a.logger.Info("sources integrated",
		zap.Int("records", len(data.Records)),
		zap.Int("time_entries", len(data.TimeEntries)),
		zap.Int("active_days", len(data.DailyBuckets)),
		zap.Int("warnings", len(data.Warnings)),
	)
	return data, nil
}

// IsAllSourcesFailed reports whether err came from an aggregation where no
// source succeeded.
func IsAllSourcesFailed(err error) bool {
	var target *AllSourcesFailedError
	return errors.As(err, &target)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
