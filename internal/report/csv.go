package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type CSVExporter struct {
	OutputDir string
}

func NewCSVExporter(outputDir string) *CSVExporter {
	return &CSVExporter{OutputDir: outputDir}
}

// Export writes summary_<range>_daily.csv and summary_<range>_projects.csv
// and returns their paths.
func (e *CSVExporter) Export(data *IntegratedData) ([]string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	prefix := fmt.Sprintf("summary_%s_%s",
		data.DateRange.Start.Format(DateLayout), data.DateRange.End.Format(DateLayout))

	daily := filepath.Join(e.OutputDir, prefix+"_daily.csv")
	if err := e.exportDaily(data, daily); err != nil {
		return nil, fmt.Errorf("failed to export daily buckets: %w", err)
	}

	projects := filepath.Join(e.OutputDir, prefix+"_projects.csv")
	if err := e.exportProjects(data, projects); err != nil {
		return nil, fmt.Errorf("failed to export project buckets: %w", err)
	}

	return []string{daily, projects}, nil
}

func (e *CSVExporter) exportDaily(data *IntegratedData, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	rows := [][]string{
		{"Date From:", data.DateRange.Start.Format(DateLayout)},
		{"Date to:", data.DateRange.End.Format(DateLayout)},
		{""},
		{"Date", "Commits", "Time Entries", "Hours", "Projects"},
	}

	var commits, entries int
	var hours float64
	for _, b := range data.DailyBuckets {
		rows = append(rows, []string{
			b.Date,
			strconv.Itoa(b.RecordCount),
			strconv.Itoa(b.EntryCount),
			formatHours(b.Hours),
			strings.Join(b.Projects, ", "),
		})
		commits += b.RecordCount
		entries += b.EntryCount
		hours += b.Hours
	}
	rows = append(rows, []string{"Total", strconv.Itoa(commits), strconv.Itoa(entries), formatHours(hours), ""})

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func (e *CSVExporter) exportProjects(data *IntegratedData, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	rows := [][]string{{"#", "Kind", "Name", "Commits", "Time Entries", "Hours"}}
	for i, b := range data.ProjectBuckets {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			keyKindDisplay(b.Key.Kind),
			b.Key.Name,
			strconv.Itoa(b.RecordCount),
			strconv.Itoa(b.EntryCount),
			formatHours(b.Hours),
		})
	}

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}
