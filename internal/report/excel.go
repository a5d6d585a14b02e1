package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type ExcelExporter struct {
	OutputDir string
}

func NewExcelExporter(outputDir string) *ExcelExporter {
	return &ExcelExporter{OutputDir: outputDir}
}

// Export writes a workbook with a Dashboard of daily buckets plus Projects,
// Commits and Time Entries sheets, and returns its path.
func (e *ExcelExporter) Export(data *IntegratedData) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(e.OutputDir, fmt.Sprintf("summary_%s_%s.xlsx",
		data.DateRange.Start.Format(DateLayout), data.DateRange.End.Format(DateLayout)))

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "#000000", Style: 1},
			{Type: "right", Color: "#000000", Style: 1},
			{Type: "top", Color: "#000000", Style: 1},
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.createDashboardSheet(f, data, headerStyle); err != nil {
		return "", fmt.Errorf("failed to create dashboard: %w", err)
	}
	if err := e.createProjectSheet(f, data, headerStyle); err != nil {
		return "", fmt.Errorf("failed to create projects sheet: %w", err)
	}
	if err := e.createCommitSheet(f, data, headerStyle); err != nil {
		return "", fmt.Errorf("failed to create commits sheet: %w", err)
	}
	if err := e.createTimeEntrySheet(f, data, headerStyle); err != nil {
		return "", fmt.Errorf("failed to create time entries sheet: %w", err)
	}

	if idx, err := f.GetSheetIndex("Dashboard"); err == nil {
		f.SetActiveSheet(idx)
	}
	// Sheet1 is created by NewFile; it is never written to.
	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(filename); err != nil {
		return "", fmt.Errorf("failed to save excel file: %w", err)
	}
	return filename, nil
}

func (e *ExcelExporter) createDashboardSheet(f *excelize.File, data *IntegratedData, headerStyle int) error {
	const sheet = "Dashboard"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Date From:")
	f.SetCellValue(sheet, "B1", data.DateRange.Start.Format(DateLayout))
	f.SetCellValue(sheet, "A2", "Date to:")
	f.SetCellValue(sheet, "B2", data.DateRange.End.Format(DateLayout))

	if err := writeHeader(f, sheet, 4, headerStyle, "Date", "Commits", "Time Entries", "Hours", "Projects"); err != nil {
		return err
	}

	row := 5
	var commits, entries int
	var hours float64
	for _, b := range data.DailyBuckets {
		setRow(f, sheet, row, b.Date, b.RecordCount, b.EntryCount, round2(b.Hours), strings.Join(b.Projects, ", "))
		commits += b.RecordCount
		entries += b.EntryCount
		hours += b.Hours
		row++
	}
	setRow(f, sheet, row, "Total", commits, entries, round2(hours), "")

	f.SetColWidth(sheet, "A", "A", 14)
	f.SetColWidth(sheet, "B", "D", 14)
	f.SetColWidth(sheet, "E", "E", 50)
	return nil
}

func (e *ExcelExporter) createProjectSheet(f *excelize.File, data *IntegratedData, headerStyle int) error {
	const sheet = "Projects"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 1, headerStyle, "#", "Kind", "Name", "Commits", "Time Entries", "Hours"); err != nil {
		return err
	}
	for i, b := range data.ProjectBuckets {
		setRow(f, sheet, i+2, i+1, keyKindDisplay(b.Key.Kind), b.Key.Name, b.RecordCount, b.EntryCount, round2(b.Hours))
	}
	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 15)
	f.SetColWidth(sheet, "C", "C", 40)
	f.SetColWidth(sheet, "D", "F", 14)
	return freezeHeader(f, sheet)
}

func (e *ExcelExporter) createCommitSheet(f *excelize.File, data *IntegratedData, headerStyle int) error {
	const sheet = "Commits"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 1, headerStyle, "#", "Date", "Repository", "Message", "Additions", "Deletions", "URL"); err != nil {
		return err
	}
	for i, r := range data.Records {
		setRow(f, sheet, i+2, i+1, r.Date(), r.Group, r.Title, r.Additions, r.Deletions, r.URL)
	}
	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 12)
	f.SetColWidth(sheet, "C", "C", 30)
	f.SetColWidth(sheet, "D", "D", 60)
	f.SetColWidth(sheet, "E", "F", 12)
	f.SetColWidth(sheet, "G", "G", 40)
	return freezeHeader(f, sheet)
}

func (e *ExcelExporter) createTimeEntrySheet(f *excelize.File, data *IntegratedData, headerStyle int) error {
	const sheet = "Time Entries"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, 1, headerStyle, "#", "Date", "Project", "Description", "Hours", "Tags"); err != nil {
		return err
	}
	for i, te := range data.TimeEntries {
		setRow(f, sheet, i+2, i+1, te.Date(), projectOrUnassigned(te.Project), te.Description, round2(te.Hours()), strings.Join(te.Tags, ", "))
	}
	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 12)
	f.SetColWidth(sheet, "C", "C", 25)
	f.SetColWidth(sheet, "D", "D", 60)
	f.SetColWidth(sheet, "E", "F", 14)
	return freezeHeader(f, sheet)
}

func writeHeader(f *excelize.File, sheet string, row, style int, headers ...string) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		f.SetCellValue(sheet, cell, v)
	}
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func keyKindDisplay(kind KeyKind) string {
	if kind == KeyOriginGroup {
		return "Repository"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(kind), "_", " "))
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
