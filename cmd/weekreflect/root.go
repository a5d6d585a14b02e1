package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/config"
	"github.com/Afrawles/weekreflect/internal/logging"
	"github.com/Afrawles/weekreflect/internal/report"
	"github.com/Afrawles/weekreflect/internal/weekreflect"
)

var (
	startDate   string
	endDate     string
	configPath  string
	previousTry string
	dryRun      bool
	jsonOutput  bool
	csvOutput   bool
	xlsxOutput  bool
	printResult bool
	logLevel    string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "weekreflect",
	Short: "Write a weekly reflection from GitHub commits and Toggl time entries",
	Long: `weekreflect collects a week of GitHub commits and Toggl time entries,
summarises them with a generative backend (or deterministic templates when none
is available), and publishes a Keep/Problem/Try reflection page to Notion. When
Notion is unreachable the reflection is saved locally as markdown instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReflect,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (YYYY-MM-DD), defaults to Monday of last week")
	rootCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (YYYY-MM-DD), defaults to six days after start")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/weekreflect/config.yaml)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the reflection instead of publishing it")
	rootCmd.Flags().StringVar(&previousTry, "previous-try", "", "Comma or pipe separated Try items from last week (default: read from history)")

	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Also export the collected data as JSON")
	rootCmd.Flags().BoolVar(&csvOutput, "csv", false, "Also export daily and project buckets as CSV")
	rootCmd.Flags().BoolVar(&xlsxOutput, "xlsx", false, "Also export an Excel workbook")
	rootCmd.Flags().BoolVar(&printResult, "print-result", false, "Print the run result as JSON on stdout")

	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
}

func runReflect(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected error", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	dr, err := resolveRange(startDate, endDate, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := newSpinner("Starting")
	app := weekreflect.New(cfg, logger)
	res, err := app.Run(ctx, weekreflect.Request{
		DateRange:   dr,
		DryRun:      dryRun,
		PreviousTry: parseCommaList(previousTry),
		OnProgress:  progressSink(bar),
	})
	finishBar(bar)
	if err != nil {
		return err
	}

	exportData(cfg.Output.Directory, res.Data, logger)

	if printResult {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(res)
	return nil
}

func progressSink(bar *progressbar.ProgressBar) weekreflect.ProgressFunc {
	labels := map[weekreflect.Stage]string{
		weekreflect.StageConfig:         "Checking configuration",
		weekreflect.StageDataCollection: "Fetching commits and time entries",
		weekreflect.StageAnalysis:       "Writing summary",
		weekreflect.StagePublish:        "Publishing",
	}
	return func(ev weekreflect.ProgressEvent) {
		label := labels[ev.Stage]
		switch ev.Status {
		case weekreflect.StatusStart:
			bar.Describe(label)
		case weekreflect.StatusComplete:
			bar.Describe(label + ": done")
		case weekreflect.StatusError:
			bar.Describe(label + ": failed")
		}
		_ = bar.Add(1)
	}
}

func exportData(dir string, data *report.IntegratedData, logger *zap.Logger) {
	if data == nil || !(jsonOutput || csvOutput || xlsxOutput) {
		return
	}

	var steps int
	for _, on := range []bool{jsonOutput, csvOutput, xlsxOutput} {
		if on {
			steps++
		}
	}
	exportBar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("Exporting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	)
	defer finishBar(exportBar)

	var written []string
	if jsonOutput {
		name := fmt.Sprintf("reflection_%s_%s.json",
			data.DateRange.Start.Format(report.DateLayout), data.DateRange.End.Format(report.DateLayout))
		if path, err := report.NewExporter(dir).ExportJSON(data, name); err != nil {
			logger.Error("failed to export JSON", zap.Error(err))
		} else {
			written = append(written, path)
		}
		_ = exportBar.Add(1)
	}
	if csvOutput {
		if paths, err := report.NewCSVExporter(dir).Export(data); err != nil {
			logger.Error("failed to export CSV", zap.Error(err))
		} else {
			written = append(written, paths...)
		}
		_ = exportBar.Add(1)
	}
	if xlsxOutput {
		if path, err := report.NewExcelExporter(dir).Export(data); err != nil {
			logger.Error("failed to export workbook", zap.Error(err))
		} else {
			written = append(written, path)
		}
		_ = exportBar.Add(1)
	}

	for _, path := range written {
		logger.Info("data exported", zap.String("file", path))
	}
}

func printSummary(res *weekreflect.Result) {
	fmt.Printf("\n%s\n", res.Title)
	switch res.OutputType {
	case weekreflect.OutputRemote:
		fmt.Printf("  -> published to %s\n", res.RemoteURL)
	case weekreflect.OutputLocal:
		fmt.Printf("  -> publishing failed, saved to %s\n", res.LocalPath)
	case weekreflect.OutputPreview:
		fmt.Printf("\n%s\n", res.Preview)
	}

	if len(res.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range res.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

func printError(err error) {
	var invalid *config.InvalidError
	if errors.As(err, &invalid) && len(invalid.MissingFields) > 0 {
		fmt.Fprintln(os.Stderr, "Missing required settings:")
		for _, f := range invalid.MissingFields {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		for _, p := range invalid.Problems {
			fmt.Fprintf(os.Stderr, "  ! %s\n", p)
		}
		fmt.Fprintln(os.Stderr, "Set them in the environment or the config file.")
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", strings.TrimSpace(err.Error()))
}

func newSpinner(description string) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWriter(os.Stderr),
	)
	_ = bar.RenderBlank()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
