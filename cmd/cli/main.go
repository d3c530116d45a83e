package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"goveg/adapters/filestore"
	"goveg/app"
	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/internal/config"
	"goveg/internal/container"
	"goveg/internal/log"
	"goveg/internal/testkit"
)

// codeVersion is stamped into every run manifest
const codeVersion = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "goveg-cli",
		Short: "GoVeg CLI for surveying image archives and detecting resilience loss",
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newSurveyCmd(),
		newAnalyzeCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newGenerateCmd() *cobra.Command {
	var dates, stepDays, rows, cols int
	var fromFraction, toFraction float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "generate [site] [archive-file]",
		Short: "Write a synthetic image archive with slowly declining vegetation",
		Long: `Generate a deterministic synthetic archive for one site.

Vegetated cover declines linearly across the date range, which makes the
archive a useful fixture for exercising the survey and analysis pipeline
end to end.

Example: goveg-cli generate test-site archive.json --dates 48 --seed 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), args[0], args[1], dates, stepDays, rows, cols, fromFraction, toFraction, seed)
		},
	}

	cmd.Flags().IntVar(&dates, "dates", 36, "Number of acquisition dates")
	cmd.Flags().IntVar(&stepDays, "step-days", 30, "Days between acquisitions")
	cmd.Flags().IntVar(&rows, "rows", 200, "Image rows")
	cmd.Flags().IntVar(&cols, "cols", 200, "Image columns")
	cmd.Flags().Float64Var(&fromFraction, "from-fraction", 0.75, "Vegetated fraction at the first date")
	cmd.Flags().Float64Var(&toFraction, "to-fraction", 0.35, "Vegetated fraction at the last date")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")

	return cmd
}

func newSurveyCmd() *cobra.Command {
	var archivePath, climatePath, outDir string
	var analyze, storeTiles bool
	var seed int64

	cmd := &cobra.Command{
		Use:   "survey [site]",
		Short: "Survey an image archive into a vegetation time series",
		Long: `Walk every acquisition date of a site's image archive, score the
vegetation metrics, and persist the records to the ledger. By default the
resilience analysis runs immediately on the surveyed series.

With LEDGER_DSN set the artifacts land in Postgres and stay queryable
through the results API; without it they live only for this process.

Example: goveg-cli survey serengeti --archive archive.json --out results/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSurvey(cmd.Context(), args[0], archivePath, climatePath, outDir, analyze, storeTiles, seed)
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "Image archive file (falls back to ARCHIVE_PATH)")
	cmd.Flags().StringVar(&climatePath, "climate", "", "Climate spreadsheet overlay (falls back to CLIMATE_FILE)")
	cmd.Flags().StringVar(&outDir, "out", "output", "Directory for exported results")
	cmd.Flags().BoolVar(&analyze, "analyze", true, "Run the resilience analysis after the survey")
	cmd.Flags().BoolVar(&storeTiles, "store-tiles", false, "Persist per-tile records to the ledger")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var outDir, variablesFlag string
	var seed int64

	cmd := &cobra.Command{
		Use:   "analyze [site] [summary-file]",
		Short: "Run the resilience analysis on an exported results summary",
		Long: `Run the statistical pipeline on a previously exported results summary
without re-surveying the imagery. The summary may come from a survey run
or from an external collection in the same format.

Example: goveg-cli analyze serengeti output/results_summary.json --seed 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], args[1], outDir, variablesFlag, seed)
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "output", "Directory for exported results")
	cmd.Flags().StringVar(&variablesFlag, "variables", "", "Comma-separated variable keys (default: all analyzable)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")

	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list, newest first")

	return cmd
}

// loadConfig reads the environment configuration and wires logging
func loadConfig() (*config.Config, error) {
	// .env values feed config.Load through the environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func runGenerate(ctx context.Context, siteStr, path string, count, stepDays, rows, cols int, fromFraction, toFraction float64, seed int64) error {
	site, err := core.ParseSiteID(siteStr)
	if err != nil {
		return err
	}

	fmt.Printf("Generating %d-date synthetic archive for site %s...\n", count, site)

	fake := testkit.NewFakeImageryAdapter()
	rng := rand.New(rand.NewSource(seed))
	start := core.NewDate(2016, time.January, 1)
	testkit.SeedDecliningArchive(fake, site, start, count, stepDays, rows, cols, fromFraction, toFraction, rng)

	dates, err := fake.ListDates(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to list generated dates: %w", err)
	}

	archive := make([]filestore.ArchiveDate, 0, len(dates))
	for _, date := range dates {
		entry := filestore.ArchiveDate{Date: date}
		if img, err := fake.FetchImage(ctx, site, date); err == nil {
			entry.Image = img
		}
		if climate, err := fake.FetchClimate(ctx, site, date); err == nil {
			entry.Climate = &climate
		}
		archive = append(archive, entry)
	}

	if err := filestore.WriteImageArchive(path, site, archive); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	first, last := dates[0], dates[len(dates)-1]
	fmt.Printf("\n=== SYNTHETIC ARCHIVE ===\n")
	fmt.Printf("Site: %s\n", site)
	fmt.Printf("Dates: %d (%s to %s)\n", len(dates), first, last)
	fmt.Printf("Grid: %dx%d\n", rows, cols)
	fmt.Printf("Vegetated Fraction: %.2f declining to %.2f\n", fromFraction, toFraction)
	fmt.Printf("File: %s\n", path)

	fmt.Printf("\n✅ ARCHIVE WRITTEN\n")
	return nil
}

func runSurvey(ctx context.Context, siteStr, archivePath, climatePath, outDir string, analyze, storeTiles bool, seed int64) error {
	site, err := core.ParseSiteID(siteStr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if archivePath != "" {
		cfg.Paths.ArchivePath = archivePath
	}
	if climatePath != "" {
		cfg.Paths.ClimateFile = climatePath
	}
	if storeTiles {
		cfg.Survey.StoreTileRecords = true
	}
	cfg.Analysis.Seed = seed
	if cfg.Paths.ArchivePath == "" {
		return fmt.Errorf("an image archive is required (--archive or ARCHIVE_PATH)")
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)
	if err := c.Init(ctx); err != nil {
		return err
	}

	runID := core.RunID(core.NewID())
	fmt.Printf("Surveying site %s (run %s)...\n", site, runID)

	multi, skipped, err := c.SurveyService.Survey(ctx, runID, site)
	if err != nil {
		return fmt.Errorf("survey failed: %w", err)
	}

	first, last := multi.Span()
	fmt.Printf("\n=== SURVEY RESULTS ===\n")
	fmt.Printf("Run ID: %s\n", runID)
	fmt.Printf("Usable Dates: %d (%s to %s)\n", multi.Len(), first, last)
	fmt.Printf("Skipped Dates: %d\n", len(skipped))
	for i, skip := range skipped {
		if i >= 5 {
			fmt.Printf("   ... and %d more\n", len(skipped)-5)
			break
		}
		fmt.Printf("   %s: %s\n", skip.Date, skip.Reason)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	summaryPath := filepath.Join(outDir, "results_summary.json")
	if err := filestore.WriteResultsSummary(summaryPath, multi, nil); err != nil {
		return fmt.Errorf("failed to write results summary: %w", err)
	}
	fmt.Printf("Results Summary: %s\n", summaryPath)

	if !analyze {
		fmt.Printf("\n✅ SURVEY COMPLETED\n")
		return nil
	}

	result, err := c.AnalysisService.RunAnalysis(ctx, app.AnalysisRequest{
		Site:        site,
		Multi:       multi,
		Skipped:     skipped,
		Params:      cfg.Analysis.Params(),
		CodeVersion: codeVersion,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printAnalysis(result)
	return writeExports(outDir, result)
}

func runAnalyze(ctx context.Context, siteStr, summaryPath, outDir, variablesFlag string, seed int64) error {
	site, err := core.ParseSiteID(siteStr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Analysis never opens an image archive
	cfg.Paths.ArchivePath = ""
	cfg.Analysis.Seed = seed

	multi, err := filestore.ReadResultsSummary(summaryPath, site)
	if err != nil {
		return fmt.Errorf("failed to read results summary: %w", err)
	}
	fmt.Printf("Loaded %d dates from %s\n", multi.Len(), summaryPath)

	var variables []core.VariableKey
	if variablesFlag != "" {
		for _, raw := range strings.Split(variablesFlag, ",") {
			key, err := core.ParseVariableKey(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			variables = append(variables, key)
		}
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)
	if err := c.Init(ctx); err != nil {
		return err
	}

	result, err := c.AnalysisService.RunAnalysis(ctx, app.AnalysisRequest{
		Site:        site,
		Multi:       multi,
		Params:      cfg.Analysis.Params(),
		Variables:   variables,
		CodeVersion: codeVersion,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printAnalysis(result)
	return writeExports(outDir, result)
}

func runRuns(ctx context.Context, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Paths.ArchivePath = ""

	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)
	if err := c.Init(ctx); err != nil {
		return err
	}

	manifests, err := c.Ledger.ListRunManifests(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(manifests) == 0 {
		fmt.Println("No runs recorded in the ledger.")
		return nil
	}

	fmt.Printf("\n=== RECORDED RUNS ===\n")
	for i, manifest := range manifests {
		fmt.Printf("%d. %s\n", i+1, manifest.RunID)
		fmt.Printf("   Site: %s  Seed: %d  Created: %s\n",
			manifest.Site, manifest.Seed, manifest.CreatedAt.Time().Format(time.RFC3339))
		fmt.Printf("   Params: %s  Plan: %s\n", manifest.ParamsHash, manifest.PlanHash)
	}
	return nil
}

// printAnalysis renders one analysis run section by section
func printAnalysis(result *resilience.AnalysisResult) {
	fmt.Printf("\n=== ANALYSIS RESULTS ===\n")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Site: %s\n", result.Site)
	fmt.Printf("Series Hash: %s\n", result.SeriesHash)
	fmt.Printf("Plan Hash: %s\n", result.PlanHash)
	fmt.Printf("Variables Analyzed: %d\n", len(result.Variables))

	significant := 0
	for _, analysis := range result.Variables {
		fmt.Printf("\n=== %s ===\n", strings.ToUpper(analysis.Variable.String()))
		if reason, ok := analysis.Notes["failed"]; ok {
			fmt.Printf("❌ %v\n", reason)
			continue
		}
		if reason, ok := analysis.Notes["skipped"]; ok {
			fmt.Printf("Skipped: %v\n", reason)
			continue
		}

		fmt.Printf("Observations: %d raw, %d resampled\n", analysis.Raw.Len(), analysis.Resampled.Len())
		fmt.Printf("Outliers Pruned: %d\n", analysis.OutliersPruned)
		fmt.Printf("AR(1) Whole Series: phi=%.4f (se %.4f, n=%d)\n",
			analysis.AR1Whole.Phi, analysis.AR1Whole.StdErr, analysis.AR1Whole.N)

		for _, trend := range analysis.Trends {
			marker := "  "
			if trend.Significant {
				marker = "⚠️ "
				significant++
			}
			fmt.Printf("%s%s trend: tau=%.3f p=%.4f surrogates=%.3f agreement=%.2f\n",
				marker, trend.Indicator, trend.Tau, trend.PValue,
				trend.SurrogateFraction, trend.SensitivityAgreement)
		}
	}

	if significant > 0 {
		fmt.Printf("\n⚠️  %d SIGNIFICANT EARLY WARNING TRENDS DETECTED\n", significant)
	} else {
		fmt.Printf("\n✅ NO SIGNIFICANT EARLY WARNING TRENDS\n")
	}
}

// writeExports persists the analysis summary and the slimmed CSV
func writeExports(outDir string, result *resilience.AnalysisResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	summaryPath := filepath.Join(outDir, "analysis_summary.json")
	if err := filestore.WriteAnalysisSummary(summaryPath, result); err != nil {
		return fmt.Errorf("failed to write analysis summary: %w", err)
	}

	csvPath := filepath.Join(outDir, "slimmed_time_series.csv")
	if err := filestore.WriteSlimmedCSV(csvPath, result); err != nil {
		return fmt.Errorf("failed to write slimmed series: %w", err)
	}

	fmt.Printf("\nAnalysis Summary: %s\n", summaryPath)
	fmt.Printf("Slimmed Series: %s\n", csvPath)
	fmt.Printf("\n✅ ANALYSIS COMPLETED\n")
	return nil
}
