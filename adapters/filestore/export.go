package filestore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/domain/series"
	"goveg/internal/log"
)

// WriteSlimmedCSV writes the processed series of every analyzed variable
// as one flat table for external tooling: a date column followed by
// resampled, smoothed and residual columns per variable. Cells are empty
// where a variable has no value on a date.
func WriteSlimmedCSV(path string, result *resilience.AnalysisResult) error {
	if result == nil || len(result.Variables) == 0 {
		return core.NewDataQualityError(core.Date{}, "no analyzed variables to export")
	}

	type column struct {
		header string
		values map[string]float64
	}
	var columns []column
	dateSet := make(map[string]core.Date)

	addColumn := func(name core.VariableKey, suffix string, ts series.TimeSeries) {
		if len(ts.Points) == 0 {
			return
		}
		values := make(map[string]float64, len(ts.Points))
		for _, p := range ts.Points {
			key := p.Date.String()
			values[key] = p.Value
			dateSet[key] = p.Date
		}
		columns = append(columns, column{header: fmt.Sprintf("%s_%s", name, suffix), values: values})
	}

	for _, variable := range result.Variables {
		addColumn(variable.Variable, "resampled", variable.Resampled)
		addColumn(variable.Variable, "smoothed", variable.Smoothed)
		addColumn(variable.Variable, "residual", variable.Residual)
	}
	if len(columns) == 0 {
		return core.NewDataQualityError(core.Date{}, "no processed series to export")
	}

	dates := make([]core.Date, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := make([]string, 0, len(columns)+1)
	header = append(header, "date")
	for _, col := range columns {
		header = append(header, col.header)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, date := range dates {
		key := date.String()
		row := make([]string, 0, len(columns)+1)
		row = append(row, key)
		for _, col := range columns {
			if value, ok := col.values[key]; ok {
				row = append(row, strconv.FormatFloat(value, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	log.Infof("[Export] slimmed CSV written to %s (%d dates, %d columns)", path, len(dates), len(columns))
	return nil
}

// WriteAnalysisSummary writes the full analysis result as indented JSON
func WriteAnalysisSummary(path string, result *resilience.AnalysisResult) error {
	if result == nil {
		return core.NewDataQualityError(core.Date{}, "no analysis result to export")
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis summary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write analysis summary: %w", err)
	}
	log.Infof("[Export] analysis summary written to %s (run %s)", path, result.RunID)
	return nil
}
