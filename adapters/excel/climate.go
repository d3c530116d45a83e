package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"goveg/domain/core"
	"goveg/domain/raster"
	"goveg/domain/series"
	"goveg/internal/log"
	"goveg/ports"
)

// ClimateReader loads an independently supplied weather series from an
// Excel workbook or a CSV file. The table needs a header row with a date
// column and the two climate columns; extra columns are ignored.
type ClimateReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewClimateReader creates a reader that handles both Excel and CSV files
func NewClimateReader(filePath string) *ClimateReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &ClimateReader{filePath: filePath, fileType: fileType}
}

// ClimateTable maps "YYYY-MM-DD" date keys to their weather values
type ClimateTable map[string]series.Climate

// Lookup returns the climate for one date
func (t ClimateTable) Lookup(date core.Date) (series.Climate, bool) {
	climate, ok := t[date.String()]
	return climate, ok
}

// Read loads the whole table. Rows with an unparseable date or a missing
// climate value are skipped with a warning rather than failing the load.
func (r *ClimateReader) Read() (ClimateTable, error) {
	startTime := time.Now()
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("climate file not found: %s", r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported climate file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("climate file must have at least a header row and one data row")
	}

	table, skipped, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(startTime)
	log.Infof("[ClimateReader] %s file read in %.2fms (%d dates, %d rows skipped)",
		strings.ToUpper(r.fileType), float64(elapsed.Nanoseconds())/1e6, len(table), skipped)
	return table, nil
}

func (r *ClimateReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// Always use Sheet1
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	return rows, nil
}

func (r *ClimateReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *ClimateReader) processRows(rows [][]string) (ClimateTable, int, error) {
	dateCol, precipitationCol, temperatureCol, err := locateColumns(rows[0])
	if err != nil {
		return nil, 0, err
	}

	table := make(ClimateTable)
	skipped := 0
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		date, err := parseClimateDate(cellAt(row, dateCol))
		if err != nil {
			log.Warnf("[ClimateReader] row %d skipped: %v", i+1, err)
			skipped++
			continue
		}
		precipitation, errP := strconv.ParseFloat(strings.TrimSpace(cellAt(row, precipitationCol)), 64)
		temperature, errT := strconv.ParseFloat(strings.TrimSpace(cellAt(row, temperatureCol)), 64)
		if errP != nil || errT != nil {
			log.Warnf("[ClimateReader] row %d skipped: non-numeric climate value", i+1)
			skipped++
			continue
		}
		table[date.String()] = series.Climate{Precipitation: precipitation, Temperature: temperature}
	}
	if len(table) == 0 {
		return nil, skipped, fmt.Errorf("climate file has no usable rows")
	}
	return table, skipped, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

// locateColumns finds the date and climate columns by header name. The
// metric columns match the upstream archive names as well as plain ones.
func locateColumns(header []string) (int, int, int, error) {
	dateCol, precipitationCol, temperatureCol := -1, -1, -1
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		switch {
		case normalized == "date":
			dateCol = i
		case strings.Contains(normalized, "precip"):
			precipitationCol = i
		case strings.Contains(normalized, "temp"):
			temperatureCol = i
		}
	}
	if dateCol < 0 {
		return 0, 0, 0, fmt.Errorf("climate file has no date column")
	}
	if precipitationCol < 0 || temperatureCol < 0 {
		return 0, 0, 0, fmt.Errorf("climate file needs precipitation and temperature columns")
	}
	return dateCol, precipitationCol, temperatureCol, nil
}

// climateDateLayouts covers the formats spreadsheet tools commonly apply
// to date cells
var climateDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/06",
	"01-02-06",
	"02 Jan 2006",
}

func parseClimateDate(cell string) (core.Date, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return core.Date{}, fmt.Errorf("empty date cell")
	}
	for _, layout := range climateDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("unrecognized date %q", trimmed)
}

// ClimateOverlay decorates an imagery port with an external climate
// table. Dates covered by the table use its values; every other call
// passes through to the wrapped port.
type ClimateOverlay struct {
	inner ports.ImageryPort
	table ClimateTable
}

var _ ports.ImageryPort = (*ClimateOverlay)(nil)

// NewClimateOverlay wraps an imagery port with a climate table
func NewClimateOverlay(inner ports.ImageryPort, table ClimateTable) *ClimateOverlay {
	return &ClimateOverlay{inner: inner, table: table}
}

func (o *ClimateOverlay) ListDates(ctx context.Context, site core.SiteID) ([]core.Date, error) {
	return o.inner.ListDates(ctx, site)
}

func (o *ClimateOverlay) FetchImage(ctx context.Context, site core.SiteID, date core.Date) (*raster.Image, error) {
	return o.inner.FetchImage(ctx, site, date)
}

func (o *ClimateOverlay) FetchClimate(ctx context.Context, site core.SiteID, date core.Date) (series.Climate, error) {
	if climate, ok := o.table.Lookup(date); ok {
		return climate, nil
	}
	return o.inner.FetchClimate(ctx, site, date)
}
