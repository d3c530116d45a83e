package series

import (
	"fmt"
	"sort"

	"goveg/domain/core"
)

// MultiSeries bundles the per-date records of one site over a shared date
// axis. Records are sorted by date with no duplicates.
type MultiSeries struct {
	Site    core.SiteID  `json:"site"`
	Records []DateRecord `json:"records"`
}

// Len returns the number of dates
func (m *MultiSeries) Len() int { return len(m.Records) }

// Span returns the first and last date covered
func (m *MultiSeries) Span() (core.Date, core.Date) {
	if len(m.Records) == 0 {
		return core.Date{}, core.Date{}
	}
	return m.Records[0].Date, m.Records[len(m.Records)-1].Date
}

// Series extracts one variable as a TimeSeries. Climate variables cover
// only the dates where a value was merged in; metric variables cover every
// record.
func (m *MultiSeries) Series(key core.VariableKey) (TimeSeries, bool) {
	var points []Point
	for _, rec := range m.Records {
		var value float64
		switch key {
		case VarCentrality:
			value = rec.MeanCentrality
		case VarCentralityStd:
			value = rec.StdCentrality
		case VarOffset50:
			value = rec.MeanOffset50
		case VarOffset50Std:
			value = rec.StdOffset50
		case VarNDVI:
			value = rec.MeanIntensity
		case VarNDVIStd:
			value = rec.StdIntensity
		case VarPrecipitation:
			if rec.Precipitation == nil {
				continue
			}
			value = *rec.Precipitation
		case VarTemperature:
			if rec.Temperature == nil {
				continue
			}
			value = *rec.Temperature
		default:
			return TimeSeries{}, false
		}
		points = append(points, Point{Date: rec.Date, Value: value})
	}
	return TimeSeries{Variable: key, Points: points}, true
}

// Fingerprint hashes the metric vectors so two runs over the same archive
// can be compared without replaying them.
func (m *MultiSeries) Fingerprint() core.SeriesHash {
	vectors := make(map[string][]float64)
	for _, key := range []core.VariableKey{VarCentrality, VarOffset50, VarNDVI} {
		ts, _ := m.Series(key)
		vectors[key.String()] = ts.Values()
	}
	return core.ComputeSeriesHash(vectors)
}

// Builder accumulates per-date records from any completion order and
// produces a sorted MultiSeries. Concurrent date workers hand their
// results to a single collecting goroutine that owns the builder.
type Builder struct {
	site    core.SiteID
	records map[string]DateRecord
	climate map[string]Climate
}

// NewBuilder creates an empty builder for one site
func NewBuilder(site core.SiteID) *Builder {
	return &Builder{
		site:    site,
		records: make(map[string]DateRecord),
		climate: make(map[string]Climate),
	}
}

// AddRecord stores one date's reduction. A second record for the same
// date is rejected.
func (b *Builder) AddRecord(rec DateRecord) error {
	key := rec.Date.String()
	if _, exists := b.records[key]; exists {
		return fmt.Errorf("duplicate record for date %s", key)
	}
	b.records[key] = rec
	return nil
}

// SetClimate stores the weather values for one date. Climate for a date
// without a metric record is kept and merged if the record arrives later,
// dropped otherwise.
func (b *Builder) SetClimate(date core.Date, c Climate) {
	b.climate[date.String()] = c
}

// Build merges climate into the records and returns them sorted by date.
func (b *Builder) Build() (*MultiSeries, error) {
	records := make([]DateRecord, 0, len(b.records))
	for key, rec := range b.records {
		if c, ok := b.climate[key]; ok {
			p, t := c.Precipitation, c.Temperature
			rec.Precipitation = &p
			rec.Temperature = &t
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })

	m := &MultiSeries{Site: b.site, Records: records}
	for i := 1; i < len(m.Records); i++ {
		if !m.Records[i-1].Date.Before(m.Records[i].Date) {
			return nil, fmt.Errorf("records not strictly increasing at index %d", i)
		}
	}
	return m, nil
}
