package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"goveg/domain/core"
	"goveg/domain/series"
	apperrors "goveg/internal/errors"
	"goveg/internal/log"
	"goveg/ports"
)

// SurveyConfig bounds the archive walk
type SurveyConfig struct {
	DateWorkers      int
	StoreTileRecords bool
}

// SurveyService walks one site's image archive date by date and reduces
// it to a multi-variable time series. A date that cannot be processed is
// skipped and reported, never retried; it does not abort the survey.
type SurveyService struct {
	imagery ports.ImageryPort
	metrics *MetricService
	ledger  ports.LedgerWriterPort
	cfg     SurveyConfig
}

// NewSurveyService creates a survey service
func NewSurveyService(imagery ports.ImageryPort, metrics *MetricService, ledger ports.LedgerWriterPort, cfg SurveyConfig) *SurveyService {
	if cfg.DateWorkers <= 0 {
		cfg.DateWorkers = 4
	}
	return &SurveyService{
		imagery: imagery,
		metrics: metrics,
		ledger:  ledger,
		cfg:     cfg,
	}
}

// dateOutcome is one worker's result handed to the collector
type dateOutcome struct {
	record  series.DateRecord
	tiles   []series.SubImageRecord
	climate *series.Climate
	skipped *series.SkippedDate
}

// Survey processes every acquisition date with a bounded worker pool and
// assembles the surviving records into a date-sorted MultiSeries. The
// survey fails only when configuration is invalid or no usable date
// remains.
func (s *SurveyService) Survey(ctx context.Context, runID core.RunID, site core.SiteID) (*series.MultiSeries, []series.SkippedDate, error) {
	dates, err := s.imagery.ListDates(ctx, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list archive dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, nil, apperrors.DataQuality(fmt.Sprintf("archive for site %s has no acquisition dates", site), nil)
	}

	sem := semaphore.NewWeighted(int64(s.cfg.DateWorkers))
	outcomes := make([]dateOutcome, len(dates))
	var wg sync.WaitGroup

	for i, date := range dates {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
		wg.Add(1)
		go func(i int, date core.Date) {
			defer sem.Release(1)
			defer wg.Done()
			outcomes[i] = s.processDate(ctx, site, date)
		}(i, date)
	}
	wg.Wait()

	builder := series.NewBuilder(site)
	var skipped []series.SkippedDate
	for _, outcome := range outcomes {
		if outcome.skipped != nil {
			skipped = append(skipped, *outcome.skipped)
			if err := s.storeArtifact(ctx, runID, core.ArtifactSkippedDate, *outcome.skipped); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err := builder.AddRecord(outcome.record); err != nil {
			return nil, nil, fmt.Errorf("failed to collect date record: %w", err)
		}
		if outcome.climate != nil {
			builder.SetClimate(outcome.record.Date, *outcome.climate)
		}
		if err := s.storeArtifact(ctx, runID, core.ArtifactDateRecord, outcome.record); err != nil {
			return nil, nil, err
		}
		if s.cfg.StoreTileRecords {
			for _, tile := range outcome.tiles {
				if err := s.storeArtifact(ctx, runID, core.ArtifactSubImageRecord, tile); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	multi, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	if multi.Len() == 0 {
		return nil, skipped, apperrors.DataQuality(fmt.Sprintf("no usable dates remain for site %s", site), nil)
	}

	log.Infow("survey complete", "site", site, "dates", multi.Len(), "skipped", len(skipped))
	return multi, skipped, nil
}

// processDate fetches and scores one date. Every failure path maps to a
// skip with a reason; climate absence is not a failure.
func (s *SurveyService) processDate(ctx context.Context, site core.SiteID, date core.Date) dateOutcome {
	im, err := s.imagery.FetchImage(ctx, site, date)
	if err != nil {
		log.Debugw("image unavailable", "site", site, "date", date, "error", err)
		return dateOutcome{skipped: &series.SkippedDate{Date: date, Reason: fmt.Sprintf("image unavailable: %v", err)}}
	}

	record, tiles, err := s.metrics.ComputeDateMetrics(ctx, date, im)
	if err != nil {
		log.Debugw("date metrics failed", "site", site, "date", date, "error", err)
		return dateOutcome{skipped: &series.SkippedDate{Date: date, Reason: err.Error()}}
	}

	outcome := dateOutcome{record: record, tiles: tiles}
	if climate, err := s.imagery.FetchClimate(ctx, site, date); err == nil {
		outcome.climate = &climate
	}
	return outcome
}

func (s *SurveyService) storeArtifact(ctx context.Context, runID core.RunID, kind core.ArtifactKind, payload interface{}) error {
	artifact := core.Artifact{
		ID:        core.NewID(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: core.Now(),
	}
	if err := s.ledger.StoreArtifact(ctx, runID, artifact); err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", kind, err)
	}
	return nil
}
