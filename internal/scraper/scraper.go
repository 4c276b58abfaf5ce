package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/discovr-events/harvester/internal/domain/events"
	"github.com/discovr-events/harvester/internal/metrics"
)

// RunOptions controls one pipeline run.
type RunOptions struct {
	DryRun bool
	Limit  int       // 0 = no limit on candidates processed
	Now    time.Time // zero = time.Now(); pinned in tests
}

// RunResult aggregates the outcome of one (source, city) run. Failures are
// surfaced as counters and the optional Err; a run always completes with
// "N events produced", never a fabricated substitute.
type RunResult struct {
	RunID      string
	SourceName string
	City       string

	Found      int
	Normalized int
	Rejected   map[RejectReason]int
	Deduped    int
	Persisted  int
	Updated    int

	DryRun bool
	Err    error
}

// RunTracker records run rows for operational history. All calls are
// best-effort; tracking failures never affect the run.
type RunTracker interface {
	InsertRun(ctx context.Context, runID, sourceName, city string, startedAt time.Time) error
	CompleteRun(ctx context.Context, runID string, found, persisted, rejected int) error
	FailRun(ctx context.Context, runID string, message string) error
}

// Scraper orchestrates fetch → extract → normalize → dedupe → persist for
// configured sources. The store and tracker may be nil (dry runs, tests);
// extraction and normalization run identically without them.
type Scraper struct {
	fetcher Fetcher
	crawler *Crawler
	store   EventStore
	tracker RunTracker
	logger  zerolog.Logger
}

func NewScraper(fetcher Fetcher, crawler *Crawler, store EventStore, tracker RunTracker, logger zerolog.Logger) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		crawler: crawler,
		store:   store,
		tracker: tracker,
		logger:  logger,
	}
}

// Run executes the pipeline for one source against the requested city.
// Every failure mode is recovered locally: fetch failures yield zero
// events, per-candidate failures are counted and skipped, and persistence
// failures skip the one event. The error return is reserved for programming
// errors (nil source fetcher for the source's tier).
func (s *Scraper) Run(ctx context.Context, source SourceConfig, runCity string, opts RunOptions) (RunResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := RunResult{
		RunID:      ulid.Make().String(),
		SourceName: source.Name,
		City:       runCity,
		Rejected:   make(map[RejectReason]int),
		DryRun:     opts.DryRun,
	}

	started := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(source.Name).Observe(time.Since(started).Seconds())
	}()

	if s.tracker != nil {
		if err := s.tracker.InsertRun(ctx, result.RunID, source.Name, runCity, now); err != nil {
			s.logger.Warn().Err(err).Str("run", result.RunID).Msg("scraper: failed to record run start")
		}
	}

	docs, err := s.fetchDocuments(ctx, source)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			metrics.FetchFailures.WithLabelValues(source.Name, string(fetchErr.Kind)).Inc()
			if fetchErr.Benign() {
				s.logger.Info().
					Str("source", source.Name).
					Str("kind", string(fetchErr.Kind)).
					Msg("scraper: source unavailable, empty run")
				s.trackComplete(ctx, result)
				return result, nil
			}
			result.Err = fetchErr
			s.trackFail(ctx, result.RunID, fetchErr.Error())
			return result, nil
		}
		result.Err = err
		s.trackFail(ctx, result.RunID, err.Error())
		return result, nil
	}

	var candidates []events.RawCandidate
	for _, doc := range docs {
		candidates = append(candidates, Extract(doc, source.Selectors)...)
	}
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	result.Found = len(candidates)
	metrics.EventsFound.WithLabelValues(source.Name).Add(float64(len(candidates)))

	if len(candidates) == 0 {
		s.logger.Info().Str("source", source.Name).Msg("scraper: no event containers found")
		s.trackComplete(ctx, result)
		return result, nil
	}

	var normalized []events.CanonicalEvent
	for _, candidate := range candidates {
		evt, rejection := Normalize(candidate, source, runCity, now)
		if rejection != nil {
			result.Rejected[rejection.Reason]++
			metrics.EventsRejected.WithLabelValues(source.Name, string(rejection.Reason)).Inc()
			s.logRejection(source.Name, rejection)
			continue
		}
		normalized = append(normalized, evt)
	}
	result.Normalized = len(normalized)

	deduped := Dedupe(normalized)
	result.Deduped = len(normalized) - len(deduped)

	for _, evt := range deduped {
		if ctx.Err() != nil {
			break
		}
		if opts.DryRun || s.store == nil {
			continue
		}
		inserted, upsertErr := s.store.Upsert(ctx, evt)
		if upsertErr != nil {
			s.logger.Error().
				Err(upsertErr).
				Str("source", source.Name).
				Str("event_id", evt.ID).
				Msg("scraper: upsert failed, skipping event")
			continue
		}
		if inserted {
			result.Persisted++
			metrics.EventsPersisted.WithLabelValues(source.Name, "inserted").Inc()
		} else {
			result.Updated++
			metrics.EventsPersisted.WithLabelValues(source.Name, "updated").Inc()
		}
	}

	s.logger.Info().
		Str("run", result.RunID).
		Str("source", source.Name).
		Str("city", runCity).
		Int("found", result.Found).
		Int("normalized", result.Normalized).
		Int("persisted", result.Persisted).
		Int("updated", result.Updated).
		Msg("scraper: run complete")

	s.trackComplete(ctx, result)
	return result, nil
}

// RunAll scrapes every enabled source matching runCity sequentially.
// Per-source failures are recorded on each RunResult, never aborting the
// whole run.
func (s *Scraper) RunAll(ctx context.Context, configs []SourceConfig, runCity string, opts RunOptions) []RunResult {
	var results []RunResult
	for _, source := range configs {
		if ctx.Err() != nil {
			break
		}
		if !source.Enabled {
			continue
		}
		if runCity != "" && !strings.EqualFold(source.City, runCity) {
			continue
		}
		res, err := s.Run(ctx, source, source.City, opts)
		if err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// fetchDocuments selects the fetch strategy for the source's tier.
func (s *Scraper) fetchDocuments(ctx context.Context, source SourceConfig) ([]*goquery.Document, error) {
	switch source.Tier {
	case TierCrawl:
		if s.crawler == nil {
			return nil, errors.New("scraper: no crawler configured for tier 1 source")
		}
		return s.crawler.CollectDocuments(ctx, source)
	case TierRendered:
		if s.fetcher == nil {
			return nil, errors.New("scraper: no fetcher configured")
		}
		doc, err := s.fetcher.FetchRendered(ctx, source.URL)
		if err != nil {
			return nil, err
		}
		return []*goquery.Document{doc}, nil
	default:
		if s.fetcher == nil {
			return nil, errors.New("scraper: no fetcher configured")
		}
		doc, err := s.fetcher.FetchStatic(ctx, source.URL)
		if err != nil {
			return nil, err
		}
		return []*goquery.Document{doc}, nil
	}
}

// logRejection logs candidate drops: city mismatches at warn since they
// indicate a misconfigured profile, everything else at debug.
func (s *Scraper) logRejection(sourceName string, rejection *Rejection) {
	evt := s.logger.Debug()
	if rejection.Reason == RejectCityMismatch {
		evt = s.logger.Warn()
	}
	evt.Str("source", sourceName).
		Str("reason", string(rejection.Reason)).
		Str("detail", rejection.Detail).
		Msg("scraper: candidate rejected")
}

func (s *Scraper) trackComplete(ctx context.Context, result RunResult) {
	if s.tracker == nil {
		return
	}
	rejected := 0
	for _, n := range result.Rejected {
		rejected += n
	}
	if err := s.tracker.CompleteRun(ctx, result.RunID, result.Found, result.Persisted+result.Updated, rejected); err != nil {
		s.logger.Warn().Err(err).Str("run", result.RunID).Msg("scraper: failed to record run completion")
	}
}

func (s *Scraper) trackFail(ctx context.Context, runID, message string) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.FailRun(ctx, runID, message); err != nil {
		s.logger.Warn().Err(err).Str("run", runID).Msg("scraper: failed to record run failure")
	}
}
