package scraper

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discovr-events/harvester/internal/domain/events"
)

// fakeFetcher serves canned documents without touching the network.
type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) FetchStatic(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func (f *fakeFetcher) FetchRendered(ctx context.Context, rawURL string) (*goquery.Document, error) {
	return f.FetchStatic(ctx, rawURL)
}

// memoryStore is an in-memory EventStore recording upserts.
type memoryStore struct {
	mu     sync.Mutex
	events map[string]events.CanonicalEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[string]events.CanonicalEvent)}
}

func (m *memoryStore) Upsert(ctx context.Context, event events.CanonicalEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.events[event.ID]
	m.events[event.ID] = event
	return !existed, nil
}

func (m *memoryStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[id]
	return ok, nil
}

// recordingTracker captures run lifecycle calls.
type recordingTracker struct {
	inserted  []string
	completed []string
	failed    []string
}

func (r *recordingTracker) InsertRun(ctx context.Context, runID, sourceName, city string, startedAt time.Time) error {
	r.inserted = append(r.inserted, runID)
	return nil
}

func (r *recordingTracker) CompleteRun(ctx context.Context, runID string, found, persisted, rejected int) error {
	r.completed = append(r.completed, runID)
	return nil
}

func (r *recordingTracker) FailRun(ctx context.Context, runID string, message string) error {
	r.failed = append(r.failed, runID)
	return nil
}

const listingHTML = `
<html><body>
<article class="event">
	<h2>Jazz Night</h2>
	<time datetime="2025-07-05">July 5</time>
	<p>Live jazz with craft beer.</p>
	<a href="/events/jazz-night">Details</a>
</article>
<article class="event">
	<h2>Comedy Open Mic</h2>
	<time datetime="2025-07-06">July 6</time>
</article>
<article class="event">
	<h2>Mystery Show</h2>
	<span class="date">TBA</span>
</article>
<article class="event">
	<h2>Jazz Night</h2>
	<time datetime="2025-07-05">July 5</time>
</article>
</body></html>`

func runNow() time.Time {
	return time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)
}

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	tracker := &recordingTracker{}
	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, store, tracker, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Found)
	assert.Equal(t, 3, result.Normalized)
	assert.Equal(t, 1, result.Rejected[RejectUnparsableDate])
	assert.Equal(t, 1, result.Deduped)
	assert.Equal(t, 2, result.Persisted)
	assert.Equal(t, 0, result.Updated)
	assert.Len(t, store.events, 2)

	assert.Equal(t, []string{result.RunID}, tracker.inserted)
	assert.Equal(t, []string{result.RunID}, tracker.completed)
	assert.Empty(t, tracker.failed)
}

func TestRunSecondScrapeUpdatesInsteadOfInserting(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, store, nil, zerolog.Nop())

	first, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Persisted)

	second, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 2, second.Updated)
	assert.Len(t, store.events, 2)
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, store, nil, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{DryRun: true, Now: runNow()})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Normalized)
	assert.Equal(t, 0, result.Persisted)
	assert.Empty(t, store.events)
}

func TestRunLimitCapsCandidates(t *testing.T) {
	t.Parallel()

	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, nil, nil, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Limit: 1, Now: runNow()})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Normalized)
}

func TestRunBenignFetchFailureYieldsEmptyRun(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{Kind: FetchNotFound, URL: "https://reyreycafe.com/pages/events"}
	tracker := &recordingTracker{}
	s := NewScraper(&fakeFetcher{err: fetchErr}, nil, newMemoryStore(), tracker, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)

	assert.NoError(t, result.Err)
	assert.Equal(t, 0, result.Found)
	// A vanished site still completes the run with zero events.
	assert.Len(t, tracker.completed, 1)
	assert.Empty(t, tracker.failed)
}

func TestRunReportableFetchFailureRecorded(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{Kind: FetchTimeout, URL: "https://reyreycafe.com/pages/events"}
	tracker := &recordingTracker{}
	s := NewScraper(&fakeFetcher{err: fetchErr}, nil, newMemoryStore(), tracker, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)

	assert.ErrorIs(t, result.Err, fetchErr)
	assert.Len(t, tracker.failed, 1)
	assert.Empty(t, tracker.completed)
}

func TestRunCityMismatchRejectsEverything(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, store, nil, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Montreal", RunOptions{Now: runNow()})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Normalized)
	assert.Equal(t, 3, result.Rejected[RejectCityMismatch])
	assert.Empty(t, store.events)
}

func TestRunNilStoreStillNormalizes(t *testing.T) {
	t.Parallel()

	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, nil, nil, zerolog.Nop())

	result, err := s.Run(context.Background(), torontoSource(), "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Normalized)
	assert.Equal(t, 0, result.Persisted)
}

func TestRunAllFiltersByCityAndEnabled(t *testing.T) {
	t.Parallel()

	toronto := torontoSource()
	disabled := torontoSource()
	disabled.Name = "disabled-source"
	disabled.Enabled = false

	vancouver := torontoSource()
	vancouver.Name = "commodore-ballroom"
	vancouver.City = "Vancouver"
	vancouver.Venue.Name = "Commodore Ballroom"
	vancouver.Venue.City = "Vancouver"

	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, nil, nil, zerolog.Nop())
	configs := []SourceConfig{toronto, disabled, vancouver}

	results := s.RunAll(context.Background(), configs, "Toronto", RunOptions{Now: runNow()})
	require.Len(t, results, 1)
	assert.Equal(t, "reyrey-cafe", results[0].SourceName)

	results = s.RunAll(context.Background(), configs, "", RunOptions{Now: runNow()})
	require.Len(t, results, 2)
	assert.Equal(t, "reyrey-cafe", results[0].SourceName)
	assert.Equal(t, "commodore-ballroom", results[1].SourceName)
}

func TestRunTierMisconfiguration(t *testing.T) {
	t.Parallel()

	source := torontoSource()
	source.Tier = TierCrawl

	s := NewScraper(&fakeFetcher{html: listingHTML}, nil, nil, nil, zerolog.Nop())
	result, err := s.Run(context.Background(), source, "Toronto", RunOptions{Now: runNow()})
	require.NoError(t, err)
	assert.Error(t, result.Err)
}
