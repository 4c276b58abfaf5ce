package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/discovr-events/harvester/internal/domain/events"
)

// EventRepository persists canonical events keyed by identity hash and
// tracks scraper runs.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) (*EventRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("event repository: pool is nil")
	}
	return &EventRepository{pool: pool}, nil
}

// Upsert writes an event, overwriting any existing record with the same ID.
// Returns whether a new row was inserted (as opposed to updated). This is
// the at-most-one-writer-wins-per-id semantics the pipeline relies on for
// cross-run dedup.
func (r *EventRepository) Upsert(ctx context.Context, evt events.CanonicalEvent) (bool, error) {
	const q = `
		INSERT INTO events (
			id, title, description, start_date, end_date,
			venue_name, venue_address, venue_city, venue_region, venue_country,
			city, category, source_url, image_url, source_name, scraped_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			venue_name = EXCLUDED.venue_name,
			venue_address = EXCLUDED.venue_address,
			venue_city = EXCLUDED.venue_city,
			venue_region = EXCLUDED.venue_region,
			venue_country = EXCLUDED.venue_country,
			city = EXCLUDED.city,
			category = EXCLUDED.category,
			source_url = EXCLUDED.source_url,
			image_url = EXCLUDED.image_url,
			source_name = EXCLUDED.source_name,
			scraped_at = EXCLUDED.scraped_at
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := r.pool.QueryRow(ctx, q,
		evt.ID, evt.Title, evt.Description, evt.StartDate, evt.EndDate,
		evt.Venue.Name, evt.Venue.Address, evt.Venue.City, evt.Venue.Region, evt.Venue.Country,
		evt.City, evt.Category, evt.SourceURL, evt.ImageURL, evt.SourceName, evt.ScrapedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upserting event %s: %w", evt.ID, err)
	}
	return inserted, nil
}

// Exists reports whether an event with the given identity hash is stored.
func (r *EventRepository) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, q, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking event %s: %w", id, err)
	}
	return exists, nil
}

// InsertRun records the start of a scraper run.
func (r *EventRepository) InsertRun(ctx context.Context, runID, sourceName, city string, startedAt time.Time) error {
	const q = `
		INSERT INTO scraper_runs (id, source_name, city, started_at, status)
		VALUES ($1, $2, $3, $4, 'running')`

	if _, err := r.pool.Exec(ctx, q, runID, sourceName, city, startedAt); err != nil {
		return fmt.Errorf("inserting run %s: %w", runID, err)
	}
	return nil
}

// CompleteRun records a run's final counters.
func (r *EventRepository) CompleteRun(ctx context.Context, runID string, found, persisted, rejected int) error {
	const q = `
		UPDATE scraper_runs
		SET status = 'completed', completed_at = now(),
		    events_found = $2, events_persisted = $3, events_rejected = $4
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, q, runID, found, persisted, rejected); err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// FailRun records a run failure message.
func (r *EventRepository) FailRun(ctx context.Context, runID string, message string) error {
	const q = `
		UPDATE scraper_runs
		SET status = 'failed', completed_at = now(), error_message = $2
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, q, runID, message); err != nil {
		return fmt.Errorf("failing run %s: %w", runID, err)
	}
	return nil
}
