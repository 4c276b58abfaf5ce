package scraper

import (
	"context"

	"github.com/discovr-events/harvester/internal/domain/events"
)

// Dedupe collapses events sharing an identity hash, keeping the first
// occurrence. Extraction order is document order, so which duplicate
// survives is deterministic. Idempotent: Dedupe(Dedupe(x)) == Dedupe(x).
//
// No fuzzy matching: two listings of the same show at two venues, or at
// near-miss dates, are distinct by contract. Cross-run dedup is the store's
// upsert-by-ID.
func Dedupe(evts []events.CanonicalEvent) []events.CanonicalEvent {
	seen := make(map[string]bool, len(evts))
	deduped := make([]events.CanonicalEvent, 0, len(evts))
	for _, evt := range evts {
		if seen[evt.ID] {
			continue
		}
		seen[evt.ID] = true
		deduped = append(deduped, evt)
	}
	return deduped
}

// EventStore is the persistence gateway consumed by the pipeline. Upsert is
// keyed by event ID: re-scraping a venue updates records instead of
// duplicating them.
type EventStore interface {
	Upsert(ctx context.Context, event events.CanonicalEvent) (inserted bool, err error)
	Exists(ctx context.Context, id string) (bool, error)
}

// IsDuplicateOfStored reports whether an event's identity already exists in
// the store.
func IsDuplicateOfStored(ctx context.Context, store EventStore, event events.CanonicalEvent) (bool, error) {
	return store.Exists(ctx, event.ID)
}
