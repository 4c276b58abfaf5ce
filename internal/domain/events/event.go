// Package events holds the canonical event record produced by the harvest
// pipeline and the identity hashing used for upsert and dedup keys.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// RawCandidate is the not-yet-validated output of HTML extraction for one
// apparent event. Missing fields are carried as empty strings so that a
// missing title and a missing date remain independently diagnosable.
type RawCandidate struct {
	Title           string
	DateText        string
	TimeText        string
	DescriptionText string
	LinkHref        string
	ImageHref       string
}

// Venue is descriptive reference data attached to every event. It is owned
// by source configuration and never created from scraped text.
type Venue struct {
	Name    string `yaml:"name" validate:"required"`
	Address string `yaml:"address"`
	City    string `yaml:"city" validate:"required"`
	Region  string `yaml:"region"`
	Country string `yaml:"country"`
}

// CanonicalEvent is the validated, deduplication-keyed record eligible for
// persistence. It is immutable once constructed within a run; the store may
// later overwrite the record sharing the same ID (upsert semantics).
type CanonicalEvent struct {
	ID          string
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Venue       Venue
	City        string
	Category    string
	SourceURL   string
	ImageURL    string
	SourceName  string
	ScrapedAt   time.Time
}

// collapseSpaces matches two or more consecutive whitespace characters.
var collapseSpaces = regexp.MustCompile(`\s{2,}`)

// ComputeID returns the deterministic identity hash for an event:
// SHA-256 over "venue|title|startDate" with the venue and title lowercased,
// trimmed, and internal whitespace collapsed, and the start date in RFC 3339.
// The same (venue, title, start) always yields the same ID, which is what
// lets the store upsert instead of duplicate.
func ComputeID(venueName, title string, start time.Time) string {
	venue := normalizeKeyPart(venueName)
	name := normalizeKeyPart(title)
	payload := strings.Join([]string{venue, name, start.UTC().Format(time.RFC3339)}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return collapseSpaces.ReplaceAllString(s, " ")
}
