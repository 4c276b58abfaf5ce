package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/discovr-events/harvester/internal/datetext"
	"github.com/discovr-events/harvester/internal/domain/events"
	"github.com/discovr-events/harvester/internal/sanitize"
)

// RejectReason codes why a candidate was dropped during normalization.
type RejectReason string

const (
	RejectBadTitle       RejectReason = "bad_title"
	RejectNoDate         RejectReason = "no_date"
	RejectUnparsableDate RejectReason = "unparsable_date"
	RejectCityMismatch   RejectReason = "city_mismatch"
)

// Rejection is the reason-coded alternative to a CanonicalEvent. Making
// "produced nothing real" a first-class result is what keeps placeholder
// events out of the pipeline.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// categoryRule maps keywords found in title+description to a category.
// Rules are ordered; the first match wins.
type categoryRule struct {
	keywords []string
	category string
}

var categoryRules = []categoryRule{
	{[]string{"dj ", "dj-", "club night", "dance party", "nightlife", "rave"}, "Nightlife"},
	{[]string{"concert", "band", "live music", "orchestra", "symphony", "singer"}, "Music"},
	{[]string{"festival", "fest "}, "Festival"},
	{[]string{"comedy", "stand-up", "standup", "improv"}, "Comedy"},
	{[]string{"theatre", "theater", "musical", "opera", "ballet"}, "Theatre"},
	{[]string{"museum", "gallery", "exhibit", "art show"}, "Arts"},
	{[]string{"food", "drink", "beer", "wine", "tasting", "brunch", "dinner"}, "Food & Drink"},
	{[]string{"family", "kids", "children"}, "Family"},
}

const defaultCategory = "Event"

// Normalize validates and converts one raw candidate into a canonical
// event. It re-checks the title, requires a parseable date (never
// substituting a placeholder), and rejects events whose venue city
// disagrees with the run's city. Mistagged events are refused at write
// time, not repaired later.
func Normalize(candidate events.RawCandidate, source SourceConfig, runCity string, now time.Time) (events.CanonicalEvent, *Rejection) {
	title := sanitize.Title(candidate.Title)
	if !titleAcceptable(title, mergeDenylist(source.Selectors.TitleDenylist)) {
		return events.CanonicalEvent{}, &Rejection{Reason: RejectBadTitle, Detail: title}
	}

	if strings.TrimSpace(candidate.DateText) == "" {
		return events.CanonicalEvent{}, &Rejection{Reason: RejectNoDate, Detail: title}
	}

	showHour, showMinute := source.showClock()
	parsed, ok := datetext.Parse(candidate.DateText, candidate.TimeText, datetext.Options{
		Now:               now,
		ReferenceYear:     now.Year(),
		DefaultShowHour:   showHour,
		DefaultShowMinute: showMinute,
		DefaultDuration:   source.defaultDuration(),
	})
	if !ok {
		return events.CanonicalEvent{}, &Rejection{
			Reason: RejectUnparsableDate,
			Detail: fmt.Sprintf("%s: %q", title, candidate.DateText),
		}
	}

	if !strings.EqualFold(strings.TrimSpace(source.Venue.City), strings.TrimSpace(runCity)) {
		return events.CanonicalEvent{}, &Rejection{
			Reason: RejectCityMismatch,
			Detail: fmt.Sprintf("venue city %q, run city %q", source.Venue.City, runCity),
		}
	}

	description := sanitize.Description(candidate.DescriptionText)

	category := source.Category
	if category == "" {
		category = deriveCategory(title, description)
	}

	sourceURL := absolutize(source.URL, candidate.LinkHref)
	if sourceURL == "" {
		sourceURL = source.URL
	}

	return events.CanonicalEvent{
		ID:          events.ComputeID(source.Venue.Name, title, parsed.Start),
		Title:       title,
		Description: description,
		StartDate:   parsed.Start,
		EndDate:     parsed.End,
		Venue:       source.Venue,
		City:        source.Venue.City,
		Category:    category,
		SourceURL:   sourceURL,
		ImageURL:    absolutize(source.URL, candidate.ImageHref),
		SourceName:  source.Name,
		ScrapedAt:   now.UTC(),
	}, nil
}

// deriveCategory scans title+description against the ordered keyword table.
func deriveCategory(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return defaultCategory
}

// absolutize resolves href against the source base URL. Unresolvable hrefs
// are dropped rather than persisted relative.
func absolutize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
