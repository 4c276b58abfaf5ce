package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/discovr-events/harvester/internal/domain/events"
)

// Title bounds per the acceptance filter: anything shorter is chrome
// ("Buy", "Go"), anything longer is a paragraph that leaked into a heading
// selector.
const (
	minTitleLen = 4
	maxTitleLen = 200
)

// defaultTitleDenylist rejects navigation and page chrome that commonly
// matches generic heading selectors. Per-source extras are merged in from
// the selector profile.
var defaultTitleDenylist = []string{
	"menu",
	"subscribe",
	"view all",
	"see all",
	"home",
	"events",
	"upcoming events",
	"calendar",
	"tickets",
	"buy tickets",
	"newsletter",
	"sign up",
	"log in",
	"search",
	"contact",
	"about",
	"more info",
	"read more",
	"load more",
	"previous",
	"next",
}

// Built-in selector fallbacks, used when a profile leaves a field's list
// empty. The container list mirrors the union-of-selectors convention seen
// across event sites.
var (
	defaultContainerSelectors = []string{
		".event", `[class*="event"]`, "article", ".card", ".item", ".listing",
	}
	defaultTitleSelectors       = []string{"h1", "h2", "h3", "h4", ".title", `[class*="title"]`}
	defaultDateSelectors        = []string{"time", ".date", `[class*="date"]`}
	defaultTimeSelectors        = []string{".time", `[class*="time"]`}
	defaultDescriptionSelectors = []string{".description", `[class*="desc"]`, "p"}
	defaultLinkSelectors        = []string{"a"}
	defaultImageSelectors       = []string{"img"}
)

// dateLikeText recognizes text that plausibly carries a calendar date; used
// only to anchor the container fallback, not to parse.
var dateLikeText = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)

// ancestorLevels is how far the fallback walks up from a date node looking
// for the enclosing event block.
const ancestorLevels = 4

// Extract locates event-like element groups in doc and pulls raw field
// strings from each. It is a pure function of (doc, profile): no network,
// no side effects, candidates in document order. Missing fields come
// through as empty strings; only an unacceptable title drops a candidate
// here, so "no title" and "no date" stay separately diagnosable downstream.
func Extract(doc *goquery.Document, profile SelectorProfile) []events.RawCandidate {
	denylist := mergeDenylist(profile.TitleDenylist)

	containers := findContainers(doc, profile)
	candidates := make([]events.RawCandidate, 0, len(containers))

	for _, container := range containers {
		title := firstText(container, profile.Title, defaultTitleSelectors)
		if !titleAcceptable(title, denylist) {
			continue
		}

		dateText, timeText := extractDateTexts(container, profile)

		candidates = append(candidates, events.RawCandidate{
			Title:           title,
			DateText:        dateText,
			TimeText:        timeText,
			DescriptionText: firstText(container, profile.Description, defaultDescriptionSelectors),
			LinkHref:        firstAttr(container, profile.Link, defaultLinkSelectors, "href"),
			ImageHref:       imageSource(container, profile.Image),
		})
	}

	return candidates
}

// findContainers returns the event container selections in document order.
// Profile selectors are tried first; when none match, containers are
// recovered by walking up from recognizable date nodes.
func findContainers(doc *goquery.Document, profile SelectorProfile) []*goquery.Selection {
	selectors := profile.Container
	if len(selectors) == 0 {
		selectors = defaultContainerSelectors
	}

	for _, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		var containers []*goquery.Selection
		sel.Each(func(_ int, s *goquery.Selection) {
			containers = append(containers, s)
		})
		return containers
	}

	return dateAnchoredContainers(doc)
}

// dateAnchoredContainers recovers event blocks whose markup carries no
// recognizable container class but does mark up a date: from each date node
// walk up to ancestorLevels ancestors and take the nearest one that also
// yields a title. Duplicate ancestors (two date nodes in one block) are
// collapsed, keeping document order.
func dateAnchoredContainers(doc *goquery.Document) []*goquery.Selection {
	// One walk keeps anchors in document order regardless of anchor kind.
	var anchors []*goquery.Selection
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Is("time[datetime]") {
			anchors = append(anchors, s)
			return
		}
		if s.Children().Length() > 0 {
			return
		}
		if dateLikeText.MatchString(s.Text()) {
			anchors = append(anchors, s)
		}
	})

	seen := make(map[*html.Node]bool)
	var containers []*goquery.Selection

	for _, anchor := range anchors {
		current := anchor
		for level := 0; level < ancestorLevels; level++ {
			current = current.Parent()
			if current.Length() == 0 {
				break
			}
			if firstText(current, nil, defaultTitleSelectors) == "" {
				continue
			}
			node := current.Get(0)
			if node.Data == "body" || node.Data == "html" {
				break
			}
			if !seen[node] {
				seen[node] = true
				containers = append(containers, current)
			}
			break
		}
	}

	return containers
}

// extractDateTexts pulls the date and optional time strings from a
// container. A datetime attribute wins over element text, matching how
// sites mark up HTML5 <time> elements.
func extractDateTexts(container *goquery.Selection, profile SelectorProfile) (dateText, timeText string) {
	selectors := profile.Date
	if len(selectors) == 0 {
		selectors = defaultDateSelectors
	}
	for _, selector := range selectors {
		found := container.Find(selector).First()
		if found.Length() == 0 {
			continue
		}
		if dt, ok := found.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			dateText = strings.TrimSpace(dt)
			break
		}
		if text := cleanText(found.Text()); text != "" {
			dateText = text
			break
		}
	}

	timeText = firstText(container, profile.Time, defaultTimeSelectors)
	return dateText, timeText
}

// firstText returns the first non-empty text match; profile selectors take
// priority over the built-in fallbacks.
func firstText(container *goquery.Selection, selectors, fallback []string) string {
	if len(selectors) == 0 {
		selectors = fallback
	}
	for _, selector := range selectors {
		if text := cleanText(container.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute match.
func firstAttr(container *goquery.Selection, selectors, fallback []string, attr string) string {
	if len(selectors) == 0 {
		selectors = fallback
	}
	for _, selector := range selectors {
		if value, ok := container.Find(selector).First().Attr(attr); ok {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}

// imageSource resolves the container's image, preferring src and falling
// back to the lazy-loading data-src convention.
func imageSource(container *goquery.Selection, selectors []string) string {
	if src := firstAttr(container, selectors, defaultImageSelectors, "src"); src != "" {
		return src
	}
	return firstAttr(container, selectors, defaultImageSelectors, "data-src")
}

// titleAcceptable applies the length bounds and the chrome denylist.
// Bounds are in runes so accented titles are measured by character count.
func titleAcceptable(title string, denylist []string) bool {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return false
	}
	lower := strings.ToLower(title)
	for _, banned := range denylist {
		if lower == banned {
			return false
		}
	}
	return true
}

func mergeDenylist(extra []string) []string {
	merged := make([]string, 0, len(defaultTitleDenylist)+len(extra))
	merged = append(merged, defaultTitleDenylist...)
	for _, word := range extra {
		if word = strings.ToLower(strings.TrimSpace(word)); word != "" {
			merged = append(merged, word)
		}
	}
	return merged
}

var innerSpaceRuns = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(innerSpaceRuns.ReplaceAllString(s, " "))
}
