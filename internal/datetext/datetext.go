// Package datetext parses the free-text date and time strings found on venue
// listing pages ("Wednesday, June 4", "7/5/2025 8pm", "Dec 31st") into
// concrete start/end timestamps. It never fabricates a date: when nothing in
// the text resolves to a calendar day the parse reports failure and the
// caller is expected to drop the candidate.
package datetext

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	dateparser "github.com/markusmobius/go-dateparser"
	"github.com/markusmobius/go-dateparser/date"
)

// Result is a successfully parsed start/end pair. End is never before Start.
type Result struct {
	Start time.Time
	End   time.Time
}

// Options controls parsing. The zero value is usable: ReferenceYear falls
// back to Now's year, Now falls back to time.Now(), DefaultShowHour to 20:00
// and DefaultDuration to 3 hours.
type Options struct {
	// ReferenceYear is assumed when the text carries no year.
	ReferenceYear int
	// Now anchors the roll-forward heuristic and defaults for tests.
	Now time.Time
	// DefaultShowHour/DefaultShowMinute fill in the start time when the text
	// has a date but no time (a venue's typical show time).
	DefaultShowHour   int
	DefaultShowMinute int
	// DefaultDuration sets End when the text has no explicit end.
	DefaultDuration time.Duration
	// Location for constructed timestamps; UTC when nil.
	Location *time.Location
}

// pastGrace is how far in the past a year-less date may land before it is
// rolled forward one year. Listings are near-future; a date slightly in the
// past is usually a just-finished event, not last year's.
const pastGrace = 31 * 24 * time.Hour

var (
	weekdayPrefix = regexp.MustCompile(`(?i)^(?:mon|tues?|wed(?:nes)?|thur?s?|fri|sat(?:ur)?|sun)(?:day)?[,.]?\s+`)
	ordinalSuffix = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)\b`)
	timeExpr      = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	isoExpr       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{2}):(\d{2})(?::(\d{2}))?)?`)
	slashExpr     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthNameExpr = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})\b(?:,?\s*(\d{4}))?`)
	rangeSplit    = regexp.MustCompile(`\s*(?:–|—|\bto\b|\bthrough\b)\s*|\s+-\s+`)
	spaceRuns     = regexp.MustCompile(`\s+`)
	wordToken     = regexp.MustCompile(`\p{L}{3,}`)
	yearToken     = regexp.MustCompile(`\b\d{4}\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parsedDate is an intermediate single-date match before year resolution.
type parsedDate struct {
	year    int // 0 when the text had no year
	month   time.Month
	day     int
	hour    int
	minute  int
	second  int
	hasTime bool
}

// Parse resolves dateText (and optionally timeText) into a start/end pair.
// The second return is false when no calendar date can be recognized; in
// that case the caller must drop the candidate rather than substitute a
// placeholder.
func Parse(dateText, timeText string, opts Options) (Result, bool) {
	opts = withDefaults(opts)

	text := clean(dateText)
	if text == "" || isNonDate(text) {
		return Result{}, false
	}

	// Date range: both halves must independently parse as dates.
	if halves := rangeSplit.Split(text, 2); len(halves) == 2 {
		first, okFirst := parseSingle(halves[0], opts)
		second, okSecond := parseSingle(halves[1], opts)
		if okFirst && okSecond {
			start := materialize(first, opts)
			end := materialize(second, opts)
			// A year-less end before the start means the range crosses a
			// year boundary ("Dec 28 - Jan 3").
			if second.year == 0 && end.Before(start) {
				end = end.AddDate(1, 0, 0)
			}
			start = applyTime(start, first, timeText, opts, true)
			end = applyTime(end, second, "", opts, true)
			if end.Before(start) {
				end = start
			}
			return Result{Start: start, End: end}, true
		}
	}

	pd, ok := parseSingle(text, opts)
	if !ok {
		pd, ok = parseFallback(text, opts)
	}
	if !ok {
		return Result{}, false
	}

	start := materialize(pd, opts)
	start = applyTime(start, pd, timeText, opts, false)
	end := start.Add(opts.DefaultDuration)
	return Result{Start: start, End: end}, true
}

func withDefaults(opts Options) Options {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ReferenceYear == 0 {
		opts.ReferenceYear = opts.Now.Year()
	}
	if opts.DefaultShowHour == 0 && opts.DefaultShowMinute == 0 {
		opts.DefaultShowHour = 20
	}
	if opts.DefaultDuration == 0 {
		opts.DefaultDuration = 3 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return opts
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = spaceRuns.ReplaceAllString(s, " ")
	return s
}

// isNonDate catches placeholder text that should never resolve to a date.
func isNonDate(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tba", "tbd", "coming soon", "postponed", "cancelled", "canceled":
		return true
	}
	return false
}

// parseSingle tries the deterministic format ladder on one date expression:
// ISO 8601, slash date, month-name date (weekday prefixes stripped first).
func parseSingle(text string, opts Options) (parsedDate, bool) {
	text = clean(text)
	if text == "" {
		return parsedDate{}, false
	}
	text = weekdayPrefix.ReplaceAllString(text, "")
	text = ordinalSuffix.ReplaceAllString(text, "$1")

	if m := isoExpr.FindStringSubmatch(text); m != nil {
		pd := parsedDate{
			year:  atoi(m[1]),
			month: time.Month(atoi(m[2])),
			day:   atoi(m[3]),
		}
		if m[4] != "" {
			pd.hour = atoi(m[4])
			pd.minute = atoi(m[5])
			pd.second = atoi(m[6])
			pd.hasTime = true
		}
		if !validDay(pd.month, pd.day) {
			return parsedDate{}, false
		}
		if !pd.hasTime {
			attachClockTime(&pd, text)
		}
		return pd, true
	}

	if m := slashExpr.FindStringSubmatch(text); m != nil {
		pd := parsedDate{
			year:  atoi(m[3]),
			month: time.Month(atoi(m[1])),
			day:   atoi(m[2]),
		}
		if !validDay(pd.month, pd.day) {
			return parsedDate{}, false
		}
		attachClockTime(&pd, text)
		return pd, true
	}

	if m := monthNameExpr.FindStringSubmatch(text); m != nil {
		month, ok := monthsByPrefix[strings.ToLower(m[1][:3])]
		if !ok {
			return parsedDate{}, false
		}
		pd := parsedDate{
			month: month,
			day:   atoi(m[2]),
		}
		if m[3] != "" {
			pd.year = atoi(m[3])
		}
		if !validDay(pd.month, pd.day) {
			return parsedDate{}, false
		}
		attachClockTime(&pd, text)
		return pd, true
	}

	return parsedDate{}, false
}

// parseFallback runs go-dateparser over text that the format ladder could
// not handle ("March the 5th", "5 de junio", locale variants). A bare time
// or relative expression must still fail, so the text is required to carry
// something date-like before the fallback is consulted, and the fallback
// result must be day-precise.
func parseFallback(text string, opts Options) (parsedDate, bool) {
	stripped := timeExpr.ReplaceAllString(text, "")
	if !strings.ContainsAny(stripped, "0123456789") {
		return parsedDate{}, false
	}
	// A bare day-number ("15", a price, a street suite) would make
	// dateparser invent the current month. The fallback needs the text to
	// carry a word (a month name in some language) or an explicit year.
	if !wordToken.MatchString(stripped) && !yearToken.MatchString(stripped) {
		return parsedDate{}, false
	}

	cfg := &dateparser.Configuration{
		CurrentTime:         time.Date(opts.ReferenceYear, opts.Now.Month(), opts.Now.Day(), 0, 0, 0, 0, opts.Location),
		PreferredDateSource: dateparser.Future,
	}
	dt, err := dateparser.Parse(cfg, text)
	if err != nil || dt.Time.IsZero() {
		return parsedDate{}, false
	}
	if dt.Period != date.Day {
		return parsedDate{}, false
	}

	pd := parsedDate{
		year:  dt.Time.Year(),
		month: dt.Time.Month(),
		day:   dt.Time.Day(),
	}
	if h, m, s := dt.Time.Clock(); h != 0 || m != 0 || s != 0 {
		pd.hour, pd.minute, pd.second = h, m, s
		pd.hasTime = true
	}
	return pd, true
}

// attachClockTime looks for an "8pm" / "7:30 PM" expression alongside the
// date and records it on pd.
func attachClockTime(pd *parsedDate, text string) {
	hour, minute, ok := clockFrom(text)
	if !ok {
		return
	}
	pd.hour = hour
	pd.minute = minute
	pd.hasTime = true
}

// clockFrom parses the first 12-hour clock expression in text.
func clockFrom(text string) (hour, minute int, ok bool) {
	m := timeExpr.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour = atoi(m[1])
	if hour < 1 || hour > 12 {
		return 0, 0, false
	}
	if m[2] != "" {
		minute = atoi(m[2])
		if minute > 59 {
			return 0, 0, false
		}
	}
	if strings.EqualFold(m[3], "pm") && hour != 12 {
		hour += 12
	}
	if strings.EqualFold(m[3], "am") && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

// materialize resolves a parsedDate to midnight of the concrete day,
// applying the reference year and the roll-forward heuristic when the text
// carried no year.
func materialize(pd parsedDate, opts Options) time.Time {
	year := pd.year
	rolled := false
	if year == 0 {
		year = opts.ReferenceYear
		rolled = true
	}
	t := time.Date(year, pd.month, pd.day, 0, 0, 0, 0, opts.Location)
	if rolled && opts.Now.Sub(t) > pastGrace {
		t = t.AddDate(1, 0, 0)
	}
	return t
}

// applyTime sets the clock on a materialized day: an explicit timeText wins,
// then a time found inside the date expression, then the default show time.
// Range dates stay at midnight when no time was given (bareMidnight).
func applyTime(day time.Time, pd parsedDate, timeText string, opts Options, bareMidnight bool) time.Time {
	if timeText != "" {
		if hour, minute, ok := clockFrom(timeText); ok {
			return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, opts.Location)
		}
	}
	if pd.hasTime {
		return time.Date(day.Year(), day.Month(), day.Day(), pd.hour, pd.minute, pd.second, 0, opts.Location)
	}
	if bareMidnight {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), opts.DefaultShowHour, opts.DefaultShowMinute, 0, 0, opts.Location)
}

func validDay(month time.Month, day int) bool {
	if month < time.January || month > time.December {
		return false
	}
	return day >= 1 && day <= 31
}

// atoi ignores errors; optional regex groups come through as "" which maps
// to 0, exactly what the callers want for missing seconds.
func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
