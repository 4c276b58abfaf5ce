package scraper

import (
	"bytes"
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

// Crawler collects documents from a multi-page listing by following the
// profile's pagination selector, for sources whose events span several
// static pages. Extraction stays outside: the crawler only gathers parsed
// documents in visit order.
type Crawler struct {
	userAgent string
	delay     time.Duration
	logger    zerolog.Logger
}

func NewCrawler(userAgent string, delay time.Duration, logger zerolog.Logger) *Crawler {
	if delay <= 0 {
		delay = time.Second
	}
	return &Crawler{userAgent: userAgent, delay: delay, logger: logger}
}

// CollectDocuments fetches source.URL and linked pages up to source.MaxPages,
// returning parsed documents in visit order. Colly respects robots.txt and
// applies a per-domain delay. Cancellation returns whatever was collected.
func (c *Crawler) CollectDocuments(ctx context.Context, source SourceConfig) ([]*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(source.URL)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: source.URL, Err: err}
	}

	maxPages := source.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var (
		mu        sync.Mutex
		docs      []*goquery.Document
		pagesSeen int
		fetchErr  *FetchError
	)

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
		colly.AllowedDomains(parsedURL.Hostname()),
	)
	collector.IgnoreRobotsTxt = false

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      c.delay,
	}); err != nil {
		c.logger.Warn().Err(err).Msg("crawl: failed to set rate limit rule")
	}

	collector.OnRequest(func(r *colly.Request) {
		mu.Lock()
		pagesSeen++
		reachedMax := pagesSeen > maxPages
		mu.Unlock()

		if reachedMax || ctx.Err() != nil {
			r.Abort()
			return
		}
		c.logger.Debug().Str("url", r.URL.String()).Int("page", pagesSeen).Msg("crawl: visiting page")
	})

	collector.OnResponse(func(r *colly.Response) {
		if ctx.Err() != nil {
			return
		}
		doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if parseErr != nil {
			c.logger.Warn().Err(parseErr).Str("url", r.Request.URL.String()).Msg("crawl: failed to parse page")
			return
		}
		mu.Lock()
		docs = append(docs, doc)
		mu.Unlock()
	})

	if source.Selectors.Pagination != "" {
		collector.OnHTML(source.Selectors.Pagination, func(h *colly.HTMLElement) {
			if ctx.Err() != nil {
				return
			}
			href := h.Attr("href")
			if href == "" {
				href = h.ChildAttr("a", "href")
			}
			if href == "" {
				return
			}
			nextURL := h.Request.AbsoluteURL(href)
			if nextURL == "" {
				return
			}
			if visitErr := collector.Visit(nextURL); visitErr != nil {
				c.logger.Debug().Err(visitErr).Str("url", nextURL).Msg("crawl: pagination visit skipped")
			}
		})
	}

	collector.OnError(func(r *colly.Response, visitErr error) {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().
			Str("url", r.Request.URL.String()).
			Int("status", r.StatusCode).
			Err(visitErr).
			Msg("crawl: request error")

		// Record a classified failure for the entry page only; deeper
		// pagination errors degrade to a shorter crawl.
		mu.Lock()
		if len(docs) == 0 && fetchErr == nil {
			if kind, bad := classifyStatus(r.StatusCode); bad {
				fetchErr = &FetchError{Kind: kind, URL: r.Request.URL.String(), Err: visitErr}
			} else {
				fetchErr = classifyTransportError(r.Request.URL.String(), visitErr)
			}
		}
		mu.Unlock()
	})

	if err := collector.Visit(source.URL); err != nil {
		if ctx.Err() != nil {
			return docs, nil
		}
		return nil, classifyTransportError(source.URL, err)
	}
	collector.Wait()

	if len(docs) == 0 && fetchErr != nil {
		return nil, fetchErr
	}
	return docs, nil
}
