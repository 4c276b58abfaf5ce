package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
)

// BrowserFetcher renders pages in a headless browser for sources whose
// listings only materialize after JavaScript runs. The browser is launched
// lazily on first use and shared across fetches.
type BrowserFetcher struct {
	timeout time.Duration
	logger  zerolog.Logger

	browser *rod.Browser
}

func NewBrowserFetcher(timeout time.Duration, logger zerolog.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{timeout: timeout, logger: logger}
}

// FetchRendered navigates to rawURL, waits for the page to settle, and
// parses the rendered DOM snapshot.
func (f *BrowserFetcher) FetchRendered(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}

	page, err := stealth.Page(f.browser)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			f.logger.Debug().Err(closeErr).Msg("browser: page close failed")
		}
	}()

	page = page.Context(ctx).Timeout(f.timeout)

	if err := page.Navigate(rawURL); err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}
	// Let late XHR-driven listings settle; ignore failure, the loaded DOM
	// is still usable.
	if err := page.WaitIdle(2 * time.Second); err != nil {
		f.logger.Debug().Err(err).Str("url", rawURL).Msg("browser: wait idle timed out")
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	return doc, nil
}

// Close shuts the shared browser down. Safe to call when nothing launched.
func (f *BrowserFetcher) Close() {
	if f.browser == nil {
		return
	}
	if err := f.browser.Close(); err != nil {
		f.logger.Debug().Err(err).Msg("browser: close failed")
	}
	f.browser = nil
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.browser != nil {
		return nil
	}
	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return err
	}
	f.browser = browser
	return nil
}

func classifyBrowserError(rawURL string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}
	return &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
}

// SiteFetcher combines the static and rendered strategies behind the
// Fetcher interface.
type SiteFetcher struct {
	*HTTPFetcher
	*BrowserFetcher
}

func NewSiteFetcher(static *HTTPFetcher, rendered *BrowserFetcher) *SiteFetcher {
	return &SiteFetcher{HTTPFetcher: static, BrowserFetcher: rendered}
}
