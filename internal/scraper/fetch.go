package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

// FetchErrorKind classifies document fetch failures. NotFound, Forbidden,
// and DNS are benign: the run for that source yields zero events and moves
// on. Timeout and Network are reportable.
type FetchErrorKind string

const (
	FetchTimeout   FetchErrorKind = "timeout"
	FetchNotFound  FetchErrorKind = "not_found"
	FetchForbidden FetchErrorKind = "forbidden"
	FetchDNS       FetchErrorKind = "dns"
	FetchNetwork   FetchErrorKind = "network"
)

// FetchError wraps a failed document fetch with its classification.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Benign reports whether the failure means "site has nothing for us" rather
// than a condition worth surfacing.
func (e *FetchError) Benign() bool {
	switch e.Kind {
	case FetchNotFound, FetchForbidden, FetchDNS:
		return true
	}
	return false
}

const (
	maxBodyBytes  = 10 * 1024 * 1024 // cap parsed HTML to prevent OOM
	robotsTimeout = 10 * time.Second
)

// Fetcher supplies parsed documents to the extractor. Static fetching is a
// plain GET; rendered fetching executes the page's JavaScript first. The
// extractor is agnostic to which one produced the document.
type Fetcher interface {
	FetchStatic(ctx context.Context, rawURL string) (*goquery.Document, error)
	FetchRendered(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// HTTPFetcher implements static fetching with a bounded timeout, a robots.txt
// gate, and a jittered courtesy delay before each request.
type HTTPFetcher struct {
	client        *http.Client
	userAgent     string
	courtesyDelay time.Duration
	logger        zerolog.Logger
}

// NewHTTPFetcher builds a fetcher. Redirects are disabled so a listing page
// cannot be silently swapped for another host's content.
func NewHTTPFetcher(timeout time.Duration, userAgent string, courtesyDelay time.Duration, logger zerolog.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:     userAgent,
		courtesyDelay: courtesyDelay,
		logger:        logger,
	}
}

// FetchStatic GETs rawURL and parses the body. The courtesy delay runs
// first so sequential fetches against one host stay polite.
func (f *HTTPFetcher) FetchStatic(ctx context.Context, rawURL string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: fmt.Errorf("missing scheme or host")}
	}

	if err := f.courtesyWait(ctx); err != nil {
		return nil, &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}

	allowed, robotsErr := robotsAllowed(ctx, rawURL, f.userAgent)
	if robotsErr != nil {
		// Fail open when robots.txt is unreachable, but say so.
		f.logger.Warn().Err(robotsErr).Str("url", rawURL).Msg("fetch: robots.txt check failed, proceeding as allowed")
		allowed = true
	}
	if !allowed {
		return nil, &FetchError{Kind: FetchForbidden, URL: rawURL, Err: fmt.Errorf("disallowed by robots.txt")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if kind, bad := classifyStatus(resp.StatusCode); bad {
		return nil, &FetchError{Kind: kind, URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	return doc, nil
}

// courtesyWait sleeps for the configured delay plus up to 50% jitter,
// honouring context cancellation.
func (f *HTTPFetcher) courtesyWait(ctx context.Context) error {
	if f.courtesyDelay <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(f.courtesyDelay)/2 + 1))
	select {
	case <-time.After(f.courtesyDelay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// classifyTransportError maps a client error onto the FetchError taxonomy.
func classifyTransportError(rawURL string, err error) *FetchError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Kind: FetchDNS, URL: rawURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}
	return &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
}

// classifyStatus maps an HTTP status onto the taxonomy; 2xx is fine.
func classifyStatus(status int) (FetchErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusNotFound || status == http.StatusGone:
		return FetchNotFound, true
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return FetchForbidden, true
	default:
		return FetchNetwork, true
	}
}

// robotsAllowed fetches and evaluates robots.txt for rawURL. A missing
// robots.txt allows everything.
func robotsAllowed(ctx context.Context, rawURL string, userAgent string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}
	robotsURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
		Path:   "/robots.txt",
	}

	client := &http.Client{
		Timeout: robotsTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return false, fmt.Errorf("building robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetching robots.txt from %q: %w", robotsURL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return false, fmt.Errorf("reading robots.txt body: %w", err)
	}

	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return false, fmt.Errorf("parsing robots.txt: %w", err)
	}

	group := robots.FindGroup(userAgent)
	return group.Test(parsedURL.Path), nil
}
