package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher() *HTTPFetcher {
	return NewHTTPFetcher(5*time.Second, "harvester-test/1.0", 0, zerolog.Nop())
}

// newEventServer serves a fixed listing page plus an empty robots.txt.
func newEventServer(t *testing.T, listingHTML string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchStaticParsesDocument(t *testing.T) {
	t.Parallel()

	server := newEventServer(t, `<html><body><article class="event"><h2>Jazz Night</h2></article></body></html>`)

	doc, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", doc.Find("h2").Text())
}

func TestFetchStaticSetsUserAgent(t *testing.T) {
	t.Parallel()

	var gotAgent string
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	_, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")
	require.NoError(t, err)
	assert.Equal(t, "harvester-test/1.0", gotAgent)
}

func TestFetchStaticStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status     int
		wantKind   FetchErrorKind
		wantBenign bool
	}{
		{http.StatusNotFound, FetchNotFound, true},
		{http.StatusGone, FetchNotFound, true},
		{http.StatusForbidden, FetchForbidden, true},
		{http.StatusUnauthorized, FetchForbidden, true},
		{http.StatusInternalServerError, FetchNetwork, false},
		{http.StatusBadGateway, FetchNetwork, false},
	}

	for _, tt := range tests {
		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		server := httptest.NewServer(mux)

		_, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")
		server.Close()

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr, "status=%d", tt.status)
		assert.Equal(t, tt.wantKind, fetchErr.Kind, "status=%d", tt.status)
		assert.Equal(t, tt.wantBenign, fetchErr.Benign(), "status=%d", tt.status)
	}
}

func TestFetchStaticRobotsDisallow(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /events\n"))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	_, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchForbidden, fetchErr.Kind)
	assert.True(t, fetchErr.Benign())
}

func TestFetchStaticRobotsAllowsOtherPaths(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>ok</p></body></html>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	_, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")
	assert.NoError(t, err)
}

func TestFetchStaticMissingRobotsAllows(t *testing.T) {
	t.Parallel()

	server := newEventServer(t, "<html></html>")

	_, err := testFetcher().FetchStatic(context.Background(), server.URL+"/events")
	assert.NoError(t, err)
}

func TestFetchStaticTimeout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fetcher := NewHTTPFetcher(200*time.Millisecond, "harvester-test/1.0", 0, zerolog.Nop())
	_, err := fetcher.FetchStatic(context.Background(), server.URL+"/events")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchTimeout, fetchErr.Kind)
	assert.False(t, fetchErr.Benign())
}

func TestFetchStaticUnreachableHost(t *testing.T) {
	t.Parallel()

	_, err := testFetcher().FetchStatic(context.Background(), "http://127.0.0.1:1/events")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	// Connection refused on loopback is a network failure, not DNS.
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}

func TestFetchStaticBadURL(t *testing.T) {
	t.Parallel()

	_, err := testFetcher().FetchStatic(context.Background(), "not-a-url")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchNetwork, fetchErr.Kind)
}

func TestClassifyTransportErrorDNS(t *testing.T) {
	t.Parallel()

	dnsErr := &net.DNSError{Err: "no such host", Name: "nonexistent.invalid", IsNotFound: true}
	fetchErr := classifyTransportError("http://nonexistent.invalid/", dnsErr)
	assert.Equal(t, FetchDNS, fetchErr.Kind)
	assert.True(t, fetchErr.Benign())
}

func TestClassifyTransportErrorDeadline(t *testing.T) {
	t.Parallel()

	fetchErr := classifyTransportError("http://example.com/", context.DeadlineExceeded)
	assert.Equal(t, FetchTimeout, fetchErr.Kind)
}

func TestFetchErrorMessage(t *testing.T) {
	t.Parallel()

	err := &FetchError{Kind: FetchNotFound, URL: "http://example.com/events", Err: errors.New("status 404")}
	assert.Equal(t, "fetch http://example.com/events: not_found: status 404", err.Error())
}
