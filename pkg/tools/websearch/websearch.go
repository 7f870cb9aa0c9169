// Package websearch provides local web research tools for deployments that
// cannot run the provider-hosted web search: web_search queries DuckDuckGo's
// HTML endpoint and web_fetch downloads a page as markdown.
package websearch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

const (
	defaultEndpoint   = "https://html.duckduckgo.com/html/"
	defaultMaxResults = 5
	defaultMaxChars   = 20000
	defaultUserAgent  = "Mozilla/5.0 (compatible; newsroom/0.1; +https://github.com/germanamz/newsroom)"
)

// Options configures a WebSearch. Zero values select the defaults.
type Options struct {
	// Endpoint is the DuckDuckGo HTML search URL.
	Endpoint string
	// MaxResults caps the results returned by one web_search call.
	MaxResults int
	// MaxChars caps the markdown returned by web_fetch.
	MaxChars int
	// Client overrides the HTTP client. The default client refuses to connect
	// to private and loopback addresses.
	Client    *http.Client
	UserAgent string
}

// WebSearch holds the state shared by the web tools.
type WebSearch struct {
	endpoint   string
	maxResults int
	maxChars   int
	userAgent  string
	client     *http.Client
	limit      *limiter
}

// New creates a WebSearch.
func New(opts Options) *WebSearch {
	w := &WebSearch{
		endpoint:   opts.Endpoint,
		maxResults: opts.MaxResults,
		maxChars:   opts.MaxChars,
		userAgent:  opts.UserAgent,
		client:     opts.Client,
		limit:      searchLimit,
	}

	if w.endpoint == "" {
		w.endpoint = defaultEndpoint
	}
	if w.maxResults <= 0 {
		w.maxResults = defaultMaxResults
	}
	if w.maxChars <= 0 {
		w.maxChars = defaultMaxChars
	}
	if w.userAgent == "" {
		w.userAgent = defaultUserAgent
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second, Transport: safeTransport()}
	}

	return w
}

// Tools returns a ToolBox containing web_search and web_fetch.
func (w *WebSearch) Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(w.searchTool(), w.fetchTool())

	return tb
}

// limiter spaces out calls by a minimum interval.
type limiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

// searchLimit keeps every WebSearch in the process at one query per second.
var searchLimit = &limiter{interval: time.Second}

// wait blocks until the next call is allowed or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d := time.Until(l.last.Add(l.interval)); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.last = time.Now()

	return nil
}
