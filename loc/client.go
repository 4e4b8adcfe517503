// Package loc fetches MARC field documentation from the Library of
// Congress website and scrapes it into tag definitions.
//
// The LC pages are hand-maintained HTML, not an API. Scraping is best
// effort: a page that yields no usable definition is reported as
// ErrScrape and treated like a failed fetch by the cache layer.
package loc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gomarc/marclsp/kb"
)

const (
	// DefaultBibliographicBaseURL hosts bdNNN.html pages.
	DefaultBibliographicBaseURL = "https://www.loc.gov/marc/bibliographic/"

	// DefaultHoldingsBaseURL hosts hdNNN.html pages.
	DefaultHoldingsBaseURL = "https://www.loc.gov/marc/holdings/"

	// DefaultTimeout for a single page fetch. An editor request is
	// usually waiting on the result, so this stays short.
	DefaultTimeout = 5 * time.Second

	// DefaultMinInterval between requests to the LC site.
	DefaultMinInterval = time.Second

	userAgent = "marclsp/" + "0.1" + " (library cataloging tool)"

	// maxBodySize caps a fetched page. LC field pages are well under
	// this; anything larger is not the page we expect.
	maxBodySize = 4 << 20
)

var (
	// ErrNotFound reports a tag with no documentation page: either no
	// URL can be formed for it or the site returned 404.
	ErrNotFound = errors.New("no documentation page for tag")

	// ErrScrape reports a page that was fetched but yielded no usable
	// definition.
	ErrScrape = errors.New("documentation page yielded no definition")
)

// Client fetches tag documentation pages. Requests are rate limited so
// bulk validation does not hammer the LC site.
type Client struct {
	httpClient  *http.Client
	bibBase     string
	holdBase    string
	minInterval time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	nextRequest time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURLs overrides the documentation base URLs. Both must end
// with a slash.
func WithBaseURLs(bibliographic, holdings string) ClientOption {
	return func(c *Client) {
		c.bibBase = bibliographic
		c.holdBase = holdings
	}
}

// WithMinInterval sets the minimum delay between requests. Zero
// disables rate limiting.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.minInterval = d
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a documentation client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		bibBase:     DefaultBibliographicBaseURL,
		holdBase:    DefaultHoldingsBaseURL,
		minInterval: DefaultMinInterval,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TagURL returns the documentation URL for a tag. Holdings-format tags
// (852 through 878, and 880 up) live under the holdings pages, the
// rest under bibliographic. Tags that are not three digits have no
// page.
func (c *Client) TagURL(tag string) (string, bool) {
	if len(tag) != 3 {
		return "", false
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return "", false
	}
	if (n >= 852 && n <= 878) || n >= 880 {
		return c.holdBase + "hd" + tag + ".html", true
	}
	return c.bibBase + "bd" + tag + ".html", true
}

// FetchTag downloads and scrapes the documentation page for a tag. The
// raw page body is returned alongside the definition so callers can
// persist it.
func (c *Client) FetchTag(ctx context.Context, tag string) (*kb.TagDefinition, []byte, error) {
	url, ok := c.TagURL(tag)
	if !ok {
		return nil, nil, fmt.Errorf("tag %q: %w", tag, ErrNotFound)
	}

	if err := c.throttle(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("fetching documentation", "tag", tag, "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, fmt.Errorf("tag %q: %w", tag, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", url, err)
	}

	def, err := ParseTagPage(tag, body)
	if err != nil {
		return nil, nil, fmt.Errorf("tag %q: %w", tag, err)
	}
	return def, body, nil
}

// throttle enforces the minimum interval between requests. The wait is
// abandoned when the context is canceled.
func (c *Client) throttle(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	at := c.nextRequest
	if at.Before(now) {
		at = now
	}
	c.nextRequest = at.Add(c.minInterval)
	c.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}
	c.logger.Debug("rate limiting documentation fetch", "wait", wait)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
