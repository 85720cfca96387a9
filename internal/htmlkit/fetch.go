// Package htmlkit fetches company web pages and parses them into queryable
// documents.
package htmlkit

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 15 * time.Second

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; OutreachBot/1.0; +https://sells.group/bot)"
	maxBodyBytes     = 1 << 20
)

// ErrBlocked is returned when the page is an anti-bot challenge.
var ErrBlocked = eris.New("htmlkit: blocked")

// Page is a fetched HTML document.
type Page struct {
	// URL is the final address after redirects.
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves a page. Redirects are followed.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Page, error)
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// NewHTTPFetcher creates an HTTPFetcher with sensible defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch GETs url. Caller headers override the defaults. A non-positive
// timeout uses DefaultTimeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Page, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "htmlkit: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "htmlkit: fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "htmlkit: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "%s (%s)", url, kind)
	}
	if resp.StatusCode >= 400 {
		return nil, resilience.StatusError("htmlkit", resp.StatusCode, url)
	}

	return &Page{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Body: body}, nil
}
