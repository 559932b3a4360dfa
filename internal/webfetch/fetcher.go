// Package webfetch downloads web pages a user references in a question and
// extracts their readable text.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds each HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxChars caps the extracted text.
	DefaultMaxChars = 20000

	// DefaultRetryDelay is the pause before the single retry.
	DefaultRetryDelay = 2 * time.Second

	// UserAgent for HTTP requests
	UserAgent = "LLM-Council-Fetcher/1.0"

	maxAttempts = 2
)

// ErrUnsupportedURL is returned for anything but absolute http(s) URLs.
var ErrUnsupportedURL = errors.New("only absolute http and https URLs are supported")

// Page is the readable content of a fetched URL.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Truncated bool      `json:"truncated"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Options configures a Fetcher. Zero values pick the defaults.
type Options struct {
	HTTPClient *http.Client
	CacheSize  int
	CacheTTL   time.Duration
	MaxChars   int
	RetryDelay time.Duration
	Log        logrus.FieldLogger
}

// Fetcher fetches pages and caches the extracted text per URL.
type Fetcher struct {
	client     *http.Client
	cache      *expirable.LRU[string, Page]
	maxChars   int
	retryDelay time.Duration
	log        logrus.FieldLogger
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Log = l
	}
	return &Fetcher{
		client:     opts.HTTPClient,
		cache:      expirable.NewLRU[string, Page](opts.CacheSize, nil, opts.CacheTTL),
		maxChars:   opts.MaxChars,
		retryDelay: opts.RetryDelay,
		log:        opts.Log,
	}
}

// Fetch returns the readable content of rawURL, from cache when a fresh
// copy exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	log := f.log.WithField("url", target)
	if page, ok := f.cache.Get(target); ok {
		log.Debug("webfetch.cache.hit")
		return &page, nil
	}

	start := time.Now()
	doc, err := f.download(ctx, target, log)
	if err != nil {
		log.WithError(err).Warn("webfetch.fetch.failed")
		return nil, err
	}

	page := extract(doc, f.maxChars)
	page.URL = target
	page.FetchedAt = time.Now().UTC()
	f.cache.Add(target, page)

	log.WithFields(logrus.Fields{
		"title":         page.Title,
		"content_chars": len(page.Content),
		"truncated":     page.Truncated,
		"latency_ms":    time.Since(start).Milliseconds(),
	}).Info("webfetch.fetch.done")
	return &page, nil
}

// download performs the GET, retrying once on a transport error.
func (f *Fetcher) download(ctx context.Context, target string, log logrus.FieldLogger) (*goquery.Document, error) {
	var (
		resp *http.Response
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err = f.client.Do(req)
		if err == nil {
			break
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		log.WithError(err).WithField("attempt", attempt).Warn("webfetch.fetch.retry")
		select {
		case <-time.After(f.retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to fetch %s: %w", target, ctx.Err())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrUnsupportedURL
	}
	u.Fragment = ""
	return u.String(), nil
}
