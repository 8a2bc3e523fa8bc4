// Package scraper downloads a page and extracts its readable text.
package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const (
	defaultMaxChars = 15000
	maxBodyBytes    = 8 << 20
)

// Attempt is one client identity in the rotation.
type Attempt struct {
	UserAgent      string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// DefaultAttempts escalate timeouts across three browser identities.
var DefaultAttempts = []Attempt{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ConnectTimeout: 5 * time.Second,
		Timeout:        15 * time.Second,
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		ConnectTimeout: 10 * time.Second,
		Timeout:        30 * time.Second,
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		ConnectTimeout: 15 * time.Second,
		Timeout:        45 * time.Second,
	},
}

// Config tunes a Fetcher. Zero values pick the defaults above.
type Config struct {
	Attempts      []Attempt
	InsecureRetry bool
	MaxChars      int
}

// Fetcher implements ports.Scraper over plain HTTP.
type Fetcher struct {
	attempts      []Attempt
	insecureRetry bool
	maxChars      int
	logger        *slog.Logger
}

var _ ports.Scraper = (*Fetcher)(nil)

// NewFetcher builds a Fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if len(cfg.Attempts) == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultMaxChars
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		attempts:      cfg.Attempts,
		insecureRetry: cfg.InsecureRetry,
		maxChars:      cfg.MaxChars,
		logger:        logger,
	}
}

// Fetch downloads pageURL, rotating identities on failure, and returns its
// title and text capped at the configured length.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (domain.Page, error) {
	body, err := f.download(ctx, pageURL)
	if err != nil {
		return domain.Page{}, err
	}

	page, err := extract(body, pageURL)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	page.Text = truncate(page.Text, f.maxChars)
	return page, nil
}

func (f *Fetcher) download(ctx context.Context, pageURL string) ([]byte, error) {
	var lastErr error
	for i, attempt := range f.attempts {
		body, err := f.get(ctx, pageURL, attempt, false)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Debug("fetch attempt failed", "url", pageURL, "attempt", i+1, "error", err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrFetch, ctx.Err())
		}
	}

	if f.insecureRetry {
		last := f.attempts[len(f.attempts)-1]
		body, err := f.get(ctx, pageURL, last, true)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.logger.Debug("insecure fetch failed", "url", pageURL, "error", err)
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrFetch, lastErr)
}

func (f *Fetcher) get(ctx context.Context, pageURL string, attempt Attempt, insecure bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", attempt.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := clientFor(attempt, insecure).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func clientFor(attempt Attempt, insecure bool) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: attempt.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: attempt.ConnectTimeout,
		DisableKeepAlives:   true,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // last-resort retry for broken certificates
	}
	return &http.Client{Transport: transport, Timeout: attempt.Timeout}
}
