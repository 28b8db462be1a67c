// Package kandilli fetches the latest-earthquakes bulletin published by the
// Kandilli Observatory and returns its raw data rows.
package kandilli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/seismic-sentinel/internal/config"
	"github.com/couchcryptid/storm-data-shared/retry"
	"golang.org/x/net/html/charset"
)

// ErrNoBulletin is returned when the page has no <pre> block.
var ErrNoBulletin = errors.New("bulletin block not found")

const maxBackoff = 30 * time.Second

// StatusError is returned for a non-200 response.
type StatusError struct {
	Code int
	Body string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bulletin source error: status %d: %s", e.Code, e.Body)
}

// Client implements pipeline.Fetcher over HTTP.
type Client struct {
	url         string
	charset     string // forced encoding label; empty means sniff
	headerLines int
	retries     int
	backoff     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a bulletin client for the configured source page.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		url:         cfg.SourceURL,
		charset:     cfg.SourceCharset,
		headerLines: cfg.HeaderLines,
		retries:     cfg.FetchRetries,
		backoff:     cfg.FetchBackoff,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		logger: logger,
	}
}

// Fetch downloads the bulletin page and returns its lines with the header
// block removed. The page is decoded to UTF-8 before extraction. Transport
// failures and 5xx responses are retried with exponential backoff.
func (c *Client) Fetch(ctx context.Context) ([]string, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		lines, err := c.fetch(ctx)
		if err == nil || attempt >= c.retries || ctx.Err() != nil || !retryable(err) {
			return lines, err
		}
		c.logger.Warn("bulletin fetch failed, retrying",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulletin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	body, err := c.decode(resp)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse bulletin page: %w", err)
	}

	pre := doc.Find("pre").First()
	if pre.Length() == 0 {
		return nil, ErrNoBulletin
	}

	lines := splitBulletin(pre.Text(), c.headerLines)
	c.logger.Debug("bulletin fetched", "url", c.url, "lines", len(lines))
	return lines, nil
}

func (c *Client) decode(resp *http.Response) (io.Reader, error) {
	if c.charset != "" {
		r, err := charset.NewReaderLabel(c.charset, resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode bulletin as %s: %w", c.charset, err)
		}
		return r, nil
	}
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode bulletin: %w", err)
	}
	return r, nil
}

// retryable reports whether another attempt could succeed. Client errors and
// pages without a bulletin are final.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrNoBulletin)
}
// splitBulletin splits the preformatted text on newlines and drops the fixed
// header block (column titles and rulers).
func splitBulletin(text string, headerLines int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) <= headerLines {
		return []string{}
	}
	return lines[headerLines:]
}
