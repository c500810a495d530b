// Package collyfetcher implements crawl.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/siteloom/llmstxt-worker/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	GetTimeout    time.Duration
	HeadTimeout   time.Duration
}

// Fetcher implements crawl.Fetcher using the Colly collector. GETs carry
// the full-fetch timeout, HEAD probes the shorter one. It never retries.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.GetTimeout == 0 {
		cfg.GetTimeout = 15 * time.Second
	}
	if cfg.HeadTimeout == 0 {
		cfg.HeadTimeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Get executes a single HTTP GET. Non-200 responses are returned with
// their status code, not as errors; the caller decides what they mean.
func (f *Fetcher) Get(ctx context.Context, url string) (crawl.FetchResponse, error) {
	var (
		result   crawl.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(f.cfg.GetTimeout, &result, &fetchErr, start)

	if err := f.run(ctx, &result, &fetchErr, func() error { return collector.Visit(url) }); err != nil {
		return crawl.FetchResponse{}, err
	}
	return result, nil
}

// Head executes a lightweight HEAD probe for the header-based change check.
func (f *Fetcher) Head(ctx context.Context, url string) (crawl.HeadResponse, error) {
	var (
		result   crawl.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(f.cfg.HeadTimeout, &result, &fetchErr, start)

	if err := f.run(ctx, &result, &fetchErr, func() error { return collector.Head(url) }); err != nil {
		return crawl.HeadResponse{}, err
	}
	return crawl.HeadResponse{StatusCode: result.StatusCode, Headers: result.Headers}, nil
}

func (f *Fetcher) buildCollector(
	timeout time.Duration,
	result *crawl.FetchResponse,
	fetchErr *error,
	start time.Time,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	// Clones share the visited-URL store; the change check probes the same
	// URL with HEAD and then GET, so revisits must be allowed.
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		*result = crawl.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses through OnError; surface them as
		// ordinary responses so callers can classify by status code.
		if r != nil && r.StatusCode > 0 {
			*result = crawl.FetchResponse{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Headers:    r.Headers.Clone(),
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		*fetchErr = err
	})
	return collector
}

func (f *Fetcher) run(ctx context.Context, result *crawl.FetchResponse, fetchErr *error, visit func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- visit()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		// A visit error with a populated status means a non-2xx response,
		// which is a valid result here.
		if err != nil && result.StatusCode == 0 {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
