// Package httpclient is the engine's HTTP fetch capability.
//
// All requests share one pooled transport. Several upstream feeds reject the
// Go default client, so every request carries an explicit User-Agent. A
// per-host token bucket keeps fallback chains and co-hosted feeds from
// bursting a single upstream.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies pulse to upstream servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; pulse/1.0; +https://github.com/abelbrown/pulse)"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// ErrStatus is wrapped by Get for any non-2xx response.
var ErrStatus = errors.New("unexpected HTTP status")

var (
	sharedTransport *http.Transport
	transportOnce   sync.Once
)

// getSharedTransport builds the one transport every Client uses, on first
// call. Feed and series hosts are few, so idle connections per host stay low.
func getSharedTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	})
	return sharedTransport
}

// Config controls a Client.
type Config struct {
	UserAgent string
	// Timeout bounds a single request. The caller's context may be shorter.
	Timeout time.Duration
	// PerHostRate is the steady request rate allowed per host; <= 0 disables limiting.
	PerHostRate float64
	// PerHostBurst is the bucket size per host.
	PerHostBurst int
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		Timeout:      10 * time.Second,
		PerHostRate:  2,
		PerHostBurst: 4,
	}
}

// Client fetches raw bytes over HTTP.
type Client struct {
	http *http.Client
	cfg  Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client. Zero fields of cfg take DefaultConfig values.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PerHostBurst <= 0 {
		cfg.PerHostBurst = def.PerHostBurst
	}
	return &Client{
		http: &http.Client{
			Transport: getSharedTransport(),
			Timeout:   cfg.Timeout,
		},
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the token bucket for host, creating it on first use.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.PerHostRate), c.cfg.PerHostBurst)
		c.limiters[host] = l
	}
	return l
}

// Get fetches rawURL and returns the response body. Non-2xx responses wrap
// ErrStatus. The body is read up to 10 MiB.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if c.cfg.PerHostRate > 0 {
		if err := c.limiter(u.Host).Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", u.Host, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, application/json, text/csv;q=0.9, */*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s from %s", ErrStatus, resp.Status, u.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
