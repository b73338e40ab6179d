// Package tickerlookup resolves ticker symbols to company names via a public
// keyword search endpoint, memoizing every answer for the process lifetime.
package tickerlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/metrics"
)

const (
	DefaultBaseURL    = "https://ticker-2e1ica8b9.now.sh"
	DefaultTimeout    = 5 * time.Second
	DefaultRateLimit  = 5 // requests per second
	DefaultLimit      = 5 // candidates requested per keyword search
	DefaultBatchPause = 200 * time.Millisecond

	// UnknownCompany is returned for an empty ticker
	UnknownCompany = "Unknown Company"
)

// Client implements the NameResolver interface
type Client struct {
	baseURL    string
	limit      int
	batchPause time.Duration
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter

	mu      sync.RWMutex
	cache   map[string]string
	group   singleflight.Group
	lookups atomic.Int64
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLimit sets how many candidates each keyword search asks for
func WithLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithBatchPause sets the pause between lookups in ResolveMany
func WithBatchPause(pause time.Duration) ClientOption {
	return func(c *Client) {
		c.batchPause = pause
	}
}

// NewClient creates a new ticker lookup client.
// No API key is required; the endpoint is public.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		limit:      DefaultLimit,
		batchPause: DefaultBatchPause,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:  common.NewSilentLogger(),
		cache:   make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// keywordResponse is the body of GET /keyword/{q}/limit/{n}
type keywordResponse struct {
	Results []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"results"`
}

// Normalize returns the cache key form of a ticker: trimmed and upper-cased.
func Normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Placeholder is the deterministic name used when a lookup fails.
func Placeholder(ticker string) string {
	return fmt.Sprintf("Company for %s", ticker)
}

// Resolve returns the company name for ticker. Each normalized ticker is
// looked up over the network at most once per Client, including when several
// goroutines ask for the same ticker at the same time.
func (c *Client) Resolve(ctx context.Context, ticker string) string {
	key := Normalize(ticker)
	if key == "" {
		metrics.NameLookups.WithLabelValues("empty").Inc()
		return UnknownCompany
	}

	if name, ok := c.cached(key); ok {
		metrics.NameLookups.WithLabelValues("hit").Inc()
		return name
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		if name, ok := c.cached(key); ok {
			return name, nil
		}
		name, outcome := c.lookup(ctx, key)
		metrics.NameLookups.WithLabelValues(outcome).Inc()

		// A caller that gave up is not an answer from the service; leave the
		// ticker uncached so the next request can try again.
		if ctx.Err() != nil {
			return name, nil
		}

		c.mu.Lock()
		c.cache[key] = name
		c.mu.Unlock()
		return name, nil
	})

	return v.(string)
}

// ResolveMany resolves each ticker in order, pausing between lookups to stay
// polite to the upstream service. Keys of the result are the tickers as given.
// If ctx ends mid-batch the remaining tickers get cached or placeholder names.
func (c *Client) ResolveMany(ctx context.Context, tickers []string) map[string]string {
	out := make(map[string]string, len(tickers))

	for i, t := range tickers {
		if i > 0 && c.batchPause > 0 {
			if err := sleepCtx(ctx, c.batchPause); err != nil {
				c.fillRemaining(out, tickers[i:])
				c.logger.Warn().Err(err).Int("remaining", len(tickers)-i).Msg("Ticker batch resolution interrupted")
				return out
			}
		}
		out[t] = c.Resolve(ctx, t)
	}

	return out
}

// CacheSize returns the number of memoized tickers
func (c *Client) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Lookups returns how many network lookups have been issued
func (c *Client) Lookups() int64 {
	return c.lookups.Load()
}

func (c *Client) cached(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.cache[key]
	return name, ok
}

func (c *Client) fillRemaining(out map[string]string, tickers []string) {
	for _, t := range tickers {
		key := Normalize(t)
		switch name, ok := c.cached(key); {
		case key == "":
			out[t] = UnknownCompany
		case ok:
			out[t] = name
		default:
			out[t] = Placeholder(key)
		}
	}
}

// lookup queries the keyword endpoint and returns the chosen name together
// with an outcome label for metrics. It never fails: every error path yields
// the placeholder name.
func (c *Client) lookup(ctx context.Context, key string) (string, string) {
	fallback := Placeholder(key)

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn().Err(err).Str("ticker", key).Msg("Ticker lookup rate limit wait failed")
		return fallback, "fallback"
	}

	reqURL := fmt.Sprintf("%s/keyword/%s/limit/%d", c.baseURL, url.PathEscape(key), c.limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Error().Err(err).Str("ticker", key).Msg("Ticker lookup request build failed")
		return fallback, "fallback"
	}
	req.Header.Set("User-Agent", common.UserAgent())
	req.Header.Set("Accept", "application/json")

	c.lookups.Add(1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("ticker", key).Dur("elapsed", elapsed).Msg("Ticker lookup request failed, using fallback")
		return fallback, "fallback"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Str("ticker", key).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Ticker lookup non-OK response, using fallback")
		return fallback, "fallback"
	}

	var body keywordResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn().Err(err).Str("ticker", key).Msg("Ticker lookup response malformed, using fallback")
		return fallback, "fallback"
	}

	if len(body.Results) == 0 {
		c.logger.Warn().Str("ticker", key).Msg("Ticker lookup returned no results, using fallback")
		return fallback, "fallback"
	}

	for _, r := range body.Results {
		if Normalize(r.Symbol) == key && strings.TrimSpace(r.Name) != "" {
			c.logger.Info().Str("ticker", key).Str("name", r.Name).Dur("elapsed", elapsed).Msg("Resolved company name")
			return strings.TrimSpace(r.Name), "exact"
		}
	}

	first := strings.TrimSpace(body.Results[0].Name)
	if first == "" {
		return fallback, "fallback"
	}
	c.logger.Info().Str("ticker", key).Str("name", first).Str("matched_symbol", body.Results[0].Symbol).Msg("Using first lookup candidate")
	return first, "first_candidate"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Ensure Client implements NameResolver
var _ interfaces.NameResolver = (*Client)(nil)
