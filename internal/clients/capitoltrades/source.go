// Package capitoltrades provides trade sources backed by the Capitol Trades
// website: a content-heuristic scraper of the public listing page and a
// structured API client whose payload schema is not yet integrated.
package capitoltrades

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/tradewatch/internal/common"
)

const (
	DefaultPageURL      = "https://www.capitoltrades.com/trades"
	DefaultAPIURL       = "https://bff.capitoltrades.com/trades"
	DefaultProbeTimeout = 10 * time.Second
	DefaultFetchTimeout = 15 * time.Second

	// maxBodyBytes bounds how much of any response is read
	maxBodyBytes = 10 << 20

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var errBodyTooLarge = errors.New("response body exceeds size limit")

func htmlHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

func jsonHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", "application/json")
	return h
}

// probe reports whether a GET to url answers 200 within timeout.
func probe(ctx context.Context, client *http.Client, url string, headers http.Header, timeout time.Duration, logger *common.Logger, source string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Warn().Err(err).Str("source", source).Msg("Availability probe request build failed")
		return false
	}
	req.Header = headers.Clone()

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Warn().Err(err).Str("source", source).Dur("elapsed", elapsed).Msg("Source not accessible")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode != http.StatusOK {
		logger.Warn().Str("source", source).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Source probe non-OK response")
		return false
	}

	logger.Debug().Str("source", source).Dur("elapsed", elapsed).Msg("Source available")
	return true
}

// get performs a GET bounded by timeout and returns the body of a 200 response.
func get(ctx context.Context, client *http.Client, url string, headers http.Header, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers.Clone()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}
