package capitoltrades

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/models"
)

// DefaultHTMLName labels record sets produced by HTMLSource
const DefaultHTMLName = "Capitol Trades Enhanced HTML Scraper"

// HTMLSource scrapes the public trades listing page. The page is rendered
// client-side, so extraction is heuristic: embedded state first, then a
// pattern-based approximation (see synthesize).
type HTMLSource struct {
	name         string
	pageURL      string
	httpClient   *http.Client
	probeTimeout time.Duration
	fetchTimeout time.Duration
	resolver     interfaces.NameResolver
	logger       *common.Logger
	now          func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// HTMLOption configures an HTMLSource
type HTMLOption func(*HTMLSource)

// WithPageURL sets the listing page URL
func WithPageURL(url string) HTMLOption {
	return func(s *HTMLSource) {
		s.pageURL = url
	}
}

// WithHTMLName overrides the source label
func WithHTMLName(name string) HTMLOption {
	return func(s *HTMLSource) {
		s.name = name
	}
}

// WithHTMLLogger sets the logger
func WithHTMLLogger(logger *common.Logger) HTMLOption {
	return func(s *HTMLSource) {
		s.logger = logger
	}
}

// WithProbeTimeout sets the availability probe timeout
func WithProbeTimeout(d time.Duration) HTMLOption {
	return func(s *HTMLSource) {
		s.probeTimeout = d
	}
}

// WithFetchTimeout sets the page fetch timeout
func WithFetchTimeout(d time.Duration) HTMLOption {
	return func(s *HTMLSource) {
		s.fetchTimeout = d
	}
}

// WithSeed makes pattern synthesis deterministic. Zero seeds from the clock.
func WithSeed(seed int64) HTMLOption {
	return func(s *HTMLSource) {
		if seed != 0 {
			s.rng = newRand(seed)
		}
	}
}

// WithClock sets the clock used to date synthesized records
func WithClock(now func() time.Time) HTMLOption {
	return func(s *HTMLSource) {
		s.now = now
	}
}

// WithHTMLClient replaces the HTTP client
func WithHTMLClient(client *http.Client) HTMLOption {
	return func(s *HTMLSource) {
		s.httpClient = client
	}
}

// NewHTMLSource creates the listing page source. resolver may be nil, in
// which case synthesized records carry placeholder company names.
func NewHTMLSource(resolver interfaces.NameResolver, opts ...HTMLOption) *HTMLSource {
	s := &HTMLSource{
		name:         DefaultHTMLName,
		pageURL:      DefaultPageURL,
		probeTimeout: DefaultProbeTimeout,
		fetchTimeout: DefaultFetchTimeout,
		resolver:     resolver,
		logger:       common.NewSilentLogger(),
		now:          time.Now,
		rng:          newRand(time.Now().UnixNano()),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: max(s.probeTimeout, s.fetchTimeout)}
	}

	return s
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
}

// Name returns the source label
func (s *HTMLSource) Name() string {
	return s.name
}

// IsAvailable reports whether the listing page answers 200
func (s *HTMLSource) IsAvailable(ctx context.Context) bool {
	return probe(ctx, s.httpClient, s.pageURL, htmlHeaders(), s.probeTimeout, s.logger, s.name)
}

// FetchData downloads the listing page and extracts records. Any failure,
// including a panic inside extraction, yields an empty result.
func (s *HTMLSource) FetchData(ctx context.Context) (records []models.TradeRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", rec)).Str("source", s.name).Msg("Extraction panicked")
			records = nil
		}
	}()

	s.logger.Info().Str("source", s.name).Msg("Attempting enhanced page extraction")

	start := time.Now()
	page, err := get(ctx, s.httpClient, s.pageURL, htmlHeaders(), s.fetchTimeout)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", s.name).Dur("elapsed", time.Since(start)).Msg("Failed to load page")
		return nil
	}

	return s.extract(ctx, page)
}

// extract runs the two extraction stages over a downloaded page.
func (s *HTMLSource) extract(ctx context.Context, page []byte) []models.TradeRecord {
	if candidate, marker, ok := extractEmbedded(page); ok {
		records := mapEmbedded(candidate)
		s.fillCompanies(ctx, records)
		s.logger.Info().
			Str("source", s.name).
			Str("marker", marker).
			Int("records", len(records)).
			Msg("Found embedded page data")
		return records
	}

	money, tickers := findPatterns(string(page))
	if len(money) < MinPatternMatches || len(tickers) < MinPatternMatches {
		s.logger.Warn().
			Str("source", s.name).
			Int("money_tokens", len(money)).
			Int("ticker_tokens", len(tickers)).
			Msg("No structured trade data found, page is rendered client-side")
		return nil
	}

	s.logger.Info().
		Str("source", s.name).
		Int("money_tokens", len(money)).
		Int("ticker_tokens", len(tickers)).
		Msg("Synthesizing records from page patterns")

	return s.synthesize(ctx, money, tickers)
}

// fillCompanies resolves company names for parsed records that lack one.
func (s *HTMLSource) fillCompanies(ctx context.Context, records []models.TradeRecord) {
	for i := range records {
		if records[i].Company != "" || records[i].Ticker == "" {
			continue
		}
		records[i].Company = s.resolveName(ctx, records[i].Ticker)
	}
}

func (s *HTMLSource) resolveName(ctx context.Context, ticker string) string {
	if s.resolver == nil {
		return fmt.Sprintf("Company for %s", ticker)
	}
	return s.resolver.Resolve(ctx, ticker)
}

// Ensure HTMLSource implements TradeSource
var _ interfaces.TradeSource = (*HTMLSource)(nil)
