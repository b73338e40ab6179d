package capitoltrades

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/models"
)

// DefaultAPIName labels record sets produced by APISource
const DefaultAPIName = "Capitol Trades API"

// PayloadDecoder turns a raw API payload into records.
type PayloadDecoder func(payload []byte) ([]models.TradeRecord, error)

// APISource queries the structured trades endpoint. The payload schema is
// not integrated yet: without a decoder the source is inert and FetchData
// always returns an empty result after logging the payload size.
type APISource struct {
	name       string
	apiURL     string
	timeout    time.Duration
	httpClient *http.Client
	decode     PayloadDecoder
	logger     *common.Logger
}

// APIOption configures an APISource
type APIOption func(*APISource)

// WithAPIURL sets the endpoint URL
func WithAPIURL(url string) APIOption {
	return func(s *APISource) {
		s.apiURL = url
	}
}

// WithAPIName overrides the source label
func WithAPIName(name string) APIOption {
	return func(s *APISource) {
		s.name = name
	}
}

// WithAPILogger sets the logger
func WithAPILogger(logger *common.Logger) APIOption {
	return func(s *APISource) {
		s.logger = logger
	}
}

// WithAPITimeout sets the probe and fetch timeout
func WithAPITimeout(d time.Duration) APIOption {
	return func(s *APISource) {
		s.timeout = d
		s.httpClient.Timeout = d
	}
}

// WithDecoder installs a payload decoder, activating the source
func WithDecoder(decode PayloadDecoder) APIOption {
	return func(s *APISource) {
		s.decode = decode
	}
}

// NewAPISource creates the structured API source
func NewAPISource(opts ...APIOption) *APISource {
	s := &APISource{
		name:    DefaultAPIName,
		apiURL:  DefaultAPIURL,
		timeout: DefaultProbeTimeout,
		httpClient: &http.Client{
			Timeout: DefaultProbeTimeout,
		},
		logger: common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the source label
func (s *APISource) Name() string {
	return s.name
}

// IsAvailable reports whether the endpoint answers 200
func (s *APISource) IsAvailable(ctx context.Context) bool {
	return probe(ctx, s.httpClient, s.apiURL, jsonHeaders(), s.timeout, s.logger, s.name)
}

// FetchData retrieves the payload. Returns empty unless a decoder is installed.
func (s *APISource) FetchData(ctx context.Context) (records []models.TradeRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", rec)).Str("source", s.name).Msg("Payload decode panicked")
			records = nil
		}
	}()

	s.logger.Info().Str("source", s.name).Msg("Attempting to fetch trades API")

	start := time.Now()
	payload, err := get(ctx, s.httpClient, s.apiURL, jsonHeaders(), s.timeout)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", s.name).Dur("elapsed", elapsed).Msg("Trades API request failed")
		return nil
	}

	s.logger.Info().
		Str("source", s.name).
		Int("bytes", len(payload)).
		Bool("valid_json", json.Valid(payload)).
		Dur("elapsed", elapsed).
		Msg("Trades API response received")

	if s.decode == nil {
		return nil
	}

	records, err = s.decode(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", s.name).Msg("Trades API payload decode failed")
		return nil
	}
	for i := range records {
		if records[i].Provenance == "" {
			records[i].Provenance = models.ProvenanceParsed
		}
		records[i].NormalizeDelay()
	}
	return records
}

// Ensure APISource implements TradeSource
var _ interfaces.TradeSource = (*APISource)(nil)
