// Package fallback walks an ordered list of trade sources and returns the
// first non-empty result.
package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/metrics"
	"github.com/bobmcallan/tradewatch/internal/models"
)

// Coordinator implements RecordFetcher over sources in priority order.
// It holds no state between calls.
type Coordinator struct {
	sources []interfaces.TradeSource
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// NewCoordinator creates a coordinator. Sources are tried in the given order.
func NewCoordinator(sources []interfaces.TradeSource, logger *common.Logger) *Coordinator {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Coordinator{
		sources: append([]interfaces.TradeSource(nil), sources...),
		logger:  logger,
		now:     time.Now,
	}
}

// Sources returns the configured source names in priority order.
func (c *Coordinator) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// FetchFresh probes each source and fetches from the first available one.
// An unavailable source is never fetched. The first non-empty result wins
// and later sources are not consulted. When every source is skipped or
// empty the result is an empty set labeled NoSourceLabel.
func (c *Coordinator) FetchFresh(ctx context.Context) (models.RecordSet, string) {
	start := time.Now()
	defer func() {
		metrics.RefreshLatency.Observe(time.Since(start).Seconds())
	}()

	fetchID := uuid.New().String()

	for _, src := range c.sources {
		if ctx.Err() != nil {
			c.logger.Warn().Err(ctx.Err()).Str("fetch_id", fetchID).Msg("Refresh cancelled before all sources were tried")
			break
		}

		name := src.Name()

		if !c.available(ctx, src, name) {
			metrics.SourceAttempts.WithLabelValues(name, metrics.OutcomeUnavailable).Inc()
			c.logger.Info().Str("source", name).Str("fetch_id", fetchID).Msg("Source unavailable, trying next")
			continue
		}

		records, ok := c.fetch(ctx, src, name)
		if !ok {
			metrics.SourceAttempts.WithLabelValues(name, metrics.OutcomePanic).Inc()
			continue
		}
		if len(records) == 0 {
			metrics.SourceAttempts.WithLabelValues(name, metrics.OutcomeEmpty).Inc()
			c.logger.Info().Str("source", name).Str("fetch_id", fetchID).Msg("Source returned no records, trying next")
			continue
		}

		metrics.SourceAttempts.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
		metrics.SourceRecords.WithLabelValues(name).Set(float64(len(records)))
		c.logger.Info().
			Str("source", name).
			Str("fetch_id", fetchID).
			Int("records", len(records)).
			Dur("elapsed", time.Since(start)).
			Msg("Fetched records")

		return models.RecordSet{
			Records:   records,
			Source:    name,
			FetchID:   fetchID,
			FetchedAt: c.now(),
		}, name
	}

	c.logger.Warn().Str("fetch_id", fetchID).Int("sources", len(c.sources)).Msg("No source produced records")
	return models.RecordSet{Source: models.NoSourceLabel, FetchID: fetchID}, models.NoSourceLabel
}

// available runs the probe, treating a panic as unavailable.
func (c *Coordinator) available(ctx context.Context, src interfaces.TradeSource, name string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error().Str("source", name).Str("panic", fmt.Sprintf("%v", rec)).Msg("Availability probe panicked")
			ok = false
		}
	}()
	return src.IsAvailable(ctx)
}

// fetch runs FetchData. ok is false when the source panicked.
func (c *Coordinator) fetch(ctx context.Context, src interfaces.TradeSource, name string) (records []models.TradeRecord, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error().Str("source", name).Str("panic", fmt.Sprintf("%v", rec)).Msg("Source fetch panicked")
			records, ok = nil, false
		}
	}()
	return src.FetchData(ctx), true
}

// Ensure Coordinator implements RecordFetcher
var _ interfaces.RecordFetcher = (*Coordinator)(nil)
