// Package records serves trade records through a TTL cache in front of the
// source fallback chain.
package records

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/metrics"
	"github.com/bobmcallan/tradewatch/internal/models"
)

const refreshKey = "refresh"

// Service implements RecordService. It owns the single cache entry; callers
// only ever receive copies of it.
type Service struct {
	fetcher interfaces.RecordFetcher
	ttl     time.Duration
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing

	mu    sync.RWMutex
	entry *models.CacheEntry

	// at most one refresh in flight; concurrent callers share its result
	group singleflight.Group
}

type result struct {
	data  models.RecordSet
	label string
}

// NewService creates a record service. A non-positive ttl falls back to
// FreshnessTradeRecords.
func NewService(fetcher interfaces.RecordFetcher, ttl time.Duration, logger *common.Logger) *Service {
	if ttl <= 0 {
		ttl = common.FreshnessTradeRecords
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// TTL returns the configured time-to-live
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// GetRecords returns the current records and a label describing where they
// came from. A fresh cache entry is served without touching the network
// unless forceRefresh is set. Otherwise a refresh runs; on failure the
// previous entry is served with a cached or stale label, or an empty set
// with the fetcher's failure label when nothing was ever fetched.
func (s *Service) GetRecords(ctx context.Context, forceRefresh bool) (models.RecordSet, string) {
	if !forceRefresh {
		if data, label, ok := s.cached(true); ok {
			metrics.CacheRequests.WithLabelValues(metrics.CacheHit).Inc()
			s.logger.Debug().Str("label", label).Int("records", data.Len()).Msg("Serving cached records")
			return data, label
		}
	}

	// The refresh is detached from the caller so that a caller going away
	// does not abort the fetch other waiters share.
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), forceRefresh), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CacheRequests.WithLabelValues(metrics.CacheSharedFlight).Inc()
		}
		r := res.Val.(result)
		return r.data.Clone(), r.label
	case <-ctx.Done():
		s.logger.Warn().Err(ctx.Err()).Msg("Caller gave up waiting for refresh")
		if data, label, ok := s.cached(false); ok {
			return data, label
		}
		return models.RecordSet{Source: models.NoSourceLabel}, models.NoSourceLabel
	}
}

// cached returns a copy of the entry with its cache label. With freshOnly
// set, an expired entry is not returned.
func (s *Service) cached(freshOnly bool) (models.RecordSet, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entry == nil {
		return models.RecordSet{}, "", false
	}
	fresh := common.IsFreshAt(s.entry.FetchedAt, s.entry.TTL, s.now())
	if freshOnly && !fresh {
		return models.RecordSet{}, "", false
	}
	return s.entry.Data.Clone(), entryLabel(s.entry, fresh), true
}

func entryLabel(e *models.CacheEntry, fresh bool) string {
	if fresh {
		return models.CachedLabel(e.FetchedAt)
	}
	return models.StaleLabel(e.FetchedAt)
}

func (s *Service) refresh(ctx context.Context, forced bool) result {
	s.logger.Info().Bool("forced", forced).Msg("Refreshing trade records")

	data, label := s.fetcher.FetchFresh(ctx)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !data.IsEmpty() {
		data = data.Clone()
		data.FetchedAt = now
		s.entry = &models.CacheEntry{Data: data, FetchedAt: now, TTL: s.ttl}
		metrics.CacheRequests.WithLabelValues(metrics.CacheRefreshed).Inc()
		s.logger.Info().Str("source", label).Int("records", data.Len()).Msg("Cache refreshed")
		return result{data: data, label: label}
	}

	if s.entry != nil {
		fresh := common.IsFreshAt(s.entry.FetchedAt, s.entry.TTL, now)
		metrics.CacheRequests.WithLabelValues(metrics.CacheStaleServed).Inc()
		s.logger.Warn().
			Str("failure", label).
			Time("last_updated", s.entry.FetchedAt).
			Msg("Refresh failed, serving previous records")
		return result{data: s.entry.Data, label: entryLabel(s.entry, fresh)}
	}

	metrics.CacheRequests.WithLabelValues(metrics.CacheEmptyServed).Inc()
	s.logger.Warn().Str("failure", label).Msg("Refresh failed with no previous records")
	return result{data: models.RecordSet{Source: label}, label: label}
}

// CacheStatus reports the cache state without side effects.
func (s *Service) CacheStatus() models.CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entry == nil {
		return models.CacheStatus{}
	}

	now := s.now()
	updated := s.entry.FetchedAt
	return models.CacheStatus{
		HasData:               true,
		LastUpdated:           &updated,
		CacheAgeMinutes:       int(s.entry.Age(now).Minutes()),
		CacheValid:            common.IsFreshAt(updated, s.entry.TTL, now),
		CacheRemainingMinutes: int(max(s.entry.Remaining(now), 0).Minutes()),
		TotalRecords:          s.entry.Data.Len(),
		Source:                s.entry.Data.Source,
	}
}

// Ensure Service implements RecordService
var _ interfaces.RecordService = (*Service)(nil)
