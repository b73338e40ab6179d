package interfaces

import (
	"context"

	"github.com/bobmcallan/tradewatch/internal/models"
)

// RecordFetcher performs one uncached pass over the configured sources
type RecordFetcher interface {
	// FetchFresh returns the first non-empty result and its source label, or
	// an empty set labelled models.NoSourceLabel when every source failed.
	FetchFresh(ctx context.Context) (models.RecordSet, string)
}

// RecordService is the contract exposed to the presentation layer
type RecordService interface {
	// GetRecords returns current records and a label describing where they
	// came from (a source name, cached data, or stale cached data).
	GetRecords(ctx context.Context, forceRefresh bool) (models.RecordSet, string)

	// CacheStatus reports cache state without side effects
	CacheStatus() models.CacheStatus
}
