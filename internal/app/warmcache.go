package app

import (
	"context"
	"os"
	"time"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
)

// warmCache fetches records on startup so the first request is served from cache.
func warmCache(ctx context.Context, service interfaces.RecordService, logger *common.Logger) {
	// Check env var override
	if os.Getenv("TRADEWATCH_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via TRADEWATCH_WARM_CACHE=off")
		return
	}

	if status := service.CacheStatus(); status.CacheValid {
		logger.Info().Msg("Warm cache: records already fresh, skipping")
		return
	}

	start := time.Now()
	logger.Info().Msg("Warm cache: starting")

	data, label := service.GetRecords(ctx, false)
	if data.IsEmpty() {
		logger.Warn().Str("label", label).Dur("elapsed", time.Since(start)).Msg("Warm cache: no records available")
		return
	}

	logger.Info().
		Str("source", label).
		Int("records", data.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
}
