package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
)

// cronLogger adapts the zerolog-backed Logger to cron.Logger.
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("Refresh scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("Refresh scheduler: " + msg)
}

// newRefreshScheduler builds a cron scheduler running refreshRecords on spec.
// Overlapping runs are skipped and panics inside a run are recovered.
func newRefreshScheduler(ctx context.Context, spec string, service interfaces.RecordService, logger *common.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(spec, func() {
		refreshRecords(ctx, service, logger)
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	return c, nil
}

// refreshRecords asks for records without forcing, so the network is only
// touched when the cache has gone stale.
func refreshRecords(ctx context.Context, service interfaces.RecordService, logger *common.Logger) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	data, label := service.GetRecords(ctx, false)

	logger.Info().
		Str("label", label).
		Int("records", data.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh scheduler: complete")
}
