package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/tradewatch/internal/clients/tickerlookup"
	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/services/fallback"
	"github.com/bobmcallan/tradewatch/internal/services/records"
)

// App holds the acquisition pipeline: the name resolver, the ordered sources,
// the fallback coordinator and the cached record service in front of it.
// It is the shared core used by cmd/tradewatch-server and cmd/tradewatch-fetch.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Resolver    *tickerlookup.Client
	Sources     []interfaces.TradeSource
	Coordinator *fallback.Coordinator
	Records     interfaces.RecordService
	StartupTime time.Time

	scheduler       *cron.Cron
	schedulerCancel context.CancelFunc
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, TRADEWATCH_CONFIG,
// tradewatch.toml next to the binary, then config/tradewatch.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("TRADEWATCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tradewatch.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tradewatch.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and builds the pipeline.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	config, err := common.LoadConfig(resolveConfigPath(configPath, binDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppWithConfig builds the pipeline from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	if logger == nil {
		logger = common.NewSilentLogger()
	}

	lookup := config.Clients.TickerLookup
	resolver := tickerlookup.NewClient(
		tickerlookup.WithBaseURL(lookup.BaseURL),
		tickerlookup.WithLogger(logger),
		tickerlookup.WithRateLimit(lookup.RateLimit),
		tickerlookup.WithTimeout(lookup.GetTimeout()),
		tickerlookup.WithLimit(lookup.Limit),
		tickerlookup.WithBatchPause(lookup.GetBatchPause()),
	)

	sources, err := buildSources(config, resolver, logger)
	if err != nil {
		return nil, err
	}

	coordinator := fallback.NewCoordinator(sources, logger)
	recordService := records.NewService(coordinator, config.Cache.GetTTL(), logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Resolver:    resolver,
		Sources:     sources,
		Coordinator: coordinator,
		Records:     recordService,
		StartupTime: startupStart,
	}

	logger.Info().
		Strs("sources", coordinator.Sources()).
		Dur("ttl", recordService.TTL()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, cancel warm cache, close logger.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Logger != nil {
		a.Logger.Close()
	}
}

// StartWarmCache launches the background cache warming goroutine.
func (a *App) StartWarmCache() {
	if !a.Config.Cache.WarmOnStart {
		a.Logger.Info().Msg("Warm cache: disabled in config")
		return
	}
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.Records, a.Logger)
	}()
}

// StartRefreshScheduler registers the background refresh job on the
// configured cron schedule. An empty schedule disables the job.
func (a *App) StartRefreshScheduler() error {
	spec := a.Config.Cache.RefreshSchedule
	if spec == "" {
		a.Logger.Info().Msg("Refresh scheduler: disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c, err := newRefreshScheduler(ctx, spec, a.Records, a.Logger)
	if err != nil {
		cancel()
		return err
	}

	a.scheduler = c
	a.schedulerCancel = cancel
	c.Start()
	a.Logger.Info().Str("schedule", spec).Msg("Refresh scheduler: started")
	return nil
}
