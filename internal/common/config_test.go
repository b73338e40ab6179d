package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{SourceKindHTML, SourceKindAPI}, cfg.Sources.Order)
	assert.Equal(t, 30*time.Minute, cfg.Cache.GetTTL())
	assert.Equal(t, 10*time.Second, cfg.Sources.HTML.GetProbeTimeout())
	assert.Equal(t, 15*time.Second, cfg.Sources.HTML.GetFetchTimeout())
	assert.Equal(t, 10*time.Second, cfg.Sources.API.GetTimeout())
	assert.Equal(t, 5*time.Second, cfg.Clients.TickerLookup.GetTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.Clients.TickerLookup.GetBatchPause())
}

func TestConfig_InvalidDurationsFallBack(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cache.TTL = "soon"
	cfg.Sources.HTML.ProbeTimeout = "-1s"
	cfg.Clients.TickerLookup.BatchPause = "nope"

	assert.Equal(t, FreshnessTradeRecords, cfg.Cache.GetTTL())
	assert.Equal(t, 10*time.Second, cfg.Sources.HTML.GetProbeTimeout())
	assert.Equal(t, 200*time.Millisecond, cfg.Clients.TickerLookup.GetBatchPause())
}

func TestConfig_ZeroBatchPauseAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Clients.TickerLookup.BatchPause = "0s"
	assert.Equal(t, time.Duration(0), cfg.Clients.TickerLookup.GetBatchPause())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TRADEWATCH_PORT", "9090")
	t.Setenv("TRADEWATCH_CACHE_TTL", "5m")
	t.Setenv("TRADEWATCH_SOURCES", " API , html ")
	t.Setenv("TRADEWATCH_SEED", "42")
	t.Setenv("TRADEWATCH_REFRESH_SCHEDULE", "")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.GetTTL())
	assert.Equal(t, []string{"api", "html"}, cfg.Sources.Order)
	assert.Equal(t, int64(42), cfg.Sources.HTML.Seed)
	assert.Empty(t, cfg.Cache.RefreshSchedule)
}

func TestConfig_InvalidPortIgnored(t *testing.T) {
	t.Setenv("TRADEWATCH_PORT", "eighty")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_FileLayering(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment = "staging"
[cache]
ttl = "10m"
[sources]
order = ["api"]
`), 0o644))
	require.NoError(t, os.WriteFile(override, []byte(`
[cache]
ttl = "45m"
`), 0o644))

	cfg, err := LoadConfig(base, override, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 45*time.Minute, cfg.Cache.GetTTL())
	assert.Equal(t, []string{"api"}, cfg.Sources.Order)
	assert.Equal(t, "https://www.capitoltrades.com/trades", cfg.Sources.HTML.URL)
}

func TestLoadConfig_RejectsUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[sources]
order = ["html", "rss"]
`), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rss")
}

func TestLoadConfig_RejectsDuplicateSource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sources.Order = []string{"html", "html"}
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache\nttl ="), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestIsFreshAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsFreshAt(time.Time{}, time.Hour, now))
	assert.True(t, IsFreshAt(now.Add(-29*time.Minute), 30*time.Minute, now))
	assert.True(t, IsFreshAt(now.Add(-30*time.Minute), 30*time.Minute, now))
	assert.False(t, IsFreshAt(now.Add(-30*time.Minute-time.Nanosecond), 30*time.Minute, now))
	assert.False(t, IsFreshAt(now.Add(-31*time.Minute), 30*time.Minute, now))
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := WithCorrelationID(t.Context(), "abc123")
	assert.Equal(t, "abc123", CorrelationIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(t.Context()))
}
