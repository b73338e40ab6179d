package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradewatch/internal/app"
	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/models"
	"github.com/bobmcallan/tradewatch/internal/server"
)

const listingPage = `<html><body>
<p>AAPL $1,000.00</p><p>MSFT 1K–15K</p><p>NVDA $2,500</p><p>GOOG 15K-50K</p><p>TSLA $750.25</p>
</body></html>`

type env struct {
	api  *httptest.Server
	down atomic.Bool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{}

	mux := http.NewServeMux()
	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		if e.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/bff/trades", func(w http.ResponseWriter, r *http.Request) {
		if e.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	mux.HandleFunc("/keyword/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	cfg := common.NewDefaultConfig()
	cfg.Cache.RefreshSchedule = ""
	cfg.Sources.HTML.URL = upstream.URL + "/trades"
	cfg.Sources.HTML.Seed = 21
	cfg.Sources.API.URL = upstream.URL + "/bff/trades"
	cfg.Clients.TickerLookup.BaseURL = upstream.URL
	cfg.Clients.TickerLookup.BatchPause = "0s"
	cfg.Clients.TickerLookup.RateLimit = 1000

	a, err := app.NewAppWithConfig(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	e.api = httptest.NewServer(server.NewServer(a).Handler())
	t.Cleanup(e.api.Close)
	return e
}

type tradesBody struct {
	Label   string               `json:"label"`
	Cached  bool                 `json:"cached"`
	Total   int                  `json:"total"`
	Records []models.TradeRecord `json:"records"`
}

func (e *env) getTrades(t *testing.T, query string) tradesBody {
	t.Helper()
	resp, err := http.Get(e.api.URL + "/api/trades" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body tradesBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (e *env) getStatus(t *testing.T) models.CacheStatus {
	t.Helper()
	resp, err := http.Get(e.api.URL + "/api/trades/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status models.CacheStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func TestTrades_AllSourcesDown(t *testing.T) {
	e := newEnv(t)
	e.down.Store(true)

	body := e.getTrades(t, "")

	assert.Equal(t, models.NoSourceLabel, body.Label)
	assert.Zero(t, body.Total)
	assert.Empty(t, body.Records)
	assert.False(t, e.getStatus(t).HasData)
}

func TestTrades_OutageServesPreviousRecords(t *testing.T) {
	e := newEnv(t)

	first := e.getTrades(t, "")
	require.Equal(t, 5, first.Total)
	assert.False(t, first.Cached)

	e.down.Store(true)
	second := e.getTrades(t, "?refresh=true")

	assert.True(t, second.Cached)
	assert.True(t, models.IsCachedLabel(second.Label))
	assert.Equal(t, first.Records, second.Records)

	status := e.getStatus(t)
	assert.True(t, status.HasData)
	assert.Equal(t, 5, status.TotalRecords)
}

func TestTrades_RecoveryAfterOutage(t *testing.T) {
	e := newEnv(t)
	e.down.Store(true)
	require.Equal(t, models.NoSourceLabel, e.getTrades(t, "").Label)

	e.down.Store(false)
	body := e.getTrades(t, "")

	assert.Equal(t, 5, body.Total)
	for _, r := range body.Records {
		assert.Equal(t, models.ProvenanceSynthesized, r.Provenance)
		assert.GreaterOrEqual(t, r.ReportingDelay, 1)
	}
}
