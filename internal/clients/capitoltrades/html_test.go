package capitoltrades

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/models"
	testcommon "github.com/bobmcallan/tradewatch/test/common"
)

var fixedNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func pageServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestHTMLSource(url string, resolver interfaces.NameResolver, seed int64) *HTMLSource {
	return NewHTMLSource(resolver,
		WithPageURL(url),
		WithSeed(seed),
		WithClock(func() time.Time { return fixedNow }),
		WithProbeTimeout(2*time.Second),
		WithFetchTimeout(2*time.Second),
	)
}

const patternPage = `<html><body>
<div>AAPL $1,000.00</div><div>MSFT 1K–15K</div><div>NVDA $2,500</div>
<div>GOOG 15K-50K</div><div>TSLA $750.25</div><div>AMZN $12,000</div>
</body></html>`

const sparsePage = `<html><body><div>AAPL $1,000.00</div><div>MSFT $20</div></body></html>`

func TestHTMLSource_IsAvailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"forbidden", http.StatusForbidden, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := pageServer(t, tt.status, "<html></html>")
			src := newTestHTMLSource(srv.URL, nil, 1)

			assert.Equal(t, tt.want, src.IsAvailable(context.Background()))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestHTMLSource_IsAvailable_ProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	src := NewHTMLSource(nil, WithPageURL(srv.URL), WithProbeTimeout(50*time.Millisecond))

	start := time.Now()
	assert.False(t, src.IsAvailable(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTMLSource_IsAvailable_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := NewHTMLSource(nil, WithPageURL(url))
	assert.False(t, src.IsAvailable(context.Background()))
}

func TestHTMLSource_FetchData_PatternSynthesis(t *testing.T) {
	srv, _ := pageServer(t, http.StatusOK, patternPage)
	resolver := testcommon.NewMockResolver(map[string]string{
		"AAPL": "Apple Inc.",
		"MSFT": "Microsoft Corporation",
	})
	src := newTestHTMLSource(srv.URL, resolver, 42)

	records := src.FetchData(context.Background())

	require.NotEmpty(t, records)
	assert.LessOrEqual(t, len(records), MaxSynthesized)
	assert.Len(t, records, 6)

	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	for _, r := range records {
		assert.Equal(t, models.ProvenanceSynthesized, r.Provenance)
		assert.Contains(t, []models.TransactionType{models.TransactionBuy, models.TransactionSell}, r.TransactionType)
		assert.GreaterOrEqual(t, r.ReportingDelay, 1)
		assert.LessOrEqual(t, r.ReportingDelay, 30)
		assert.False(t, r.DisclosureDate.Before(r.TradeDate), "disclosure before trade for %s", r.Ticker)
		assert.Equal(t, r.ReportingDelay, models.DaysBetween(r.TradeDate, r.DisclosureDate))
		assert.False(t, r.TradeDate.Before(today.AddDate(0, 0, -30)))
		assert.False(t, r.DisclosureDate.Before(today.AddDate(0, 0, -15)))
		assert.True(t, r.DisclosureDate.Before(today))
		assert.NotEmpty(t, r.PoliticianName)
		assert.NotEmpty(t, r.Company)
	}

	assert.Equal(t, "AAPL", records[0].Ticker)
	assert.Equal(t, "Apple Inc.", records[0].Company)
	assert.Equal(t, "$1,000.00", records[0].Price)
	assert.Equal(t, models.DefaultTradeSize, records[0].TradeSize)

	assert.Equal(t, "MSFT", records[1].Ticker)
	assert.Equal(t, "Microsoft Corporation", records[1].Company)
	assert.Equal(t, "1K–15K", records[1].TradeSize)
	assert.Equal(t, models.DefaultPrice, records[1].Price)

	assert.Equal(t, "Company for NVDA", records[2].Company)
	assert.Equal(t, "15K–50K", records[3].TradeSize)
}

func TestHTMLSource_FetchData_SeededOutputIsDeterministic(t *testing.T) {
	srv, _ := pageServer(t, http.StatusOK, patternPage)

	first := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 7).FetchData(context.Background())
	second := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 7).FetchData(context.Background())

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestHTMLSource_FetchData_BelowThresholdYieldsNothing(t *testing.T) {
	srv, _ := pageServer(t, http.StatusOK, sparsePage)
	resolver := testcommon.NewMockResolver(nil)
	src := newTestHTMLSource(srv.URL, resolver, 1)

	assert.Empty(t, src.FetchData(context.Background()))
	assert.Empty(t, resolver.Calls)
}

func TestHTMLSource_FetchData_ExactlyThresholdTokens(t *testing.T) {
	page := `<p>AAPL MSFT NVDA GOOG TSLA</p><p>$1 $2 $3 $4 $5</p>`
	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 3)

	assert.Len(t, src.FetchData(context.Background()), MinPatternMatches)
}

func TestHTMLSource_FetchData_CapsSynthesizedRecords(t *testing.T) {
	page := "<p>"
	for _, tk := range []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG", "HHH", "III", "JJJ", "KKK", "LLL"} {
		page += tk + " $100.00 "
	}
	page += "</p>"
	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 9)

	assert.Len(t, src.FetchData(context.Background()), MaxSynthesized)
}

func TestHTMLSource_FetchData_EmbeddedNextData(t *testing.T) {
	page := `<html><head>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"trades":[
 {"txDate":"2024-03-01","pubDate":"2024-03-10","txType":"buy","value":50000,"price":875.5,"owner":"spouse",
  "issuer":{"issuerTicker":"NVDA:US","issuerName":"NVIDIA Corp","sector":"information-technology"},
  "politician":{"firstName":"Nancy","lastName":"Pelosi","party":"democrat","chamber":"house","state":"ca"}},
 {"txDate":"2024-03-05","pubDate":"2024-03-06","txType":"sell","value":"1K–15K",
  "issuer":{"issuerTicker":"MSFT:US"},
  "politician":{"firstName":"Dan","lastName":"Crenshaw","party":"republican","chamber":"house","state":"tx"}}
]}}}</script>
</head><body>AAPL MSFT NVDA GOOG TSLA $1 $2 $3 $4 $5</body></html>`

	srv, _ := pageServer(t, http.StatusOK, page)
	resolver := testcommon.NewMockResolver(map[string]string{"MSFT": "Microsoft Corporation"})
	src := newTestHTMLSource(srv.URL, resolver, 1)

	records := src.FetchData(context.Background())
	require.Len(t, records, 2)

	byTicker := map[string]models.TradeRecord{}
	for _, r := range records {
		byTicker[r.Ticker] = r
	}

	nvda := byTicker["NVDA"]
	assert.Equal(t, "Nancy Pelosi", nvda.PoliticianName)
	assert.Equal(t, "Democrat", nvda.Party)
	assert.Equal(t, "House", nvda.Chamber)
	assert.Equal(t, "CA", nvda.State)
	assert.Equal(t, "NVIDIA Corp", nvda.Company)
	assert.Equal(t, models.TransactionBuy, nvda.TransactionType)
	assert.Equal(t, "15K–50K", nvda.TradeSize)
	assert.Equal(t, "$875.50", nvda.Price)
	assert.Equal(t, models.OwnerSpouse, nvda.Owner)
	assert.Equal(t, 9, nvda.ReportingDelay)
	assert.Equal(t, models.ProvenanceParsed, nvda.Provenance)

	msft := byTicker["MSFT"]
	assert.Equal(t, "Microsoft Corporation", msft.Company)
	assert.Equal(t, models.TransactionSell, msft.TransactionType)
	assert.Equal(t, "1K–15K", msft.TradeSize)
	assert.Equal(t, models.OwnerSelf, msft.Owner)
	assert.Equal(t, 1, msft.ReportingDelay)

	assert.Equal(t, []string{"MSFT"}, resolver.Calls)
}

func TestHTMLSource_FetchData_EmbeddedGlobalAssignment(t *testing.T) {
	page := `<script>var x = 1; window.__INITIAL_STATE__ = {"congress":{"rows":[
{"ticker":"AAPL","company":"Apple Inc.","representative":"Josh Gottheimer","transactionType":"Sale (Full)","tradeDate":"2024-05-01","disclosureDate":"2024-05-20"}
]}}; console.log("ready");</script>`

	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, nil, 1)

	records := src.FetchData(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Ticker)
	assert.Equal(t, "Josh Gottheimer", records[0].PoliticianName)
	assert.Equal(t, models.TransactionSell, records[0].TransactionType)
	assert.Equal(t, 19, records[0].ReportingDelay)
}

func TestHTMLSource_FetchData_EmbeddedTieBreakIsStable(t *testing.T) {
	// Two arrays with one record each; the one under the lexically first key wins.
	page := `<script>window.__INITIAL_STATE__ = {"trades":{
"zeta":[{"ticker":"BBB","company":"Beta Co","representative":"Dan Crenshaw","transactionType":"Purchase","tradeDate":"2024-05-01","disclosureDate":"2024-05-03"}],
"alpha":[{"ticker":"AAA","company":"Alpha Co","representative":"Nancy Pelosi","transactionType":"Purchase","tradeDate":"2024-05-01","disclosureDate":"2024-05-03"}]
}};</script>`

	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, nil, 1)

	for range 50 {
		records := src.FetchData(context.Background())
		require.Len(t, records, 1)
		require.Equal(t, "AAA", records[0].Ticker)
	}
}

func TestHTMLSource_FetchData_EmbeddedUnknownShapeYieldsNothing(t *testing.T) {
	// Accepted by keyword, but nothing maps onto a record. Pattern tokens in
	// the body are not consulted once embedded data is accepted.
	page := `<script>window.__DATA__ = {"stock":{"count":3,"labels":["a","b"]}};</script>
<body>AAPL MSFT NVDA GOOG TSLA $1 $2 $3 $4 $5</body>`

	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, nil, 1)

	assert.Empty(t, src.FetchData(context.Background()))
}

func TestHTMLSource_FetchData_EmbeddedWithoutKeywordsFallsThrough(t *testing.T) {
	page := `<script>window.__DATA__ = {"theme":"dark","locale":"en"};</script>
<body>AAPL MSFT NVDA GOOG TSLA $1 $2 $3 $4 $5</body>`

	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 1)

	records := src.FetchData(context.Background())
	require.Len(t, records, 5)
	for _, r := range records {
		assert.Equal(t, models.ProvenanceSynthesized, r.Provenance)
	}
}

func TestHTMLSource_FetchData_MalformedEmbeddedFallsThrough(t *testing.T) {
	page := `<script>window.__NEXT_DATA__ = {"trades": [ {"ticker": </script>
<body>AAPL MSFT NVDA GOOG TSLA $1 $2 $3 $4 $5</body>`

	srv, _ := pageServer(t, http.StatusOK, page)
	src := newTestHTMLSource(srv.URL, testcommon.NewMockResolver(nil), 1)

	assert.Len(t, src.FetchData(context.Background()), 5)
}

func TestHTMLSource_FetchData_FailuresYieldNothing(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv, _ := pageServer(t, http.StatusServiceUnavailable, patternPage)
		src := newTestHTMLSource(srv.URL, nil, 1)
		assert.Empty(t, src.FetchData(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		src := newTestHTMLSource(url, nil, 1)
		assert.Empty(t, src.FetchData(context.Background()))
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, _ := pageServer(t, http.StatusOK, patternPage)
		src := newTestHTMLSource(srv.URL, nil, 1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Empty(t, src.FetchData(ctx))
	})
}

type panickingResolver struct{}

func (panickingResolver) Resolve(ctx context.Context, ticker string) string {
	panic("resolver exploded")
}

func (panickingResolver) ResolveMany(ctx context.Context, tickers []string) map[string]string {
	panic("resolver exploded")
}

func TestHTMLSource_FetchData_RecoversPanic(t *testing.T) {
	srv, _ := pageServer(t, http.StatusOK, patternPage)
	src := NewHTMLSource(panickingResolver{}, WithPageURL(srv.URL), WithSeed(1))

	var records []models.TradeRecord
	assert.NotPanics(t, func() {
		records = src.FetchData(context.Background())
	})
	assert.Empty(t, records)
}

func TestHTMLSource_NilResolverUsesPlaceholder(t *testing.T) {
	srv, _ := pageServer(t, http.StatusOK, patternPage)
	src := newTestHTMLSource(srv.URL, nil, 5)

	records := src.FetchData(context.Background())
	require.Len(t, records, 6)
	for _, r := range records {
		assert.Equal(t, "Company for "+r.Ticker, r.Company)
	}
}

func TestHTMLSource_Name(t *testing.T) {
	assert.Equal(t, DefaultHTMLName, NewHTMLSource(nil).Name())
	assert.Equal(t, "mirror", NewHTMLSource(nil, WithHTMLName("mirror")).Name())
}

func TestFindPatterns(t *testing.T) {
	money, tickers := findPatterns(`AAPL bought $1,234.56 and 1K–15K plus 50K-100K; xyz ABCDEF AB`)

	assert.Equal(t, []string{"$1,234.56", "1K–15K", "50K-100K"}, money)
	assert.Equal(t, []string{"AAPL"}, tickers)
}

func TestAmountFields(t *testing.T) {
	tests := []struct {
		token     string
		wantSize  string
		wantPrice string
	}{
		{"1K–15K", "1K–15K", models.DefaultPrice},
		{"15K-50K", "15K–50K", models.DefaultPrice},
		{"$1,000", models.DefaultTradeSize, "$1,000.00"},
		{"$99.95", models.DefaultTradeSize, "$99.95"},
		{"50K–1K", models.DefaultTradeSize, models.DefaultPrice},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			size, price := amountFields(tt.token)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantPrice, price)
		})
	}
}
