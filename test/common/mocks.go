// Package common provides shared test infrastructure
package common

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/tradewatch/internal/interfaces"
	"github.com/bobmcallan/tradewatch/internal/models"
)

// MockSource implements TradeSource for testing
type MockSource struct {
	SourceName   string
	Available    bool
	Records      []models.TradeRecord
	PanicOnProbe bool
	PanicOnFetch bool
	FetchDelay   time.Duration

	mu         sync.Mutex
	ProbeCalls int
	FetchCalls int
}

// NewMockSource creates an available mock source returning records
func NewMockSource(name string, records ...models.TradeRecord) *MockSource {
	return &MockSource{
		SourceName: name,
		Available:  true,
		Records:    records,
	}
}

// NewUnavailableSource creates a mock source whose probe fails
func NewUnavailableSource(name string) *MockSource {
	return &MockSource{SourceName: name}
}

func (m *MockSource) Name() string {
	return m.SourceName
}

func (m *MockSource) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	m.ProbeCalls++
	m.mu.Unlock()
	if m.PanicOnProbe {
		panic("probe exploded")
	}
	return m.Available
}

func (m *MockSource) FetchData(ctx context.Context) []models.TradeRecord {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()
	if m.PanicOnFetch {
		panic("fetch exploded")
	}
	if m.FetchDelay > 0 {
		time.Sleep(m.FetchDelay)
	}
	out := make([]models.TradeRecord, len(m.Records))
	copy(out, m.Records)
	return out
}

// Calls returns the probe and fetch call counts
func (m *MockSource) Calls() (probes, fetches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProbeCalls, m.FetchCalls
}

// MockFetcher implements RecordFetcher with a scripted sequence of results.
// Once the script is exhausted the last result repeats.
type MockFetcher struct {
	Results []models.RecordSet
	Delay   time.Duration

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) FetchFresh(ctx context.Context) (models.RecordSet, string) {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.Results) == 0 {
		return models.RecordSet{Source: models.NoSourceLabel}, models.NoSourceLabel
	}
	idx := min(m.calls-1, len(m.Results)-1)
	rs := m.Results[idx].Clone()
	if rs.IsEmpty() {
		return models.RecordSet{Source: models.NoSourceLabel}, models.NoSourceLabel
	}
	return rs, rs.Source
}

// Calls returns how many times FetchFresh ran
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockResolver implements NameResolver with a fixed table
type MockResolver struct {
	Names map[string]string

	mu    sync.Mutex
	Calls []string
}

// NewMockResolver creates a resolver answering from names
func NewMockResolver(names map[string]string) *MockResolver {
	return &MockResolver{Names: names}
}

func (m *MockResolver) Resolve(ctx context.Context, ticker string) string {
	key := strings.ToUpper(strings.TrimSpace(ticker))
	m.mu.Lock()
	m.Calls = append(m.Calls, key)
	m.mu.Unlock()
	if name, ok := m.Names[key]; ok {
		return name
	}
	return fmt.Sprintf("Company for %s", key)
}

func (m *MockResolver) ResolveMany(ctx context.Context, tickers []string) map[string]string {
	out := make(map[string]string, len(tickers))
	for _, t := range tickers {
		out[t] = m.Resolve(ctx, t)
	}
	return out
}

// Trade returns a minimal parsed record for ticker
func Trade(ticker string) models.TradeRecord {
	return models.TradeRecord{
		PoliticianName:  "Test Member",
		Ticker:          ticker,
		Company:         "Company for " + ticker,
		TransactionType: models.TransactionBuy,
		Owner:           models.OwnerSelf,
		Provenance:      models.ProvenanceParsed,
	}
}

var (
	_ interfaces.TradeSource   = (*MockSource)(nil)
	_ interfaces.RecordFetcher = (*MockFetcher)(nil)
	_ interfaces.NameResolver  = (*MockResolver)(nil)
)
