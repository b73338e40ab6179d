// Package interfaces defines service contracts for tradewatch
package interfaces

import (
	"context"

	"github.com/bobmcallan/tradewatch/internal/models"
)

// TradeSource is one external origin of disclosure records.
// Implementations never return errors: network and parse failures surface as
// an unavailable probe or an empty result.
type TradeSource interface {
	// Name is the provenance label attached to record sets from this source
	Name() string

	// IsAvailable performs a bounded availability probe
	IsAvailable(ctx context.Context) bool

	// FetchData retrieves and normalizes records; empty on any failure
	FetchData(ctx context.Context) []models.TradeRecord
}

// NameResolver maps ticker symbols to company names
type NameResolver interface {
	// Resolve returns the company name for a ticker, or a placeholder when
	// the lookup fails. Never returns an empty string.
	Resolve(ctx context.Context, ticker string) string

	// ResolveMany resolves tickers sequentially, pausing between lookups
	ResolveMany(ctx context.Context, tickers []string) map[string]string
}
