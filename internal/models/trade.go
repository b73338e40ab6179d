// Package models defines data structures for tradewatch
package models

import (
	"strconv"
	"time"
)

// TransactionType is the direction of a disclosed trade
type TransactionType string

const (
	TransactionBuy  TransactionType = "Buy"
	TransactionSell TransactionType = "Sell"
)

// Owner identifies whose account a disclosed trade was made in
type Owner string

const (
	OwnerSelf   Owner = "Self"
	OwnerSpouse Owner = "Spouse"
	OwnerJoint  Owner = "Joint"
	OwnerOther  Owner = "Other"
)

// Provenance records how a TradeRecord was obtained.
type Provenance string

const (
	ProvenanceParsed      Provenance = "parsed"      // read directly from source data
	ProvenanceSynthesized Provenance = "synthesized" // heuristic approximation, not a literal scrape
)

// DateLayout is the calendar date format used for trade and disclosure dates
const DateLayout = "2006-01-02"

// TradeRecord is one disclosed congressional stock transaction.
// Records are values; two fetches may yield overlapping but non-identical rows.
type TradeRecord struct {
	PoliticianName  string          `json:"politician_name"`
	Party           string          `json:"party"`
	Chamber         string          `json:"chamber"`
	State           string          `json:"state"`
	District        string          `json:"district"`
	Company         string          `json:"company"`
	Ticker          string          `json:"ticker"`
	Sector          string          `json:"sector"`
	TradeDate       time.Time       `json:"trade_date"`
	DisclosureDate  time.Time       `json:"disclosure_date"`
	ReportingDelay  int             `json:"reporting_delay"` // days
	TransactionType TransactionType `json:"transaction_type"`
	TradeSize       string          `json:"trade_size"`
	Price           string          `json:"price"`
	Owner           Owner           `json:"owner"`
	Provenance      Provenance      `json:"provenance"`
}

// Columns is the fixed tabular column set exposed to the presentation layer.
var Columns = []string{
	"politician_name",
	"party",
	"chamber",
	"state",
	"district",
	"company",
	"ticker",
	"sector",
	"trade_date",
	"disclosure_date",
	"reporting_delay",
	"transaction_type",
	"trade_size",
	"price",
	"owner",
	"provenance",
}

// Row returns the record's values in Columns order.
func (r TradeRecord) Row() []string {
	return []string{
		r.PoliticianName,
		r.Party,
		r.Chamber,
		r.State,
		r.District,
		r.Company,
		r.Ticker,
		r.Sector,
		formatDate(r.TradeDate),
		formatDate(r.DisclosureDate),
		strconv.Itoa(r.ReportingDelay),
		string(r.TransactionType),
		r.TradeSize,
		r.Price,
		string(r.Owner),
		string(r.Provenance),
	}
}

// NormalizeDelay enforces the date invariant: when both dates are known the
// reporting delay is the whole-day gap between them, never negative. A
// disclosure dated before the trade is treated as same-day.
func (r *TradeRecord) NormalizeDelay() {
	if r.TradeDate.IsZero() || r.DisclosureDate.IsZero() {
		if r.ReportingDelay < 0 {
			r.ReportingDelay = 0
		}
		return
	}
	days := DaysBetween(r.TradeDate, r.DisclosureDate)
	if days < 0 {
		r.DisclosureDate = r.TradeDate
		days = 0
	}
	r.ReportingDelay = days
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// ParseTransactionType maps free-form source values onto Buy/Sell.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch normalizeToken(s) {
	case "buy", "purchase", "p", "b":
		return TransactionBuy, true
	case "sell", "sale", "s", "sale_full", "sale_partial", "sale (full)", "sale (partial)":
		return TransactionSell, true
	}
	return "", false
}

// ParseOwner maps free-form source values onto the Owner enumeration.
// Unknown values map to OwnerOther.
func ParseOwner(s string) Owner {
	switch normalizeToken(s) {
	case "self", "":
		return OwnerSelf
	case "spouse", "sp":
		return OwnerSpouse
	case "joint", "jt":
		return OwnerJoint
	}
	return OwnerOther
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
