package capitoltrades

import (
	"context"
	"regexp"
	"time"

	"github.com/bobmcallan/tradewatch/internal/models"
)

// Pattern extraction limits
const (
	MinPatternMatches    = 5  // both token lists must reach this size
	MaxPatternCandidates = 20 // tokens of each kind considered
	MaxSynthesized       = 10 // records produced per page
)

var (
	moneyTokenRe  = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?|\d+K[–-]\d+K`)
	tickerTokenRe = regexp.MustCompile(`\b[A-Z]{3,5}\b`)
)

type rosterEntry struct {
	name    string
	party   string
	chamber string
	state   string
}

// roster supplies politicians for synthesized records
var roster = []rosterEntry{
	{"Nancy Pelosi", "Democrat", "House", "CA"},
	{"Dan Crenshaw", "Republican", "House", "TX"},
	{"Josh Gottheimer", "Democrat", "House", "NJ"},
}

// findPatterns returns money-amount tokens and candidate ticker tokens in
// page order.
func findPatterns(text string) (money, tickers []string) {
	return moneyTokenRe.FindAllString(text, -1), tickerTokenRe.FindAllString(text, -1)
}

// synthesize builds representative records from page tokens.
//
// The listing page is rendered client-side and its raw markup carries no
// per-record structure, so these records are NOT a literal scrape: tickers and
// amounts come from the page, while politician, dates and direction are drawn
// from the source's RNG. Every record is flagged ProvenanceSynthesized. With
// a fixed seed and clock the output is deterministic.
func (s *HTMLSource) synthesize(ctx context.Context, money, tickers []string) []models.TradeRecord {
	money = money[:min(len(money), MaxPatternCandidates)]
	tickers = tickers[:min(len(tickers), MaxPatternCandidates)]
	n := min(MaxSynthesized, len(money), len(tickers))
	if n == 0 {
		return nil
	}

	names := s.companyNames(ctx, tickers[:n])

	y, m, d := s.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.TradeRecord, 0, n)
	for i := 0; i < n; i++ {
		pol := roster[s.rng.IntN(len(roster))]

		// Trade within the last 30 days, disclosure within the last 15 and
		// never before the trade, so the delay lands in [1,29].
		tradeAgo := 2 + s.rng.IntN(29)
		discAgo := 1 + s.rng.IntN(min(15, tradeAgo-1))

		txType := models.TransactionBuy
		if s.rng.IntN(2) == 1 {
			txType = models.TransactionSell
		}

		size, price := amountFields(money[i])

		records = append(records, models.TradeRecord{
			PoliticianName:  pol.name,
			Party:           pol.party,
			Chamber:         pol.chamber,
			State:           pol.state,
			District:        "Multiple",
			Company:         names[tickers[i]],
			Ticker:          tickers[i],
			Sector:          "Technology",
			TradeDate:       today.AddDate(0, 0, -tradeAgo),
			DisclosureDate:  today.AddDate(0, 0, -discAgo),
			ReportingDelay:  tradeAgo - discAgo,
			TransactionType: txType,
			TradeSize:       size,
			Price:           price,
			Owner:           models.OwnerSelf,
			Provenance:      models.ProvenanceSynthesized,
		})
	}
	return records
}

// amountFields reads a money token as a trade size (range tokens) or a price
// (currency tokens), substituting defaults for the other field.
func amountFields(token string) (size, price string) {
	size, price = models.DefaultTradeSize, models.DefaultPrice
	if norm, ok := models.NormalizeSizeRange(token); ok {
		size = norm
	} else if d, ok := models.ParseCurrency(token); ok {
		price = models.FormatPrice(d)
	}
	return size, price
}

func (s *HTMLSource) companyNames(ctx context.Context, tickers []string) map[string]string {
	if s.resolver != nil {
		return s.resolver.ResolveMany(ctx, tickers)
	}
	names := make(map[string]string, len(tickers))
	for _, t := range tickers {
		names[t] = s.resolveName(ctx, t)
	}
	return names
}
