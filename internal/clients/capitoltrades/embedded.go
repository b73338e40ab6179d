package capitoltrades

import (
	"bytes"
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/bobmcallan/tradewatch/internal/models"
)

// nextDataScriptID is the id of the JSON script block Next.js pages ship
const nextDataScriptID = "__NEXT_DATA__"

// stateMarkers precede a JSON object assigned to a well-known global.
var stateMarkers = []*regexp.Regexp{
	regexp.MustCompile(`window\.__NEXT_DATA__\s*=\s*`),
	regexp.MustCompile(`__INITIAL_STATE__\s*=\s*`),
	regexp.MustCompile(`window\.__DATA__\s*=\s*`),
}

// tradeKeywords must appear in a candidate's serialized text for it to count
var tradeKeywords = []string{"trade", "stock", "politician", "congress", "buy", "sell", "ticker"}

type scriptBlock struct {
	id   string
	text string
}

// scriptBlocks returns the text of every inline script element in document order.
func scriptBlocks(page []byte) []scriptBlock {
	z := html.NewTokenizer(bytes.NewReader(page))
	var blocks []scriptBlock
	var cur *scriptBlock

	for {
		switch z.Next() {
		case html.ErrorToken:
			return blocks
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			cur = &scriptBlock{}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "id" {
					cur.id = string(val)
				}
			}
		case html.TextToken:
			if cur != nil {
				cur.text += string(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" && cur != nil {
				if strings.TrimSpace(cur.text) != "" {
					blocks = append(blocks, *cur)
				}
				cur = nil
			}
		}
	}
}

// extractEmbedded looks for serialized page state inside script elements and
// returns the first JSON object that mentions trade-domain keywords, together
// with the marker that located it.
func extractEmbedded(page []byte) (any, string, bool) {
	for _, block := range scriptBlocks(page) {
		if block.id == nextDataScriptID {
			if v, ok := decodeObject(block.text); ok && containsTradeData(v) {
				return v, "script#" + nextDataScriptID, true
			}
		}

		for _, marker := range stateMarkers {
			for _, loc := range marker.FindAllStringIndex(block.text, -1) {
				v, ok := decodeObject(block.text[loc[1]:])
				if !ok {
					continue
				}
				if containsTradeData(v) {
					return v, marker.String(), true
				}
			}
		}
	}
	return nil, "", false
}

// decodeObject decodes the JSON object at the start of s, ignoring whatever
// follows it (typically ";" and more script).
func decodeObject(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func containsTradeData(v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	text := strings.ToLower(string(raw))
	for _, kw := range tradeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Field aliases for embedded trade objects. Keys are flattened with dots and
// normalized to lower case without underscores or hyphens.
var (
	tickerKeys     = []string{"issuer.issuerticker", "issuerticker", "ticker", "symbol", "asset.ticker", "stock.ticker", "asset.symbol"}
	companyKeys    = []string{"issuer.issuername", "issuername", "company", "companyname", "asset.name", "assetname", "stock.name"}
	politicianKeys = []string{"politicianname", "politician.fullname", "politician.name", "representative", "senator", "member"}
	firstNameKeys  = []string{"politician.firstname", "firstname"}
	lastNameKeys   = []string{"politician.lastname", "lastname"}
	partyKeys      = []string{"politician.party", "party"}
	chamberKeys    = []string{"politician.chamber", "chamber"}
	stateKeys      = []string{"politician.stateid", "politician.state", "state"}
	districtKeys   = []string{"politician.district", "district"}
	sectorKeys     = []string{"issuer.sector", "sector", "asset.sector"}
	tradeDateKeys  = []string{"txdate", "tradedate", "transactiondate", "date"}
	discDateKeys   = []string{"pubdate", "disclosuredate", "filingdate", "reporteddate", "publisheddate"}
	delayKeys      = []string{"reportinggap", "reportingdelay", "filinggap"}
	txTypeKeys     = []string{"txtype", "transactiontype", "type", "action"}
	sizeKeys       = []string{"tradesize", "size", "amount", "value", "range"}
	priceKeys      = []string{"price", "shareprice"}
	ownerKeys      = []string{"owner", "ownertype"}
)

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// maxWalkDepth bounds recursion into untrusted page state
const maxWalkDepth = 16

// mapEmbedded maps the best-matching array of trade-like objects in v onto
// TradeRecords. Object keys are visited in sorted order, so among arrays of
// equal yield the first by key path wins. Returns nil when no array in v has
// a recognizable shape.
func mapEmbedded(v any) []models.TradeRecord {
	var best []models.TradeRecord
	walk(v, 0, func(arr []any) {
		records := mapArray(arr)
		if len(records) > len(best) {
			best = records
		}
	})
	return best
}

func walk(v any, depth int, visit func([]any)) {
	if depth > maxWalkDepth {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(t)) {
			walk(t[k], depth+1, visit)
		}
	case []any:
		visit(t)
		for _, child := range t {
			walk(child, depth+1, visit)
		}
	}
}

func mapArray(arr []any) []models.TradeRecord {
	var records []models.TradeRecord
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if rec, ok := mapObject(flatten(obj)); ok {
			records = append(records, rec)
		}
	}
	return records
}

// flatten produces a single-level view of obj with dotted, normalized keys.
func flatten(obj map[string]any) map[string]any {
	out := make(map[string]any)
	var rec func(prefix string, m map[string]any, depth int)
	rec = func(prefix string, m map[string]any, depth int) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			v := m[k]
			key := normalizeKey(k)
			if prefix != "" {
				key = prefix + "." + key
			}
			if child, ok := v.(map[string]any); ok && depth < 3 {
				rec(key, child, depth+1)
				continue
			}
			out[key] = v
		}
	}
	rec("", obj, 0)
	return out
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}

// mapObject builds a record from one flattened object. An object qualifies
// when it names a ticker and either a transaction type or a trade date.
func mapObject(f map[string]any) (models.TradeRecord, bool) {
	ticker := normalizeTicker(firstString(f, tickerKeys))
	if ticker == "" {
		return models.TradeRecord{}, false
	}

	txType, hasType := models.ParseTransactionType(firstString(f, txTypeKeys))
	tradeDate := firstDate(f, tradeDateKeys)
	if !hasType && tradeDate.IsZero() {
		return models.TradeRecord{}, false
	}

	politician := firstString(f, politicianKeys)
	if politician == "" {
		politician = strings.TrimSpace(firstString(f, firstNameKeys) + " " + firstString(f, lastNameKeys))
	}

	rec := models.TradeRecord{
		PoliticianName:  politician,
		Party:           titleCase(firstString(f, partyKeys)),
		Chamber:         titleCase(firstString(f, chamberKeys)),
		State:           strings.ToUpper(firstString(f, stateKeys)),
		District:        firstString(f, districtKeys),
		Company:         firstString(f, companyKeys),
		Ticker:          ticker,
		Sector:          firstString(f, sectorKeys),
		TradeDate:       tradeDate,
		DisclosureDate:  firstDate(f, discDateKeys),
		TransactionType: txType,
		TradeSize:       mapSize(firstValue(f, sizeKeys)),
		Price:           mapPrice(firstValue(f, priceKeys)),
		Owner:           models.ParseOwner(firstString(f, ownerKeys)),
		Provenance:      models.ProvenanceParsed,
	}
	if n, ok := toDecimal(firstValue(f, delayKeys)); ok {
		rec.ReportingDelay = int(n.IntPart())
	}
	rec.NormalizeDelay()

	return rec, true
}

func firstValue(f map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(f map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func firstDate(f map[string]any, keys []string) time.Time {
	for _, k := range keys {
		s, ok := f[k].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func normalizeTicker(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexAny(s, ": "); i > 0 {
		s = s[:i]
	}
	return s
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Zero, false
}

func mapSize(v any) string {
	if d, ok := toDecimal(v); ok && d.IsPositive() {
		return models.SizeBucket(d)
	}
	if s, ok := v.(string); ok {
		if norm, ok := models.NormalizeSizeRange(s); ok {
			return norm
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func mapPrice(v any) string {
	if d, ok := toDecimal(v); ok && d.IsPositive() {
		return models.FormatPrice(d)
	}
	if s, ok := v.(string); ok {
		if d, ok := models.ParseCurrency(s); ok {
			return models.FormatPrice(d)
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil && d.IsPositive() {
			return models.FormatPrice(d)
		}
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
