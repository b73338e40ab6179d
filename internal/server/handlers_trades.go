package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/tradewatch/internal/models"
)

// Response layouts for /api/trades
const (
	formatRecords = "records"
	formatTable   = "table"
)

// tradesResponse is the tabular view of a RecordSet. Zero records with the
// "No source available" label means every source failed.
type tradesResponse struct {
	Label     string               `json:"label"`
	Source    string               `json:"source"`
	Cached    bool                 `json:"cached"`
	FetchedAt *time.Time           `json:"fetched_at,omitempty"`
	Total     int                  `json:"total"`
	Columns   []string             `json:"columns"`
	Records   []models.TradeRecord `json:"records"`
	Rows      [][]string           `json:"rows,omitempty"`
}

// handleTrades handles GET /api/trades[?refresh=true][&format=table].
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()

	force, ok := queryBool(q, "refresh", false)
	if !ok {
		writeRequestError(w, r, http.StatusBadRequest, "refresh must be a boolean")
		return
	}

	format, ok := queryChoice(q, "format", formatRecords, formatRecords, formatTable)
	if !ok {
		writeRequestError(w, r, http.StatusBadRequest, "format must be records or table")
		return
	}

	data, label := s.app.Records.GetRecords(r.Context(), force)

	resp := tradesResponse{
		Label:   label,
		Source:  data.Source,
		Cached:  models.IsCachedLabel(label),
		Total:   data.Len(),
		Columns: models.Columns,
	}
	if !data.FetchedAt.IsZero() {
		fetched := data.FetchedAt
		resp.FetchedAt = &fetched
	}

	if format == formatTable {
		resp.Rows = data.Rows()
	} else {
		resp.Records = data.Records
		if resp.Records == nil {
			resp.Records = []models.TradeRecord{}
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// handleTradesStatus handles GET /api/trades/status.
func (s *Server) handleTradesStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, s.app.Records.CacheStatus())
}
