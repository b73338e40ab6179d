package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/bobmcallan/tradewatch/internal/common"
)

// ErrorResponse is the error body for every non-2xx API response.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSON writes data as JSON with the given status. Trade data is
// time-sensitive, so responses are never cached by intermediaries.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error body.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// writeRequestError writes a JSON error body tagged with the request's
// correlation ID so clients can quote it back.
func writeRequestError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:         message,
		CorrelationID: common.CorrelationIDFromContext(r.Context()),
	})
}

// RequireMethod reports whether r uses one of methods, writing a 405 with an
// Allow header when it does not.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeRequestError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// queryBool parses an optional boolean query parameter. A missing value
// yields def; an unparseable one yields ok=false.
func queryBool(q url.Values, key string, def bool) (value, ok bool) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, false
	}
	return b, true
}

// queryChoice returns the lower-cased value of key if it is one of allowed,
// def when it is absent, and ok=false otherwise.
func queryChoice(q url.Values, key, def string, allowed ...string) (value string, ok bool) {
	raw := strings.ToLower(strings.TrimSpace(q.Get(key)))
	if raw == "" {
		return def, true
	}
	if slices.Contains(allowed, raw) {
		return raw, true
	}
	return def, false
}
