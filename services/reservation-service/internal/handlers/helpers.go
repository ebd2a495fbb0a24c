package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseDate parses a YYYY-MM-DD calendar date in UTC.
func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
