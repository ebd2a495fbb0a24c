package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/calendar"
)

type calendarAdminStore interface {
	UpsertHours(ctx context.Context, h calendar.DayHours) error
	AddOffDay(ctx context.Context, day time.Time, reason string) error
	RemoveOffDay(ctx context.Context, day time.Time) error
	ListOffDays(ctx context.Context, from, to time.Time) ([]calendar.OffDay, error)
}

// CalendarHandler manages business hours and off-days.
type CalendarHandler struct {
	store  calendarAdminStore
	logger *slog.Logger
}

func NewCalendarHandler(store calendarAdminStore, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{store: store, logger: logger}
}

type hoursRequest struct {
	Weekday     int  `json:"weekday"`
	IsOpen      bool `json:"is_open"`
	OpenMinute  int  `json:"open_minute"`
	CloseMinute int  `json:"close_minute"`
}

// UpsertHours sets the weekly template for one weekday.
func (h *CalendarHandler) UpsertHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req hoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0 (Sunday) through 6 (Saturday)", http.StatusBadRequest)
		return
	}
	if req.IsOpen {
		if req.OpenMinute < 0 || req.CloseMinute > 24*60 || req.OpenMinute >= req.CloseMinute {
			http.Error(w, "open_minute must be before close_minute within the day", http.StatusBadRequest)
			return
		}
	}

	if err := h.store.UpsertHours(r.Context(), calendar.DayHours{
		Weekday:     time.Weekday(req.Weekday),
		IsOpen:      req.IsOpen,
		OpenMinute:  req.OpenMinute,
		CloseMinute: req.CloseMinute,
	}); err != nil {
		http.Error(w, "failed to save business hours", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// OffDays dispatches the off-day collection endpoint by method.
func (h *CalendarHandler) OffDays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListOffDays(w, r)
	case http.MethodPost:
		h.AddOffDay(w, r)
	case http.MethodDelete:
		h.RemoveOffDay(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type offDayRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

// AddOffDay closes a specific date regardless of the weekly template.
func (h *CalendarHandler) AddOffDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req offDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, err := parseDate(strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	if err := h.store.AddOffDay(r.Context(), day, strings.TrimSpace(req.Reason)); err != nil {
		http.Error(w, "failed to save off-day", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"date": day.Format("2006-01-02")})
}

// RemoveOffDay reopens a previously closed date.
func (h *CalendarHandler) RemoveOffDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		var req offDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			dateStr = strings.TrimSpace(req.Date)
		}
	}
	day, err := parseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	if err := h.store.RemoveOffDay(r.Context(), day); err != nil {
		http.Error(w, "failed to remove off-day", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"date": day.Format("2006-01-02")})
}

// ListOffDays returns closed dates inside a range, defaulting to the next 90
// days.
func (h *CalendarHandler) ListOffDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 3, 0)
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		if d, err := parseDate(v); err == nil {
			from = d
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		if d, err := parseDate(v); err == nil {
			to = d
		}
	}

	offDays, err := h.store.ListOffDays(r.Context(), from, to)
	if err != nil {
		http.Error(w, "failed to list off-days", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]string, 0, len(offDays))
	for _, od := range offDays {
		items = append(items, map[string]string{
			"date":   od.Day.Format("2006-01-02"),
			"reason": od.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"off_days": items})
}
