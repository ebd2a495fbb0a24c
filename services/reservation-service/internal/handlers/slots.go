package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/availability"
)

// SlotsHandler serves the public availability queries: open start times for a
// day and the set of days in a month with at least one open slot.
type SlotsHandler struct {
	calendars    calendarSource
	reservations intervalSource
	catalog      catalogSource
	logger       *slog.Logger
	now          func() time.Time
}

func NewSlotsHandler(calendars calendarSource, reservations intervalSource, catalog catalogSource, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{
		calendars:    calendars,
		reservations: reservations,
		catalog:      catalog,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Day lists bookable start times for a staff/service pair. When date is
// omitted it covers today and tomorrow, which the widget shows by default.
func (h *SlotsHandler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if serviceID == "" || staffID == "" {
		http.Error(w, "service_id and staff_id are required", http.StatusBadRequest)
		return
	}

	now := h.now()
	var days []time.Time
	if dateStr == "" {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		days = []time.Time{today, today.AddDate(0, 0, 1)}
	} else {
		day, err := parseDate(dateStr)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		days = []time.Time{day}
	}

	ctx := r.Context()
	svc, err := h.catalog.GetService(ctx, serviceID)
	if err != nil {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	if !svc.IsActive {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	duration := time.Duration(svc.DurationMins) * time.Minute

	cal, err := h.calendars.Load(ctx, days[0], days[len(days)-1].AddDate(0, 0, 1))
	if err != nil {
		http.Error(w, "failed to load business calendar", http.StatusInternalServerError)
		return
	}

	busy, err := h.reservations.ListLiveIntervals(ctx, staffID, days[0], days[len(days)-1].AddDate(0, 0, 1))
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	resp := []slotItem{}
	for _, day := range days {
		openAt, closeAt, ok := cal.DayWindow(day)
		if !ok {
			continue
		}
		window := availability.Interval{Start: openAt, End: closeAt}
		for _, s := range availability.Slots(window, duration, busy, now) {
			resp = append(resp, slotItem{
				StartTime: s.UTC().Format(time.RFC3339),
				EndTime:   s.Add(duration).UTC().Format(time.RFC3339),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": resp})
}

// Month lists the days of a calendar month that still have at least one open
// slot. Same slot math as Day so the two views never disagree.
func (h *SlotsHandler) Month(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if serviceID == "" || staffID == "" {
		http.Error(w, "service_id and staff_id are required", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("year")))
	if err != nil || year < 2000 || year > 2200 {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil || month < 1 || month > 12 {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	svc, err := h.catalog.GetService(ctx, serviceID)
	if err != nil || !svc.IsActive {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	duration := time.Duration(svc.DurationMins) * time.Minute

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	cal, err := h.calendars.Load(ctx, monthStart, monthEnd)
	if err != nil {
		http.Error(w, "failed to load business calendar", http.StatusInternalServerError)
		return
	}
	busy, err := h.reservations.ListLiveIntervals(ctx, staffID, monthStart, monthEnd)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	now := h.now()
	available := []string{}
	for day := monthStart; day.Before(monthEnd); day = day.AddDate(0, 0, 1) {
		openAt, closeAt, ok := cal.DayWindow(day)
		if !ok {
			continue
		}
		window := availability.Interval{Start: openAt, End: closeAt}
		if len(availability.Slots(window, duration, busy, now)) > 0 {
			available = append(available, day.Format("2006-01-02"))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"available_dates": available})
}
