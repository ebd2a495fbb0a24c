package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/calendar"
)

type fakeCalendarAdmin struct {
	hours   map[time.Weekday]calendar.DayHours
	offDays map[string]string
}

func newFakeCalendarAdmin() *fakeCalendarAdmin {
	return &fakeCalendarAdmin{
		hours:   map[time.Weekday]calendar.DayHours{},
		offDays: map[string]string{},
	}
}

func (f *fakeCalendarAdmin) UpsertHours(_ context.Context, h calendar.DayHours) error {
	f.hours[h.Weekday] = h
	return nil
}

func (f *fakeCalendarAdmin) AddOffDay(_ context.Context, day time.Time, reason string) error {
	f.offDays[day.Format("2006-01-02")] = reason
	return nil
}

func (f *fakeCalendarAdmin) RemoveOffDay(_ context.Context, day time.Time) error {
	delete(f.offDays, day.Format("2006-01-02"))
	return nil
}

func (f *fakeCalendarAdmin) ListOffDays(_ context.Context, from, to time.Time) ([]calendar.OffDay, error) {
	var out []calendar.OffDay
	for d, reason := range f.offDays {
		day, _ := time.Parse("2006-01-02", d)
		if !day.Before(from) && day.Before(to) {
			out = append(out, calendar.OffDay{Day: day, Reason: reason})
		}
	}
	return out, nil
}

func putJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestUpsertHoursSavesWeekday(t *testing.T) {
	store := newFakeCalendarAdmin()
	h := NewCalendarHandler(store, testLogger())

	rec := putJSON(t, h.UpsertHours, "/api/v1/calendar/hours",
		`{"weekday": 1, "is_open": true, "open_minute": 540, "close_minute": 1020}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	saved, ok := store.hours[time.Monday]
	if !ok {
		t.Fatal("Monday hours were not saved")
	}
	if !saved.IsOpen || saved.OpenMinute != 540 || saved.CloseMinute != 1020 {
		t.Fatalf("unexpected saved hours: %+v", saved)
	}
}

func TestUpsertHoursValidation(t *testing.T) {
	store := newFakeCalendarAdmin()
	h := NewCalendarHandler(store, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"weekday out of range", `{"weekday": 7, "is_open": true, "open_minute": 540, "close_minute": 1020}`},
		{"open after close", `{"weekday": 1, "is_open": true, "open_minute": 1020, "close_minute": 540}`},
		{"close past midnight", `{"weekday": 1, "is_open": true, "open_minute": 540, "close_minute": 1500}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := putJSON(t, h.UpsertHours, "/api/v1/calendar/hours", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
	if len(store.hours) != 0 {
		t.Fatalf("invalid requests must not reach the store, saved: %v", store.hours)
	}
}

func TestUpsertHoursClosedDaySkipsWindowCheck(t *testing.T) {
	store := newFakeCalendarAdmin()
	h := NewCalendarHandler(store, testLogger())

	rec := putJSON(t, h.UpsertHours, "/api/v1/calendar/hours",
		`{"weekday": 0, "is_open": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if saved := store.hours[time.Sunday]; saved.IsOpen {
		t.Fatalf("Sunday should be saved closed, got %+v", saved)
	}
}

func TestOffDayAddListRemove(t *testing.T) {
	store := newFakeCalendarAdmin()
	h := NewCalendarHandler(store, testLogger())

	rec := postJSON(t, h.OffDays, "/api/v1/calendar/off-days",
		`{"date": "2026-07-04", "reason": "holiday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.offDays["2026-07-04"] != "holiday" {
		t.Fatalf("off-day not stored: %v", store.offDays)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calendar/off-days?from=2026-07-01&to=2026-08-01", nil)
	list := httptest.NewRecorder()
	h.OffDays(list, req)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	if body := list.Body.String(); !strings.Contains(body, "2026-07-04") {
		t.Fatalf("listed off-days missing the stored date: %s", body)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/calendar/off-days?date=2026-07-04", nil)
	del := httptest.NewRecorder()
	h.OffDays(del, req)
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", del.Code)
	}
	if len(store.offDays) != 0 {
		t.Fatalf("off-day should be removed, got %v", store.offDays)
	}
}

func TestOffDayRejectsBadDate(t *testing.T) {
	store := newFakeCalendarAdmin()
	h := NewCalendarHandler(store, testLogger())

	rec := postJSON(t, h.OffDays, "/api/v1/calendar/off-days", `{"date": "July 4th"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
