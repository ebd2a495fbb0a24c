package calendar

import (
	"testing"
	"time"
)

func weekdayHours() []DayHours {
	var hours []DayHours
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		open := wd >= time.Monday && wd <= time.Friday
		hours = append(hours, DayHours{
			Weekday:     wd,
			IsOpen:      open,
			OpenMinute:  9 * 60,
			CloseMinute: 17 * 60,
		})
	}
	return hours
}

func TestHoursFor(t *testing.T) {
	c := New(weekdayHours(), nil)

	open, close, ok := c.HoursFor(time.Monday)
	if !ok {
		t.Fatal("expected Monday to be open")
	}
	if open != 9*60 || close != 17*60 {
		t.Fatalf("expected 09:00-17:00, got %d-%d", open, close)
	}

	if _, _, ok := c.HoursFor(time.Sunday); ok {
		t.Fatal("expected Sunday to be closed")
	}
}

func TestHoursFor_InvertedHoursTreatedClosed(t *testing.T) {
	c := New([]DayHours{{Weekday: time.Monday, IsOpen: true, OpenMinute: 17 * 60, CloseMinute: 9 * 60}}, nil)
	if _, _, ok := c.HoursFor(time.Monday); ok {
		t.Fatal("expected inverted hours to report closed")
	}
}

func TestOffDayWinsOverWeeklyHours(t *testing.T) {
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	c := New(weekdayHours(), []OffDay{{Day: monday, Reason: "public holiday"}})

	if !c.IsOffDay(monday) {
		t.Fatal("expected off-day")
	}
	if c.IsOpen(monday) {
		t.Fatal("off-day must close the business regardless of weekly hours")
	}
	if _, _, ok := c.DayWindow(monday); ok {
		t.Fatal("expected no window on an off-day")
	}

	nextMonday := monday.AddDate(0, 0, 7)
	if !c.IsOpen(nextMonday) {
		t.Fatal("expected the following Monday to be open")
	}
}

func TestDayWindow(t *testing.T) {
	c := New(weekdayHours(), nil)
	tuesday := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

	start, end, ok := c.DayWindow(tuesday)
	if !ok {
		t.Fatal("expected a window on Tuesday")
	}
	if !start.Equal(tuesday.Add(9 * time.Hour)) {
		t.Fatalf("expected window start 09:00, got %s", start.Format(time.RFC3339))
	}
	if !end.Equal(tuesday.Add(17 * time.Hour)) {
		t.Fatalf("expected window end 17:00, got %s", end.Format(time.RFC3339))
	}
}
