package calendar

import "time"

// DayHours is the weekly opening rule for one weekday. Minutes are wall-clock
// minutes since midnight in the business time zone.
type DayHours struct {
	Weekday     time.Weekday
	IsOpen      bool
	OpenMinute  int
	CloseMinute int
}

type OffDay struct {
	Day    time.Time
	Reason string
}

// Calendar answers open/closed questions for concrete dates. It is a pure
// in-memory view over the business_hours and business_off_days tables; load it
// once per request scope and query freely.
type Calendar struct {
	hours   [7]DayHours
	offDays map[string]string
}

func New(hours []DayHours, offDays []OffDay) *Calendar {
	c := &Calendar{offDays: make(map[string]string, len(offDays))}
	for _, h := range hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			continue
		}
		c.hours[h.Weekday] = h
	}
	for _, d := range offDays {
		c.offDays[dateKey(d.Day)] = d.Reason
	}
	return c
}

// HoursFor reports the open/close minutes for a weekday. ok is false when the
// business is closed that weekday or the hours are misconfigured.
func (c *Calendar) HoursFor(wd time.Weekday) (openMinute, closeMinute int, ok bool) {
	h := c.hours[wd]
	if !h.IsOpen || h.OpenMinute >= h.CloseMinute {
		return 0, 0, false
	}
	return h.OpenMinute, h.CloseMinute, true
}

func (c *Calendar) IsOffDay(day time.Time) bool {
	_, ok := c.offDays[dateKey(day)]
	return ok
}

// IsOpen is true when the weekday has hours and the date is not an off-day.
// Off-days win regardless of weekly hours.
func (c *Calendar) IsOpen(day time.Time) bool {
	if c.IsOffDay(day) {
		return false
	}
	_, _, ok := c.HoursFor(day.Weekday())
	return ok
}

// DayWindow returns the bookable window for a concrete date, anchored to that
// date's location. ok is false on closed weekdays and off-days.
func (c *Calendar) DayWindow(day time.Time) (start, end time.Time, ok bool) {
	if c.IsOffDay(day) {
		return time.Time{}, time.Time{}, false
	}
	openMin, closeMin, ok := c.HoursFor(day.Weekday())
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(openMin) * time.Minute),
		midnight.Add(time.Duration(closeMin) * time.Minute),
		true
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
