package storage

import (
	"context"
	"time"

	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/calendar"
)

// CalendarRepository backs the business calendar: one weekly-hours row per
// weekday plus dated off-days.
type CalendarRepository struct {
	pool *db.Pool
}

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

// Load builds a calendar view covering [from, to). Off-days outside the range
// are irrelevant to the caller's queries and are not fetched.
func (r *CalendarRepository) Load(ctx context.Context, from, to time.Time) (*calendar.Calendar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, is_open, open_minute, close_minute
		FROM business_hours
		ORDER BY weekday
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []calendar.DayHours
	for rows.Next() {
		var wd int
		var h calendar.DayHours
		if err := rows.Scan(&wd, &h.IsOpen, &h.OpenMinute, &h.CloseMinute); err != nil {
			return nil, err
		}
		h.Weekday = time.Weekday(wd)
		hours = append(hours, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	offRows, err := r.pool.Query(ctx, `
		SELECT day, COALESCE(reason, '')
		FROM business_off_days
		WHERE day >= $1 AND day < $2
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer offRows.Close()

	var offDays []calendar.OffDay
	for offRows.Next() {
		var d calendar.OffDay
		if err := offRows.Scan(&d.Day, &d.Reason); err != nil {
			return nil, err
		}
		offDays = append(offDays, d)
	}
	if offRows.Err() != nil {
		return nil, offRows.Err()
	}

	return calendar.New(hours, offDays), nil
}

func (r *CalendarRepository) UpsertHours(ctx context.Context, h calendar.DayHours) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_hours (weekday, is_open, open_minute, close_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (weekday) DO UPDATE
		SET is_open = EXCLUDED.is_open,
			open_minute = EXCLUDED.open_minute,
			close_minute = EXCLUDED.close_minute,
			updated_at = now()
	`, int(h.Weekday), h.IsOpen, h.OpenMinute, h.CloseMinute)
	return err
}

func (r *CalendarRepository) AddOffDay(ctx context.Context, day time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_off_days (day, reason)
		VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET reason = EXCLUDED.reason
	`, day, reason)
	return err
}

func (r *CalendarRepository) RemoveOffDay(ctx context.Context, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM business_off_days WHERE day = $1
	`, day)
	return err
}

func (r *CalendarRepository) ListOffDays(ctx context.Context, from, to time.Time) ([]calendar.OffDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, COALESCE(reason, '')
		FROM business_off_days
		WHERE day >= $1 AND day < $2
		ORDER BY day
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.OffDay
	for rows.Next() {
		var d calendar.OffDay
		if err := rows.Scan(&d.Day, &d.Reason); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
