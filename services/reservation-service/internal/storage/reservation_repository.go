package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/availability"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

type ReservationRepository struct {
	pool *db.Pool
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const reservationColumns = `
	id::text, service_id::text, staff_id::text, COALESCE(account_id::text, ''),
	customer_name, customer_email, COALESCE(customer_phone, ''),
	start_at, end_at, status, COALESCE(note, ''), price_cents, currency, created_at`

// Create inserts a pending reservation. Overlap protection is the exclusion
// constraint on (staff_id, tstzrange(start_at, end_at)) scoped to live
// statuses: concurrent drafts for the same slot race at the database, not in
// application code. Callers map IsConflict to a 409.
func (r *ReservationRepository) Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO reservations
			(service_id, staff_id, account_id, customer_name, customer_email, customer_phone, start_at, end_at, status, note, price_cents, currency)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, NULLIF($6, ''), $7, $8, $9, NULLIF($10, ''), $11, $12)
		RETURNING id::text
	`, res.ServiceID, res.StaffID, res.AccountID, res.CustomerName, res.CustomerEmail, res.CustomerPhone,
		res.StartAt, res.EndAt, res.Status, res.Note, res.PriceCents, res.Currency).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanReservation(row)
}

// ListLiveIntervals is the conflict checker's single bulk fetch: every
// pending/confirmed reservation for the staff member whose half-open interval
// intersects [from, to). Per-slot checks happen in memory against this set.
func (r *ReservationRepository) ListLiveIntervals(ctx context.Context, staffID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at, end_at
		FROM reservations
		WHERE staff_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Confirm flips a reservation to confirmed. Re-running it on an already
// confirmed row is a no-op, which keeps webhook replays safe.
func (r *ReservationRepository) Confirm(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'confirmed', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`, id)
	return err
}

// UpdateStatus applies a manual transition. The allowed-from list encodes the
// state machine; zero rows affected means the transition was illegal for the
// reservation's current status.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id, to string, allowedFrom []string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, allowedFrom)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseStale cancels pending reservations created before the cutoff whose
// payment never completed. Authorize-rule reservations carry no checkout TTL
// and are excluded. Returns the released reservations for event fan-out.
func (r *ReservationRepository) ReleaseStale(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := tx.Query(ctx, `
		UPDATE reservations res
		SET status = 'cancelled', updated_at = now()
		WHERE res.id IN (
			SELECT res2.id
			FROM reservations res2
			JOIN services svc ON svc.id = res2.service_id
			WHERE res2.status = 'pending'
				AND res2.created_at < $1
				AND svc.billing_rule <> 'authorize'
				AND NOT EXISTS (
					SELECT 1 FROM payments pay
					WHERE pay.target_id = res2.id::text
						AND pay.type = 'reservation'
						AND pay.status = 'paid'
				)
			ORDER BY res2.created_at
			LIMIT $2
			FOR UPDATE OF res2 SKIP LOCKED
		)
		RETURNING `+reservationColumns+`
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ReservationRepository) ListByStaff(ctx context.Context, staffID string, limit int) ([]model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE staff_id = $1
		ORDER BY start_at DESC
		LIMIT $2
	`, staffID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID,
		&res.ServiceID,
		&res.StaffID,
		&res.AccountID,
		&res.CustomerName,
		&res.CustomerEmail,
		&res.CustomerPhone,
		&res.StartAt,
		&res.EndAt,
		&res.Status,
		&res.Note,
		&res.PriceCents,
		&res.Currency,
		&res.CreatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}
