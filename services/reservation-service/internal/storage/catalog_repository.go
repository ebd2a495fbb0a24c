package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

// CatalogRepository reads the service catalog: services, per-staff prices and
// the accounts table used for opportunistic customer linking. All reads are
// replica-safe.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetService(ctx context.Context, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, billing_rule, COALESCE(deposit_pct, 0), is_active
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&s.ID, &s.Name, &s.DurationMins, &s.BillingRule, &s.DepositPct, &s.IsActive)
	if err != nil {
		return model.Service{}, err
	}
	return s, nil
}

func (r *CatalogRepository) GetStaffServicePrice(ctx context.Context, serviceID, staffID string) (model.StaffServicePrice, error) {
	var p model.StaffServicePrice
	err := r.pool.QueryRow(ctx, `
		SELECT service_id::text, staff_id::text, price_cents, currency
		FROM staff_service_prices
		WHERE service_id = $1 AND staff_id = $2
	`, serviceID, staffID).Scan(&p.ServiceID, &p.StaffID, &p.PriceCents, &p.Currency)
	if err != nil {
		return model.StaffServicePrice{}, err
	}
	return p, nil
}

// FindAccountByEmail returns the account id for a registered customer, or
// ("", nil) when no account matches. Guests book without one.
func (r *CatalogRepository) FindAccountByEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text
		FROM accounts
		WHERE lower(email) = $1
	`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsConflict matches the exclusion-constraint violation raised when two live
// reservations would overlap for the same staff member.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsUniqueViolation matches plain unique-constraint violations.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
