package handlers

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/availability"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/calendar"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
)

// Handler dependencies as narrow interfaces. The storage repositories satisfy
// them in production; tests swap in fakes.

type calendarSource interface {
	Load(ctx context.Context, from, to time.Time) (*calendar.Calendar, error)
}

type catalogSource interface {
	GetService(ctx context.Context, serviceID string) (model.Service, error)
	GetStaffServicePrice(ctx context.Context, serviceID, staffID string) (model.StaffServicePrice, error)
	FindAccountByEmail(ctx context.Context, email string) (string, error)
}

type intervalSource interface {
	ListLiveIntervals(ctx context.Context, staffID string, from, to time.Time) ([]availability.Interval, error)
}

type reservationStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, res *model.Reservation) (string, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error)
	ListLiveIntervals(ctx context.Context, staffID string, from, to time.Time) ([]availability.Interval, error)
	Confirm(ctx context.Context, tx pgx.Tx, id string) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id, to string, allowedFrom []string) (bool, error)
	ListByStaff(ctx context.Context, staffID string, limit int) ([]model.Reservation, error)
}

type paymentStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateProcessing(ctx context.Context, tx pgx.Tx, rec model.PaymentRecord) error
	GetBySessionForUpdate(ctx context.Context, tx pgx.Tx, sessionID string) (model.PaymentRecord, bool, error)
	UpsertPaid(ctx context.Context, tx pgx.Tx, rec model.PaymentRecord) error
	MarkExpired(ctx context.Context, tx pgx.Tx, sessionID string, at time.Time) (bool, error)
	StampReceipt(ctx context.Context, tx pgx.Tx, sessionID string, at time.Time) (bool, error)
	MarkPaymentLinkPaid(ctx context.Context, tx pgx.Tx, linkID string, at time.Time) (bool, error)
}

type eventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}
