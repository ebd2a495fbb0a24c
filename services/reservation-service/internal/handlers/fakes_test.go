package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/availability"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/calendar"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
)

// fakeTx satisfies pgx.Tx for handlers that only Begin/Commit/Rollback; any
// other call panics through the embedded nil interface.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeCatalog struct {
	services map[string]model.Service
	prices   map[string]model.StaffServicePrice // serviceID + "|" + staffID
	accounts map[string]string                  // email -> account id
}

func (f *fakeCatalog) GetService(_ context.Context, serviceID string) (model.Service, error) {
	svc, ok := f.services[serviceID]
	if !ok {
		return model.Service{}, pgx.ErrNoRows
	}
	return svc, nil
}

func (f *fakeCatalog) GetStaffServicePrice(_ context.Context, serviceID, staffID string) (model.StaffServicePrice, error) {
	price, ok := f.prices[serviceID+"|"+staffID]
	if !ok {
		return model.StaffServicePrice{}, pgx.ErrNoRows
	}
	return price, nil
}

func (f *fakeCatalog) FindAccountByEmail(_ context.Context, email string) (string, error) {
	return f.accounts[email], nil
}

type fakeReservations struct {
	byID       map[string]*model.Reservation
	nextErr    error // returned by the next Create, then cleared
	lastStatus string
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{byID: make(map[string]*model.Reservation)}
}

func (f *fakeReservations) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeReservations) Create(_ context.Context, _ pgx.Tx, res *model.Reservation) (string, error) {
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return "", err
	}
	id := uuid.NewString()
	cp := *res
	cp.ID = id
	cp.CreatedAt = time.Now().UTC()
	f.byID[id] = &cp
	return id, nil
}

func (f *fakeReservations) Get(_ context.Context, id string) (model.Reservation, error) {
	res, ok := f.byID[id]
	if !ok {
		return model.Reservation{}, pgx.ErrNoRows
	}
	return *res, nil
}

func (f *fakeReservations) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (model.Reservation, error) {
	return f.Get(ctx, id)
}

func (f *fakeReservations) ListLiveIntervals(_ context.Context, staffID string, from, to time.Time) ([]availability.Interval, error) {
	var out []availability.Interval
	for _, res := range f.byID {
		if res.StaffID != staffID {
			continue
		}
		if res.Status != model.StatusPending && res.Status != model.StatusConfirmed {
			continue
		}
		if res.StartAt.Before(to) && res.EndAt.After(from) {
			out = append(out, availability.Interval{Start: res.StartAt, End: res.EndAt})
		}
	}
	return out, nil
}

func (f *fakeReservations) Confirm(_ context.Context, _ pgx.Tx, id string) error {
	if res, ok := f.byID[id]; ok && (res.Status == model.StatusPending || res.Status == model.StatusConfirmed) {
		res.Status = model.StatusConfirmed
	}
	return nil
}

func (f *fakeReservations) UpdateStatus(_ context.Context, _ pgx.Tx, id, to string, allowedFrom []string) (bool, error) {
	res, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	for _, from := range allowedFrom {
		if res.Status == from {
			res.Status = to
			f.lastStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReservations) ListByStaff(_ context.Context, staffID string, _ int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range f.byID {
		if res.StaffID == staffID {
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakePayments struct {
	bySession map[string]*model.PaymentRecord
	linksPaid map[string]bool
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		bySession: make(map[string]*model.PaymentRecord),
		linksPaid: make(map[string]bool),
	}
}

func (f *fakePayments) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakePayments) CreateProcessing(_ context.Context, _ pgx.Tx, rec model.PaymentRecord) error {
	if _, ok := f.bySession[rec.StripeSessionID]; !ok {
		cp := rec
		f.bySession[rec.StripeSessionID] = &cp
	}
	return nil
}

func (f *fakePayments) GetBySessionForUpdate(_ context.Context, _ pgx.Tx, sessionID string) (model.PaymentRecord, bool, error) {
	rec, ok := f.bySession[sessionID]
	if !ok {
		return model.PaymentRecord{}, false, nil
	}
	return *rec, true, nil
}

func (f *fakePayments) UpsertPaid(_ context.Context, _ pgx.Tx, rec model.PaymentRecord) error {
	existing, ok := f.bySession[rec.StripeSessionID]
	if !ok {
		cp := rec
		cp.Status = model.PaymentPaid
		f.bySession[rec.StripeSessionID] = &cp
		return nil
	}
	existing.Status = model.PaymentPaid
	existing.PaymentIntentID = rec.PaymentIntentID
	existing.AmountCents = rec.AmountCents
	existing.PayerEmail = rec.PayerEmail
	return nil
}

func (f *fakePayments) MarkExpired(_ context.Context, _ pgx.Tx, sessionID string, _ time.Time) (bool, error) {
	rec, ok := f.bySession[sessionID]
	if !ok || rec.Status == model.PaymentPaid {
		return false, nil
	}
	rec.Status = model.PaymentExpired
	return true, nil
}

func (f *fakePayments) StampReceipt(_ context.Context, _ pgx.Tx, sessionID string, at time.Time) (bool, error) {
	rec, ok := f.bySession[sessionID]
	if !ok || rec.ReceiptSentAt != nil {
		return false, nil
	}
	rec.ReceiptSentAt = &at
	return true, nil
}

func (f *fakePayments) MarkPaymentLinkPaid(_ context.Context, _ pgx.Tx, linkID string, _ time.Time) (bool, error) {
	if f.linksPaid[linkID] {
		return false, nil
	}
	f.linksPaid[linkID] = true
	return true, nil
}

type fakeEvents struct {
	events []outbox.Event
}

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeEvents) byType(eventType string) []outbox.Event {
	var out []outbox.Event
	for _, evt := range f.events {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type fakeCalendars struct {
	cal *calendar.Calendar
}

func (f *fakeCalendars) Load(context.Context, time.Time, time.Time) (*calendar.Calendar, error) {
	return f.cal, nil
}

func conflictErr() error {
	return &pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
