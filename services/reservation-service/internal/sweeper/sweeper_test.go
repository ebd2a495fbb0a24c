package sweeper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeStore struct {
	pending    []*model.Reservation
	lastCutoff time.Time
}

func (f *fakeStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (f *fakeStore) ReleaseStale(_ context.Context, _ pgx.Tx, cutoff time.Time, limit int) ([]model.Reservation, error) {
	f.lastCutoff = cutoff
	var out []model.Reservation
	for _, res := range f.pending {
		if len(out) >= limit {
			break
		}
		if res.Status == model.StatusPending && res.CreatedAt.Before(cutoff) {
			res.Status = model.StatusCancelled
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakePayments struct {
	expired []string
}

func (f *fakePayments) ExpireForReservations(_ context.Context, _ pgx.Tx, reservationIDs []string) error {
	f.expired = append(f.expired, reservationIDs...)
	return nil
}

type fakeEvents struct {
	events []outbox.Event
}

func (f *fakeEvents) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	f.events = append(f.events, evt)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSweepReleasesOnlyStalePending(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: []*model.Reservation{
			{ID: "stale", Status: model.StatusPending, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "fresh", Status: model.StatusPending, CreatedAt: now.Add(-10 * time.Minute)},
			{ID: "paid", Status: model.StatusConfirmed, CreatedAt: now.Add(-2 * time.Hour)},
		},
	}
	payments := &fakePayments{}
	events := &fakeEvents{}

	s := New(nil, store, payments, events, discardLogger(), 0, 0, 0)
	s.now = func() time.Time { return now }

	s.SweepOnce(context.Background())

	if got := store.pending[0].Status; got != model.StatusCancelled {
		t.Fatalf("stale pending should be cancelled, got %q", got)
	}
	if got := store.pending[1].Status; got != model.StatusPending {
		t.Fatalf("fresh pending must survive, got %q", got)
	}
	if got := store.pending[2].Status; got != model.StatusConfirmed {
		t.Fatalf("confirmed must survive, got %q", got)
	}

	if want := now.Add(-DefaultTTL); !store.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, store.lastCutoff)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 released event, got %d", len(events.events))
	}
	evt := events.events[0]
	if evt.EventType != outbox.TopicReservationReleased || evt.AggregateID != "stale" {
		t.Fatalf("unexpected event: %+v", evt)
	}

	if len(payments.expired) != 1 || payments.expired[0] != "stale" {
		t.Fatalf("expected payment record for stale to expire, got %v", payments.expired)
	}
}

func TestSweepNoStaleEmitsNothing(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: []*model.Reservation{
			{ID: "fresh", Status: model.StatusPending, CreatedAt: now.Add(-5 * time.Minute)},
		},
	}
	events := &fakeEvents{}

	s := New(nil, store, &fakePayments{}, events, discardLogger(), 0, 0, 0)
	s.now = func() time.Time { return now }
	s.SweepOnce(context.Background())

	if len(events.events) != 0 {
		t.Fatalf("expected no events, got %d", len(events.events))
	}
}
