package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
)

// DefaultTTL is how long a pending reservation may hold a slot without a
// settled payment. Stripe checkout sessions expire after 30 minutes; the
// extra margin lets the expiry webhook win the race when it arrives.
const DefaultTTL = 35 * time.Minute

type releaseStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ReleaseStale(ctx context.Context, tx pgx.Tx, cutoff time.Time, limit int) ([]model.Reservation, error)
}

type paymentExpirer interface {
	ExpireForReservations(ctx context.Context, tx pgx.Tx, reservationIDs []string) error
}

type eventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Sweeper is the safety net behind the expiry webhook: it cancels pending
// reservations whose checkout never settled, so an unpaid draft cannot hold a
// slot forever when webhook delivery fails.
type Sweeper struct {
	pool         *db.Pool
	reservations releaseStore
	payments     paymentExpirer
	events       eventWriter
	logger       *slog.Logger
	ttl          time.Duration
	batchSize    int
	advisoryKey  int64
	now          func() time.Time
}

func New(pool *db.Pool, reservations releaseStore, payments paymentExpirer, events eventWriter, logger *slog.Logger, ttl time.Duration, batchSize int, advisoryKey int64) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if advisoryKey == 0 {
		// Stable default; override via env if you run multiple engines on one cluster.
		advisoryKey = 4242102
	}
	return &Sweeper{
		pool:         pool,
		reservations: reservations,
		payments:     payments,
		events:       events,
		logger:       logger,
		ttl:          ttl,
		batchSize:    batchSize,
		advisoryKey:  advisoryKey,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	// Best-effort leader election for multi-instance deployments. Only the
	// instance holding the advisory lock sweeps.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, s.advisoryKey).Scan(&locked); err != nil {
			s.logger.Error("sweeper: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			s.logger.Info("sweeper: advisory lock held by another instance", "lock_key", s.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		s.logger.Info("sweeper: advisory lock acquired", "lock_key", s.advisoryKey)
		defer func() {
			_, _ = s.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, s.advisoryKey)
		}()
		break
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep immediately on startup to self-heal faster after downtime.
	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce releases one batch of stale pending reservations and queues a
// released event per slot so the customer learns their unpaid hold lapsed.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	tx, err := s.reservations.Begin(ctx)
	if err != nil {
		s.logger.Error("sweeper: begin failed", "err", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cutoff := s.now().Add(-s.ttl)
	released, err := s.reservations.ReleaseStale(ctx, tx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Error("sweeper: release failed", "err", err)
		return
	}
	if len(released) == 0 {
		_ = tx.Commit(ctx)
		return
	}

	ids := make([]string, len(released))
	for i, res := range released {
		ids[i] = res.ID
	}
	if err := s.payments.ExpireForReservations(ctx, tx, ids); err != nil {
		s.logger.Error("sweeper: payment expire failed", "err", err)
		return
	}

	for _, res := range released {
		payload, err := json.Marshal(map[string]any{
			"reservation_id": res.ID,
			"service_id":     res.ServiceID,
			"staff_id":       res.StaffID,
			"customer_email": res.CustomerEmail,
			"start_at":       res.StartAt.UTC().Format(time.RFC3339),
			"end_at":         res.EndAt.UTC().Format(time.RFC3339),
			"reason":         "payment_timeout",
		})
		if err != nil {
			s.logger.Error("sweeper: payload marshal failed", "err", err, "reservation_id", res.ID)
			return
		}
		if err := s.events.Insert(ctx, tx, outbox.Event{
			AggregateType: "reservation",
			AggregateID:   res.ID,
			EventType:     outbox.TopicReservationReleased,
			Payload:       payload,
		}); err != nil {
			s.logger.Error("sweeper: outbox insert failed", "err", err, "reservation_id", res.ID)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("sweeper: commit failed", "err", err)
		return
	}
	s.logger.Info("sweeper: released stale reservations", "count", len(released), "cutoff", cutoff.Format(time.RFC3339))
}
