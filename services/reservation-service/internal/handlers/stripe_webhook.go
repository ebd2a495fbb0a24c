package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
)

// WebhookHandler reconciles gateway checkout events against payment records
// and reservations. Stripe retries until it sees a 2xx and may replay events
// it already delivered, so every branch here must be safe to run twice.
type WebhookHandler struct {
	payments     paymentStore
	reservations reservationStore
	events       eventWriter
	secret       string
	tolerance    time.Duration
	logger       *slog.Logger
	now          func() time.Time

	verify func(body []byte, sigHeader string) (stripe.Event, error)
}

func NewWebhookHandler(payments paymentStore, reservations reservationStore, events eventWriter, secret string, tolerance time.Duration, logger *slog.Logger) *WebhookHandler {
	h := &WebhookHandler{
		payments:     payments,
		reservations: reservations,
		events:       events,
		secret:       secret,
		tolerance:    tolerance,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	h.verify = func(body []byte, sigHeader string) (stripe.Event, error) {
		return webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	}
	return h
}

// StripeWebhook handles Stripe webhooks (no session auth; the signature is
// the auth). The gateway should expose this path publicly.
func (h *WebhookHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := h.verify(body, sigHeader)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("payment gateway event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	switch evtType {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		if err := h.applyCompleted(r.Context(), session, occurredAt); err != nil {
			h.logger.Error("stripe: completed session reconcile failed", "err", err, "session_id", session.ID)
			http.Error(w, "failed to reconcile payment", http.StatusInternalServerError)
			return
		}
	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		if err := h.applyExpired(r.Context(), session, occurredAt); err != nil {
			h.logger.Error("stripe: expired session reconcile failed", "err", err, "session_id", session.ID)
			http.Error(w, "failed to reconcile payment", http.StatusInternalServerError)
			return
		}
	default:
		h.logger.Debug("stripe: event type ignored", "event_type", evtType)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// applyCompleted settles a paid checkout session: upsert the payment record as
// paid, confirm the target reservation, and fan out follow-up events exactly
// once. The row lock on the payment record serializes concurrent replays; the
// paid-before check decides whether this delivery is the one that transitions.
func (h *WebhookHandler) applyCompleted(ctx context.Context, session stripe.CheckoutSession, occurredAt time.Time) error {
	tx, err := h.payments.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, found, err := h.payments.GetBySessionForUpdate(ctx, tx, session.ID)
	if err != nil {
		return err
	}
	wasPaid := found && existing.Status == model.PaymentPaid

	rec := model.PaymentRecord{
		StripeSessionID: session.ID,
		Type:            strings.TrimSpace(session.Metadata["type"]),
		TargetID:        strings.TrimSpace(session.Metadata["target_id"]),
		Status:          model.PaymentPaid,
		AmountCents:     session.AmountTotal,
		Currency:        strings.ToUpper(string(session.Currency)),
		Metadata:        session.Metadata,
	}
	if session.PaymentIntent != nil {
		rec.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.CustomerDetails != nil {
		rec.PayerEmail = strings.ToLower(strings.TrimSpace(session.CustomerDetails.Email))
	}
	// Sessions created outside the checkout endpoint (restored backups, manual
	// gateway retries) still get a record here; the upsert covers both paths.
	if err := h.payments.UpsertPaid(ctx, tx, rec); err != nil {
		return err
	}

	switch rec.Type {
	case model.PaymentTypeReservation:
		if rec.TargetID == "" {
			h.logger.Warn("stripe: completed session missing target_id", "session_id", session.ID)
			break
		}
		if err := h.reservations.Confirm(ctx, tx, rec.TargetID); err != nil {
			return err
		}
		if !wasPaid {
			res, err := h.reservations.GetForUpdate(ctx, tx, rec.TargetID)
			if err != nil {
				return err
			}
			if err := h.insertConfirmedEvent(ctx, tx, rec.TargetID, res, rec); err != nil {
				return err
			}
		}
	case model.PaymentTypePaymentLink:
		if rec.TargetID == "" {
			break
		}
		if _, err := h.payments.MarkPaymentLinkPaid(ctx, tx, rec.TargetID, occurredAt); err != nil {
			return err
		}
	}

	// Receipt fan-out claims the receipt_sent_at stamp so a replay that lost
	// the transition race cannot queue a second receipt.
	claimed, err := h.payments.StampReceipt(ctx, tx, session.ID, h.now())
	if err != nil {
		return err
	}
	if claimed {
		payload, err := json.Marshal(map[string]any{
			"session_id":   session.ID,
			"payer_email":  rec.PayerEmail,
			"amount_cents": rec.AmountCents,
			"currency":     rec.Currency,
			"type":         rec.Type,
			"target_id":    rec.TargetID,
		})
		if err != nil {
			return err
		}
		if err := h.events.Insert(ctx, tx, outbox.Event{
			AggregateType: "payment",
			AggregateID:   session.ID,
			EventType:     outbox.TopicReceiptRequested,
			Payload:       payload,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// applyExpired closes out a checkout session the customer abandoned. The
// status guard in MarkExpired keeps a late expiry replay from clobbering a
// session that completed first.
func (h *WebhookHandler) applyExpired(ctx context.Context, session stripe.CheckoutSession, occurredAt time.Time) error {
	tx, err := h.payments.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	expired, err := h.payments.MarkExpired(ctx, tx, session.ID, occurredAt)
	if err != nil {
		return err
	}

	targetID := strings.TrimSpace(session.Metadata["target_id"])
	if expired && strings.TrimSpace(session.Metadata["type"]) == model.PaymentTypeReservation && targetID != "" {
		released, err := h.reservations.UpdateStatus(ctx, tx, targetID, model.StatusCancelled, []string{model.StatusPending})
		if err != nil {
			return err
		}
		if released {
			res, err := h.reservations.GetForUpdate(ctx, tx, targetID)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(map[string]any{
				"reservation_id": targetID,
				"service_id":     res.ServiceID,
				"staff_id":       res.StaffID,
				"customer_email": res.CustomerEmail,
				"start_at":       res.StartAt.UTC().Format(time.RFC3339),
				"end_at":         res.EndAt.UTC().Format(time.RFC3339),
				"reason":         "checkout_expired",
			})
			if err != nil {
				return err
			}
			if err := h.events.Insert(ctx, tx, outbox.Event{
				AggregateType: "reservation",
				AggregateID:   targetID,
				EventType:     outbox.TopicReservationReleased,
				Payload:       payload,
			}); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (h *WebhookHandler) insertConfirmedEvent(ctx context.Context, tx pgx.Tx, id string, res model.Reservation, rec model.PaymentRecord) error {
	payload, err := json.Marshal(map[string]any{
		"reservation_id": id,
		"service_id":     res.ServiceID,
		"staff_id":       res.StaffID,
		"customer_name":  res.CustomerName,
		"customer_email": res.CustomerEmail,
		"start_at":       res.StartAt.UTC().Format(time.RFC3339),
		"end_at":         res.EndAt.UTC().Format(time.RFC3339),
		"amount_cents":   rec.AmountCents,
		"currency":       rec.Currency,
	})
	if err != nil {
		return err
	}
	return h.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   id,
		EventType:     outbox.TopicReservationConfirmed,
		Payload:       payload,
	})
}
