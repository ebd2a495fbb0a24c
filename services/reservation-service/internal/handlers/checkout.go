package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/billing"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/storage"
)

// CheckoutConfig carries the Stripe wiring for the checkout endpoint.
type CheckoutConfig struct {
	StripeSecretKey string
	SuccessURL      string
	CancelURL       string
	FeePolicy       billing.FeePolicy
}

type checkoutParams struct {
	AmountCents    int64
	Currency       string
	ProductName    string
	CustomerEmail  string
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutHandler turns a PENDING reservation into a Stripe Checkout session
// for the amount its billing rule demands.
type CheckoutHandler struct {
	reservations  reservationStore
	catalog       catalogSource
	payments      paymentStore
	cfg           CheckoutConfig
	logger        *slog.Logger
	createSession func(ctx context.Context, p checkoutParams) (id, url string, err error)
}

func NewCheckoutHandler(reservations reservationStore, catalog catalogSource, payments paymentStore, cfg CheckoutConfig, logger *slog.Logger) *CheckoutHandler {
	h := &CheckoutHandler{
		reservations: reservations,
		catalog:      catalog,
		payments:     payments,
		cfg:          cfg,
		logger:       logger,
	}
	h.createSession = h.createStripeSession
	return h
}

type checkoutRequest struct {
	AppointmentID string `json:"appointment_id"`
	SuccessURL    string `json:"success_url,omitempty"`
	CancelURL     string `json:"cancel_url,omitempty"`
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cfg.StripeSecretKey == "" {
		http.Error(w, "stripe checkout not configured (STRIPE_SECRET_KEY missing)", http.StatusNotImplemented)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)

	ctx := r.Context()
	res, err := h.reservations.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load reservation", http.StatusInternalServerError)
		return
	}
	if res.Status != model.StatusPending {
		http.Error(w, "reservation is not awaiting payment", http.StatusConflict)
		return
	}

	svc, err := h.catalog.GetService(ctx, res.ServiceID)
	if err != nil {
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}

	amount, err := billing.ChargeAmount(svc, res.PriceCents)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoCharge):
			http.Error(w, "no payment is due for this service", http.StatusUnprocessableEntity)
		case errors.Is(err, billing.ErrAmountTooSmall):
			http.Error(w, "charge amount below gateway minimum", http.StatusUnprocessableEntity)
		default:
			http.Error(w, "service billing is misconfigured", http.StatusUnprocessableEntity)
		}
		return
	}

	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = h.cfg.SuccessURL
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = h.cfg.CancelURL
	}
	if successURL == "" || cancelURL == "" {
		http.Error(w, "success_url and cancel_url are required (or configure default URLs)", http.StatusBadRequest)
		return
	}

	// Fee terms are frozen into the record at charge time; a later policy
	// change must not alter what this payment says it was charged under.
	metadata := h.cfg.FeePolicy.Snapshot()
	metadata["type"] = model.PaymentTypeReservation
	metadata["target_id"] = id
	metadata["billing_rule"] = svc.BillingRule

	sessionID, url, err := h.createSession(ctx, checkoutParams{
		AmountCents:    amount,
		Currency:       res.Currency,
		ProductName:    svc.Name,
		CustomerEmail:  res.CustomerEmail,
		Metadata:       metadata,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.logger.Error("stripe checkout session create failed", "err", err, "reservation_id", id)
		http.Error(w, "failed to create checkout session", http.StatusBadGateway)
		return
	}

	tx, err := h.payments.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.payments.CreateProcessing(ctx, tx, model.PaymentRecord{
		StripeSessionID: sessionID,
		Type:            model.PaymentTypeReservation,
		TargetID:        id,
		Status:          model.PaymentProcessing,
		AmountCents:     amount,
		Currency:        res.Currency,
		PayerEmail:      res.CustomerEmail,
		Metadata:        metadata,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		http.Error(w, "failed to persist payment record", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   sessionID,
		"checkout_url": url,
	})
}

func (h *CheckoutHandler) createStripeSession(ctx context.Context, p checkoutParams) (string, string, error) {
	// Stripe uses a global API key. Keep usage limited to this handler call.
	stripe.Key = h.cfg.StripeSecretKey

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		CustomerEmail:     stripe.String(p.CustomerEmail),
		ClientReferenceID: stripe.String(p.Metadata["target_id"]),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(p.Currency)),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
				},
			},
		},
		Metadata: p.Metadata,
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}
