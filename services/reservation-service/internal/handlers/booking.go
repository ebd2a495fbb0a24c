package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/availability"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/billing"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/outbox"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/storage"
)

// BookingHandler owns the reservation lifecycle endpoints: the public draft
// endpoint and the staff-facing status transitions.
type BookingHandler struct {
	reservations reservationStore
	catalog      catalogSource
	events       eventWriter
	logger       *slog.Logger
	now          func() time.Time
}

func NewBookingHandler(reservations reservationStore, catalog catalogSource, events eventWriter, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		reservations: reservations,
		catalog:      catalog,
		events:       events,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type draftRequest struct {
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	StartTime     string `json:"start_time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type draftResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	BillingRule   string `json:"billing_rule"`
	DurationMins  int    `json:"duration_minutes"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
	AmountDue     int64  `json:"amount_due_cents"`
	DepositPct    int    `json:"deposit_pct,omitempty"`
}

// Draft creates a PENDING reservation that holds the slot until payment
// settles or the sweeper releases it.
func (h *BookingHandler) Draft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(strings.ToLower(req.CustomerEmail))

	if req.ServiceID == "" || req.StaffID == "" || req.CustomerName == "" || req.CustomerEmail == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	start = start.UTC()

	ctx := r.Context()
	svc, err := h.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	if !svc.IsActive {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}

	price, err := h.catalog.GetStaffServicePrice(ctx, req.ServiceID, req.StaffID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff does not offer this service", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load price", http.StatusInternalServerError)
		return
	}

	now := h.now()
	if !start.After(now) {
		http.Error(w, "start_time is in the past", http.StatusUnprocessableEntity)
		return
	}
	if start.After(now.Add(availability.MaxHorizon)) {
		http.Error(w, "start_time is beyond the booking horizon", http.StatusUnprocessableEntity)
		return
	}
	end := start.Add(time.Duration(svc.DurationMins) * time.Minute)

	amountDue, err := billing.ChargeAmount(svc, price.PriceCents)
	if err != nil && !errors.Is(err, billing.ErrNoCharge) {
		http.Error(w, "service billing is misconfigured", http.StatusUnprocessableEntity)
		return
	}

	accountID, err := h.catalog.FindAccountByEmail(ctx, req.CustomerEmail)
	if err != nil {
		http.Error(w, "failed to resolve account", http.StatusInternalServerError)
		return
	}

	res := &model.Reservation{
		ServiceID:     req.ServiceID,
		StaffID:       req.StaffID,
		AccountID:     accountID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		StartAt:       start,
		EndAt:         end,
		Status:        model.StatusPending,
		PriceCents:    price.PriceCents,
		Currency:      price.Currency,
	}

	tx, err := h.reservations.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.reservations.Create(ctx, tx, res)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create reservation", http.StatusInternalServerError)
		return
	}

	// AUTHORIZE services skip checkout; staff confirm manually, so tell them now.
	if svc.BillingRule == model.BillingAuthorize {
		if err := h.insertReservationEvent(ctx, tx, outbox.TopicReservationAwaitingConfirmation, id, res); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, draftResponse{
		AppointmentID: id,
		Status:        model.StatusPending,
		BillingRule:   svc.BillingRule,
		DurationMins:  svc.DurationMins,
		PriceCents:    price.PriceCents,
		Currency:      price.Currency,
		AmountDue:     amountDue,
		DepositPct:    depositPctFor(svc),
	})
}

func depositPctFor(svc model.Service) int {
	if svc.BillingRule == model.BillingDeposit {
		return svc.DepositPct
	}
	return 0
}

type transitionRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Cancel moves a PENDING reservation to CANCELLED and frees the slot.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusCancelled, []string{model.StatusPending}, outbox.TopicReservationCancelled)
}

// NoShow marks a reservation whose customer never arrived.
func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusNoShow, []string{model.StatusPending, model.StatusConfirmed}, "")
}

// Complete closes out a CONFIRMED reservation after the visit.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusCompleted, []string{model.StatusConfirmed}, "")
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, to string, allowedFrom []string, topic string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)

	ctx := r.Context()
	tx, err := h.reservations.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	moved, err := h.reservations.UpdateStatus(ctx, tx, id, to, allowedFrom)
	if err != nil {
		http.Error(w, "failed to update reservation", http.StatusInternalServerError)
		return
	}
	if !moved {
		http.Error(w, "reservation not found or not in a valid state", http.StatusConflict)
		return
	}

	if topic != "" {
		res, err := h.reservations.GetForUpdate(ctx, tx, id)
		if err != nil {
			http.Error(w, "failed to load reservation", http.StatusInternalServerError)
			return
		}
		if err := h.insertReservationEvent(ctx, tx, topic, id, &res); err != nil {
			http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": id,
		"status":         to,
	})
}

// ConfirmManual is the staff path for AUTHORIZE services: no payment ever
// settles, so confirmation comes from a person instead of a webhook.
func (h *BookingHandler) ConfirmManual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)

	ctx := r.Context()
	tx, err := h.reservations.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := h.reservations.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "reservation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load reservation", http.StatusInternalServerError)
		return
	}

	svc, err := h.catalog.GetService(ctx, res.ServiceID)
	if err != nil {
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	if svc.BillingRule != model.BillingAuthorize {
		http.Error(w, "reservation requires payment before confirmation", http.StatusUnprocessableEntity)
		return
	}

	moved, err := h.reservations.UpdateStatus(ctx, tx, id, model.StatusConfirmed, []string{model.StatusPending})
	if err != nil {
		http.Error(w, "failed to update reservation", http.StatusInternalServerError)
		return
	}
	if !moved {
		http.Error(w, "reservation not in a confirmable state", http.StatusConflict)
		return
	}

	if err := h.insertReservationEvent(ctx, tx, outbox.TopicReservationConfirmed, id, &res); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": id,
		"status":         model.StatusConfirmed,
	})
}

type reservationItem struct {
	ID            string `json:"id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
}

// List returns recent reservations for a staff member, newest first.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return
	}
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.reservations.ListByStaff(r.Context(), staffID, limit)
	if err != nil {
		http.Error(w, "failed to list reservations", http.StatusInternalServerError)
		return
	}

	items := make([]reservationItem, 0, len(rows))
	for _, res := range rows {
		items = append(items, reservationItem{
			ID:            res.ID,
			ServiceID:     res.ServiceID,
			StaffID:       res.StaffID,
			CustomerName:  res.CustomerName,
			CustomerEmail: res.CustomerEmail,
			StartAt:       res.StartAt.UTC().Format(time.RFC3339),
			EndAt:         res.EndAt.UTC().Format(time.RFC3339),
			Status:        res.Status,
			PriceCents:    res.PriceCents,
			Currency:      res.Currency,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"reservations": items})
}

func (h *BookingHandler) insertReservationEvent(ctx context.Context, tx pgx.Tx, topic, id string, res *model.Reservation) error {
	payload, err := json.Marshal(map[string]any{
		"reservation_id": id,
		"service_id":     res.ServiceID,
		"staff_id":       res.StaffID,
		"customer_name":  res.CustomerName,
		"customer_email": res.CustomerEmail,
		"start_at":       res.StartAt.UTC().Format(time.RFC3339),
		"end_at":         res.EndAt.UTC().Format(time.RFC3339),
		"price_cents":    res.PriceCents,
		"currency":       res.Currency,
	})
	if err != nil {
		return err
	}
	return h.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   id,
		EventType:     topic,
		Payload:       payload,
	})
}
