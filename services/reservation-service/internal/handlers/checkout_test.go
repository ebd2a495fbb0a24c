package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/bookable-dev/bookable/services/reservation-service/internal/billing"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

func checkoutFixtures() (*fakeReservations, *fakePayments, *CheckoutHandler, *[]checkoutParams) {
	reservations := newFakeReservations()
	payments := newFakePayments()
	catalog := &fakeCatalog{
		services: map[string]model.Service{
			"svc-full":    {ID: "svc-full", Name: "Haircut", DurationMins: 60, BillingRule: model.BillingFull, IsActive: true},
			"svc-deposit": {ID: "svc-deposit", Name: "Color", DurationMins: 120, BillingRule: model.BillingDeposit, DepositPct: 33, IsActive: true},
			"svc-auth":    {ID: "svc-auth", Name: "Consult", DurationMins: 30, BillingRule: model.BillingAuthorize, IsActive: true},
		},
	}
	h := NewCheckoutHandler(reservations, catalog, payments, CheckoutConfig{
		StripeSecretKey: "sk_test",
		SuccessURL:      "https://book.example.com/done",
		CancelURL:       "https://book.example.com/cancel",
		FeePolicy:       billing.FeePolicy{PercentBps: 250, FixedCents: 30},
	}, testLogger())

	created := &[]checkoutParams{}
	h.createSession = func(_ context.Context, p checkoutParams) (string, string, error) {
		*created = append(*created, p)
		return "cs_test_1", "https://checkout.stripe.com/c/cs_test_1", nil
	}
	return reservations, payments, h, created
}

func TestCheckoutChargesFullPrice(t *testing.T) {
	reservations, payments, h, created := checkoutFixtures()
	reservations.byID["res-1"] = &model.Reservation{
		ID: "res-1", ServiceID: "svc-full", StaffID: "staff-1",
		CustomerEmail: "ada@example.com", Status: model.StatusPending,
		PriceCents: 10000, Currency: "USD",
	}

	rr := postJSON(t, h.Create, "/api/v1/public/appointments/checkout", `{"appointment_id": "res-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(*created) != 1 {
		t.Fatalf("expected 1 session, got %d", len(*created))
	}
	p := (*created)[0]
	if p.AmountCents != 10000 || p.Currency != "USD" {
		t.Fatalf("unexpected charge: %d %s", p.AmountCents, p.Currency)
	}
	if p.Metadata["type"] != model.PaymentTypeReservation || p.Metadata["target_id"] != "res-1" {
		t.Fatalf("metadata missing reconciliation keys: %v", p.Metadata)
	}
	if p.Metadata["fee_percent_bps"] != "250" || p.Metadata["fee_fixed_cents"] != "30" {
		t.Fatalf("fee policy not snapshotted: %v", p.Metadata)
	}

	rec, ok := payments.bySession["cs_test_1"]
	if !ok {
		t.Fatal("payment record not persisted")
	}
	if rec.Status != model.PaymentProcessing || rec.TargetID != "res-1" {
		t.Fatalf("unexpected payment record: %+v", rec)
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["checkout_url"] == "" || resp["session_id"] != "cs_test_1" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestCheckoutDepositRoundsHalfUp(t *testing.T) {
	reservations, _, h, created := checkoutFixtures()
	reservations.byID["res-1"] = &model.Reservation{
		ID: "res-1", ServiceID: "svc-deposit", StaffID: "staff-1",
		CustomerEmail: "ada@example.com", Status: model.StatusPending,
		PriceCents: 9999, Currency: "USD",
	}

	rr := postJSON(t, h.Create, "/api/v1/public/appointments/checkout", `{"appointment_id": "res-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	// 33% of 9999 = 3299.67, rounds half-up to 3300.
	if got := (*created)[0].AmountCents; got != 3300 {
		t.Fatalf("expected 3300, got %d", got)
	}
}

func TestCheckoutAuthorizeRuleHasNothingToPay(t *testing.T) {
	reservations, _, h, created := checkoutFixtures()
	reservations.byID["res-1"] = &model.Reservation{
		ID: "res-1", ServiceID: "svc-auth", StaffID: "staff-1",
		CustomerEmail: "ada@example.com", Status: model.StatusPending,
		PriceCents: 5000, Currency: "USD",
	}

	rr := postJSON(t, h.Create, "/api/v1/public/appointments/checkout", `{"appointment_id": "res-1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for authorize rule, got %d", rr.Code)
	}
	if len(*created) != 0 {
		t.Fatal("no session should be created for authorize rule")
	}
}

func TestCheckoutRequiresPendingReservation(t *testing.T) {
	reservations, _, h, _ := checkoutFixtures()
	reservations.byID["res-1"] = &model.Reservation{
		ID: "res-1", ServiceID: "svc-full", StaffID: "staff-1",
		Status: model.StatusConfirmed, PriceCents: 10000, Currency: "USD",
	}

	rr := postJSON(t, h.Create, "/api/v1/public/appointments/checkout", `{"appointment_id": "res-1"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for non-pending reservation, got %d", rr.Code)
	}

	rr = postJSON(t, h.Create, "/api/v1/public/appointments/checkout", `{"appointment_id": "missing"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown reservation, got %d", rr.Code)
	}
}
