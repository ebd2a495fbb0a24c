package notify

import "testing"

func TestConfirmedFansOutToCustomerStaffAndAdmin(t *testing.T) {
	evt := ReservationEvent{
		ReservationID: "res-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		StartAt:       "2026-03-02T10:00:00Z",
	}
	rcpt := Recipients{Staff: "staff@example.com", Admin: "admin@example.com"}

	got := ConfirmedDeliveries(evt, rcpt)
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(got))
	}

	byKind := map[string]Delivery{}
	for _, d := range got {
		byKind[d.Kind] = d
	}
	if d := byKind["confirmation"]; d.Recipient != "ada@example.com" {
		t.Fatalf("confirmation must go to the customer, got %q", d.Recipient)
	}
	if d := byKind["staff_alert"]; d.Recipient != "staff@example.com" {
		t.Fatalf("staff alert recipient: got %q", d.Recipient)
	}
	if d := byKind["admin_alert"]; d.Recipient != "admin@example.com" {
		t.Fatalf("admin alert recipient: got %q", d.Recipient)
	}
}

func TestConfirmedSkipsUnconfiguredAlertAddresses(t *testing.T) {
	evt := ReservationEvent{ReservationID: "res-1", CustomerEmail: "ada@example.com"}

	got := ConfirmedDeliveries(evt, Recipients{})
	if len(got) != 1 || got[0].Kind != "confirmation" {
		t.Fatalf("expected only the customer confirmation, got %+v", got)
	}
}

func TestAwaitingAlertsStaffAndAdminOnly(t *testing.T) {
	evt := ReservationEvent{
		ReservationID: "res-2",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		StartAt:       "2026-03-02T10:00:00Z",
	}
	rcpt := Recipients{Staff: "staff@example.com", Admin: "admin@example.com"}

	got := AwaitingDeliveries(evt, rcpt)
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	for _, d := range got {
		if d.Recipient == "ada@example.com" {
			t.Fatalf("customer must not be emailed before confirmation: %+v", d)
		}
	}
	if got[0].Kind != "staff_alert" || got[1].Kind != "admin_alert" {
		t.Fatalf("unexpected kinds: %q, %q", got[0].Kind, got[1].Kind)
	}
}
