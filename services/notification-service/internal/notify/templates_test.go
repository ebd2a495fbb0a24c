package notify

import (
	"strings"
	"testing"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		cents    int64
		currency string
		want     string
	}{
		{12345, "usd", "123.45 USD"},
		{50, "USD", "0.50 USD"},
		{100, "eur", "1.00 EUR"},
		{-2500, "USD", "-25.00 USD"},
		{9, "USD", "0.09 USD"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.cents, tc.currency); got != tc.want {
			t.Errorf("FormatAmount(%d, %q) = %q, want %q", tc.cents, tc.currency, got, tc.want)
		}
	}
}

func TestConfirmationEmailContents(t *testing.T) {
	subject, body := ConfirmationEmail(ReservationEvent{
		ReservationID: "res-1",
		CustomerName:  "Ada",
		StartAt:       "2026-03-02T10:00:00Z",
	})
	if subject == "" {
		t.Fatal("empty subject")
	}
	if !strings.Contains(body, "Ada") || !strings.Contains(body, "res-1") {
		t.Fatalf("body missing fields: %q", body)
	}
	if !strings.Contains(body, "Monday, 2 March 2026") {
		t.Fatalf("body missing formatted start time: %q", body)
	}
}

func TestEmailsHandleMissingName(t *testing.T) {
	_, body := ReleasedEmail(ReservationEvent{StartAt: "bad-time"})
	if !strings.Contains(body, "Hi there,") {
		t.Fatalf("expected fallback greeting: %q", body)
	}
	if !strings.Contains(body, "bad-time") {
		t.Fatalf("unparseable time should pass through: %q", body)
	}
}
