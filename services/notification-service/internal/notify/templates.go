package notify

import (
	"fmt"
	"strings"
	"time"
)

// ReservationEvent is the payload shared by the reservation.* topics.
type ReservationEvent struct {
	ReservationID string `json:"reservation_id"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
}

// ReceiptEvent is the payload of billing.receipt.requested.v1.
type ReceiptEvent struct {
	SessionID   string `json:"session_id"`
	PayerEmail  string `json:"payer_email"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Type        string `json:"type"`
	TargetID    string `json:"target_id"`
}

// ConfirmationEmail is sent to the customer once payment settled.
func ConfirmationEmail(evt ReservationEvent) (subject, body string) {
	subject = "Your appointment is confirmed"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s is confirmed. We look forward to seeing you.\n\nReference: %s\n",
		displayName(evt.CustomerName),
		displayTime(evt.StartAt),
		evt.ReservationID,
	)
	return subject, body
}

// ReleasedEmail tells the customer their unpaid hold lapsed.
func ReleasedEmail(evt ReservationEvent) (subject, body string) {
	subject = "Your appointment hold has expired"
	body = fmt.Sprintf(
		"Hi %s,\n\nWe did not receive payment in time, so your hold for %s was released. The slot is open for booking again.\n\nReference: %s\n",
		displayName(evt.CustomerName),
		displayTime(evt.StartAt),
		evt.ReservationID,
	)
	return subject, body
}

// CancelledEmail confirms a cancellation made by staff.
func CancelledEmail(evt ReservationEvent) (subject, body string) {
	subject = "Your appointment was cancelled"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s has been cancelled.\n\nReference: %s\n",
		displayName(evt.CustomerName),
		displayTime(evt.StartAt),
		evt.ReservationID,
	)
	return subject, body
}

// StaffAlertEmail asks staff to review a pay-later booking.
func StaffAlertEmail(evt ReservationEvent) (subject, body string) {
	subject = "New booking awaiting your confirmation"
	body = fmt.Sprintf(
		"A new booking from %s (%s) on %s is awaiting manual confirmation.\n\nReference: %s\n",
		displayName(evt.CustomerName),
		evt.CustomerEmail,
		displayTime(evt.StartAt),
		evt.ReservationID,
	)
	return subject, body
}

// ConfirmedAlertEmail tells staff and admins a booking just confirmed.
func ConfirmedAlertEmail(evt ReservationEvent) (subject, body string) {
	subject = "Booking confirmed"
	body = fmt.Sprintf(
		"The booking from %s (%s) on %s is confirmed.\n\nReference: %s\n",
		displayName(evt.CustomerName),
		evt.CustomerEmail,
		displayTime(evt.StartAt),
		evt.ReservationID,
	)
	return subject, body
}

// ReceiptEmail summarizes a settled charge.
func ReceiptEmail(evt ReceiptEvent) (subject, body string) {
	subject = "Payment receipt"
	body = fmt.Sprintf(
		"We received your payment of %s.\n\nPayment reference: %s\n",
		FormatAmount(evt.AmountCents, evt.Currency),
		evt.SessionID,
	)
	return subject, body
}

// FormatAmount renders integer minor units as a decimal with the currency
// code, e.g. 12345 USD -> "123.45 USD".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return strings.TrimSpace(name)
}

func displayTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Format("Monday, 2 January 2006 at 15:04")
}
