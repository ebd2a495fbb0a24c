package model

import "time"

// Reservation statuses. Only pending and confirmed block a staff member's
// calendar; the data layer enforces that with an exclusion constraint.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
	StatusCompleted = "completed"
)

// Billing rules decide how much is charged at booking time.
const (
	BillingFull      = "full"      // charge the full price up front
	BillingDeposit   = "deposit"   // charge deposit_pct of the price up front
	BillingAuthorize = "authorize" // never charge; staff confirms manually
)

// Payment record statuses mirror the gateway checkout-session lifecycle.
const (
	PaymentProcessing = "processing"
	PaymentPaid       = "paid"
	PaymentFailed     = "failed"
	PaymentCanceled   = "canceled"
	PaymentExpired    = "expired"
)

// Payment record types: what the money was for.
const (
	PaymentTypeReservation = "reservation"
	PaymentTypePaymentLink = "payment_link"
)

type Reservation struct {
	ID            string
	ServiceID     string
	StaffID       string
	AccountID     string // linked account, empty for guest bookings
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartAt       time.Time
	EndAt         time.Time
	Status        string
	Note          string
	PriceCents    int64 // price snapshot taken at draft time
	Currency      string
	CreatedAt     time.Time
}

type Service struct {
	ID           string
	Name         string
	DurationMins int
	BillingRule  string
	DepositPct   int
	IsActive     bool
}

// StaffServicePrice is the price in integer minor units for one
// (service, staff) pair. A reservation cannot be drafted without one.
type StaffServicePrice struct {
	ServiceID  string
	StaffID    string
	PriceCents int64
	Currency   string
}

type PaymentRecord struct {
	ID              string
	Type            string
	Status          string
	AmountCents     int64
	Currency        string
	StripeSessionID string // unique: the reconciliation idempotency key
	PaymentIntentID string
	TargetID        string // reservation id or payment link id
	PayerEmail      string
	Metadata        map[string]string
	ReceiptSentAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
