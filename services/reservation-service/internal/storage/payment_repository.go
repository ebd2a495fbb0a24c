package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookable-dev/bookable/libs/db"
	"github.com/bookable-dev/bookable/services/reservation-service/internal/model"
)

// PaymentRepository owns the payments table. Rows are keyed for idempotency by
// the gateway checkout-session id: every write here is an upsert or a
// status-guarded update so the webhook handler can re-run from the top.
type PaymentRepository struct {
	pool *db.Pool
}

func NewPaymentRepository(pool *db.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const paymentColumns = `
	id::text, type, status, amount_cents, currency,
	stripe_session_id, COALESCE(payment_intent_id, ''), COALESCE(target_id, ''),
	COALESCE(payer_email, ''), metadata, receipt_sent_at, created_at, updated_at`

// CreateProcessing records a freshly created checkout session. Retried
// checkout calls reuse the same session id, so collisions just refresh fields.
func (r *PaymentRepository) CreateProcessing(ctx context.Context, tx pgx.Tx, rec model.PaymentRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments
			(type, status, amount_cents, currency, stripe_session_id, payment_intent_id, target_id, payer_email, metadata)
		VALUES ($1, 'processing', $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (stripe_session_id) DO UPDATE
		SET amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			metadata = EXCLUDED.metadata,
			updated_at = now()
	`, rec.Type, rec.AmountCents, rec.Currency, rec.StripeSessionID, rec.PaymentIntentID,
		rec.TargetID, rec.PayerEmail, metadataOrEmpty(rec.Metadata))
	return err
}

// GetBySessionForUpdate locks the payment row for the session, if any. The
// reconciler reads it first to learn whether the incoming event is a true
// transition or a replay.
func (r *PaymentRepository) GetBySessionForUpdate(ctx context.Context, tx pgx.Tx, sessionID string) (model.PaymentRecord, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE stripe_session_id = $1
		FOR UPDATE
	`, sessionID)
	rec, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PaymentRecord{}, false, nil
	}
	if err != nil {
		return model.PaymentRecord{}, false, err
	}
	return rec, true, nil
}

// UpsertPaid writes the paid state for a checkout session: insert when the
// event arrives before (or without) a local processing row, overwrite
// otherwise. Replays end up re-setting identical fields.
func (r *PaymentRepository) UpsertPaid(ctx context.Context, tx pgx.Tx, rec model.PaymentRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments
			(type, status, amount_cents, currency, stripe_session_id, payment_intent_id, target_id, payer_email, metadata)
		VALUES ($1, 'paid', $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (stripe_session_id) DO UPDATE
		SET status = 'paid',
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			payment_intent_id = EXCLUDED.payment_intent_id,
			payer_email = EXCLUDED.payer_email,
			updated_at = now()
	`, rec.Type, rec.AmountCents, rec.Currency, rec.StripeSessionID, rec.PaymentIntentID,
		rec.TargetID, rec.PayerEmail, metadataOrEmpty(rec.Metadata))
	return err
}

// MarkExpired moves a session to expired unless it already completed. The paid
// status is terminal: a late expiry event must not unwind a confirmation.
func (r *PaymentRepository) MarkExpired(ctx context.Context, tx pgx.Tx, sessionID string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = $2
		WHERE stripe_session_id = $1 AND status <> 'paid'
	`, sessionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireForReservations expires any still-processing payment records held by
// the given reservations. Paid records are left untouched.
func (r *PaymentRepository) ExpireForReservations(ctx context.Context, tx pgx.Tx, reservationIDs []string) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = now()
		WHERE type = 'reservation' AND target_id = ANY($1) AND status = 'processing'
	`, reservationIDs)
	return err
}

// StampReceipt claims the right to send the receipt for a payment. The
// null-timestamp guard makes the side effect once-only under replays.
func (r *PaymentRepository) StampReceipt(ctx context.Context, tx pgx.Tx, sessionID string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET receipt_sent_at = $2, updated_at = now()
		WHERE stripe_session_id = $1 AND receipt_sent_at IS NULL
	`, sessionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPaymentLinkPaid settles a standalone payment link exactly once.
func (r *PaymentRepository) MarkPaymentLinkPaid(ctx context.Context, tx pgx.Tx, linkID string, at time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payment_links
		SET status = 'paid', paid_at = $2, updated_at = now()
		WHERE id = $1 AND status <> 'paid'
	`, linkID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) GetBySession(ctx context.Context, sessionID string) (model.PaymentRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE stripe_session_id = $1
	`, sessionID)
	return scanPayment(row)
}

func scanPayment(row pgx.Row) (model.PaymentRecord, error) {
	var rec model.PaymentRecord
	var receiptSentAt *time.Time
	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Status,
		&rec.AmountCents,
		&rec.Currency,
		&rec.StripeSessionID,
		&rec.PaymentIntentID,
		&rec.TargetID,
		&rec.PayerEmail,
		&rec.Metadata,
		&receiptSentAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return model.PaymentRecord{}, err
	}
	rec.ReceiptSentAt = receiptSentAt
	return rec, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
