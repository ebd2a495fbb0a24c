package storage

import (
	"context"
	"encoding/json"

	"github.com/bookable-dev/bookable/libs/db"
)

type Notification struct {
	ReservationID string
	Kind          string // confirmation, released, cancelled, staff_alert, receipt
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (reservation_id, kind, channel, recipient, payload, status)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6)
	`, n.ReservationID, n.Kind, n.Channel, n.Recipient, payload, n.Status)
	return err
}
