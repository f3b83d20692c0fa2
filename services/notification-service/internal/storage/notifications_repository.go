package storage

import (
	"context"
	"encoding/json"

	"github.com/mediq-clinic/mediq/libs/db"
)

// Notification records one delivery attempt to a patient.
type Notification struct {
	AppointmentID string
	EventType     string
	Recipient     string
	Body          string
	ProviderID    string
	Status        string // sent | failed
	Detail        map[string]any
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	detail, err := json.Marshal(n.Detail)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, event_type, recipient, body, provider_id, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.AppointmentID, n.EventType, n.Recipient, n.Body, n.ProviderID, n.Status, detail)
	return err
}
