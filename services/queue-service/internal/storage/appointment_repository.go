package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mediq-clinic/mediq/libs/db"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/outbox"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/slots"
)

const appointmentColumns = `id, patient_name, phone_number, service_type, requested_time,
	slot_date::text, slot_name, slot_start, queue_number, status, COALESCE(notes, ''), created_at, updated_at`

// AppointmentRepository persists appointments and writes their change events in
// the same transaction, so no booking or transition is ever visible without its
// outbox row.
type AppointmentRepository struct {
	pool   *db.Pool
	events *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, events *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, events: events}
}

// MaxQueueNumber returns the highest queue number assigned in the slot so far,
// or zero for an empty slot.
func (r *AppointmentRepository) MaxQueueNumber(ctx context.Context, key slots.Key) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM appointments
		WHERE slot_date = $1 AND slot_name = $2
	`, key.Date, key.Name).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CreateAppointment inserts the sequenced appointment and its booked event as
// one transaction. The UNIQUE (slot_date, slot_name, queue_number) constraint
// is the arbiter under concurrent bookings: losing the race surfaces as
// model.ErrConflict and nothing is persisted.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_name, phone_number, service_type, requested_time, slot_date, slot_name, slot_start, queue_number, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, appt.ID, appt.PatientName, appt.PhoneNumber, appt.ServiceType, appt.RequestedTime,
		appt.SlotDate, appt.SlotName, appt.SlotStart, appt.QueueNumber, appt.Status, appt.Notes,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: queue number %d in slot %s/%s", model.ErrConflict, appt.QueueNumber, appt.SlotDate, appt.SlotName)
		}
		return err
	}

	payload, err := json.Marshal(outbox.AppointmentBooked{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		PhoneNumber:   appt.PhoneNumber,
		ServiceType:   string(appt.ServiceType),
		SlotDate:      appt.SlotDate,
		SlotName:      appt.SlotName,
		SlotStart:     appt.SlotStart,
		QueueNumber:   appt.QueueNumber,
	})
	if err != nil {
		return err
	}
	if err := r.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.TopicAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, model.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// UpdateStatusConditional applies a status change only while the expected
// prior status still holds, and writes the status-changed event in the same
// transaction. A vanished precondition is reported as model.ErrConflict; a
// missing row as model.ErrNotFound.
func (r *AppointmentRepository) UpdateStatusConditional(ctx context.Context, id string, expected, next model.Status) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns, id, expected, next)
	appt, err := scanAppointment(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return model.Appointment{}, err
		}
		if !exists {
			return model.Appointment{}, model.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("%w: appointment %s no longer %s", model.ErrConflict, id, expected)
	}

	payload, err := json.Marshal(outbox.AppointmentStatusChanged{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		PhoneNumber:   appt.PhoneNumber,
		OldStatus:     string(expected),
		NewStatus:     string(next),
		QueueNumber:   appt.QueueNumber,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.events.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.TopicAppointmentStatusChanged,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Filter narrows QueryFiltered. An empty or "all" Status matches every status;
// Search matches patient name or phone number case-insensitively, or the queue
// number exactly when numeric.
type Filter struct {
	Status string
	Search string
}

func (r *AppointmentRepository) QueryFiltered(ctx context.Context, f Filter) ([]model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	var conds []string
	var args []any

	if f.Status != "" && f.Status != "all" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		pattern := len(args)
		searchCond := fmt.Sprintf("(patient_name ILIKE $%d OR phone_number ILIKE $%d", pattern, pattern)
		if n, err := strconv.Atoi(search); err == nil {
			args = append(args, n)
			searchCond += fmt.Sprintf(" OR queue_number = $%d", len(args))
		}
		searchCond += ")"
		conds = append(conds, searchCond)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY slot_start ASC, queue_number ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.PatientName,
		&appt.PhoneNumber,
		&appt.ServiceType,
		&appt.RequestedTime,
		&appt.SlotDate,
		&appt.SlotName,
		&appt.SlotStart,
		&appt.QueueNumber,
		&appt.Status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
