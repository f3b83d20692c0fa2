package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/slots"
)

// ErrRetriesExhausted means the allocator kept losing the race for a queue
// number and gave up. The booking did not happen; the caller may retry.
var ErrRetriesExhausted = errors.New("queue number allocation retries exhausted")

// Store persists a fully-sequenced appointment. CreateAppointment must insert
// the row and its booked event as one atomic step, and must fail with
// model.ErrConflict when (slot, queue number) is already taken so the
// allocator can re-read and retry.
type Store interface {
	MaxQueueNumber(ctx context.Context, key slots.Key) (int, error)
	CreateAppointment(ctx context.Context, appt *model.Appointment) error
}

// Allocator assigns the next queue number within a slot. Reading the current
// maximum and inserting max+1 is racy on its own; the store's uniqueness
// constraint turns the race into a conflict, and the allocator re-reads with
// exponential backoff until it wins or the retry budget runs out.
type Allocator struct {
	store      Store
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

type AllocatorConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewAllocator(store Store, logger *slog.Logger, cfg AllocatorConfig) *Allocator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Millisecond
	}
	return &Allocator{
		store:      store,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Book reserves the next queue number in the appointment's slot and persists
// the record with status pending. On success the appointment carries its id,
// queue number and store timestamps. A number is permanent once the insert
// commits, even if the caller goes away before seeing the response.
func (a *Allocator) Book(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.Status = model.StatusPending
	key := slots.Key{Date: appt.SlotDate, Name: appt.SlotName}

	for attempt := 0; ; attempt++ {
		max, err := a.store.MaxQueueNumber(ctx, key)
		if err != nil {
			return err
		}
		appt.QueueNumber = max + 1

		err = a.store.CreateAppointment(ctx, appt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
		if attempt >= a.maxRetries {
			return fmt.Errorf("%w: slot %s", ErrRetriesExhausted, key)
		}

		a.logger.Warn("queue number already taken, retrying",
			"slot", key.String(), "queue_number", appt.QueueNumber, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.delay(attempt)):
		}
	}
}

// delay doubles per attempt, capped at 32x the base so sustained contention
// keeps draining instead of stalling.
func (a *Allocator) delay(attempt int) time.Duration {
	d := a.backoff
	for i := 0; i < attempt && d < a.backoff*32; i++ {
		d *= 2
	}
	return d
}
