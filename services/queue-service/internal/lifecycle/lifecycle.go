package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
)

var (
	// ErrInvalidStatus means the requested status is not one of the four
	// recognized values.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrIllegalTransition means the appointment's current status does not
	// permit moving to the requested one.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// transitions is the full lifecycle: pending and in_progress can move forward
// or be cancelled; completed and cancelled are terminal.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:    {model.StatusInProgress, model.StatusCancelled},
	model.StatusInProgress: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is a permitted lifecycle step.
func CanTransition(from, to model.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Store is the conditional-write surface the state machine drives. The
// implementation must apply the update only while the expected status still
// holds and report model.ErrConflict when it no longer does.
type Store interface {
	GetByID(ctx context.Context, id string) (model.Appointment, error)
	UpdateStatusConditional(ctx context.Context, id string, expected, next model.Status) (model.Appointment, error)
}

type Machine struct {
	store  Store
	logger *slog.Logger
}

func NewMachine(store Store, logger *slog.Logger) *Machine {
	return &Machine{store: store, logger: logger}
}

// Apply validates and persists a status change. The fetch and the write are
// tied together by the conditional update's status predicate, so a concurrent
// edit surfaces as model.ErrConflict instead of a lost update; one fresh
// read-validate-write cycle is attempted in that case. An illegal transition is
// a caller error and is never retried.
func (m *Machine) Apply(ctx context.Context, id string, requested string) (model.Appointment, error) {
	next, ok := model.ParseStatus(requested)
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}

	for attempt := 0; ; attempt++ {
		current, err := m.store.GetByID(ctx, id)
		if err != nil {
			return model.Appointment{}, err
		}
		if !CanTransition(current.Status, next) {
			return model.Appointment{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, next)
		}

		updated, err := m.store.UpdateStatusConditional(ctx, id, current.Status, next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, model.ErrConflict) || attempt >= 1 {
			return model.Appointment{}, err
		}
		m.logger.Warn("status precondition changed underneath, retrying once",
			"appointment_id", id, "expected", current.Status, "requested", next)
	}
}
