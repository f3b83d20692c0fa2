package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
)

func TestCanTransition_FullMatrix(t *testing.T) {
	statuses := []model.Status{model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled}
	allowed := map[string]bool{
		"pending->in_progress":   true,
		"pending->cancelled":     true,
		"in_progress->completed": true,
		"in_progress->cancelled": true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			key := fmt.Sprintf("%s->%s", from, to)
			if got := CanTransition(from, to); got != allowed[key] {
				t.Errorf("%s: expected %v, got %v", key, allowed[key], got)
			}
		}
	}
}

type fakeStore struct {
	appt        model.Appointment
	getErr      error
	updateErrs  []error
	updateCalls int
}

func (s *fakeStore) GetByID(_ context.Context, _ string) (model.Appointment, error) {
	if s.getErr != nil {
		return model.Appointment{}, s.getErr
	}
	return s.appt, nil
}

func (s *fakeStore) UpdateStatusConditional(_ context.Context, _ string, _, next model.Status) (model.Appointment, error) {
	call := s.updateCalls
	s.updateCalls++
	if call < len(s.updateErrs) && s.updateErrs[call] != nil {
		return model.Appointment{}, s.updateErrs[call]
	}
	updated := s.appt
	updated.Status = next
	return updated, nil
}

func newTestMachine(store *fakeStore) *Machine {
	return NewMachine(store, slog.Default())
}

func TestApply_HappyPath(t *testing.T) {
	store := &fakeStore{appt: model.Appointment{ID: "a1", Status: model.StatusPending}}
	m := newTestMachine(store)

	updated, err := m.Apply(context.Background(), "a1", "in_progress")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if updated.Status != model.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}
}

func TestApply_InvalidStatus(t *testing.T) {
	store := &fakeStore{appt: model.Appointment{ID: "a1", Status: model.StatusPending}}
	m := newTestMachine(store)

	_, err := m.Apply(context.Background(), "a1", "done")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Fatal("store should not be written for an invalid status")
	}
}

func TestApply_NotFound(t *testing.T) {
	store := &fakeStore{getErr: model.ErrNotFound}
	m := newTestMachine(store)

	_, err := m.Apply(context.Background(), "missing", "cancelled")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApply_IllegalTransition(t *testing.T) {
	cases := []struct {
		current   model.Status
		requested string
	}{
		{model.StatusPending, "completed"},
		{model.StatusPending, "pending"},
		{model.StatusCompleted, "in_progress"},
		{model.StatusCompleted, "cancelled"},
		{model.StatusCancelled, "pending"},
		{model.StatusInProgress, "pending"},
	}
	for _, tc := range cases {
		store := &fakeStore{appt: model.Appointment{ID: "a1", Status: tc.current}}
		m := newTestMachine(store)

		_, err := m.Apply(context.Background(), "a1", tc.requested)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("%s -> %s: expected ErrIllegalTransition, got %v", tc.current, tc.requested, err)
		}
		if store.updateCalls != 0 {
			t.Errorf("%s -> %s: store should not be written", tc.current, tc.requested)
		}
	}
}

func TestApply_RetriesOnceOnConflict(t *testing.T) {
	store := &fakeStore{
		appt:       model.Appointment{ID: "a1", Status: model.StatusPending},
		updateErrs: []error{model.ErrConflict},
	}
	m := newTestMachine(store)

	updated, err := m.Apply(context.Background(), "a1", "in_progress")
	if err != nil {
		t.Fatalf("apply should recover from one conflict: %v", err)
	}
	if store.updateCalls != 2 {
		t.Fatalf("expected 2 update attempts, got %d", store.updateCalls)
	}
	if updated.Status != model.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}
}

func TestApply_GivesUpAfterSecondConflict(t *testing.T) {
	store := &fakeStore{
		appt:       model.Appointment{ID: "a1", Status: model.StatusPending},
		updateErrs: []error{model.ErrConflict, model.ErrConflict},
	}
	m := newTestMachine(store)

	_, err := m.Apply(context.Background(), "a1", "in_progress")
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict after retry budget, got %v", err)
	}
	if store.updateCalls != 2 {
		t.Fatalf("expected exactly 2 update attempts, got %d", store.updateCalls)
	}
}
