package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mediq-clinic/mediq/services/queue-service/internal/model"
	"github.com/mediq-clinic/mediq/services/queue-service/internal/slots"
)

// memStore reproduces the store's behavior faithfully enough to race against:
// MaxQueueNumber and CreateAppointment are individually atomic, but nothing
// stops two callers from reading the same maximum.
type memStore struct {
	mu    sync.Mutex
	taken map[slots.Key]map[int]string
}

func newMemStore() *memStore {
	return &memStore{taken: map[slots.Key]map[int]string{}}
}

func (s *memStore) MaxQueueNumber(_ context.Context, key slots.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for n := range s.taken[key] {
		if n > max {
			max = n
		}
	}
	return max, nil
}

func (s *memStore) CreateAppointment(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slots.Key{Date: appt.SlotDate, Name: appt.SlotName}
	if s.taken[key] == nil {
		s.taken[key] = map[int]string{}
	}
	if _, exists := s.taken[key][appt.QueueNumber]; exists {
		return model.ErrConflict
	}
	s.taken[key][appt.QueueNumber] = appt.ID
	return nil
}

func TestBook_SequentialSameSlot(t *testing.T) {
	store := newMemStore()
	alloc := NewAllocator(store, slog.Default(), AllocatorConfig{})

	first := &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"}
	second := &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"}
	if err := alloc.Book(context.Background(), first); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if err := alloc.Book(context.Background(), second); err != nil {
		t.Fatalf("second booking failed: %v", err)
	}

	if first.QueueNumber != 1 || second.QueueNumber != 2 {
		t.Fatalf("expected queue numbers 1 and 2, got %d and %d", first.QueueNumber, second.QueueNumber)
	}
	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", first.ID, second.ID)
	}
	if first.Status != model.StatusPending || second.Status != model.StatusPending {
		t.Fatal("new bookings must start pending")
	}
}

func TestBook_IndependentSlots(t *testing.T) {
	store := newMemStore()
	alloc := NewAllocator(store, slog.Default(), AllocatorConfig{})

	morning := &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"}
	evening := &model.Appointment{SlotDate: "2026-03-12", SlotName: "Evening"}
	nextDay := &model.Appointment{SlotDate: "2026-03-13", SlotName: "Morning"}
	for _, appt := range []*model.Appointment{morning, evening, nextDay} {
		if err := alloc.Book(context.Background(), appt); err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if appt.QueueNumber != 1 {
			t.Fatalf("each slot starts at 1, got %d for %s/%s", appt.QueueNumber, appt.SlotDate, appt.SlotName)
		}
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	store := newMemStore()
	alloc := NewAllocator(store, slog.New(slog.DiscardHandler), AllocatorConfig{
		MaxRetries: 128,
		Backoff:    50 * time.Microsecond,
	})

	const n = 50
	results := make(chan int, n)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appt := &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"}
			if err := alloc.Book(context.Background(), appt); err != nil {
				errs <- err
				return
			}
			results <- appt.QueueNumber
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent booking failed: %v", err)
	}

	var numbers []int
	for n := range results {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for i, got := range numbers {
		if got != i+1 {
			t.Fatalf("expected numbers 1..%d with no gaps or duplicates, got %v", n, numbers)
		}
	}
}

type conflictStore struct{}

func (conflictStore) MaxQueueNumber(context.Context, slots.Key) (int, error) { return 0, nil }
func (conflictStore) CreateAppointment(context.Context, *model.Appointment) error {
	return model.ErrConflict
}

func TestBook_RetriesExhausted(t *testing.T) {
	alloc := NewAllocator(conflictStore{}, slog.New(slog.DiscardHandler), AllocatorConfig{
		MaxRetries: 3,
		Backoff:    time.Microsecond,
	})

	err := alloc.Book(context.Background(), &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
}

type brokenStore struct{ err error }

func (s brokenStore) MaxQueueNumber(context.Context, slots.Key) (int, error) { return 0, s.err }
func (s brokenStore) CreateAppointment(context.Context, *model.Appointment) error {
	return s.err
}

func TestBook_StoreErrorNotRetried(t *testing.T) {
	storeErr := fmt.Errorf("connection refused")
	alloc := NewAllocator(brokenStore{err: storeErr}, slog.Default(), AllocatorConfig{})

	err := alloc.Book(context.Background(), &model.Appointment{SlotDate: "2026-03-12", SlotName: "Morning"})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected the store error to surface unchanged, got %v", err)
	}
}
