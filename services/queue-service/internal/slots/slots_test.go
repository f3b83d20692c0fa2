package slots

import (
	"testing"
	"time"
)

func TestResolve_MorningHours(t *testing.T) {
	r := NewResolver()
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	for _, hour := range []int{9, 10, 11} {
		slot := r.Resolve(day.Add(time.Duration(hour)*time.Hour + 30*time.Minute))
		if slot.Key.Name != "Morning" {
			t.Fatalf("hour %d: expected Morning, got %s", hour, slot.Key.Name)
		}
		if !slot.Start.Equal(day.Add(9 * time.Hour)) {
			t.Fatalf("hour %d: expected start 09:00, got %s", hour, slot.Start.Format(time.RFC3339))
		}
		if !slot.End.Equal(day.Add(12 * time.Hour)) {
			t.Fatalf("hour %d: expected end 12:00, got %s", hour, slot.End.Format(time.RFC3339))
		}
	}
}

func TestResolve_EveningAndOutOfRangeHours(t *testing.T) {
	r := NewResolver()
	day := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	// 12 and 18 fall outside both windows and bucket into Evening; 14 is inside it.
	for _, hour := range []int{0, 8, 12, 14, 18, 23} {
		slot := r.Resolve(day.Add(time.Duration(hour) * time.Hour))
		if slot.Key.Name != "Evening" {
			t.Fatalf("hour %d: expected Evening, got %s", hour, slot.Key.Name)
		}
		if !slot.Start.Equal(day.Add(13 * time.Hour)) {
			t.Fatalf("hour %d: expected start 13:00, got %s", hour, slot.Start.Format(time.RFC3339))
		}
		if !slot.End.Equal(day.Add(17 * time.Hour)) {
			t.Fatalf("hour %d: expected end 17:00, got %s", hour, slot.End.Format(time.RFC3339))
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := NewResolver()
	at := time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

	first := r.Resolve(at)
	second := r.Resolve(at)
	if first != second {
		t.Fatalf("resolve not deterministic: %+v vs %+v", first, second)
	}
	if first.Key.Date != "2026-03-12" {
		t.Fatalf("unexpected slot date %s", first.Key.Date)
	}
	if !first.Start.Equal(time.Date(2026, 3, 12, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected slot start 13:00, got %s", first.Start.Format(time.RFC3339))
	}
}

func TestResolve_CustomWindows(t *testing.T) {
	r := NewResolver(
		Window{Name: "Early", StartHour: 6, EndHour: 10},
		Window{Name: "Late", StartHour: 18, EndHour: 22},
	)
	at := time.Date(2026, 3, 12, 7, 15, 0, 0, time.UTC)

	slot := r.Resolve(at)
	if slot.Key.Name != "Early" {
		t.Fatalf("expected Early, got %s", slot.Key.Name)
	}

	// Outside every window falls into the last one.
	slot = r.Resolve(time.Date(2026, 3, 12, 12, 0, 0, 0, time.UTC))
	if slot.Key.Name != "Late" {
		t.Fatalf("expected Late fallback, got %s", slot.Key.Name)
	}
}

func TestParseWindows(t *testing.T) {
	windows, err := ParseWindows("Morning=9-12, Evening=13-17")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[1].Name != "Evening" || windows[1].StartHour != 13 || windows[1].EndHour != 17 {
		t.Fatalf("unexpected second window %+v", windows[1])
	}

	if _, err := ParseWindows("Morning=12-9"); err == nil {
		t.Fatal("expected error for inverted hours")
	}
	if _, err := ParseWindows("garbage"); err == nil {
		t.Fatal("expected error for missing hours")
	}

	windows, err = ParseWindows("")
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if len(windows) != len(ClinicWindows) {
		t.Fatalf("empty input should yield the default schedule")
	}
}
