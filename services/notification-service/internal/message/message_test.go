package message

import "testing"

func TestRenderStatus(t *testing.T) {
	cases := map[string]string{
		"pending":     "Hi Asha, your appointment is pending confirmation.",
		"in_progress": "Hi Asha, the doctor is now ready to see you.",
		"completed":   "Hi Asha, thank you for your visit!",
		"cancelled":   "Hi Asha, your appointment status: cancelled",
	}
	for status, want := range cases {
		if got := RenderStatus("Asha", status); got != want {
			t.Errorf("RenderStatus(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestRenderBooked(t *testing.T) {
	got := RenderBooked("Asha", "Morning", "2026-03-12", 4)
	want := "Hi Asha, your appointment is booked for the Morning slot on 2026-03-12. Your queue number is 4."
	if got != want {
		t.Fatalf("RenderBooked = %q, want %q", got, want)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 010-2030": "15550102030",
		"555-0102":          "5550102",
		"no digits":         "",
	}
	for raw, want := range cases {
		if got := NormalizePhone(raw); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", raw, got, want)
		}
	}
}
