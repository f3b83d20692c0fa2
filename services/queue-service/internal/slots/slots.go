package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is one fixed daily service window. Hours are local clock hours and the
// window covers [StartHour, EndHour).
type Window struct {
	Name      string
	StartHour int
	EndHour   int
}

// ClinicWindows is the default schedule: a morning window and an evening window.
// Requests whose hour falls outside every window bucket into the last one.
var ClinicWindows = []Window{
	{Name: "Morning", StartHour: 9, EndHour: 12},
	{Name: "Evening", StartHour: 13, EndHour: 17},
}

// Key identifies the queue an appointment competes in: one calendar date, one window.
type Key struct {
	Date string // YYYY-MM-DD
	Name string
}

func (k Key) String() string {
	return k.Date + "/" + k.Name
}

// Slot is a resolved daily window with concrete boundaries.
type Slot struct {
	Key   Key
	Start time.Time
	End   time.Time
}

type Resolver struct {
	windows []Window
}

func NewResolver(windows ...Window) *Resolver {
	if len(windows) == 0 {
		windows = ClinicWindows
	}
	return &Resolver{windows: windows}
}

// Resolve maps a requested timestamp to its canonical slot. Pure and total: the
// fine-grained time is discarded in favor of the window boundaries so everyone
// in the same window competes in the same queue, and out-of-range hours fall
// into the final window rather than failing.
func (r *Resolver) Resolve(t time.Time) Slot {
	hour := t.Hour()
	win := r.windows[len(r.windows)-1]
	for _, w := range r.windows {
		if hour >= w.StartHour && hour < w.EndHour {
			win = w
			break
		}
	}

	year, month, day := t.Date()
	start := time.Date(year, month, day, win.StartHour, 0, 0, 0, t.Location())
	end := time.Date(year, month, day, win.EndHour, 0, 0, 0, t.Location())
	return Slot{
		Key:   Key{Date: t.Format("2006-01-02"), Name: win.Name},
		Start: start,
		End:   end,
	}
}

// ParseWindows reads a schedule of the form "Morning=9-12,Evening=13-17".
// An empty input yields the default clinic schedule.
func ParseWindows(raw string) ([]Window, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClinicWindows, nil
	}

	var windows []Window
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, hours, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid window %q", part)
		}
		startRaw, endRaw, ok := strings.Cut(hours, "-")
		if !ok {
			return nil, fmt.Errorf("invalid window hours %q", hours)
		}
		start, err := strconv.Atoi(strings.TrimSpace(startRaw))
		if err != nil {
			return nil, fmt.Errorf("invalid window start %q", startRaw)
		}
		end, err := strconv.Atoi(strings.TrimSpace(endRaw))
		if err != nil {
			return nil, fmt.Errorf("invalid window end %q", endRaw)
		}
		if start < 0 || end > 24 || end <= start {
			return nil, fmt.Errorf("window %q hours out of range", part)
		}
		windows = append(windows, Window{Name: strings.TrimSpace(name), StartHour: start, EndHour: end})
	}
	if len(windows) == 0 {
		return ClinicWindows, nil
	}
	return windows, nil
}
