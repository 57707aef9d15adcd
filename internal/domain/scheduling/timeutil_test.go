package scheduling

import (
	"testing"
	"time"
)

func TestTo12HourLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"13:05", "01:05 PM"},
		{"00:00", "12:00 AM"},
		{"12:00", "12:00 PM"},
		{"09:30", "09:30 AM"},
		{"23:59", "11:59 PM"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := To12HourLabel(tt.in); got != tt.want {
			t.Errorf("To12HourLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTo24HourMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"12:00 AM", 0},
		{"12:00 PM", 720},
		{"1:30 PM", 810},
		{"9:00 am", 540},
		{"11:59 PM", 1439},
		{"17:00", 1020},
		{"", 0},
		{"13:00 PM", 0},
		{"9:5 AM", 0},
		{"noon", 0},
	}
	for _, tt := range tests {
		if got := To24HourMinutes(tt.in); got != tt.want {
			t.Errorf("To24HourMinutes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseClock_Errors(t *testing.T) {
	for _, in := range []string{"24:00", "12:60", "0:00 AM", "ab:cd", "1230"} {
		if _, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q): expected error", in)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := FormatMinutes12(0); got != "12:00 AM" {
		t.Errorf("FormatMinutes12(0) = %q", got)
	}
	if got := FormatMinutes12(750); got != "12:30 PM" {
		t.Errorf("FormatMinutes12(750) = %q", got)
	}
	if got := FormatMinutes24(545); got != "09:05" {
		t.Errorf("FormatMinutes24(545) = %q", got)
	}
}

func TestLocalISODate_UsesOwnLocation(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	// 23:30 UTC on the 14th is already the 15th in Manila.
	ts := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC).In(manila)
	if got := LocalISODate(ts); got != "2026-03-15" {
		t.Errorf("LocalISODate = %s, want 2026-03-15", got)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		a0, a1, b0, b1 int
		want           bool
	}{
		{"identical", 540, 570, 540, 570, true},
		{"partial", 540, 570, 555, 585, true},
		{"contained", 540, 600, 555, 570, true},
		{"a ends where b starts", 540, 570, 570, 600, false},
		{"b ends where a starts", 570, 600, 540, 570, false},
		{"disjoint", 540, 570, 600, 630, false},
		{"sentinel", 540, 570, -1, -1, false},
		{"inverted interval", 540, 570, 600, 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a0, tt.a1, tt.b0, tt.b1); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("PHT", 8*3600)
	from, to := DayBounds(time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC), loc)
	if from.Format(time.RFC3339) != "2026-03-15T00:00:00+08:00" {
		t.Errorf("from = %s", from.Format(time.RFC3339))
	}
	if to.Sub(from) != 24*time.Hour {
		t.Errorf("expected a 24h day, got %s", to.Sub(from))
	}
}
