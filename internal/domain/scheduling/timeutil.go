package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (24h) or "h:mm AM/PM" into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	meridiem := ""
	if strings.HasSuffix(v, "AM") || strings.HasSuffix(v, "PM") {
		meridiem = v[len(v)-2:]
		v = strings.TrimSpace(v[:len(v)-2])
	}

	hStr, mStr, ok := strings.Cut(v, ":")
	if !ok || len(mStr) != 2 || hStr == "" || len(hStr) > 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hStr)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mStr)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}

	switch meridiem {
	case "":
		if h < 0 || h > 23 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
	default:
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		h %= 12
		if meridiem == "PM" {
			h += 12
		}
	}
	return h*60 + m, nil
}

// To24HourMinutes is the lenient form of ParseClock: malformed input is 0.
func To24HourMinutes(display string) int {
	m, err := ParseClock(display)
	if err != nil {
		return 0
	}
	return m
}

// FormatMinutes12 renders a minute-of-day as "hh:mm AM/PM".
func FormatMinutes12(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	h, m := minute/60, minute%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h, m, suffix)
}

// FormatMinutes24 renders a minute-of-day as "HH:MM".
func FormatMinutes24(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// To12HourLabel converts "HH:MM" into "hh:mm AM/PM". Input that does not
// parse is returned unchanged.
func To12HourLabel(hhmm string) string {
	m, err := ParseClock(hhmm)
	if err != nil {
		return hhmm
	}
	return FormatMinutes12(m)
}

// LocalISODate formats the calendar date of t in t's own location.
func LocalISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// MinuteOfDay returns the wall-clock minute of t in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseDate parses "YYYY-MM-DD" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DayBounds returns [midnight, next midnight) of t's calendar day in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Overlaps reports whether [a0,a1) and [b0,b1) intersect.
func Overlaps(a0, a1, b0, b1 int) bool {
	return a0 < b1 && a1 > b0
}
