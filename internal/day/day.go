// Package day defines the calendar-day key used for every same-day
// comparison in habitflow. Keys are "YYYY-MM-DD" strings in the owning
// user's timezone; raw timestamps are never compared for day equality.
package day

import (
	"strings"
	"time"
	_ "time/tzdata"
)

const layout = "2006-01-02"

// DefaultTimezone is used when a user has no usable timezone configured.
const DefaultTimezone = "Asia/Kolkata"

// Key identifies one local calendar day, e.g. "2024-01-31".
type Key string

// Normalize maps an instant to the calendar day it falls on in loc.
func Normalize(t time.Time, loc *time.Location) Key {
	if loc == nil {
		loc = time.UTC
	}
	return Key(t.In(loc).Format(layout))
}

// FromDate builds a key from calendar parts. Out-of-range parts are
// normalized the way time.Date normalizes them.
func FromDate(year int, month time.Month, d int) Key {
	return Key(time.Date(year, month, d, 0, 0, 0, 0, time.UTC).Format(layout))
}

func (k Key) String() string { return string(k) }

// Valid reports whether k is a well-formed day.
func (k Key) Valid() bool {
	_, err := time.Parse(layout, string(k))
	return err == nil
}

// Time returns midnight UTC of the day. Only use it for calendar arithmetic.
func (k Key) Time() (time.Time, error) {
	return time.Parse(layout, string(k))
}

// AddDays shifts the key by n calendar days. An invalid key is returned unchanged.
func (k Key) AddDays(n int) Key {
	t, err := k.Time()
	if err != nil {
		return k
	}
	return Key(t.AddDate(0, 0, n).Format(layout))
}

// Weekday returns the day of the week of k.
func (k Key) Weekday() (time.Weekday, error) {
	t, err := k.Time()
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// Between returns the number of calendar days from a to b (b - a).
func Between(a, b Key) (int, error) {
	ta, err := a.Time()
	if err != nil {
		return 0, err
	}
	tb, err := b.Time()
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// InRange reports whether from <= k <= to. Keys order lexically.
func (k Key) InRange(from, to Key) bool {
	return k >= from && k <= to
}

// Location resolves an IANA timezone name, falling back to fallback and then
// to DefaultTimezone when the name is empty or unknown.
func Location(name, fallback string) *time.Location {
	for _, n := range []string{name, fallback, DefaultTimezone} {
		if n == "" {
			continue
		}
		if loc, err := time.LoadLocation(n); err == nil {
			return loc
		}
	}
	return time.UTC
}

// ValidTimezone reports whether name is a loadable IANA timezone.
func ValidTimezone(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Clock reports "HH:mm" of t in loc.
func Clock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// ValidClock reports whether s is a 24-hour "HH:mm" time.
func ValidClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// WeekStart returns the first day of the week containing k. startsOn is
// time.Monday or time.Sunday.
func WeekStart(k Key, startsOn time.Weekday) (Key, error) {
	wd, err := k.Weekday()
	if err != nil {
		return "", err
	}
	offset := (int(wd) - int(startsOn) + 7) % 7
	return k.AddDays(-offset), nil
}

// MonthBounds returns the first day of the month and the first day of the
// following month.
func MonthBounds(year int, month time.Month) (Key, Key) {
	return FromDate(year, month, 1), FromDate(year, month+1, 1)
}
