// Package resolver turns an event's time spec into the absolute instant it fires at.
package resolver

import (
	"fmt"
	"time"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

// Resolve computes the firing instant of spec relative to now. It has no side
// effects; NextTime and TimeAfter depend on now and may resolve differently on
// every call.
func Resolve(spec models.TimeSpec, now time.Time) (time.Time, error) {
	switch s := spec.(type) {
	case models.NextTime:
		return nextTime(s, now)
	case models.TimeAfter:
		return timeAfter(s, now)
	case models.Specific:
		return s.Date, nil
	default:
		return time.Time{}, fmt.Errorf("resolve %T: %w", spec, models.ErrUnknownVariant)
	}
}

func nextTime(s models.NextTime, now time.Time) (time.Time, error) {
	if !validClock(s.Hour, s.Minute, s.Second) {
		return time.Time{}, models.ErrInvalidDate
	}

	y, m, d := now.Date()
	today, ok := wallClock(y, m, d, s.Hour, s.Minute, s.Second, now.Location())
	if ok && today.After(now) {
		return today, nil
	}
	if ok {
		// Fall-back day: time.Date picks the first of a repeated wall
		// clock, the second one may still be ahead.
		if later := today.Add(time.Hour); later.After(now) && sameClock(later, s.Hour, s.Minute, s.Second) {
			return later, nil
		}
	}

	// Either already passed today or the wall clock does not exist today
	// (DST gap). Day arithmetic goes through time.Date so month and year
	// rollovers are handled by the calendar.
	tomorrow, ok := wallClock(y, m, d+1, s.Hour, s.Minute, s.Second, now.Location())
	if !ok {
		return time.Time{}, models.ErrInvalidDate
	}
	return tomorrow, nil
}

func timeAfter(s models.TimeAfter, now time.Time) (time.Time, error) {
	if !validClock(s.Hour, s.Minute, s.Second) {
		return time.Time{}, models.ErrInvalidDate
	}
	dur := time.Duration(s.Hour)*time.Hour + time.Duration(s.Minute)*time.Minute + time.Duration(s.Second)*time.Second
	if dur == 0 {
		return now, nil
	}

	y, m, d := now.Date()
	hh, mm, ss := now.Clock()
	t := time.Date(y, m, d, hh+s.Hour, mm+s.Minute, ss+s.Second, now.Nanosecond(), now.Location())

	// A summed wall clock inside a DST gap gets moved by time.Date, and a
	// repeated one on a fall-back day can land at or before now. Both use
	// elapsed time instead.
	wall := time.Date(y, m, d, hh+s.Hour, mm+s.Minute, ss+s.Second, 0, time.UTC)
	wy, wm, wd := wall.Date()
	ty, tm, td := t.Date()
	if ty != wy || tm != wm || td != wd || !sameClock(t, wall.Hour(), wall.Minute(), wall.Second()) || !t.After(now) {
		t = now.Add(dur)
	}
	return t, nil
}

// wallClock builds the instant for the given calendar fields and reports
// whether that wall-clock time actually exists in loc.
func wallClock(y int, m time.Month, d, hour, minute, second int, loc *time.Location) (time.Time, bool) {
	t := time.Date(y, m, d, hour, minute, second, 0, loc)
	return t, sameClock(t, hour, minute, second)
}

func sameClock(t time.Time, hour, minute, second int) bool {
	h, m, s := t.Clock()
	return h == hour && m == minute && s == second
}

func validClock(h, m, s int) bool {
	return h >= 0 && h <= 23 && m >= 0 && m <= 59 && s >= 0 && s <= 59
}

// Describe renders spec and its resolution for previews.
func Describe(spec models.TimeSpec, now time.Time) string {
	label := Label(spec)
	at, err := Resolve(spec, now)
	if err != nil {
		return fmt.Sprintf("%s (%v)", label, err)
	}
	return fmt.Sprintf("%s -> %s", label, at.Format("2006-01-02 15:04:05 -0700"))
}

// Label renders spec without resolving it.
func Label(spec models.TimeSpec) string {
	switch s := spec.(type) {
	case models.NextTime:
		return fmt.Sprintf("next %02d:%02d:%02d", s.Hour, s.Minute, s.Second)
	case models.TimeAfter:
		return fmt.Sprintf("after %dh%02dm%02ds", s.Hour, s.Minute, s.Second)
	case models.Specific:
		return "at " + s.Date.Format(time.RFC3339)
	default:
		return fmt.Sprintf("unknown (%T)", spec)
	}
}
