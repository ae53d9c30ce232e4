package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinUTCOffsetHours is the westernmost supported timezone offset.
	MinUTCOffsetHours = -12
	// MaxUTCOffsetHours is the easternmost supported timezone offset.
	MaxUTCOffsetHours = 14
)

// ErrOffsetOutOfRange indicates an unsupported UTC offset.
var ErrOffsetOutOfRange = errors.New("utc offset out of range")

// TimeOfDay is a wall-clock time without a date, as chosen by the user.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String renders the time of day as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ValidateUTCOffset checks the offset against the supported range.
func ValidateUTCOffset(offsetHours int) error {
	if offsetHours < MinUTCOffsetHours || offsetHours > MaxUTCOffsetHours {
		return fmt.Errorf("%w: %d", ErrOffsetOutOfRange, offsetHours)
	}
	return nil
}

// NextLocalOccurrence returns the next absolute instant at which the user's
// local wall clock reads timeOfDay. When today's occurrence has already
// passed relative to now, the occurrence on the following calendar day is
// returned. The result is always strictly after now and expressed in UTC.
func NextLocalOccurrence(timeOfDay TimeOfDay, utcOffsetHours int, now time.Time) (time.Time, error) {
	if err := ValidateUTCOffset(utcOffsetHours); err != nil {
		return time.Time{}, err
	}

	offset := time.Duration(utcOffsetHours) * time.Hour
	local := now.UTC().Add(offset)

	occurrence := time.Date(local.Year(), local.Month(), local.Day(), timeOfDay.Hour, timeOfDay.Minute, 0, 0, time.UTC)
	if !occurrence.After(local) {
		occurrence = occurrence.AddDate(0, 0, 1)
	}

	return occurrence.Add(-offset), nil
}

// NextAnchoredOccurrence behaves like NextLocalOccurrence but additionally
// skips today's occurrence when the anchor instant falls on the user's
// current local day. A challenge created at 23:50 must not be checked a few
// minutes later.
func NextAnchoredOccurrence(timeOfDay TimeOfDay, utcOffsetHours int, anchor, now time.Time) (time.Time, error) {
	next, err := NextLocalOccurrence(timeOfDay, utcOffsetHours, now)
	if err != nil {
		return time.Time{}, err
	}

	if SameLocalDay(anchor, now, utcOffsetHours) && SameLocalDay(next, now, utcOffsetHours) {
		next = next.AddDate(0, 0, 1)
	}

	return next, nil
}

// LocalDate truncates the instant to the user's local calendar day. The
// returned value is midnight of that day in UTC and is used purely as a date.
func LocalDate(t time.Time, utcOffsetHours int) time.Time {
	local := t.UTC().Add(time.Duration(utcOffsetHours) * time.Hour)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// SameLocalDay reports whether both instants fall on the same calendar day
// in the user's timezone.
func SameLocalDay(a, b time.Time, utcOffsetHours int) bool {
	return LocalDate(a, utcOffsetHours).Equal(LocalDate(b, utcOffsetHours))
}
