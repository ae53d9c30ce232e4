package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: TimeOfDay{Hour: 9}},
		{raw: "00:00", want: TimeOfDay{}},
		{raw: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{raw: " 07:30 ", want: TimeOfDay{Hour: 7, Minute: 30}},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12", wantErr: true},
		{raw: "ab:cd", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestValidateUTCOffset(t *testing.T) {
	for _, offset := range []int{-12, 0, 3, 14} {
		if err := ValidateUTCOffset(offset); err != nil {
			t.Errorf("ValidateUTCOffset(%d): %v", offset, err)
		}
	}
	for _, offset := range []int{-13, 15, 100} {
		err := ValidateUTCOffset(offset)
		if !errors.Is(err, ErrOffsetOutOfRange) {
			t.Errorf("ValidateUTCOffset(%d) = %v, want ErrOffsetOutOfRange", offset, err)
		}
	}
}

func TestNextLocalOccurrence(t *testing.T) {
	cases := []struct {
		name      string
		timeOfDay TimeOfDay
		offset    int
		now       time.Time
		want      time.Time
	}{
		{
			name:      "later today",
			timeOfDay: TimeOfDay{Hour: 9},
			offset:    3,
			now:       time.Date(2026, time.March, 10, 5, 30, 0, 0, time.UTC),
			want:      time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC),
		},
		{
			name:      "already passed rolls to tomorrow",
			timeOfDay: TimeOfDay{Hour: 9},
			offset:    3,
			now:       time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC),
			want:      time.Date(2026, time.March, 11, 6, 0, 0, 0, time.UTC),
		},
		{
			name:      "exact boundary rolls to tomorrow",
			timeOfDay: TimeOfDay{Hour: 9},
			offset:    3,
			now:       time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC),
			want:      time.Date(2026, time.March, 11, 6, 0, 0, 0, time.UTC),
		},
		{
			name:      "negative offset",
			timeOfDay: TimeOfDay{Hour: 20},
			offset:    -5,
			now:       time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC),
			want:      time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC),
		},
		{
			name:      "crosses local date line east",
			timeOfDay: TimeOfDay{Hour: 1},
			offset:    14,
			now:       time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
			want:      time.Date(2026, time.March, 11, 11, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextLocalOccurrence(tc.timeOfDay, tc.offset, tc.now)
			if err != nil {
				t.Fatalf("NextLocalOccurrence: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			if !got.After(tc.now) {
				t.Fatalf("result %v is not strictly after now %v", got, tc.now)
			}
		})
	}
}

func TestNextLocalOccurrenceRejectsBadOffset(t *testing.T) {
	_, err := NextLocalOccurrence(TimeOfDay{Hour: 9}, 15, time.Now())
	if !errors.Is(err, ErrOffsetOutOfRange) {
		t.Fatalf("err = %v, want ErrOffsetOutOfRange", err)
	}
}

func TestNextAnchoredOccurrenceSkipsTodayForSameDayAnchor(t *testing.T) {
	now := time.Date(2026, time.March, 10, 5, 30, 0, 0, time.UTC)
	anchor := now.Add(-time.Hour)

	got, err := NextAnchoredOccurrence(TimeOfDay{Hour: 20}, 3, anchor, now)
	if err != nil {
		t.Fatalf("NextAnchoredOccurrence: %v", err)
	}

	// 20:00 local today would be 17:00 UTC; the same-day anchor pushes it to tomorrow.
	want := time.Date(2026, time.March, 11, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextAnchoredOccurrenceKeepsTodayForOlderAnchor(t *testing.T) {
	now := time.Date(2026, time.March, 10, 5, 30, 0, 0, time.UTC)
	anchor := now.AddDate(0, 0, -3)

	got, err := NextAnchoredOccurrence(TimeOfDay{Hour: 20}, 3, anchor, now)
	if err != nil {
		t.Fatalf("NextAnchoredOccurrence: %v", err)
	}

	want := time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextAnchoredOccurrenceLateEveningCreation(t *testing.T) {
	// A challenge created at 23:50 local must not be checked minutes later.
	now := time.Date(2026, time.March, 10, 20, 50, 0, 0, time.UTC) // 23:50 at UTC+3
	anchor := now

	got, err := NextAnchoredOccurrence(TimeOfDay{Hour: 23, Minute: 55}, 3, anchor, now)
	if err != nil {
		t.Fatalf("NextAnchoredOccurrence: %v", err)
	}

	want := time.Date(2026, time.March, 11, 20, 55, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLocalDateAndSameLocalDay(t *testing.T) {
	// 01:00 UTC on March 10 is still March 9 at UTC-5.
	instant := time.Date(2026, time.March, 10, 1, 0, 0, 0, time.UTC)

	got := LocalDate(instant, -5)
	want := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("LocalDate = %v, want %v", got, want)
	}

	other := time.Date(2026, time.March, 9, 23, 0, 0, 0, time.UTC)
	if !SameLocalDay(instant, other, -5) {
		t.Fatal("expected both instants on the same local day at UTC-5")
	}
	if SameLocalDay(instant, other, 0) {
		t.Fatal("expected different UTC days")
	}
}
