package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2025, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	nowFn := clock.NowFunc()
	if got := nowFn(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockNext(t *testing.T) {
	// ReferenceTime is Sunday 08:00.
	clock := NewClock(time.Time{})

	cases := []struct {
		name string
		day  time.Weekday
		hour int
		want time.Time
	}{
		{"same day later", time.Sunday, 10, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		{"same day earlier rolls a week", time.Sunday, 7, time.Date(2025, 6, 8, 7, 0, 0, 0, time.UTC)},
		{"following monday", time.Monday, 9, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := clock.Next(tc.day, tc.hour, 0); !got.Equal(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
