package recurrence

import (
	"testing"
	"time"
)

func BenchmarkEngine_Occurrences(b *testing.B) {
	engine := NewEngine(time.UTC)
	pattern := Pattern{
		Weekday:   time.Monday,
		Start:     NewTimeOfDay(7, 30, 0),
		End:       NewTimeOfDay(9, 30, 0),
		ValidFrom: NewDate(2025, time.January, 1),
		ValidTo:   NewDate(2026, time.December, 31),
	}
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(2, 0, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Occurrences(pattern, from, to); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkExpandAcrossDays(b *testing.B) {
	start := time.Date(2025, time.June, 2, 22, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ExpandAcrossDays(start, end, time.UTC)
	}
}
