package recurrence

import (
	"errors"
	"time"
)

// Pattern describes a weekly commitment valid over an inclusive date range.
type Pattern struct {
	Weekday   time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	ValidFrom Date
	ValidTo   Date
}

// DaySpan is the portion of an absolute interval that falls on one calendar day.
type DaySpan struct {
	Date    Date
	Weekday time.Weekday
	Start   TimeOfDay
	End     TimeOfDay
}

// Occurrence represents a concrete instance of a pattern.
type Occurrence struct {
	Date  Date
	Start time.Time
	End   time.Time
}

var (
	// ErrInvalidWeekday indicates the weekday lies outside Sunday..Saturday.
	ErrInvalidWeekday = errors.New("recurrence: weekday must be between 0 (Sunday) and 6 (Saturday)")
	// ErrInvalidTimeRange indicates the start time is not before the end time.
	ErrInvalidTimeRange = errors.New("recurrence: start time must be before end time")
	// ErrInvalidDateRange indicates the validity range is inverted or incomplete.
	ErrInvalidDateRange = errors.New("recurrence: start date must not be after end date")
	// ErrInvalidWindow indicates the generation window is empty.
	ErrInvalidWindow = errors.New("recurrence: generation window must have a positive length")
)

// Validate checks the pattern invariants.
func (p Pattern) Validate() error {
	if p.Weekday < time.Sunday || p.Weekday > time.Saturday {
		return ErrInvalidWeekday
	}
	if !p.Start.Valid() || !p.End.Valid() || p.Start >= p.End {
		return ErrInvalidTimeRange
	}
	if p.ValidFrom.IsZero() || p.ValidTo.IsZero() || p.ValidFrom.After(p.ValidTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// ActiveOn reports whether the pattern fires on the given date.
func (p Pattern) ActiveOn(d Date) bool {
	if d.Before(p.ValidFrom) || d.After(p.ValidTo) {
		return false
	}
	return d.Weekday() == p.Weekday
}

// DateRangesOverlap reports whether two inclusive date ranges share at least one day.
func DateRangesOverlap(startA, endA, startB, endB Date) bool {
	return !startA.After(endB) && !startB.After(endA)
}

// ExpandAcrossDays splits [start, end) into one span per covered calendar day in loc.
// The first and last days are clipped to the actual times; fully covered days span
// [00:00, 24:00). An interval ending exactly at midnight does not touch the next day.
func ExpandAcrossDays(start, end time.Time, loc *time.Location) []DaySpan {
	if !end.After(start) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	start = start.In(loc)
	end = end.In(loc)

	first := DateOf(start)
	endDay := DateOf(end)
	endOffset := TimeOfDayOf(end)
	last := endDay
	if endOffset == Midnight {
		last = endDay.AddDays(-1)
	}

	spans := make([]DaySpan, 0, 2)
	for day := first; !day.After(last); day = day.AddDays(1) {
		span := DaySpan{Date: day, Weekday: day.Weekday(), Start: Midnight, End: EndOfDay}
		if day == first {
			span.Start = TimeOfDayOf(start)
		}
		if day == endDay {
			span.End = endOffset
		}
		if span.Start >= span.End {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

// Engine expands patterns into concrete occurrences in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Occurrences returns every occurrence of p whose interval intersects [from, to),
// ordered chronologically.
func (e *Engine) Occurrences(p Pattern, from, to time.Time) ([]Occurrence, error) {
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	loc := e.Location()

	lower := DateOf(from.In(loc)).AddDays(-1)
	if lower.Before(p.ValidFrom) {
		lower = p.ValidFrom
	}
	upper := DateOf(to.In(loc))
	if upper.After(p.ValidTo) {
		upper = p.ValidTo
	}

	// Jump to the first matching weekday.
	offset := (int(p.Weekday) - int(lower.Weekday()) + 7) % 7
	occurrences := make([]Occurrence, 0)
	for day := lower.AddDays(offset); !day.After(upper); day = day.AddDays(7) {
		start := day.At(p.Start, loc)
		end := day.At(p.End, loc)
		if !start.Before(to) || !end.After(from) {
			continue
		}
		occurrences = append(occurrences, Occurrence{Date: day, Start: start, End: end})
	}
	return occurrences, nil
}
