package scheduler

import (
	"sort"
	"time"

	"github.com/example/campus-roombook/internal/recurrence"
)

// Interval is an absolute half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has a positive length.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.Start.Before(i.End)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether a intersects b once b is widened by buffer on both
// ends. The buffer is the minimum gap required between the two intervals, so a
// gap exactly equal to the buffer does not overlap. With a zero buffer two
// intervals that merely touch do not overlap.
func Overlaps(a, b Interval, buffer time.Duration) bool {
	if buffer < 0 {
		buffer = 0
	}
	lo := maxTime(a.Start, b.Start.Add(-buffer))
	hi := minTime(a.End, b.End.Add(buffer))
	return lo.Before(hi)
}

// TimeOfDayOverlaps applies the same rule as Overlaps to two time-of-day spans.
func TimeOfDayOverlaps(aStart, aEnd, bStart, bEnd recurrence.TimeOfDay, buffer time.Duration) bool {
	if buffer < 0 {
		buffer = 0
	}
	b := recurrence.TimeOfDay(buffer)
	lo := aStart
	if bStart-b > lo {
		lo = bStart - b
	}
	hi := aEnd
	if bEnd+b < hi {
		hi = bEnd + b
	}
	return lo < hi
}

// Booking is an existing one-shot reservation occupying a room.
type Booking struct {
	ID       string
	Interval Interval
}

// Schedule is an existing recurring commitment on a room.
type Schedule struct {
	ID      string
	Title   string
	Pattern recurrence.Pattern
}

// ConflictType describes what a candidate collided with.
type ConflictType string

const (
	// ConflictTypeBooking indicates the candidate overlaps a booking.
	ConflictTypeBooking ConflictType = "booking"
	// ConflictTypeSchedule indicates the candidate overlaps a recurring schedule.
	ConflictTypeSchedule ConflictType = "schedule"
)

// Conflict details an overlapping entity that callers can present to users.
// Interval is populated for booking conflicts; Date, Weekday, Start, and End
// describe the first clashing day of a schedule conflict.
type Conflict struct {
	Type     ConflictType
	WithID   string
	Title    string
	Interval Interval
	Date     recurrence.Date
	Weekday  time.Weekday
	Start    recurrence.TimeOfDay
	End      recurrence.TimeOfDay
}

// Candidate is a proposed booking interval.
type Candidate struct {
	Interval Interval
	// Buffer is the minimum gap enforced against other bookings. Schedules are
	// checked without a buffer.
	Buffer time.Duration
	// Location is the campus time zone used to map the interval onto weekdays.
	Location *time.Location
}

// DetectConflicts checks a candidate booking against the room's active bookings
// and schedules. Booking conflicts are returned first, ordered by start time,
// followed by at most one conflict per schedule.
func DetectConflicts(bookings []Booking, schedules []Schedule, candidate Candidate) []Conflict {
	if !candidate.Interval.Valid() {
		return nil
	}

	var conflicts []Conflict
	for _, existing := range bookings {
		if Overlaps(candidate.Interval, existing.Interval, candidate.Buffer) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictTypeBooking,
				WithID:   existing.ID,
				Interval: existing.Interval,
			})
		}
	}
	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Interval.Start.Before(conflicts[j].Interval.Start)
	})

	if len(schedules) == 0 {
		return conflicts
	}

	spans := recurrence.ExpandAcrossDays(candidate.Interval.Start, candidate.Interval.End, candidate.Location)
	seen := make(map[string]struct{}, len(schedules))
	for _, span := range spans {
		for _, sched := range schedules {
			if _, ok := seen[sched.ID]; ok {
				continue
			}
			p := sched.Pattern
			if !p.ActiveOn(span.Date) {
				continue
			}
			if !TimeOfDayOverlaps(span.Start, span.End, p.Start, p.End, 0) {
				continue
			}
			seen[sched.ID] = struct{}{}
			conflicts = append(conflicts, Conflict{
				Type:    ConflictTypeSchedule,
				WithID:  sched.ID,
				Title:   sched.Title,
				Date:    span.Date,
				Weekday: p.Weekday,
				Start:   p.Start,
				End:     p.End,
			})
		}
	}
	return conflicts
}

// DetectScheduleConflicts checks a candidate schedule against the other
// schedules of the same room. Two schedules clash when they share a weekday,
// their validity ranges intersect, and their times overlap once widened by
// buffer. An existing schedule with the candidate's ID is ignored.
func DetectScheduleConflicts(existing []Schedule, candidate Schedule, buffer time.Duration) []Conflict {
	var conflicts []Conflict
	c := candidate.Pattern
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		p := other.Pattern
		if p.Weekday != c.Weekday {
			continue
		}
		if !recurrence.DateRangesOverlap(c.ValidFrom, c.ValidTo, p.ValidFrom, p.ValidTo) {
			continue
		}
		if !TimeOfDayOverlaps(c.Start, c.End, p.Start, p.End, buffer) {
			continue
		}
		first, ok := firstSharedDate(c, p)
		if !ok {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:    ConflictTypeSchedule,
			WithID:  other.ID,
			Title:   other.Title,
			Date:    first,
			Weekday: p.Weekday,
			Start:   p.Start,
			End:     p.End,
		})
	}
	return conflicts
}

// firstSharedDate returns the earliest date on which both patterns fire.
// Patterns with the same weekday whose common range holds no such weekday
// never meet.
func firstSharedDate(a, b recurrence.Pattern) (recurrence.Date, bool) {
	from := a.ValidFrom
	if b.ValidFrom.After(from) {
		from = b.ValidFrom
	}
	to := a.ValidTo
	if b.ValidTo.Before(to) {
		to = b.ValidTo
	}
	offset := (int(a.Weekday) - int(from.Weekday()) + 7) % 7
	first := from.AddDays(offset)
	if first.After(to) {
		return recurrence.Date{}, false
	}
	return first, true
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
