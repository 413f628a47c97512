// Package export renders room calendars and booking reports into the file
// formats consumed outside the API: iCalendar feeds and Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/campus-roombook/internal/application"
)

const productID = "-//campus-roombook//room calendar//EN"

// WriteICS serialises a room calendar as an iCalendar feed. Every entry
// becomes one VEVENT; schedule occurrences get a UID per date so that
// subscribers can track them individually.
func WriteICS(w io.Writer, calendar application.RoomCalendar, stamp time.Time) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(calendar.Room.Name)

	for _, entry := range calendar.Entries {
		event := cal.AddEvent(entryUID(entry))
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(entry.Start.UTC())
		event.SetEndAt(entry.End.UTC())
		event.SetSummary(entrySummary(entry))
		event.SetLocation(calendar.Room.Name)
		event.SetStatus(entryStatus(entry))
		if entry.Kind == application.CalendarSchedule {
			event.SetDescription(string(entry.Type))
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("export: write ics: %w", err)
	}
	return nil
}

func entryUID(entry application.CalendarEntry) string {
	if entry.Kind == application.CalendarSchedule {
		return fmt.Sprintf("schedule-%s-%s@roombook", entry.ID, entry.Start.UTC().Format("20060102"))
	}
	return fmt.Sprintf("booking-%s@roombook", entry.ID)
}

func entrySummary(entry application.CalendarEntry) string {
	if entry.Title != "" {
		return entry.Title
	}
	if entry.Kind == application.CalendarSchedule {
		return string(entry.Type)
	}
	return "Booking"
}

func entryStatus(entry application.CalendarEntry) ics.ObjectStatus {
	if entry.Kind == application.CalendarBooking && entry.Status == application.BookingPending {
		return ics.ObjectStatusTentative
	}
	return ics.ObjectStatusConfirmed
}
