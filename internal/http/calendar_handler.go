package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/export"
)

const (
	icsContentType  = "text/calendar; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type calendarService interface {
	RoomCalendar(ctx context.Context, roomID string, from, to time.Time) (application.RoomCalendar, error)
}

type roomLister interface {
	ListRooms(ctx context.Context, campusID string) ([]application.Room, error)
}

type bookingLister interface {
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
}

// CalendarHandler renders room calendars and booking reports.
type CalendarHandler struct {
	calendars calendarService
	rooms     roomLister
	bookings  bookingLister
	location  *time.Location
	now       func() time.Time
	responder responder
	logger    *zap.Logger
}

// CalendarHandlerDeps groups the collaborators of CalendarHandler.
type CalendarHandlerDeps struct {
	Calendars calendarService
	Rooms     roomLister
	Bookings  bookingLister
	// Location renders report timestamps. Nil means UTC.
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

func NewCalendarHandler(deps CalendarHandlerDeps) *CalendarHandler {
	base := defaultLogger(deps.Logger)
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarHandler{
		calendars: deps.Calendars,
		rooms:     deps.Rooms,
		bookings:  deps.Bookings,
		location:  loc,
		now:       now,
		responder: newResponder(base),
		logger:    base,
	}
}

// RoomCalendar answers GET /rooms/:id/calendar as JSON, or as iCalendar when
// format=ics.
func (h *CalendarHandler) RoomCalendar(c *gin.Context) {
	errs := queryErrors{}
	from := requiredTimeParam(c, "from", errs)
	to := requiredTimeParam(c, "to", errs)
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	if format != "json" && format != "ics" {
		errs["format"] = "must be one of: json ics"
	}
	if !errs.empty() {
		h.responder.writeError(c, http.StatusBadRequest, codeValidation, errInvalidQueryValue, errs)
		return
	}

	calendar, err := h.calendars.RoomCalendar(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}

	if format == "ics" {
		var buf bytes.Buffer
		if err := export.WriteICS(&buf, calendar, h.now()); err != nil {
			handlerLogger(c.Request.Context(), h.logger, "CalendarHandler", "RoomCalendar").Error("failed to render ics", zap.Error(err))
			h.responder.serviceError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="room-%s.ics"`, calendar.Room.ID))
		c.Data(http.StatusOK, icsContentType, buf.Bytes())
		return
	}

	h.responder.ok(c, toCalendarDTO(calendar))
}

// BookingReport answers GET /reports/bookings with an xlsx workbook.
func (h *CalendarHandler) BookingReport(c *gin.Context) {
	errs := queryErrors{}
	from := timeParam(c, "from", errs)
	to := timeParam(c, "to", errs)
	if !errs.empty() {
		h.responder.writeError(c, http.StatusBadRequest, codeValidation, errInvalidQueryValue, errs)
		return
	}

	var statuses []application.BookingStatus
	for _, raw := range csvParam(c, "status") {
		statuses = append(statuses, application.BookingStatus(raw))
	}

	logger := handlerLogger(c.Request.Context(), h.logger, "CalendarHandler", "BookingReport")

	bookings, err := h.bookings.ListBookings(c.Request.Context(), application.ListBookingsParams{
		Actor:    actorOf(c),
		RoomID:   strings.TrimSpace(c.Query("room_id")),
		Statuses: statuses,
		From:     from,
		To:       to,
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}

	rooms, err := h.rooms.ListRooms(c.Request.Context(), "")
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	names := make(map[string]string, len(rooms))
	for _, room := range rooms {
		names[room.ID] = room.Name
	}

	var buf bytes.Buffer
	if err := export.WriteBookingReport(&buf, export.BookingReport{
		Bookings:  bookings,
		RoomNames: names,
		Location:  h.location,
	}); err != nil {
		logger.Error("failed to render booking report", zap.Error(err))
		h.responder.serviceError(c, err)
		return
	}

	logger.Info("booking report generated", zap.Int("result_count", len(bookings)))
	filename := fmt.Sprintf("bookings-%s.xlsx", h.now().In(h.location).Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

type calendarDTO struct {
	Room    roomDTO            `json:"room"`
	From    string             `json:"from"`
	To      string             `json:"to"`
	Entries []calendarEntryDTO `json:"entries"`
}

type calendarEntryDTO struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
}

func toCalendarDTO(calendar application.RoomCalendar) calendarDTO {
	entries := make([]calendarEntryDTO, 0, len(calendar.Entries))
	for _, entry := range calendar.Entries {
		entries = append(entries, calendarEntryDTO{
			Kind:   string(entry.Kind),
			ID:     entry.ID,
			Title:  entry.Title,
			Start:  formatTime(entry.Start),
			End:    formatTime(entry.End),
			Status: string(entry.Status),
			Type:   string(entry.Type),
		})
	}
	return calendarDTO{
		Room:    toRoomDTO(calendar.Room),
		From:    formatTime(calendar.From),
		To:      formatTime(calendar.To),
		Entries: entries,
	}
}
