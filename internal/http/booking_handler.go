package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

type bookingService interface {
	RequestBooking(ctx context.Context, params application.RequestBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	DecideBooking(ctx context.Context, params application.DecideBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, actor application.Actor, bookingID string) (bool, error)
	GetBooking(ctx context.Context, actor application.Actor, bookingID string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	DeleteBooking(ctx context.Context, actor application.Actor, bookingID string) error
}

type availabilityService interface {
	IsRoomAvailable(ctx context.Context, query application.AvailabilityQuery) (application.Availability, error)
}

// BookingHandler serves bookings and room availability.
type BookingHandler struct {
	bookings     bookingService
	availability availabilityService
	responder    responder
	logger       *zap.Logger
}

func NewBookingHandler(bookings bookingService, availability availabilityService, logger *zap.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{bookings: bookings, availability: availability, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(c *gin.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(c.Request.Context(), h.logger, "BookingHandler", operation, fields...)
}

// Availability answers GET /rooms/:id/availability.
func (h *BookingHandler) Availability(c *gin.Context) {
	errs := queryErrors{}
	start := requiredTimeParam(c, "start", errs)
	end := requiredTimeParam(c, "end", errs)
	buffer := minutesParam(c, "buffer_minutes", errs)
	if !errs.empty() {
		h.responder.writeError(c, http.StatusBadRequest, codeValidation, errInvalidQueryValue, errs)
		return
	}

	result, err := h.availability.IsRoomAvailable(c.Request.Context(), application.AvailabilityQuery{
		RoomID:           c.Param("id"),
		Start:            start,
		End:              end,
		ExcludeBookingID: strings.TrimSpace(c.Query("exclude_booking_id")),
		Buffer:           buffer,
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}

	h.responder.ok(c, availabilityDTO{
		RoomID:    c.Param("id"),
		Start:     formatTime(start),
		End:       formatTime(end),
		Available: result.Available,
		Conflicts: toConflictLists(result.Bookings, result.Schedules),
	})
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "Create").Warn("failed to bind booking request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	booking, err := h.bookings.RequestBooking(c.Request.Context(), application.RequestBookingParams{
		Actor:   actorOf(c),
		RoomID:  strings.TrimSpace(req.RoomID),
		Start:   req.Start,
		End:     req.End,
		Purpose: strings.TrimSpace(req.Purpose),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.created(c, toBookingDTO(booking))
}

func (h *BookingHandler) Update(c *gin.Context) {
	var req bookingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "Update", zap.String("booking_id", c.Param("id"))).Warn("failed to bind booking update", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	booking, err := h.bookings.UpdateBooking(c.Request.Context(), application.UpdateBookingParams{
		Actor:     actorOf(c),
		BookingID: c.Param("id"),
		Start:     req.Start,
		End:       req.End,
		Purpose:   strings.TrimSpace(req.Purpose),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toBookingDTO(booking))
}

// Decide answers POST /bookings/:id/decision.
func (h *BookingHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "Decide", zap.String("booking_id", c.Param("id"))).Warn("failed to bind decision", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}
	note := strings.TrimSpace(req.Note)
	if req.Decision == string(application.DecisionReject) && utf8.RuneCountInString(note) < application.MinRejectNoteLength {
		h.responder.writeError(c, http.StatusBadRequest, codeValidation, errors.New("validation failed"), map[string]string{
			"note": "must be at least 10 characters when rejecting",
		})
		return
	}

	booking, err := h.bookings.DecideBooking(c.Request.Context(), application.DecideBookingParams{
		Actor:     actorOf(c),
		BookingID: c.Param("id"),
		Decision:  application.Decision(req.Decision),
		Note:      note,
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toBookingDTO(booking))
}

// Cancel answers POST /bookings/:id/cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	cancelled, err := h.bookings.CancelBooking(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, gin.H{"booking_id": c.Param("id"), "cancelled": cancelled})
}

func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.bookings.DeleteBooking(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.noContent(c)
}

func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), actorOf(c), c.Param("id"))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toBookingDTO(booking))
}

func (h *BookingHandler) List(c *gin.Context) {
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

	bookings, err := h.bookings.ListBookings(c.Request.Context(), application.ListBookingsParams{
		Actor:       actorOf(c),
		RoomID:      strings.TrimSpace(c.Query("room_id")),
		RequesterID: strings.TrimSpace(c.Query("requester_id")),
		Statuses:    statuses,
		From:        from,
		To:          to,
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	h.responder.ok(c, out)
}

type bookingRequest struct {
	RoomID  string    `json:"room_id" binding:"required"`
	Start   time.Time `json:"start" binding:"required"`
	End     time.Time `json:"end" binding:"required"`
	Purpose string    `json:"purpose" binding:"required,max=500"`
}

type bookingUpdateRequest struct {
	Start   time.Time `json:"start" binding:"required"`
	End     time.Time `json:"end" binding:"required"`
	Purpose string    `json:"purpose" binding:"required,max=500"`
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Note     string `json:"note" binding:"max=1000"`
}

type bookingDTO struct {
	ID          string  `json:"id"`
	RoomID      string  `json:"room_id"`
	RequesterID string  `json:"requester_id"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	Status      string  `json:"status"`
	Purpose     string  `json:"purpose"`
	AdminNote   *string `json:"admin_note,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:          booking.ID,
		RoomID:      booking.RoomID,
		RequesterID: booking.RequesterID,
		Start:       formatTime(booking.Start),
		End:         formatTime(booking.End),
		Status:      string(booking.Status),
		Purpose:     booking.Purpose,
		AdminNote:   booking.AdminNote,
		CreatedAt:   formatTime(booking.CreatedAt),
		UpdatedAt:   formatTime(booking.UpdatedAt),
	}
}

type availabilityDTO struct {
	RoomID    string      `json:"room_id"`
	Start     string      `json:"start"`
	End       string      `json:"end"`
	Available bool        `json:"available"`
	Conflicts conflictDTO `json:"conflicts"`
}
