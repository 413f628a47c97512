package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

type scheduleService interface {
	CreateSchedule(ctx context.Context, params application.CreateScheduleParams) (application.Schedule, error)
	UpdateSchedule(ctx context.Context, params application.UpdateScheduleParams) (application.Schedule, error)
	DeleteSchedule(ctx context.Context, actor application.Actor, scheduleID string) error
	GetSchedule(ctx context.Context, scheduleID string) (application.Schedule, error)
	ListSchedules(ctx context.Context, roomID string) ([]application.Schedule, error)
}

// ScheduleHandler serves recurring schedules.
type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *zap.Logger
}

func NewScheduleHandler(service scheduleService, logger *zap.Logger) *ScheduleHandler {
	base := defaultLogger(logger)
	return &ScheduleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ScheduleHandler) Create(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlerLogger(c.Request.Context(), h.logger, "ScheduleHandler", "Create").Warn("failed to bind schedule request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	schedule, err := h.service.CreateSchedule(c.Request.Context(), application.CreateScheduleParams{
		Actor: actorOf(c),
		Input: req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.created(c, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlerLogger(c.Request.Context(), h.logger, "ScheduleHandler", "Update",
			zap.String("schedule_id", c.Param("id")),
		).Warn("failed to bind schedule request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	schedule, err := h.service.UpdateSchedule(c.Request.Context(), application.UpdateScheduleParams{
		Actor:      actorOf(c),
		ScheduleID: c.Param("id"),
		Input:      req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteSchedule(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.noContent(c)
}

func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) List(c *gin.Context) {
	schedules, err := h.service.ListSchedules(c.Request.Context(), strings.TrimSpace(c.Query("room_id")))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	out := make([]scheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toScheduleDTO(schedule))
	}
	h.responder.ok(c, out)
}

type scheduleRequest struct {
	RoomID    string `json:"room_id" binding:"required"`
	DayOfWeek *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=course maintenance"`
	Title     string `json:"title" binding:"required,max=200"`
}

func (r scheduleRequest) toInput() application.ScheduleInput {
	day := 0
	if r.DayOfWeek != nil {
		day = *r.DayOfWeek
	}
	return application.ScheduleInput{
		RoomID:    strings.TrimSpace(r.RoomID),
		DayOfWeek: day,
		StartTime: strings.TrimSpace(r.StartTime),
		EndTime:   strings.TrimSpace(r.EndTime),
		StartDate: strings.TrimSpace(r.StartDate),
		EndDate:   strings.TrimSpace(r.EndDate),
		Type:      r.Type,
		Title:     strings.TrimSpace(r.Title),
	}
}

type scheduleDTO struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toScheduleDTO(schedule application.Schedule) scheduleDTO {
	return scheduleDTO{
		ID:        schedule.ID,
		RoomID:    schedule.RoomID,
		DayOfWeek: int(schedule.DayOfWeek),
		StartTime: schedule.StartTime.String(),
		EndTime:   schedule.EndTime.String(),
		StartDate: schedule.StartDate.String(),
		EndDate:   schedule.EndDate.String(),
		Type:      string(schedule.Type),
		Title:     schedule.Title,
		CreatedAt: formatTime(schedule.CreatedAt),
		UpdatedAt: formatTime(schedule.UpdatedAt),
	}
}
