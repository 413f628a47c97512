package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

type roomService interface {
	CreateCampus(ctx context.Context, params application.CreateCampusParams) (application.Campus, error)
	UpdateCampus(ctx context.Context, params application.UpdateCampusParams) (application.Campus, error)
	DeleteCampus(ctx context.Context, actor application.Actor, campusID string) error
	GetCampus(ctx context.Context, campusID string) (application.Campus, error)
	ListCampuses(ctx context.Context) ([]application.Campus, error)
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, actor application.Actor, roomID string) error
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, campusID string) ([]application.Room, error)
}

// RoomHandler serves the campus and room catalog.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *zap.Logger
}

func NewRoomHandler(service roomService, logger *zap.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(c *gin.Context, operation string, fields ...zap.Field) *zap.Logger {
	return handlerLogger(c.Request.Context(), h.logger, "RoomHandler", operation, fields...)
}

func (h *RoomHandler) CreateCampus(c *gin.Context) {
	var req campusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "CreateCampus").Warn("failed to bind campus request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	campus, err := h.service.CreateCampus(c.Request.Context(), application.CreateCampusParams{
		Actor: actorOf(c),
		Input: req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.created(c, toCampusDTO(campus))
}

func (h *RoomHandler) UpdateCampus(c *gin.Context) {
	var req campusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "UpdateCampus", zap.String("campus_id", c.Param("id"))).Warn("failed to bind campus request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	campus, err := h.service.UpdateCampus(c.Request.Context(), application.UpdateCampusParams{
		Actor:    actorOf(c),
		CampusID: c.Param("id"),
		Input:    req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toCampusDTO(campus))
}

func (h *RoomHandler) DeleteCampus(c *gin.Context) {
	if err := h.service.DeleteCampus(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.noContent(c)
}

func (h *RoomHandler) GetCampus(c *gin.Context) {
	campus, err := h.service.GetCampus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toCampusDTO(campus))
}

func (h *RoomHandler) ListCampuses(c *gin.Context) {
	campuses, err := h.service.ListCampuses(c.Request.Context())
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	out := make([]campusDTO, 0, len(campuses))
	for _, campus := range campuses {
		out = append(out, toCampusDTO(campus))
	}
	h.responder.ok(c, out)
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "CreateRoom").Warn("failed to bind room request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), application.CreateRoomParams{
		Actor: actorOf(c),
		Input: req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.log(c, "CreateRoom", zap.String("room_id", room.ID)).Info("room created")
	h.responder.created(c, toRoomDTO(room))
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(c, "UpdateRoom", zap.String("room_id", c.Param("id"))).Warn("failed to bind room request", zap.Error(err))
		h.responder.bindError(c, err)
		return
	}

	room, err := h.service.UpdateRoom(c.Request.Context(), application.UpdateRoomParams{
		Actor:  actorOf(c),
		RoomID: c.Param("id"),
		Input:  req.toInput(),
	})
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toRoomDTO(room))
}

func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(c.Request.Context(), actorOf(c), c.Param("id")); err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.noContent(c)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	h.responder.ok(c, toRoomDTO(room))
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context(), strings.TrimSpace(c.Query("campus_id")))
	if err != nil {
		h.responder.serviceError(c, err)
		return
	}
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	h.responder.ok(c, out)
}

type campusRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Address string `json:"address" binding:"max=500"`
}

func (r campusRequest) toInput() application.CampusInput {
	return application.CampusInput{
		Name:    strings.TrimSpace(r.Name),
		Address: strings.TrimSpace(r.Address),
	}
}

type campusDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toCampusDTO(campus application.Campus) campusDTO {
	return campusDTO{
		ID:        campus.ID,
		Name:      campus.Name,
		Address:   campus.Address,
		CreatedAt: formatTime(campus.CreatedAt),
		UpdatedAt: formatTime(campus.UpdatedAt),
	}
}

type roomRequest struct {
	CampusID       string `json:"campus_id" binding:"required"`
	Name           string `json:"name" binding:"required,max=200"`
	Capacity       int    `json:"capacity" binding:"gt=0"`
	Status         string `json:"status" binding:"omitempty,oneof=active maintenance closed"`
	ApprovalStatus string `json:"approval_status" binding:"omitempty,oneof=approved rejected pending"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		CampusID:       strings.TrimSpace(r.CampusID),
		Name:           strings.TrimSpace(r.Name),
		Capacity:       r.Capacity,
		Status:         r.Status,
		ApprovalStatus: r.ApprovalStatus,
	}
}

type roomDTO struct {
	ID             string `json:"id"`
	CampusID       string `json:"campus_id"`
	Name           string `json:"name"`
	Capacity       int    `json:"capacity"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	Bookable       bool   `json:"bookable"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:             room.ID,
		CampusID:       room.CampusID,
		Name:           room.Name,
		Capacity:       room.Capacity,
		Status:         string(room.Status),
		ApprovalStatus: string(room.ApprovalStatus),
		Bookable:       room.Bookable(),
		CreatedAt:      formatTime(room.CreatedAt),
		UpdatedAt:      formatTime(room.UpdatedAt),
	}
}
