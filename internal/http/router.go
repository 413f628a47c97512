package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether the backing storage is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig wires handlers into the router. Nil handlers leave their
// routes unregistered.
type RouterConfig struct {
	Rooms     *RoomHandler
	Bookings  *BookingHandler
	Schedules *ScheduleHandler
	Calendars *CalendarHandler
	Verifier  ActorVerifier
	Health    HealthCheck
	Logger    *zap.Logger
}

// NewRouter builds the gin engine serving the API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	engine := gin.New()
	engine.Use(RequestID(), RequestLogger(logger), Recovery(logger))
	engine.NoRoute(func(c *gin.Context) {
		responder.writeError(c, http.StatusNotFound, codeNotFound, nil, nil)
	})

	engine.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Health(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				responder.writeError(c, http.StatusServiceUnavailable, codeUnavailable, nil, nil)
				return
			}
		}
		responder.ok(c, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")
	if cfg.Verifier != nil {
		api.Use(Authenticate(cfg.Verifier, logger))
	}

	if h := cfg.Rooms; h != nil {
		api.GET("/campuses", h.ListCampuses)
		api.POST("/campuses", h.CreateCampus)
		api.GET("/campuses/:id", h.GetCampus)
		api.PUT("/campuses/:id", h.UpdateCampus)
		api.DELETE("/campuses/:id", h.DeleteCampus)

		api.GET("/rooms", h.ListRooms)
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:id", h.GetRoom)
		api.PUT("/rooms/:id", h.UpdateRoom)
		api.DELETE("/rooms/:id", h.DeleteRoom)
	}

	if h := cfg.Bookings; h != nil {
		api.GET("/rooms/:id/availability", h.Availability)

		api.GET("/bookings", h.List)
		api.POST("/bookings", h.Create)
		api.GET("/bookings/:id", h.Get)
		api.PUT("/bookings/:id", h.Update)
		api.DELETE("/bookings/:id", h.Delete)
		api.POST("/bookings/:id/decision", h.Decide)
		api.POST("/bookings/:id/cancel", h.Cancel)
	}

	if h := cfg.Schedules; h != nil {
		api.GET("/schedules", h.List)
		api.POST("/schedules", h.Create)
		api.GET("/schedules/:id", h.Get)
		api.PUT("/schedules/:id", h.Update)
		api.DELETE("/schedules/:id", h.Delete)
	}

	if h := cfg.Calendars; h != nil {
		api.GET("/rooms/:id/calendar", h.RoomCalendar)
		api.GET("/reports/bookings", RequireAdmin(logger), h.BookingReport)
	}

	return engine
}
