package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
)

// Envelope codes. Zero means success; the rest are HTTP status * 100 plus a
// sub-code.
const (
	codeOK            = 0
	codeBadRequest    = 40000
	codeValidation    = 40001
	codeUnauthorized  = 40100
	codeForbidden     = 40300
	codeNotFound      = 40400
	codeConflict      = 40900
	codeAlreadyExists = 40901
	codeInternal      = 50000
	codeUnavailable   = 50300
)

var (
	errBadRequestBody    = errors.New("invalid request body")
	errMissingToken      = errors.New("missing bearer token")
	errInvalidToken      = errors.New("invalid or expired token")
	errAdminRequired     = errors.New("administrator role required")
	errInternal          = errors.New("internal server error")
	errUnauthenticated   = errors.New("authentication required")
	errInvalidQueryValue = errors.New("invalid query parameter")
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Code: codeOK, Message: "success", Data: data})
}

func (r responder) created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, envelope{Code: codeOK, Message: "success", Data: data})
}

func (r responder) noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (r responder) writeError(c *gin.Context, status, code int, err error, details any) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	c.AbortWithStatusJSON(status, envelope{Code: code, Message: message, Details: details})
}

// bindError answers a request whose body or query failed to bind.
func (r responder) bindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = bindingMessage(fe)
		}
		r.writeError(c, http.StatusBadRequest, codeValidation, errors.New("validation failed"), details)
		return
	}
	r.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody, nil)
}

// serviceError translates an application error into a response.
func (r responder) serviceError(c *gin.Context, err error) {
	if err == nil {
		r.writeError(c, http.StatusInternalServerError, codeInternal, errInternal, nil)
		return
	}

	switch application.ErrorKind(err) {
	case "validation":
		var vErr *application.ValidationError
		errors.As(err, &vErr)
		r.writeError(c, http.StatusBadRequest, codeValidation, errors.New("validation failed"), vErr.FieldErrors)
	case "bad_request":
		r.writeError(c, http.StatusBadRequest, codeBadRequest, errors.New(trimSentinel(err, application.ErrBadRequest)), nil)
	case "forbidden":
		r.writeError(c, http.StatusForbidden, codeForbidden, errors.New(trimSentinel(err, application.ErrForbidden)), nil)
	case "not_found":
		r.writeError(c, http.StatusNotFound, codeNotFound, errors.New("resource not found"), nil)
	case "already_exists":
		r.writeError(c, http.StatusConflict, codeAlreadyExists, errors.New(trimSentinel(err, application.ErrAlreadyExists)), nil)
	case "conflict":
		var cErr *application.ConflictError
		if errors.As(err, &cErr) {
			r.writeError(c, http.StatusConflict, codeConflict, cErr, toConflictDTO(cErr))
			return
		}
		r.writeError(c, http.StatusConflict, codeConflict, err, nil)
	default:
		r.logger.Error("unexpected service error", zap.Error(err), zap.String("path", c.FullPath()))
		r.writeError(c, http.StatusInternalServerError, codeInternal, errInternal, nil)
	}
}

// trimSentinel drops the sentinel prefix of a wrapped error so that the
// response carries the detail only.
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return strings.TrimPrefix(msg, "application: ")
}

type conflictDTO struct {
	Bookings  []bookingConflictDTO  `json:"bookings,omitempty"`
	Schedules []scheduleConflictDTO `json:"schedules,omitempty"`
}

type bookingConflictDTO struct {
	BookingID string `json:"booking_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type scheduleConflictDTO struct {
	ScheduleID string `json:"schedule_id"`
	Title      string `json:"title"`
	DayOfWeek  int    `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Date       string `json:"date,omitempty"`
}

func toConflictDTO(err *application.ConflictError) conflictDTO {
	return toConflictLists(err.Bookings, err.Schedules)
}

func toConflictLists(bookings []application.BookingConflict, schedules []application.ScheduleConflict) conflictDTO {
	dto := conflictDTO{}
	for _, b := range bookings {
		dto.Bookings = append(dto.Bookings, bookingConflictDTO{
			BookingID: b.BookingID,
			Start:     formatTime(b.Start),
			End:       formatTime(b.End),
		})
	}
	for _, s := range schedules {
		item := scheduleConflictDTO{
			ScheduleID: s.ScheduleID,
			Title:      s.Title,
			DayOfWeek:  int(s.Weekday),
			StartTime:  s.Start.String(),
			EndTime:    s.End.String(),
		}
		if !s.Date.IsZero() {
			item.Date = s.Date.String()
		}
		dto.Schedules = append(dto.Schedules, item)
	}
	return dto
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

var registerJSONNames sync.Once

// useJSONFieldNames makes binding errors report JSON field names.
func useJSONFieldNames() {
	registerJSONNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}
