package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/testfixtures"
)

const testSecret = "router-test-secret-0123456789"

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	stack  *testfixtures.ServiceStack
	health error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stack := testfixtures.NewServiceStack(t)
	logger := zaptest.NewLogger(t)
	srv := &testServer{t: t, stack: stack}

	srv.engine = NewRouter(RouterConfig{
		Rooms:     NewRoomHandler(stack.Rooms, logger),
		Bookings:  NewBookingHandler(stack.Bookings, stack.Availability, logger),
		Schedules: NewScheduleHandler(stack.Schedules, logger),
		Calendars: NewCalendarHandler(CalendarHandlerDeps{
			Calendars: stack.Calendars,
			Rooms:     stack.Rooms,
			Bookings:  stack.Bookings,
			Now:       stack.Clock.NowFunc(),
			Logger:    logger,
		}),
		Verifier: NewTokenVerifier(testSecret),
		Health:   func(context.Context) error { return srv.health },
		Logger:   logger,
	})
	return srv
}

func signToken(t *testing.T, userID string, role application.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

type decodedEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var env decodedEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	if rec := srv.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodGet, "/health", "", nil); rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id header")
	}

	srv.health = errors.New("database unreachable")
	rec := srv.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Code != codeUnavailable {
		t.Fatalf("expected code %d, got %d", codeUnavailable, env.Code)
	}
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
				Role:             "student",
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
			})
			signed, _ := token.SignedString([]byte("another-secret-entirely"))
			return signed
		}()},
		{"unknown role", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
				Role:             "janitor",
				RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
			})
			signed, _ := token.SignedString([]byte(testSecret))
			return signed
		}()},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(http.MethodGet, "/api/v1/rooms", tc.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUnknownRouteIsEnveloped(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(http.MethodGet, "/nowhere", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Code != codeNotFound {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestRoomManagementRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	admin := signToken(t, "admin-1", application.RoleAdmin)
	student := signToken(t, "student-1", application.RoleStudent)

	rec := srv.do(http.MethodPost, "/api/v1/campuses", student, map[string]any{"name": "North"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}

	rec = srv.do(http.MethodPost, "/api/v1/campuses", admin, map[string]any{"name": "North", "address": "1 Hill Road"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var campus campusDTO
	if err := json.Unmarshal(decode(t, rec).Data, &campus); err != nil {
		t.Fatalf("failed to decode campus: %v", err)
	}

	rec = srv.do(http.MethodPost, "/api/v1/campuses", admin, map[string]any{"name": "North"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate campus, got %d", rec.Code)
	}

	rec = srv.do(http.MethodPost, "/api/v1/rooms", admin, map[string]any{"campus_id": campus.ID, "name": "N101", "capacity": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero capacity, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Code != codeValidation || !strings.Contains(string(env.Details), "capacity") {
		t.Fatalf("expected capacity validation detail, got %+v", env)
	}

	rec = srv.do(http.MethodPost, "/api/v1/rooms", admin, map[string]any{"campus_id": campus.ID, "name": "N101", "capacity": 30})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var room roomDTO
	if err := json.Unmarshal(decode(t, rec).Data, &room); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	if !room.Bookable || room.Status != "active" || room.ApprovalStatus != "approved" {
		t.Fatalf("expected a bookable room by default, got %+v", room)
	}

	rec = srv.do(http.MethodGet, "/api/v1/rooms?campus_id="+campus.ID, student, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing rooms, got %d", rec.Code)
	}
	var rooms []roomDTO
	if err := json.Unmarshal(decode(t, rec).Data, &rooms); err != nil || len(rooms) != 1 {
		t.Fatalf("expected one room, got %v (%v)", rooms, err)
	}

	rec = srv.do(http.MethodDelete, "/api/v1/campuses/"+campus.ID, admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting a campus with rooms, got %d", rec.Code)
	}
}

func TestBookingLifecycle(t *testing.T) {
	srv := newTestServer(t)
	room := srv.stack.SeedRoom(t, testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-http")))
	admin := signToken(t, "admin-1", application.RoleAdmin)
	alice := signToken(t, "alice", application.RoleStudent)
	bob := signToken(t, "bob", application.RoleLecturer)

	start := srv.stack.Clock.Next(time.Tuesday, 9, 0)
	create := func(token string, from, to time.Time) *httptest.ResponseRecorder {
		return srv.do(http.MethodPost, "/api/v1/bookings", token, map[string]any{
			"room_id": room.ID,
			"start":   from.Format(time.RFC3339),
			"end":     to.Format(time.RFC3339),
			"purpose": "Seminar",
		})
	}

	rec := create(alice, start, start.Add(time.Hour))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var booking bookingDTO
	if err := json.Unmarshal(decode(t, rec).Data, &booking); err != nil {
		t.Fatalf("failed to decode booking: %v", err)
	}
	if booking.Status != "pending" || booking.RequesterID != "alice" {
		t.Fatalf("unexpected booking: %+v", booking)
	}

	rec = create(bob, start.Add(70*time.Minute), start.Add(2*time.Hour))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 inside the buffer, got %d: %s", rec.Code, rec.Body.String())
	}
	var conflicts conflictDTO
	if err := json.Unmarshal(decode(t, rec).Details, &conflicts); err != nil {
		t.Fatalf("failed to decode conflicts: %v", err)
	}
	if len(conflicts.Bookings) != 1 || conflicts.Bookings[0].BookingID != booking.ID {
		t.Fatalf("expected conflict with %s, got %+v", booking.ID, conflicts)
	}

	rec = create(bob, start.Add(2*time.Hour), start.Add(time.Hour))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed interval, got %d", rec.Code)
	}

	query := url.Values{}
	query.Set("start", start.Add(75*time.Minute).Format(time.RFC3339))
	query.Set("end", start.Add(2*time.Hour).Format(time.RFC3339))
	rec = srv.do(http.MethodGet, "/api/v1/rooms/"+room.ID+"/availability?"+query.Encode(), bob, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var availability availabilityDTO
	if err := json.Unmarshal(decode(t, rec).Data, &availability); err != nil {
		t.Fatalf("failed to decode availability: %v", err)
	}
	if !availability.Available {
		t.Fatalf("expected slot after the buffer to be available, got %+v", availability)
	}

	decisionPath := "/api/v1/bookings/" + booking.ID + "/decision"
	if rec = srv.do(http.MethodPost, decisionPath, alice, map[string]any{"decision": "approve"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student decision, got %d", rec.Code)
	}
	if rec = srv.do(http.MethodPost, decisionPath, admin, map[string]any{"decision": "reject", "note": "too short"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short rejection note, got %d", rec.Code)
	}
	if rec = srv.do(http.MethodPost, decisionPath, admin, map[string]any{"decision": "approve"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving, got %d: %s", rec.Code, rec.Body.String())
	}
	if sent := srv.stack.Notifier.Sent(); len(sent) != 1 || sent[0].Status != application.BookingApproved {
		t.Fatalf("expected one approval notification, got %+v", sent)
	}

	if rec = srv.do(http.MethodGet, "/api/v1/bookings/"+booking.ID, bob, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading another user's booking, got %d", rec.Code)
	}

	rec = srv.do(http.MethodGet, "/api/v1/bookings?status=approved", admin, nil)
	var listed []bookingDTO
	if err := json.Unmarshal(decode(t, rec).Data, &listed); err != nil || len(listed) != 1 {
		t.Fatalf("expected one approved booking, got %v (%v)", listed, err)
	}

	cancelPath := "/api/v1/bookings/" + booking.ID + "/cancel"
	rec = srv.do(http.MethodPost, cancelPath, alice, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cancelled":true`) {
		t.Fatalf("expected cancellation, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec = srv.do(http.MethodPost, cancelPath, alice, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on second cancellation, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec = create(bob, start.Add(70*time.Minute), start.Add(2*time.Hour)); rec.Code != http.StatusCreated {
		t.Fatalf("expected cancelled booking to free the slot, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSchedulesBlockBookings(t *testing.T) {
	srv := newTestServer(t)
	room := srv.stack.SeedRoom(t, testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-sched")))
	admin := signToken(t, "admin-1", application.RoleAdmin)
	student := signToken(t, "student-1", application.RoleStudent)

	schedule := map[string]any{
		"room_id":     room.ID,
		"day_of_week": 1,
		"start_time":  "10:00",
		"end_time":    "12:00",
		"start_date":  "2025-06-01",
		"end_date":    "2025-06-30",
		"type":        "course",
		"title":       "Linear Algebra",
	}
	if rec := srv.do(http.MethodPost, "/api/v1/schedules", student, schedule); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", rec.Code)
	}
	rec := srv.do(http.MethodPost, "/api/v1/schedules", admin, schedule)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	schedule["start_time"] = "12:10"
	schedule["end_time"] = "13:00"
	schedule["title"] = "Too close"
	if rec := srv.do(http.MethodPost, "/api/v1/schedules", admin, schedule); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 inside the schedule buffer, got %d: %s", rec.Code, rec.Body.String())
	}

	delete(schedule, "day_of_week")
	if rec := srv.do(http.MethodPost, "/api/v1/schedules", admin, schedule); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without day_of_week, got %d", rec.Code)
	}

	start := time.Date(2025, time.June, 9, 11, 0, 0, 0, time.UTC)
	rec = srv.do(http.MethodPost, "/api/v1/bookings", student, map[string]any{
		"room_id": room.ID,
		"start":   start.Format(time.RFC3339),
		"end":     start.Add(time.Hour).Format(time.RFC3339),
		"purpose": "Office hours",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 against the course, got %d: %s", rec.Code, rec.Body.String())
	}
	var conflicts conflictDTO
	if err := json.Unmarshal(decode(t, rec).Details, &conflicts); err != nil {
		t.Fatalf("failed to decode conflicts: %v", err)
	}
	if len(conflicts.Schedules) != 1 || conflicts.Schedules[0].Title != "Linear Algebra" {
		t.Fatalf("expected the course as conflict, got %+v", conflicts)
	}

	// Schedules carry no buffer against bookings.
	rec = srv.do(http.MethodPost, "/api/v1/bookings", student, map[string]any{
		"room_id": room.ID,
		"start":   time.Date(2025, time.June, 9, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"end":     time.Date(2025, time.June, 9, 13, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"purpose": "Office hours",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 right after the course, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCalendarAndReport(t *testing.T) {
	srv := newTestServer(t)
	room := srv.stack.SeedRoom(t, testfixtures.NewRoomFixture(testfixtures.WithRoomID("room-cal"), testfixtures.WithRoomName("Aula")))
	srv.stack.SeedBooking(t, testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("booking-cal"),
		testfixtures.WithBookingRoom(room.ID),
		testfixtures.WithBookingStatus(application.BookingApproved),
	))
	srv.stack.SeedSchedule(t, testfixtures.NewScheduleFixture(testfixtures.WithScheduleRoom(room.ID)))

	admin := signToken(t, "admin-1", application.RoleAdmin)
	student := signToken(t, "student-1", application.RoleStudent)

	query := url.Values{}
	query.Set("from", "2025-06-02T00:00:00Z")
	query.Set("to", "2025-06-03T00:00:00Z")
	rec := srv.do(http.MethodGet, "/api/v1/rooms/"+room.ID+"/calendar?"+query.Encode(), student, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var calendar calendarDTO
	if err := json.Unmarshal(decode(t, rec).Data, &calendar); err != nil {
		t.Fatalf("failed to decode calendar: %v", err)
	}
	if len(calendar.Entries) != 2 {
		t.Fatalf("expected booking and schedule entries, got %+v", calendar.Entries)
	}

	query.Set("format", "ics")
	rec = srv.do(http.MethodGet, "/api/v1/rooms/"+room.ID+"/calendar?"+query.Encode(), student, nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("expected ics body, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "booking-booking-cal@roombook") {
		t.Fatalf("expected booking event in ics output:\n%s", rec.Body.String())
	}

	query.Set("format", "pdf")
	if rec = srv.do(http.MethodGet, "/api/v1/rooms/"+room.ID+"/calendar?"+query.Encode(), student, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}

	if rec = srv.do(http.MethodGet, "/api/v1/reports/bookings", student, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student report, got %d", rec.Code)
	}
	rec = srv.do(http.MethodGet, "/api/v1/reports/bookings", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "bookings-20250601.xlsx") {
		t.Fatalf("unexpected disposition %q", got)
	}
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Bookings")
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "Aula" {
		t.Fatalf("unexpected report rows: %v", rows)
	}
}
