package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/persistence"
)

// RoomService orchestrates validation, authorization, and persistence for
// campuses and rooms.
type RoomService struct {
	campuses    CampusRepository
	rooms       RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *zap.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(campuses CampusRepository, rooms RoomRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(campuses, rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(campuses CampusRepository, rooms RoomRepository, idGenerator func() string, now func() time.Time, logger *zap.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{campuses: campuses, rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, fields...)
}

// CreateCampus persists a new campus for administrators.
func (s *RoomService) CreateCampus(ctx context.Context, params CreateCampusParams) (campus Campus, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateCampus", zap.String("actor_id", params.Actor.UserID))
	defer func() {
		logOutcome(logger, err, "failed to create campus", "campus created", zap.String("campus_id", campus.ID))
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if s.campuses == nil {
		err = fmt.Errorf("campus repository not configured")
		return
	}
	if vErr := validateStruct(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	createdAt := s.now().UTC()
	campus, err = s.campuses.CreateCampus(ctx, Campus{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(params.Input.Name),
		Address:   strings.TrimSpace(params.Input.Address),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if err != nil {
		err = mapRoomRepoError(err)
		campus = Campus{}
	}
	return
}

// UpdateCampus renames or relocates an existing campus.
func (s *RoomService) UpdateCampus(ctx context.Context, params UpdateCampusParams) (campus Campus, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateCampus",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("campus_id", params.CampusID),
	)
	defer func() {
		logOutcome(logger, err, "failed to update campus", "campus updated")
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if s.campuses == nil {
		err = fmt.Errorf("campus repository not configured")
		return
	}

	var existing Campus
	existing, err = s.campuses.GetCampus(ctx, params.CampusID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}
	if vErr := validateStruct(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Address = strings.TrimSpace(params.Input.Address)
	updated.UpdatedAt = s.now().UTC()

	campus, err = s.campuses.UpdateCampus(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		campus = Campus{}
	}
	return
}

// DeleteCampus soft-deletes a campus that has no live rooms.
func (s *RoomService) DeleteCampus(ctx context.Context, actor Actor, campusID string) (err error) {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteCampus",
		zap.String("actor_id", actor.UserID),
		zap.String("campus_id", campusID),
	)
	defer func() {
		logOutcome(logger, err, "failed to delete campus", "campus deleted")
	}()

	if !actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if s.campuses == nil {
		err = fmt.Errorf("campus repository not configured")
		return
	}
	if s.rooms != nil {
		var rooms []Room
		rooms, err = s.rooms.ListRooms(ctx, campusID)
		if err != nil {
			return
		}
		if len(rooms) > 0 {
			err = fmt.Errorf("%w: campus still has %d rooms", ErrBadRequest, len(rooms))
			return
		}
	}
	if err = s.campuses.DeleteCampus(ctx, campusID, actor.UserID, s.now().UTC()); err != nil {
		err = mapRoomRepoError(err)
	}
	return
}

// GetCampus returns a live campus.
func (s *RoomService) GetCampus(ctx context.Context, campusID string) (Campus, error) {
	if s == nil || s.campuses == nil {
		return Campus{}, fmt.Errorf("campus repository not configured")
	}
	campus, err := s.campuses.GetCampus(ctx, campusID)
	if err != nil {
		return Campus{}, mapRoomRepoError(err)
	}
	return campus, nil
}

// ListCampuses returns every live campus ordered by name.
func (s *RoomService) ListCampuses(ctx context.Context) ([]Campus, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if s.campuses == nil {
		return nil, nil
	}
	raw, err := s.campuses.ListCampuses(ctx)
	if err != nil {
		return nil, err
	}
	campuses := make([]Campus, len(raw))
	copy(campuses, raw)
	sort.Slice(campuses, func(i, j int) bool {
		if strings.EqualFold(campuses[i].Name, campuses[j].Name) {
			return campuses[i].ID < campuses[j].ID
		}
		return strings.ToLower(campuses[i].Name) < strings.ToLower(campuses[j].Name)
	})
	return campuses, nil
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("campus_id", params.Input.CampusID),
	)
	defer func() {
		logOutcome(logger, err, "failed to create room", "room created", zap.String("room_id", room.ID))
	}()

	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}

	vErr := validateStruct(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureCampusExists(ctx, params.Input.CampusID); err != nil {
		return
	}

	createdAt := s.now().UTC()
	room = applyRoomInput(Room{ID: s.idGenerator(), CreatedAt: createdAt}, params.Input)
	room.UpdatedAt = createdAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		room = Room{}
		return
	}

	room = persisted
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
// Statuses left empty keep their current values.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Actor.IsAdmin() {
		err = ErrForbidden
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		zap.String("actor_id", params.Actor.UserID),
		zap.String("room_id", params.RoomID),
	)
	defer func() {
		logOutcome(logger, err, "failed to update room", "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	vErr := validateStruct(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if params.Input.CampusID != existing.CampusID {
		if err = s.ensureCampusExists(ctx, params.Input.CampusID); err != nil {
			return
		}
	}

	input := params.Input
	if input.Status == "" {
		input.Status = string(existing.Status)
	}
	if input.ApprovalStatus == "" {
		input.ApprovalStatus = string(existing.ApprovalStatus)
	}
	updated := applyRoomInput(existing, input)
	updated.UpdatedAt = s.now().UTC()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		room = Room{}
	}
	return
}

// DeleteRoom soft-deletes an existing room when requested by an administrator.
func (s *RoomService) DeleteRoom(ctx context.Context, actor Actor, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		zap.String("actor_id", actor.UserID),
		zap.String("room_id", roomID),
	)

	if err := s.rooms.DeleteRoom(ctx, roomID, actor.UserID, s.now().UTC()); err != nil {
		err = mapRoomRepoError(err)
		logOutcome(logger, err, "failed to delete room", "")
		return err
	}

	logger.Info("room deleted")
	return nil
}

// GetRoom returns a live room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("room repository not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the live rooms of a campus, or every room when campusID
// is empty, ordered by name.
func (s *RoomService) ListRooms(ctx context.Context, campusID string) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx, campusID)
	if err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})

	return
}

func (s *RoomService) ensureCampusExists(ctx context.Context, campusID string) error {
	if s.campuses == nil {
		return nil
	}
	if _, err := s.campuses.GetCampus(ctx, campusID); err != nil {
		if isNotFoundError(err) {
			vErr := &ValidationError{}
			vErr.add("campus_id", "campus does not exist")
			return vErr
		}
		return err
	}
	return nil
}

func applyRoomInput(room Room, input RoomInput) Room {
	room.CampusID = strings.TrimSpace(input.CampusID)
	room.Name = strings.TrimSpace(input.Name)
	room.Capacity = input.Capacity
	room.Status = RoomStatusActive
	if input.Status != "" {
		room.Status = RoomStatus(input.Status)
	}
	room.ApprovalStatus = ApprovalApproved
	if input.ApprovalStatus != "" {
		room.ApprovalStatus = ApprovalStatus(input.ApprovalStatus)
	}
	return room
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("campus_id", "campus does not exist")
		return vErr
	}
	return err
}
