package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// PropertyService manages properties, their floors and rooms, and the
// occupancy operations performed from the property side.
type PropertyService interface {
	CreateProperty(ctx context.Context, actor models.Actor, req dtos.CreatePropertyRequest) (*models.Property, error)
	ListProperties(ctx context.Context, actor models.Actor) ([]*models.Property, error)
	GetProperty(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error)
	UpdateProperty(ctx context.Context, actor models.Actor, id uuid.UUID, req dtos.UpdatePropertyRequest) (*models.Property, error)
	DeleteProperty(ctx context.Context, actor models.Actor, id uuid.UUID) error

	AddFloor(ctx context.Context, actor models.Actor, propertyID uuid.UUID, req dtos.AddFloorRequest) (*models.Floor, error)
	AddRoom(ctx context.Context, actor models.Actor, propertyID, floorID uuid.UUID, req dtos.AddRoomRequest) (*models.Room, error)
	UpdateRoom(ctx context.Context, actor models.Actor, propertyID, roomID uuid.UUID, req dtos.UpdateRoomRequest) (*models.Room, error)
	DeleteRoom(ctx context.Context, actor models.Actor, propertyID, roomID uuid.UUID) error

	// RemoveTenantFromRoom is open to the property's landlord and admins.
	// A tenant user may only check out of the room their own tenant record
	// is bound to.
	RemoveTenantFromRoom(ctx context.Context, actor models.Actor, propertyID, roomID uuid.UUID) (*models.Property, error)
	AssignTenantToRoom(ctx context.Context, actor models.Actor, propertyID uuid.UUID, req dtos.AssignTenantRequest) (*models.Property, error)
}

type propertyService struct {
	propertyRepo repositories.PropertyRepository
	roomRepo     repositories.RoomRepository
	tenantRepo   repositories.TenantRepository
}

func NewPropertyService(
	propertyRepo repositories.PropertyRepository,
	roomRepo repositories.RoomRepository,
	tenantRepo repositories.TenantRepository,
) PropertyService {
	return &propertyService{
		propertyRepo: propertyRepo,
		roomRepo:     roomRepo,
		tenantRepo:   tenantRepo,
	}
}

// ---------------------------------------------------------------------
// Authorization helpers
// ---------------------------------------------------------------------

// loadOwned returns the property when the actor may mutate it.
func (s *propertyService) loadOwned(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	p, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load property", err)
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Property not found")
	}
	if !actor.IsAdmin() && !p.IsOwnedBy(actor.UserID) {
		return nil, utils.NewNotPermittedError("You do not own this property")
	}
	return p, nil
}

// tenantRecordOf is the tenant record durably linked to a tenant user.
func (s *propertyService) tenantRecordOf(ctx context.Context, actor models.Actor) (*models.Tenant, error) {
	if actor.Role != models.RoleTenant {
		return nil, nil
	}
	t, err := s.tenantRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load tenant record", err)
	}
	return t, nil
}

func (s *propertyService) reload(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load property", err)
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Property not found")
	}
	return p, nil
}

// ---------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------

func (s *propertyService) CreateProperty(ctx context.Context, actor models.Actor, req dtos.CreatePropertyRequest) (*models.Property, error) {
	if actor.Role != models.RoleLandlord && !actor.IsAdmin() {
		return nil, utils.NewNotPermittedError("Only landlords can create properties")
	}

	now := time.Now()
	p := &models.Property{
		ID:         uuid.New(),
		LandlordID: actor.UserID,
		Name:       strings.TrimSpace(req.Name),
		Address:    strings.TrimSpace(req.Address),
		RentAmount: req.RentAmount,
		Floors:     make([]*models.Floor, 0, len(req.Floors)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, fIn := range req.Floors {
		f := &models.Floor{
			ID:         uuid.New(),
			PropertyID: p.ID,
			Number:     fIn.Number,
			Rooms:      make([]*models.Room, 0, len(fIn.Rooms)),
			CreatedAt:  now,
		}
		for _, rIn := range fIn.Rooms {
			f.Rooms = append(f.Rooms, &models.Room{
				ID:         uuid.New(),
				PropertyID: p.ID,
				FloorID:    f.ID,
				Label:      strings.TrimSpace(rIn.Label),
				RentAmount: rentOrDefault(rIn.RentAmount, req.RentAmount),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		p.Floors = append(p.Floors, f)
	}

	if err := s.propertyRepo.Create(ctx, p); err != nil {
		return nil, utils.NewInternalError("Failed to create property", err)
	}
	utils.Logger.WithField("propertyID", p.ID).WithField("landlordID", p.LandlordID).Info("property created")
	return p, nil
}

func rentOrDefault(v *int64, def int64) int64 {
	if v != nil {
		return *v
	}
	return def
}

// ListProperties: landlords see their own, admins see all, tenants see the
// property their tenant record belongs to.
func (s *propertyService) ListProperties(ctx context.Context, actor models.Actor) ([]*models.Property, error) {
	var (
		props []*models.Property
		err   error
	)
	switch actor.Role {
	case models.RoleAdmin:
		props, err = s.propertyRepo.ListAllProperties(ctx)
	case models.RoleLandlord:
		props, err = s.propertyRepo.ListByLandlordID(ctx, actor.UserID)
	default:
		t, tErr := s.tenantRecordOf(ctx, actor)
		if tErr != nil {
			return nil, tErr
		}
		if t == nil {
			return []*models.Property{}, nil
		}
		p, gErr := s.propertyRepo.GetByID(ctx, t.PropertyID)
		if gErr != nil {
			return nil, utils.NewInternalError("Failed to load property", gErr)
		}
		if p != nil {
			props = append(props, p)
		}
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to list properties", err)
	}
	if props == nil {
		props = []*models.Property{}
	}
	return props, nil
}

func (s *propertyService) GetProperty(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Property, error) {
	p, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || p.IsOwnedBy(actor.UserID) {
		return p, nil
	}
	t, err := s.tenantRecordOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if t != nil && t.PropertyID == p.ID {
		return p, nil
	}
	return nil, utils.NewNotPermittedError("You do not have access to this property")
}

func (s *propertyService) UpdateProperty(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	req dtos.UpdatePropertyRequest,
) (*models.Property, error) {
	if _, err := s.loadOwned(ctx, actor, id); err != nil {
		return nil, err
	}

	err := s.propertyRepo.UpdateWithRetry(ctx, id, func(p *models.Property) error {
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Address != nil {
			p.Address = strings.TrimSpace(*req.Address)
		}
		if req.RentAmount != nil {
			p.RentAmount = *req.RentAmount
		}
		return nil
	})
	if err != nil {
		return nil, mapUpdateErr("property", err)
	}
	return s.reload(ctx, id)
}

func (s *propertyService) DeleteProperty(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	p, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	deleted, err := s.propertyRepo.Delete(ctx, p.ID)
	if err != nil {
		return utils.NewInternalError("Failed to delete property", err)
	}
	if !deleted {
		return utils.NewConflictError("Property still has occupied rooms or tenants", utils.ErrRoomOccupied)
	}
	utils.Logger.WithField("propertyID", p.ID).Info("property deleted")
	return nil
}

// ---------------------------------------------------------------------
// Floors & rooms
// ---------------------------------------------------------------------

func (s *propertyService) AddFloor(
	ctx context.Context,
	actor models.Actor,
	propertyID uuid.UUID,
	req dtos.AddFloorRequest,
) (*models.Floor, error) {
	if _, err := s.loadOwned(ctx, actor, propertyID); err != nil {
		return nil, err
	}
	f := &models.Floor{
		ID:         uuid.New(),
		PropertyID: propertyID,
		Number:     req.Number,
		Rooms:      []*models.Room{},
	}
	if err := s.propertyRepo.AddFloor(ctx, f); err != nil {
		return nil, utils.NewInternalError("Failed to add floor", err)
	}
	return f, nil
}

func (s *propertyService) AddRoom(
	ctx context.Context,
	actor models.Actor,
	propertyID, floorID uuid.UUID,
	req dtos.AddRoomRequest,
) (*models.Room, error) {
	p, err := s.loadOwned(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	if p.FindFloor(floorID) == nil {
		return nil, utils.NewNotFoundError("Floor not found")
	}
	room := &models.Room{
		ID:         uuid.New(),
		PropertyID: propertyID,
		FloorID:    floorID,
		Label:      strings.TrimSpace(req.Label),
		RentAmount: rentOrDefault(req.RentAmount, p.RentAmount),
	}
	if err := s.propertyRepo.AddRoom(ctx, room); err != nil {
		return nil, utils.NewInternalError("Failed to add room", err)
	}
	return room, nil
}

func (s *propertyService) UpdateRoom(
	ctx context.Context,
	actor models.Actor,
	propertyID, roomID uuid.UUID,
	req dtos.UpdateRoomRequest,
) (*models.Room, error) {
	p, err := s.loadOwned(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	room := p.FindRoom(roomID)
	if room == nil {
		return nil, utils.NewNotFoundError("Room not found")
	}
	if req.Label != nil {
		room.Label = strings.TrimSpace(*req.Label)
	}
	if req.RentAmount != nil {
		room.RentAmount = *req.RentAmount
	}
	if err := s.propertyRepo.UpdateRoom(ctx, room); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("Room not found")
		}
		return nil, utils.NewInternalError("Failed to update room", err)
	}
	return room, nil
}

func (s *propertyService) DeleteRoom(ctx context.Context, actor models.Actor, propertyID, roomID uuid.UUID) error {
	p, err := s.loadOwned(ctx, actor, propertyID)
	if err != nil {
		return err
	}
	if p.FindRoom(roomID) == nil {
		return utils.NewNotFoundError("Room not found")
	}
	deleted, err := s.propertyRepo.DeleteRoom(ctx, propertyID, roomID)
	if err != nil {
		return utils.NewInternalError("Failed to delete room", err)
	}
	if !deleted {
		return utils.NewConflictError("Room is occupied", utils.ErrRoomOccupied)
	}
	return nil
}

// ---------------------------------------------------------------------
// Occupancy
// ---------------------------------------------------------------------

func (s *propertyService) RemoveTenantFromRoom(
	ctx context.Context,
	actor models.Actor,
	propertyID, roomID uuid.UUID,
) (*models.Property, error) {
	p, err := s.reload(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.FindRoom(roomID) == nil {
		return nil, utils.NewNotFoundError("Room not found")
	}

	if !actor.IsAdmin() && !p.IsOwnedBy(actor.UserID) {
		t, err := s.tenantRecordOf(ctx, actor)
		if err != nil {
			return nil, err
		}
		ownRoom := t != nil && t.PropertyID == propertyID && t.RoomID != nil && *t.RoomID == roomID
		if !ownRoom {
			return nil, utils.NewNotPermittedError("You may only leave your own room")
		}
	}

	released, err := s.roomRepo.Release(ctx, propertyID, roomID)
	if err != nil {
		if errors.Is(err, utils.ErrRoomNotFound) {
			return nil, utils.NewNotFoundError("Room not found")
		}
		return nil, utils.NewInternalError("Failed to release room", err)
	}
	if released != nil {
		utils.Logger.WithField("roomID", roomID).WithField("tenantID", *released).Info("tenant removed from room")
	}
	return s.reload(ctx, propertyID)
}

func (s *propertyService) AssignTenantToRoom(
	ctx context.Context,
	actor models.Actor,
	propertyID uuid.UUID,
	req dtos.AssignTenantRequest,
) (*models.Property, error) {
	p, err := s.loadOwned(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	if p.FindRoom(req.RoomID) == nil {
		return nil, utils.NewNotFoundError("Room not found")
	}

	t, err := s.tenantRepo.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load tenant", err)
	}
	if t == nil {
		return nil, utils.NewNotFoundError("Tenant not found")
	}
	if t.LandlordID != p.LandlordID {
		return nil, utils.NewNotPermittedError("Tenant belongs to another landlord")
	}

	if err := s.roomRepo.AssignTenant(ctx, propertyID, req.RoomID, t.ID); err != nil {
		return nil, mapOccupancyErr(err)
	}
	return s.reload(ctx, propertyID)
}

// mapOccupancyErr renders claim failures from the room primitives.
func mapOccupancyErr(err error) error {
	switch {
	case errors.Is(err, utils.ErrRoomOccupied):
		return utils.NewConflictError("Room is already occupied", err)
	case errors.Is(err, utils.ErrRoomNotFound):
		return utils.NewNotFoundError("Room not found")
	case errors.Is(err, pgx.ErrNoRows):
		return utils.NewNotFoundError("Tenant not found")
	}
	return utils.NewInternalError("Failed to update room occupancy", err)
}

// mapUpdateErr renders UpdateWithRetry failures.
func mapUpdateErr(entity string, err error) error {
	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, pgx.ErrNoRows):
		return utils.NewNotFoundError(strings.ToUpper(entity[:1]) + entity[1:] + " not found")
	case errors.Is(err, utils.ErrRowVersionConflict):
		return &utils.AppError{
			StatusCode: http.StatusConflict,
			Code:       utils.ErrCodeRowVersionConflict,
			Message:    "The " + entity + " was modified concurrently, retry the request",
			Err:        err,
		}
	}
	return utils.NewInternalError("Failed to update "+entity, err)
}
