package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// TenantService owns the tenant lifecycle. Every occupancy change goes
// through the room claim primitive so a room never holds two tenants.
type TenantService interface {
	CreateTenant(ctx context.Context, actor models.Actor, req dtos.CreateTenantRequest) (*models.Tenant, error)
	ListTenants(ctx context.Context, actor models.Actor) ([]*models.Tenant, error)
	GetTenant(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, actor models.Actor, id uuid.UUID, req dtos.UpdateTenantRequest) (*models.Tenant, error)

	// DeleteTenant always releases the tenant's room. The login identity is
	// removed only when the tenant record carries a durable link to it.
	DeleteTenant(ctx context.Context, actor models.Actor, id uuid.UUID) error
	DeleteAllTenants(ctx context.Context, actor models.Actor) (int64, error)

	ListLeases(ctx context.Context, actor models.Actor, tenantID uuid.UUID) ([]*models.Lease, error)
}

type tenantService struct {
	tenantRepo   repositories.TenantRepository
	propertyRepo repositories.PropertyRepository
	leaseRepo    repositories.LeaseRepository
	userRepo     repositories.UserRepository
}

func NewTenantService(
	tenantRepo repositories.TenantRepository,
	propertyRepo repositories.PropertyRepository,
	leaseRepo repositories.LeaseRepository,
	userRepo repositories.UserRepository,
) TenantService {
	return &tenantService{
		tenantRepo:   tenantRepo,
		propertyRepo: propertyRepo,
		leaseRepo:    leaseRepo,
		userRepo:     userRepo,
	}
}

// ---------------------------------------------------------------------
// CreateTenant
// ---------------------------------------------------------------------
func (s *tenantService) CreateTenant(ctx context.Context, actor models.Actor, req dtos.CreateTenantRequest) (*models.Tenant, error) {
	phone := strings.TrimSpace(req.Phone)
	if !utils.IsE164(phone) {
		return nil, utils.NewValidationError("phone must be in E.164 format", utils.ErrInvalidPhone)
	}

	p, err := s.propertyRepo.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load property", err)
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Property not found")
	}
	if !actor.IsAdmin() && !p.IsOwnedBy(actor.UserID) {
		return nil, utils.NewNotPermittedError("You do not own this property")
	}
	if req.RoomID == nil {
		return nil, utils.NewValidationError("roomId is required", nil)
	}
	room := p.FindRoom(*req.RoomID)
	if room == nil {
		return nil, utils.NewNotFoundError("Room not found")
	}
	// Early answer only; the claim below is what enforces it.
	if room.IsOccupied {
		return nil, utils.NewConflictError("Room is already occupied", utils.ErrRoomOccupied)
	}

	if req.UserID != nil {
		u, err := s.userRepo.GetByID(ctx, *req.UserID)
		if err != nil {
			return nil, utils.NewInternalError("Failed to load user", err)
		}
		if u == nil {
			return nil, utils.NewNotFoundError("User not found")
		}
		if u.Role != models.RoleTenant {
			return nil, utils.NewValidationError("userId must reference a tenant account", nil)
		}
	}

	status := models.TenantStatusActive
	if req.Status != "" {
		status = models.TenantStatus(req.Status)
	}
	now := time.Now()
	t := &models.Tenant{
		ID:         uuid.New(),
		LandlordID: p.LandlordID,
		UserID:     req.UserID,
		Name:       strings.TrimSpace(req.Name),
		Email:      req.Email,
		Phone:      phone,
		NationalID: strings.TrimSpace(req.NationalID),
		PropertyID: p.ID,
		RoomID:     req.RoomID,
		LeaseStart: req.LeaseStart,
		LeaseEnd:   req.LeaseEnd,
		Status:     status,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	lease := &models.Lease{
		ID:         uuid.New(),
		TenantID:   t.ID,
		PropertyID: t.PropertyID,
		RoomID:     t.RoomID,
		LeaseStart: t.LeaseStart,
		LeaseEnd:   t.LeaseEnd,
		Status:     models.TenantStatusActive,
		Notes:      t.Notes,
	}

	if err := s.tenantRepo.CreateWithRoomClaim(ctx, t, lease); err != nil {
		return nil, mapTenantErr(err)
	}
	utils.Logger.WithField("tenantID", t.ID).WithField("propertyID", t.PropertyID).Info("tenant created")
	return t, nil
}

func mapTenantErr(err error) error {
	switch {
	case errors.Is(err, utils.ErrPhoneExists):
		return utils.NewConflictError("A tenant with this phone already exists", err)
	case errors.Is(err, utils.ErrNationalIDExists):
		return utils.NewConflictError("A tenant with this national ID already exists", err)
	}
	return mapOccupancyErr(err)
}

// ---------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------

func (s *tenantService) ListTenants(ctx context.Context, actor models.Actor) ([]*models.Tenant, error) {
	if actor.Role == models.RoleTenant {
		t, err := s.tenantRepo.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, utils.NewInternalError("Failed to load tenant", err)
		}
		if t == nil {
			return []*models.Tenant{}, nil
		}
		return []*models.Tenant{t}, nil
	}

	tenants, err := s.tenantRepo.ListByLandlordID(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to list tenants", err)
	}
	if tenants == nil {
		tenants = []*models.Tenant{}
	}
	return tenants, nil
}

// loadVisible returns the tenant if the actor is its landlord, an admin,
// or the tenant user it is linked to.
func (s *tenantService) loadVisible(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Tenant, error) {
	t, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load tenant", err)
	}
	if t == nil {
		return nil, utils.NewNotFoundError("Tenant not found")
	}
	if actor.IsAdmin() || t.LandlordID == actor.UserID {
		return t, nil
	}
	if t.UserID != nil && *t.UserID == actor.UserID {
		return t, nil
	}
	return nil, utils.NewNotPermittedError("You do not have access to this tenant")
}

func (s *tenantService) loadManaged(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Tenant, error) {
	t, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && t.LandlordID != actor.UserID {
		return nil, utils.NewNotPermittedError("Only the landlord can manage this tenant")
	}
	return t, nil
}

func (s *tenantService) GetTenant(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Tenant, error) {
	return s.loadVisible(ctx, actor, id)
}

func (s *tenantService) ListLeases(ctx context.Context, actor models.Actor, tenantID uuid.UUID) ([]*models.Lease, error) {
	if _, err := s.loadVisible(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	leases, err := s.leaseRepo.ListByTenantID(ctx, tenantID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to list leases", err)
	}
	if leases == nil {
		leases = []*models.Lease{}
	}
	return leases, nil
}

// ---------------------------------------------------------------------
// UpdateTenant
// ---------------------------------------------------------------------
func (s *tenantService) UpdateTenant(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	req dtos.UpdateTenantRequest,
) (*models.Tenant, error) {
	t, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		t.Email = req.Email
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if !utils.IsE164(phone) {
			return nil, utils.NewValidationError("phone must be in E.164 format", utils.ErrInvalidPhone)
		}
		t.Phone = phone
	}
	if req.NationalID != nil {
		t.NationalID = strings.TrimSpace(*req.NationalID)
	}
	if req.LeaseStart != nil {
		t.LeaseStart = *req.LeaseStart
	}
	if req.LeaseEnd != nil {
		t.LeaseEnd = *req.LeaseEnd
	}
	if !t.LeaseEnd.After(t.LeaseStart) {
		return nil, utils.NewValidationError("leaseEnd must be after leaseStart", nil)
	}
	if req.Status != nil {
		t.Status = models.TenantStatus(*req.Status)
	}
	if req.Notes != nil {
		t.Notes = *req.Notes
	}

	// Room changes stay within the tenant's property.
	var moveTo *uuid.UUID
	if req.RoomID != nil && (t.RoomID == nil || *t.RoomID != *req.RoomID) {
		moveTo = req.RoomID
	}
	if err := s.tenantRepo.Update(ctx, t, moveTo); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("Tenant not found")
		}
		return nil, mapTenantErr(err)
	}

	updated, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to reload tenant", err)
	}
	if updated == nil {
		return nil, utils.NewNotFoundError("Tenant not found")
	}
	return updated, nil
}

// ---------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------

func (s *tenantService) DeleteTenant(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	t, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.tenantRepo.Delete(ctx, t.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return utils.NewNotFoundError("Tenant not found")
		}
		return utils.NewInternalError("Failed to delete tenant", err)
	}
	utils.Logger.WithField("tenantID", t.ID).Info("tenant deleted and room released")
	return nil
}

func (s *tenantService) DeleteAllTenants(ctx context.Context, actor models.Actor) (int64, error) {
	if actor.Role != models.RoleLandlord && !actor.IsAdmin() {
		return 0, utils.NewNotPermittedError("Only landlords can delete their tenants")
	}
	n, err := s.tenantRepo.DeleteAllByLandlordID(ctx, actor.UserID)
	if err != nil {
		return 0, utils.NewInternalError("Failed to delete tenants", err)
	}
	utils.Logger.WithField("landlordID", actor.UserID).WithField("count", n).Info("all tenants deleted")
	return n, nil
}
