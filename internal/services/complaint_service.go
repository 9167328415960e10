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

type ComplaintService interface {
	List(ctx context.Context, actor models.Actor) ([]*models.Complaint, error)
	ListForTenant(ctx context.Context, actor models.Actor, tenantID uuid.UUID) ([]*models.Complaint, error)
	Create(ctx context.Context, actor models.Actor, req dtos.CreateComplaintRequest) (*models.Complaint, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status models.ComplaintStatus) (*models.Complaint, error)
	Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error
}

type complaintService struct {
	complaintRepo repositories.ComplaintRepository
	propertyRepo  repositories.PropertyRepository
	tenantRepo    repositories.TenantRepository
}

func NewComplaintService(
	complaintRepo repositories.ComplaintRepository,
	propertyRepo repositories.PropertyRepository,
	tenantRepo repositories.TenantRepository,
) ComplaintService {
	return &complaintService{
		complaintRepo: complaintRepo,
		propertyRepo:  propertyRepo,
		tenantRepo:    tenantRepo,
	}
}

// List returns what the actor authored as a tenant, otherwise the
// complaints filed against the actor's properties.
func (s *complaintService) List(ctx context.Context, actor models.Actor) ([]*models.Complaint, error) {
	var (
		out []*models.Complaint
		err error
	)
	if actor.Role == models.RoleTenant {
		out, err = s.complaintRepo.ListByAuthorID(ctx, actor.UserID)
	} else {
		out, err = s.complaintRepo.ListByLandlordID(ctx, actor.UserID)
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to list complaints", err)
	}
	if out == nil {
		out = []*models.Complaint{}
	}
	return out, nil
}

func (s *complaintService) ListForTenant(ctx context.Context, actor models.Actor, tenantID uuid.UUID) ([]*models.Complaint, error) {
	t, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load tenant", err)
	}
	if t == nil {
		return nil, utils.NewNotFoundError("Tenant not found")
	}
	isSelf := t.UserID != nil && *t.UserID == actor.UserID
	if t.LandlordID != actor.UserID && !isSelf && !actor.IsAdmin() {
		return nil, utils.NewNotPermittedError("You do not manage this tenant")
	}
	if t.UserID == nil {
		return []*models.Complaint{}, nil
	}

	all, err := s.complaintRepo.ListByAuthorID(ctx, *t.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to list complaints", err)
	}
	out := make([]*models.Complaint, 0, len(all))
	for _, c := range all {
		if c.PropertyID == t.PropertyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *complaintService) Create(ctx context.Context, actor models.Actor, req dtos.CreateComplaintRequest) (*models.Complaint, error) {
	title := strings.TrimSpace(req.Title)
	desc := strings.TrimSpace(req.Description)
	if title == "" || desc == "" {
		return nil, utils.NewValidationError("title and description are required", nil)
	}
	p, err := participantOf(ctx, s.propertyRepo, s.tenantRepo, actor, req.PropertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &models.Complaint{
		ID:          uuid.New(),
		PropertyID:  p.ID,
		LandlordID:  p.LandlordID,
		AuthorID:    actor.UserID,
		Title:       title,
		Description: desc,
		Status:      models.ComplaintStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.complaintRepo.Create(ctx, c); err != nil {
		return nil, utils.NewInternalError("Failed to create complaint", err)
	}
	return c, nil
}

func (s *complaintService) load(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	c, err := s.complaintRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load complaint", err)
	}
	if c == nil {
		return nil, utils.NewNotFoundError("Complaint not found")
	}
	return c, nil
}

// UpdateStatus is reserved to the landlord of the complaint's property.
func (s *complaintService) UpdateStatus(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	status models.ComplaintStatus,
) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.LandlordID != actor.UserID {
		return nil, utils.NewNotPermittedError("Only the landlord can change a complaint's status")
	}
	if err := s.complaintRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("Complaint not found")
		}
		return nil, utils.NewInternalError("Failed to update complaint", err)
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return c, nil
}

func (s *complaintService) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if c.LandlordID != actor.UserID && c.AuthorID != actor.UserID {
		return utils.NewNotPermittedError("Only the landlord or the author can delete a complaint")
	}
	if err := s.complaintRepo.Delete(ctx, id); err != nil {
		return utils.NewInternalError("Failed to delete complaint", err)
	}
	return nil
}
