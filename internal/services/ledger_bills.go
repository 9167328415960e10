package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// ---------------------------------------------------------------------
// CreateBill
// ---------------------------------------------------------------------
func (s *ledgerService) CreateBill(ctx context.Context, actor models.Actor, req dtos.CreateBillRequest) (*models.Bill, error) {
	if req.Amount < 0 {
		return nil, utils.NewValidationError("amount must not be negative", nil)
	}

	p, err := s.propertyRepo.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load property", err)
	}
	if p == nil {
		return nil, utils.NewNotFoundError("Property not found")
	}
	if !p.IsOwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, utils.NewNotPermittedError("You do not own this property")
	}

	bill := &models.Bill{
		ID:          uuid.New(),
		PropertyID:  p.ID,
		RoomID:      req.RoomID,
		CreatedBy:   actor.UserID,
		Type:        models.BillType(req.Type),
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		DueDate:     req.DueDate,
		Status:      models.BillStatusPending,
	}
	if err := s.resolveDebtor(ctx, p, bill, req); err != nil {
		return nil, err
	}
	if bill.RoomID != nil && p.FindRoom(*bill.RoomID) == nil {
		return nil, utils.NewNotFoundError("Room not found")
	}

	bill.Recompute(s.now())
	if err := s.billRepo.Create(ctx, bill); err != nil {
		return nil, utils.NewInternalError("Failed to create bill", err)
	}
	utils.Logger.WithField("billID", bill.ID).WithField("status", bill.Status).Info("bill created")
	return bill, nil
}

// resolveDebtor fills the tenant record and tenant user of a new bill from
// whichever of the two the request named.
func (s *ledgerService) resolveDebtor(ctx context.Context, p *models.Property, bill *models.Bill, req dtos.CreateBillRequest) error {
	var tenant *models.Tenant
	switch {
	case req.TenantID != nil:
		t, err := s.tenantRepo.GetByID(ctx, *req.TenantID)
		if err != nil {
			return utils.NewInternalError("Failed to load tenant", err)
		}
		if t == nil {
			return utils.NewNotFoundError("Tenant not found")
		}
		tenant = t
	case req.TenantUserID != nil:
		u, err := s.userRepo.GetByID(ctx, *req.TenantUserID)
		if err != nil {
			return utils.NewInternalError("Failed to load user", err)
		}
		if u == nil {
			return utils.NewNotFoundError("Tenant user not found")
		}
		bill.TenantUserID = &u.ID
		t, err := s.tenantRepo.GetByUserID(ctx, u.ID)
		if err != nil {
			return utils.NewInternalError("Failed to load tenant", err)
		}
		tenant = t
	default:
		return utils.NewValidationError("tenantId or tenantUserId is required", nil)
	}

	if tenant == nil {
		return nil
	}
	if tenant.PropertyID != p.ID {
		return utils.NewValidationError("tenant does not belong to this property", nil)
	}
	bill.TenantID = &tenant.ID
	if bill.TenantUserID == nil {
		bill.TenantUserID = tenant.UserID
	}
	if bill.RoomID == nil {
		bill.RoomID = tenant.RoomID
	}
	return nil
}

// ---------------------------------------------------------------------
// Reads (re-derive on read)
// ---------------------------------------------------------------------

func (s *ledgerService) ListBills(ctx context.Context, actor models.Actor, status *models.BillStatus) ([]*models.Bill, error) {
	bills, err := s.billRepo.ListVisibleTo(ctx, actor.UserID, nil)
	if err != nil {
		return nil, utils.NewInternalError("Failed to list bills", err)
	}

	out := make([]*models.Bill, 0, len(bills))
	for _, b := range bills {
		b = s.refreshStatus(ctx, b)
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *ledgerService) GetBill(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Bill, error) {
	b, err := s.loadVisibleBill(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.refreshStatus(ctx, b), nil
}

func (s *ledgerService) loadVisibleBill(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Bill, error) {
	b, err := s.billRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load bill", err)
	}
	if b == nil {
		return nil, utils.NewNotFoundError("Bill not found")
	}
	if !b.IsVisibleTo(actor.UserID) {
		return nil, utils.NewNotPermittedError("You do not have access to this bill")
	}
	return b, nil
}

// refreshStatus persists a status that drifted since the last write (a due
// date passing). A failed write is logged and the derived value still served.
func (s *ledgerService) refreshStatus(ctx context.Context, b *models.Bill) *models.Bill {
	now := s.now()
	if !b.Recompute(now) {
		return b
	}
	var fresh *models.Bill
	err := s.billRepo.UpdateWithRetry(ctx, b.ID, func(cur *models.Bill) error {
		cur.Recompute(now)
		fresh = cur
		return nil
	})
	if err != nil {
		utils.Logger.WithError(err).WithField("billID", b.ID).Warn("failed to persist re-derived bill status")
		return b
	}
	return fresh
}

func (s *ledgerService) BillStats(ctx context.Context, actor models.Actor) ([]models.BillStatusStat, error) {
	stats, err := s.billRepo.StatsVisibleTo(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to compute bill stats", err)
	}
	if stats == nil {
		stats = []models.BillStatusStat{}
	}
	return stats, nil
}

// ---------------------------------------------------------------------
// UpdateBill / DeleteBill
// ---------------------------------------------------------------------

// UpdateBill lets the creator change amount, due date, description and type.
// Status can only be moved to cancelled or out of it; any other requested
// value is ignored in favour of the derivation.
func (s *ledgerService) UpdateBill(ctx context.Context, actor models.Actor, id uuid.UUID, req dtos.UpdateBillRequest) (*models.Bill, error) {
	b, err := s.loadVisibleBill(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.CreatedBy != actor.UserID {
		return nil, utils.NewNotPermittedError("Only the bill's creator can update it")
	}

	now := s.now()
	var updated *models.Bill
	err = s.billRepo.UpdateWithRetry(ctx, id, func(cur *models.Bill) error {
		if req.Type != nil {
			cur.Type = models.BillType(*req.Type)
		}
		if req.Description != nil {
			cur.Description = strings.TrimSpace(*req.Description)
		}
		if req.Amount != nil {
			cur.Amount = *req.Amount
		}
		if req.DueDate != nil {
			cur.DueDate = *req.DueDate
		}
		if req.Status != nil {
			switch models.BillStatus(*req.Status) {
			case models.BillStatusCancelled:
				cur.Status = models.BillStatusCancelled
			default:
				if cur.Status == models.BillStatusCancelled {
					cur.Status = models.BillStatusPending
				}
			}
		}
		cur.Recompute(now)
		updated = cur
		return nil
	})
	if err != nil {
		return nil, mapUpdateErr("bill", err)
	}
	return updated, nil
}

func (s *ledgerService) DeleteBill(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	b, err := s.loadVisibleBill(ctx, actor, id)
	if err != nil {
		return err
	}
	if b.CreatedBy != actor.UserID {
		return utils.NewNotPermittedError("Only the bill's creator can delete it")
	}
	if err := s.billRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return utils.NewNotFoundError("Bill not found")
		}
		return utils.NewInternalError("Failed to delete bill", err)
	}
	return nil
}

// ---------------------------------------------------------------------
// Overdue sweep
// ---------------------------------------------------------------------
func (s *ledgerService) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.billRepo.ListDueForOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for _, b := range due {
		var fresh *models.Bill
		err := s.billRepo.UpdateWithRetry(ctx, b.ID, func(cur *models.Bill) error {
			cur.Recompute(now)
			fresh = cur
			return nil
		})
		if err != nil {
			utils.Logger.WithError(err).WithField("billID", b.ID).Warn("overdue sweep could not update bill")
			continue
		}
		if fresh.Status == models.BillStatusOverdue {
			flipped++
			s.remindOverdue(ctx, fresh)
		}
	}
	if flipped > 0 {
		utils.Logger.WithField("count", flipped).Info("bills marked overdue")
	}
	return flipped, nil
}

// remindOverdue tells the bill's tenant user about it. Delivery is best effort.
func (s *ledgerService) remindOverdue(ctx context.Context, b *models.Bill) {
	if s.notifier == nil || b.TenantUserID == nil {
		return
	}
	u, err := s.userRepo.GetByID(ctx, *b.TenantUserID)
	if err != nil || u == nil {
		return
	}

	desc := b.Description
	if desc == "" {
		desc = fmt.Sprintf("Your %s bill is past due.", b.Type)
	}
	balance := utils.FormatMinorUnits(b.Balance())
	due := b.DueDate.Format("2 Jan 2006")

	if u.Email != nil && *u.Email != "" {
		err = s.notifier.SendEmail(
			ctx, u.Name, *u.Email, constants.EmailSubjectBillReminder,
			fmt.Sprintf("%s Outstanding balance: %s. Due date: %s.", desc, balance, due),
			fmt.Sprintf(billOverdueEmailHTML, desc, balance, due),
		)
	} else {
		err = s.notifier.SendSMS(ctx, u.Phone,
			fmt.Sprintf(constants.SMSBillOverdueTemplate, balance, due))
	}
	if err != nil {
		utils.Logger.WithError(err).WithField("billID", b.ID).Warn("overdue reminder not delivered")
	}
}
