package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// LedgerService is the bill/payment ledger. Bill status is never written
// directly; every path that touches a bill's amount, due date or history
// re-derives it with models.DeriveBillStatus.
type LedgerService interface {
	// ---- Bills ----
	CreateBill(ctx context.Context, actor models.Actor, req dtos.CreateBillRequest) (*models.Bill, error)
	ListBills(ctx context.Context, actor models.Actor, status *models.BillStatus) ([]*models.Bill, error)
	GetBill(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Bill, error)
	UpdateBill(ctx context.Context, actor models.Actor, id uuid.UUID, req dtos.UpdateBillRequest) (*models.Bill, error)
	DeleteBill(ctx context.Context, actor models.Actor, id uuid.UUID) error
	BillStats(ctx context.Context, actor models.Actor) ([]models.BillStatusStat, error)

	// ---- Payments ----

	// RecordPayment creates a completed Payment and mirrors it into the
	// bill's history in one transaction. With an idempotency key, a repeat
	// by the same actor returns the original payment and replayed=true.
	RecordPayment(
		ctx context.Context,
		actor models.Actor,
		billID uuid.UUID,
		req dtos.BillPaymentRequest,
	) (payment *models.Payment, replayed bool, err error)

	UpdatePaymentStatus(ctx context.Context, actor models.Actor, paymentID uuid.UUID, status models.PaymentStatus) (*models.Payment, error)
	ListPayments(ctx context.Context, actor models.Actor) ([]*models.Payment, error)
	GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Payment, error)
	ComputeStats(ctx context.Context, actor models.Actor) (*models.PaymentStats, error)

	// SweepOverdue re-derives pending bills past their due date and returns
	// how many became overdue.
	SweepOverdue(ctx context.Context) (int, error)
}

type ledgerService struct {
	billRepo     repositories.BillRepository
	paymentRepo  repositories.PaymentRepository
	ledgerTx     repositories.LedgerTxRunner
	propertyRepo repositories.PropertyRepository
	tenantRepo   repositories.TenantRepository
	userRepo     repositories.UserRepository
	notifier     Notifier
	now          func() time.Time
}

func NewLedgerService(
	billRepo repositories.BillRepository,
	paymentRepo repositories.PaymentRepository,
	ledgerTx repositories.LedgerTxRunner,
	propertyRepo repositories.PropertyRepository,
	tenantRepo repositories.TenantRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
) LedgerService {
	return &ledgerService{
		billRepo:     billRepo,
		paymentRepo:  paymentRepo,
		ledgerTx:     ledgerTx,
		propertyRepo: propertyRepo,
		tenantRepo:   tenantRepo,
		userRepo:     userRepo,
		notifier:     notifier,
		now:          time.Now,
	}
}

// ---------------------------------------------------------------------
// RecordPayment
// ---------------------------------------------------------------------
func (s *ledgerService) RecordPayment(
	ctx context.Context,
	actor models.Actor,
	billID uuid.UUID,
	req dtos.BillPaymentRequest,
) (*models.Payment, bool, error) {
	if req.Amount <= 0 {
		return nil, false, utils.NewValidationError("amount must be positive", nil)
	}

	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, false, utils.NewInternalError("Failed to load bill", err)
	}
	if bill == nil {
		return nil, false, utils.NewNotFoundError("Bill not found")
	}
	if !bill.IsVisibleTo(actor.UserID) {
		return nil, false, utils.NewNotPermittedError("Only the bill's tenant or creator can record payments")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if existing, err := s.replayed(ctx, actor, billID, key); existing != nil || err != nil {
			return existing, existing != nil, err
		}
	}

	now := s.now()
	payment := &models.Payment{
		ID:          uuid.New(),
		BillID:      bill.ID,
		Amount:      req.Amount,
		Method:      models.PaymentMethod(req.Method),
		Status:      models.PaymentStatusCompleted,
		Reference:   models.NewPaymentReference(),
		PaymentDate: now,
		Notes:       req.Notes,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if key != "" {
		payment.IdempotencyKey = &key
	}

	err = s.ledgerTx.InLedgerTx(ctx, func(repos repositories.LedgerRepos) error {
		// The bill lock comes before the payment insert, whose foreign key
		// check would otherwise hold a share lock that blocks the upgrade.
		if err := repos.Bills.LockForUpdate(ctx, bill.ID); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return repos.Bills.UpdateWithRetry(ctx, bill.ID, func(b *models.Bill) error {
			b.AppendPayment(mirrorEntry(payment), now)
			return nil
		})
	})
	if errors.Is(err, utils.ErrIdempotencyKeyReused) {
		// Lost a race against a concurrent request carrying the same key.
		existing, rErr := s.replayed(ctx, actor, billID, key)
		if existing != nil || rErr != nil {
			return existing, existing != nil, rErr
		}
	}
	if err != nil {
		return nil, false, mapUpdateErr("bill", err)
	}

	utils.Logger.WithField("billID", bill.ID).WithField("reference", payment.Reference).Info("payment recorded")
	return payment, false, nil
}

// replayed looks up a payment the actor already made with key.
func (s *ledgerService) replayed(ctx context.Context, actor models.Actor, billID uuid.UUID, key string) (*models.Payment, error) {
	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, actor.UserID, key)
	if err != nil {
		return nil, utils.NewInternalError("Failed to check idempotency key", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.BillID != billID {
		return nil, utils.NewConflictError("Idempotency key was already used for another bill", utils.ErrIdempotencyKeyReused)
	}
	return existing, nil
}

func mirrorEntry(p *models.Payment) models.PaymentEntry {
	return models.PaymentEntry{
		Amount:    p.Amount,
		Date:      p.PaymentDate,
		Method:    p.Method,
		Reference: p.Reference,
		Notes:     p.Notes,
	}
}

// ---------------------------------------------------------------------
// UpdatePaymentStatus
// ---------------------------------------------------------------------

// UpdatePaymentStatus is reserved to the bill's creator. Completing a
// payment re-derives the bill; a completed payment whose reference is not
// yet in the history (an out-of-band gateway settlement) is mirrored once.
func (s *ledgerService) UpdatePaymentStatus(
	ctx context.Context,
	actor models.Actor,
	paymentID uuid.UUID,
	status models.PaymentStatus,
) (*models.Payment, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("unknown payment status", nil)
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load payment", err)
	}
	if payment == nil {
		return nil, utils.NewNotFoundError("Payment not found")
	}
	bill, err := s.billRepo.GetByID(ctx, payment.BillID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load bill", err)
	}
	if bill == nil {
		return nil, utils.NewNotFoundError("Bill not found")
	}
	if bill.CreatedBy != actor.UserID {
		return nil, utils.NewNotPermittedError("Only the bill's creator can change payment status")
	}

	now := s.now()
	var updated *models.Payment
	err = s.ledgerTx.InLedgerTx(ctx, func(repos repositories.LedgerRepos) error {
		if err := repos.Bills.LockForUpdate(ctx, bill.ID); err != nil {
			return err
		}
		if err := repos.Payments.UpdateWithRetry(ctx, paymentID, func(p *models.Payment) error {
			p.Status = status
			updated = p
			return nil
		}); err != nil {
			return err
		}
		if status != models.PaymentStatusCompleted {
			return nil
		}
		return repos.Bills.UpdateWithRetry(ctx, bill.ID, func(b *models.Bill) error {
			if !b.HasReference(updated.Reference) {
				b.AppendPayment(mirrorEntry(updated), now)
				return nil
			}
			b.Recompute(now)
			return nil
		})
	})
	if err != nil {
		return nil, mapUpdateErr("payment", err)
	}
	return updated, nil
}

// ---------------------------------------------------------------------
// Payment reads
// ---------------------------------------------------------------------

func (s *ledgerService) ListPayments(ctx context.Context, actor models.Actor) ([]*models.Payment, error) {
	payments, err := s.paymentRepo.ListVisibleTo(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to list payments", err)
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return payments, nil
}

func (s *ledgerService) GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load payment", err)
	}
	if payment == nil {
		return nil, utils.NewNotFoundError("Payment not found")
	}
	bill, err := s.billRepo.GetByID(ctx, payment.BillID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load bill", err)
	}
	if bill == nil || !bill.IsVisibleTo(actor.UserID) {
		return nil, utils.NewNotPermittedError("You do not have access to this payment")
	}
	return payment, nil
}

// ComputeStats sums payments on bills the actor owes or created, by status.
func (s *ledgerService) ComputeStats(ctx context.Context, actor models.Actor) (*models.PaymentStats, error) {
	stats, err := s.paymentRepo.StatsVisibleTo(ctx, actor.UserID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to compute payment stats", err)
	}
	return stats, nil
}
