package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/mpesa"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// STKClient is the part of the mobile-money client the service needs.
type STKClient interface {
	STKPush(ctx context.Context, phone string, amount int64, accountRef, desc string) (*mpesa.STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)
}

// GatewayService routes payments through M-Pesa.
type GatewayService interface {
	// InitiatePayment sends an STK push. When the request names a bill, a
	// pending mobile-money Payment keyed by the CheckoutRequestID is stored
	// so the callback can settle it.
	InitiatePayment(ctx context.Context, req dtos.STKPushRequest) (*mpesa.STKPushResponse, error)

	// HandleCallback settles the pending payment the callback refers to once
	// the gateway's own record of the request agrees with it. The
	// pending→final transition is conditional, so a replayed callback finds
	// nothing to settle and changes nothing. The ack is non-zero when the
	// callback was refused or could not be reconciled.
	HandleCallback(ctx context.Context, payload mpesa.CallbackPayload) mpesa.CallbackAck
}

type gatewayService struct {
	client      STKClient
	billRepo    repositories.BillRepository
	paymentRepo repositories.PaymentRepository
	ledgerTx    repositories.LedgerTxRunner
	now         func() time.Time
}

func NewGatewayService(
	client STKClient,
	billRepo repositories.BillRepository,
	paymentRepo repositories.PaymentRepository,
	ledgerTx repositories.LedgerTxRunner,
) GatewayService {
	return &gatewayService{
		client:      client,
		billRepo:    billRepo,
		paymentRepo: paymentRepo,
		ledgerTx:    ledgerTx,
		now:         time.Now,
	}
}

// ---------------------------------------------------------------------
// InitiatePayment
// ---------------------------------------------------------------------
func (s *gatewayService) InitiatePayment(ctx context.Context, req dtos.STKPushRequest) (*mpesa.STKPushResponse, error) {
	msisdn, err := utils.MSISDN(req.Phone)
	if err != nil {
		return nil, utils.NewValidationError("phone is not a valid Kenyan mobile number", err)
	}
	if req.Amount <= 0 || req.Amount%100 != 0 {
		return nil, utils.NewValidationError("amount must be a positive whole number of shillings (in cents)", nil)
	}

	var bill *models.Bill
	if req.BillID != nil {
		bill, err = s.billRepo.GetByID(ctx, *req.BillID)
		if err != nil {
			return nil, utils.NewInternalError("Failed to load bill", err)
		}
		if bill == nil {
			return nil, utils.NewNotFoundError("Bill not found")
		}
		if bill.Status == models.BillStatusPaid || bill.Status == models.BillStatusCancelled {
			return nil, utils.NewConflictError(fmt.Sprintf("Bill is %s", bill.Status), nil)
		}
	}

	accountRef := strings.TrimSpace(req.AccountReference)
	if accountRef == "" {
		accountRef = constants.OrganizationName
		if bill != nil {
			accountRef = strings.ToUpper(bill.ID.String()[:8])
		}
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = "Payment"
	}

	resp, err := s.client.STKPush(ctx, msisdn, req.Amount/100, accountRef, desc)
	if err != nil {
		utils.Logger.WithError(err).Error("mpesa stk push failed")
		return nil, utils.NewGatewayError("Mobile-money gateway request failed", err)
	}

	if bill != nil && resp.CheckoutRequestID != "" {
		if err := s.createPending(ctx, bill, req.Amount, resp.CheckoutRequestID); err != nil {
			return nil, utils.NewInternalError("Gateway accepted the request but the pending payment was not stored", err)
		}
	}
	return resp, nil
}

func (s *gatewayService) createPending(ctx context.Context, bill *models.Bill, amount int64, checkoutID string) error {
	payer := bill.CreatedBy
	if bill.TenantUserID != nil {
		payer = *bill.TenantUserID
	}
	now := s.now()
	return s.paymentRepo.Create(ctx, &models.Payment{
		ID:                uuid.New(),
		BillID:            bill.ID,
		Amount:            amount,
		Method:            models.PaymentMethodMobileMoney,
		Status:            models.PaymentStatusPending,
		Reference:         models.NewPaymentReference(),
		CheckoutRequestID: &checkoutID,
		PaymentDate:       now,
		CreatedBy:         payer,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

// ---------------------------------------------------------------------
// HandleCallback
// ---------------------------------------------------------------------
func (s *gatewayService) HandleCallback(ctx context.Context, payload mpesa.CallbackPayload) mpesa.CallbackAck {
	accepted := mpesa.CallbackAck{ResultCode: constants.MpesaResultSuccess, ResultDesc: constants.MpesaAcceptedResultMsg}
	rejected := mpesa.CallbackAck{ResultCode: constants.MpesaResultRejected, ResultDesc: constants.MpesaRejectedResultMsg}

	stk := payload.Body.STKCallback
	logger := utils.Logger.WithField("checkoutRequestID", stk.CheckoutRequestID).WithField("resultCode", stk.ResultCode)
	if stk.CheckoutRequestID == "" {
		logger.Warn("mpesa callback without CheckoutRequestID ignored")
		return accepted
	}

	pending, err := s.paymentRepo.GetByCheckoutRequestID(ctx, stk.CheckoutRequestID)
	if err != nil {
		logger.WithError(err).Error("mpesa callback could not load its payment")
		return rejected
	}
	if pending == nil || pending.Status != models.PaymentStatusPending {
		logger.Info("mpesa callback matched no pending payment (replay or unknown request)")
		return accepted
	}

	if err := s.verifyCallback(ctx, &stk, pending); err != nil {
		logger.WithError(err).WithField("paymentID", pending.ID).Warn("mpesa callback refused")
		return rejected
	}

	status := models.PaymentStatusFailed
	var receipt *string
	if stk.ResultCode == constants.MpesaResultSuccess {
		status = models.PaymentStatusCompleted
		if r, ok := stk.ReceiptNumber(); ok {
			receipt = &r
		}
	}

	now := s.now()
	var settled *models.Payment
	err = s.ledgerTx.InLedgerTx(ctx, func(repos repositories.LedgerRepos) error {
		if err := repos.Bills.LockForUpdate(ctx, pending.BillID); err != nil {
			return err
		}
		p, err := repos.Payments.SettlePending(ctx, stk.CheckoutRequestID, status, receipt, stk.ResultDesc)
		if err != nil || p == nil {
			return err
		}
		settled = p
		if status != models.PaymentStatusCompleted {
			return nil
		}
		return repos.Bills.UpdateWithRetry(ctx, p.BillID, func(b *models.Bill) error {
			if !b.HasReference(p.Reference) {
				b.AppendPayment(mirrorEntry(p), now)
			}
			return nil
		})
	})

	switch {
	case err != nil:
		logger.WithError(err).Error("mpesa callback could not be reconciled")
		return rejected
	case settled == nil:
		logger.Info("mpesa callback lost the race to settle its payment")
	default:
		logger.WithField("paymentID", settled.ID).WithField("status", settled.Status).Info("mpesa payment settled")
	}
	return accepted
}

// verifyCallback checks the callback against the gateway's record of the
// request and, for a success, the amount against the pending payment. The
// callback endpoint is unauthenticated, so nothing in the payload is trusted
// until the query agrees with it.
func (s *gatewayService) verifyCallback(ctx context.Context, stk *mpesa.STKCallback, pending *models.Payment) error {
	query, err := s.client.STKQuery(ctx, stk.CheckoutRequestID)
	if err != nil {
		return fmt.Errorf("stk query: %w", err)
	}
	code, err := query.Result()
	if err != nil {
		return fmt.Errorf("stk query: %w", err)
	}
	if code != stk.ResultCode {
		return fmt.Errorf("%w: callback result %d, gateway reports %d", utils.ErrCallbackMismatch, stk.ResultCode, code)
	}
	if code != constants.MpesaResultSuccess {
		return nil
	}

	paid, err := stk.AmountMinorUnits()
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrCallbackMismatch, err)
	}
	if paid != pending.Amount {
		return fmt.Errorf("%w: paid %d, expected %d", utils.ErrCallbackMismatch, paid, pending.Amount)
	}
	return nil
}
