package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected *utils.AppError, got %T: %v", err, err)
	require.Equal(t, status, appErr.StatusCode, appErr.Message)
}

// billSetup is a landlord, a tenant user in room A1 and a 1000 bill on them.
type billSetup struct {
	f        *fixture
	svc      *ledgerService
	landlord models.Actor
	tenant   models.Actor
	property *models.Property
	bill     *models.Bill
}

func newBillSetup(t *testing.T, amount int64, due time.Time) *billSetup {
	t.Helper()
	f := newFixture()
	landlord := f.addUser(models.RoleLandlord, "+254700000001")
	tenant := f.addUser(models.RoleTenant, "+254700000002")
	p := f.addProperty(landlord, amount, "A1", "A2")
	rec := f.addTenant(p, &tenant, p.Floors[0].Rooms[0], "+254700000002")

	svc := f.ledger()
	bill, err := svc.CreateBill(context.Background(), landlord, dtos.CreateBillRequest{
		TenantID:   &rec.ID,
		PropertyID: p.ID,
		Type:       string(models.BillTypeRent),
		Amount:     amount,
		DueDate:    due,
	})
	require.NoError(t, err)
	return &billSetup{f: f, svc: svc, landlord: landlord, tenant: tenant, property: p, bill: bill}
}

func TestCreateBillResolvesDebtor(t *testing.T) {
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	require.Equal(t, models.BillStatusPending, s.bill.Status)
	require.NotNil(t, s.bill.TenantUserID)
	require.Equal(t, s.tenant.UserID, *s.bill.TenantUserID)
	require.NotNil(t, s.bill.RoomID)
	require.Equal(t, s.property.Floors[0].Rooms[0].ID, *s.bill.RoomID)
	require.Equal(t, s.landlord.UserID, s.bill.CreatedBy)
}

func TestCreateBillPastDueIsOverdue(t *testing.T) {
	s := newBillSetup(t, 1000, time.Now().Add(-24*time.Hour))
	require.Equal(t, models.BillStatusOverdue, s.bill.Status)
}

func TestCreateBillRequiresOwnership(t *testing.T) {
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))
	stranger := s.f.addUser(models.RoleLandlord, "+254700000009")

	_, err := s.svc.CreateBill(context.Background(), stranger, dtos.CreateBillRequest{
		TenantUserID: &s.tenant.UserID,
		PropertyID:   s.property.ID,
		Type:         string(models.BillTypeRent),
		Amount:       500,
		DueDate:      time.Now(),
	})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestRecordPaymentsSettleBill(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	_, replayed, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 400, Method: "cash"})
	require.NoError(t, err)
	require.False(t, replayed)

	b, err := s.svc.GetBill(ctx, s.tenant, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPending, b.Status)
	require.Len(t, b.PaymentHistory, 1)

	_, _, err = s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 600, Method: "mobile_money"})
	require.NoError(t, err)

	b, err = s.svc.GetBill(ctx, s.landlord, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPaid, b.Status)
	require.Equal(t, int64(1000), b.AmountPaid())

	payments, err := s.svc.ListPayments(ctx, s.tenant)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	for _, p := range payments {
		require.Equal(t, models.PaymentStatusCompleted, p.Status)
		require.True(t, b.HasReference(p.Reference))
	}
}

func TestRecordPaymentRejections(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))
	stranger := s.f.addUser(models.RoleTenant, "+254700000009")

	_, _, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 0, Method: "cash"})
	requireStatus(t, err, http.StatusBadRequest)

	_, _, err = s.svc.RecordPayment(ctx, s.tenant, uuid.New(), dtos.BillPaymentRequest{Amount: 100, Method: "cash"})
	requireStatus(t, err, http.StatusNotFound)

	_, _, err = s.svc.RecordPayment(ctx, stranger, s.bill.ID, dtos.BillPaymentRequest{Amount: 100, Method: "cash"})
	requireStatus(t, err, http.StatusUnauthorized)

	b, err := s.svc.GetBill(ctx, s.landlord, s.bill.ID)
	require.NoError(t, err)
	require.Empty(t, b.PaymentHistory)
}

func TestRecordPaymentIdempotency(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))
	req := dtos.BillPaymentRequest{Amount: 300, Method: "cash", IdempotencyKey: "retry-1"}

	first, replayed, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, req)
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, req)
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first.ID, second.ID)

	b, err := s.svc.GetBill(ctx, s.tenant, s.bill.ID)
	require.NoError(t, err)
	require.Len(t, b.PaymentHistory, 1)
	require.Equal(t, int64(300), b.AmountPaid())

	// The same key against another bill is a conflict, not a replay.
	other, err := s.svc.CreateBill(ctx, s.landlord, dtos.CreateBillRequest{
		TenantUserID: &s.tenant.UserID,
		PropertyID:   s.property.ID,
		Type:         string(models.BillTypeUtilities),
		Amount:       200,
		DueDate:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, _, err = s.svc.RecordPayment(ctx, s.tenant, other.ID, req)
	requireStatus(t, err, http.StatusConflict)
}

func TestConcurrentPaymentsAreAllMirrored(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 100, Method: "cash"})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := s.svc.GetBill(ctx, s.tenant, s.bill.ID)
	require.NoError(t, err)
	require.Len(t, b.PaymentHistory, 10)
	require.Equal(t, models.BillStatusPaid, b.Status)
}

func TestPaymentWritesLockTheBill(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	p, _, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 400, Method: "cash"})
	require.NoError(t, err)
	_, err = s.svc.UpdatePaymentStatus(ctx, s.landlord, p.ID, models.PaymentStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{s.bill.ID, s.bill.ID}, s.f.bills.locked)

	// Without the lock nothing is written.
	s.f.bills.lockErr = errors.New("lock timeout")
	_, _, err = s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 600, Method: "cash"})
	requireStatus(t, err, http.StatusInternalServerError)

	payments, err := s.svc.ListPayments(ctx, s.tenant)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	b, err := s.svc.GetBill(ctx, s.tenant, s.bill.ID)
	require.NoError(t, err)
	require.Len(t, b.PaymentHistory, 1)
}

func TestCancelledBillIsSticky(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	cancelled := string(models.BillStatusCancelled)
	b, err := s.svc.UpdateBill(ctx, s.landlord, s.bill.ID, dtos.UpdateBillRequest{Status: &cancelled})
	require.NoError(t, err)
	require.Equal(t, models.BillStatusCancelled, b.Status)

	_, _, err = s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 1000, Method: "cash"})
	require.NoError(t, err)

	b, err = s.svc.GetBill(ctx, s.tenant, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusCancelled, b.Status)

	// Lifting the cancellation re-derives from the history.
	pending := string(models.BillStatusPending)
	b, err = s.svc.UpdateBill(ctx, s.landlord, s.bill.ID, dtos.UpdateBillRequest{Status: &pending})
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPaid, b.Status)
}

func TestUpdateBillIgnoresRequestedDerivedStatus(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	paid := string(models.BillStatusPaid)
	b, err := s.svc.UpdateBill(ctx, s.landlord, s.bill.ID, dtos.UpdateBillRequest{Status: &paid})
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPending, b.Status)

	// Lowering the amount below what was paid settles the bill.
	_, _, err = s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 500, Method: "cash"})
	require.NoError(t, err)
	amount := int64(500)
	b, err = s.svc.UpdateBill(ctx, s.landlord, s.bill.ID, dtos.UpdateBillRequest{Amount: &amount})
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPaid, b.Status)
}

func TestOnlyCreatorUpdatesOrDeletesBill(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	desc := "changed"
	_, err := s.svc.UpdateBill(ctx, s.tenant, s.bill.ID, dtos.UpdateBillRequest{Description: &desc})
	requireStatus(t, err, http.StatusUnauthorized)

	requireStatus(t, s.svc.DeleteBill(ctx, s.tenant, s.bill.ID), http.StatusUnauthorized)
	require.NoError(t, s.svc.DeleteBill(ctx, s.landlord, s.bill.ID))

	_, err = s.svc.GetBill(ctx, s.landlord, s.bill.ID)
	requireStatus(t, err, http.StatusNotFound)
}

func TestListBillsFiltersOnDerivedStatus(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(time.Hour))

	// The stored row still says pending; two hours later it is overdue.
	s.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	overdue := models.BillStatusOverdue
	bills, err := s.svc.ListBills(ctx, s.tenant, &overdue)
	require.NoError(t, err)
	require.Len(t, bills, 1)

	stored, err := s.f.bills.GetByID(ctx, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusOverdue, stored.Status)

	pending := models.BillStatusPending
	bills, err = s.svc.ListBills(ctx, s.tenant, &pending)
	require.NoError(t, err)
	require.Empty(t, bills)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	p, _, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 1000, Method: "cash"})
	require.NoError(t, err)

	_, err = s.svc.UpdatePaymentStatus(ctx, s.tenant, p.ID, models.PaymentStatusRefunded)
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = s.svc.UpdatePaymentStatus(ctx, s.landlord, p.ID, models.PaymentStatus("bogus"))
	requireStatus(t, err, http.StatusBadRequest)

	updated, err := s.svc.UpdatePaymentStatus(ctx, s.landlord, p.ID, models.PaymentStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusCompleted, updated.Status)

	// Already mirrored, so completing it again does not double count.
	b, err := s.svc.GetBill(ctx, s.landlord, s.bill.ID)
	require.NoError(t, err)
	require.Len(t, b.PaymentHistory, 1)
}

func TestUpdatePaymentStatusMirrorsOutOfBandSettlement(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))

	pending := &models.Payment{
		ID:        uuid.New(),
		BillID:    s.bill.ID,
		Amount:    1000,
		Method:    models.PaymentMethodMobileMoney,
		Status:    models.PaymentStatusPending,
		Reference: models.NewPaymentReference(),
		CreatedBy: s.tenant.UserID,
	}
	require.NoError(t, s.f.payments.Create(ctx, pending))

	_, err := s.svc.UpdatePaymentStatus(ctx, s.landlord, pending.ID, models.PaymentStatusCompleted)
	require.NoError(t, err)

	b, err := s.svc.GetBill(ctx, s.landlord, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusPaid, b.Status)
	require.True(t, b.HasReference(pending.Reference))
}

func TestGetPaymentVisibility(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(24*time.Hour))
	stranger := s.f.addUser(models.RoleTenant, "+254700000009")

	p, _, err := s.svc.RecordPayment(ctx, s.tenant, s.bill.ID, dtos.BillPaymentRequest{Amount: 250, Method: "card"})
	require.NoError(t, err)

	got, err := s.svc.GetPayment(ctx, s.landlord, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	_, err = s.svc.GetPayment(ctx, stranger, p.ID)
	requireStatus(t, err, http.StatusUnauthorized)

	stats, err := s.svc.ComputeStats(ctx, s.tenant)
	require.NoError(t, err)
	require.Equal(t, int64(250), stats.Completed)
	require.Equal(t, int64(250), stats.Total)

	stats, err = s.svc.ComputeStats(ctx, stranger)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}

func TestSweepOverdueRemindsTenant(t *testing.T) {
	ctx := context.Background()
	s := newBillSetup(t, 1000, time.Now().Add(time.Hour))

	n, err := s.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	s.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = s.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := s.f.bills.GetByID(ctx, s.bill.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusOverdue, stored.Status)

	// The tenant user has no email, so the reminder goes out by SMS.
	require.Len(t, s.f.notifier.sms, 1)
	require.Equal(t, "+254700000002", s.f.notifier.sms[0].to)

	// Already overdue bills are not picked up again.
	n, err = s.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
