package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type PaymentRepository interface {
	// Create returns utils.ErrIdempotencyKeyReused when the creator already
	// used the payment's idempotency key.
	Create(ctx context.Context, p *models.Payment) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByIdempotencyKey(ctx context.Context, createdBy uuid.UUID, key string) (*models.Payment, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)

	// ListVisibleTo returns payments on bills the user created or owes.
	ListVisibleTo(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
	StatsVisibleTo(ctx context.Context, userID uuid.UUID) (*models.PaymentStats, error)

	UpdateIfVersion(ctx context.Context, p *models.Payment, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Payment) error) error

	// SettlePending moves a pending gateway payment to status. It returns nil
	// when no pending payment carries checkoutRequestID, which is how a
	// replayed callback is recognised.
	SettlePending(
		ctx context.Context,
		checkoutRequestID string,
		status models.PaymentStatus,
		transactionID *string,
		notes string,
	) (*models.Payment, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type paymentRepo struct {
	versioned *versionedRows[*models.Payment]
	db DB
}

func NewPaymentRepository(db DB) PaymentRepository {
	r := &paymentRepo{db: db}
	selectStmt := baseSelectPayment() + " WHERE id=$1"
	r.versioned = newVersionedRows(db, "payment", selectStmt, scanPayment)
	return r
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO payments (
            id, bill_id, amount, method, status, reference,
            transaction_id, checkout_request_id, idempotency_key,
            payment_date, notes, created_by,
            created_at, updated_at, row_version
        ) VALUES (
            $1,$2,$3,$4,$5,$6,
            $7,$8,$9,
            $10,$11,$12,
            NOW(), NOW(), 1
        )
    `,
		p.ID, p.BillID, p.Amount, p.Method, p.Status, p.Reference,
		p.TransactionID, p.CheckoutRequestID, p.IdempotencyKey,
		p.PaymentDate, p.Notes, p.CreatedBy,
	)
	if constraint, ok := uniqueViolation(err); ok && constraint == "payments_idempotency_key_uniq" {
		return utils.ErrIdempotencyKeyReused
	}
	if err == nil {
		p.RowVersion = 1
	}
	return err
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.versioned.get(ctx, id)
}

func (r *paymentRepo) GetByIdempotencyKey(ctx context.Context, createdBy uuid.UUID, key string) (*models.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx,
		baseSelectPayment()+" WHERE created_by=$1 AND idempotency_key=$2", createdBy, key))
}

func (r *paymentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx,
		baseSelectPayment()+" WHERE checkout_request_id=$1", checkoutRequestID))
}

const visiblePayments = `
    WHERE bill_id IN (
        SELECT b.id FROM bills b
        WHERE b.created_by=$1 OR b.tenant_user_id=$1
    )
`

func (r *paymentRepo) ListVisibleTo(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	rows, err := r.db.Query(ctx, baseSelectPayment()+visiblePayments+" ORDER BY payment_date DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) StatsVisibleTo(ctx context.Context, userID uuid.UUID) (*models.PaymentStats, error) {
	rows, err := r.db.Query(ctx, `
        SELECT status, COALESCE(SUM(amount), 0)
        FROM payments
    `+visiblePayments+`
        GROUP BY status
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.PaymentStats{}
	for rows.Next() {
		var (
			status models.PaymentStatus
			sum    int64
		)
		if err := rows.Scan(&status, &sum); err != nil {
			return nil, err
		}
		stats.Add(status, sum)
	}
	return stats, rows.Err()
}

func (r *paymentRepo) UpdateIfVersion(ctx context.Context, p *models.Payment, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE payments SET
            status=$1, transaction_id=$2, notes=$3,
            updated_at=NOW(), row_version=row_version+1
        WHERE id=$4 AND row_version=$5
    `, p.Status, p.TransactionID, p.Notes, p.ID, expected)
}

func (r *paymentRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Payment) error) error {
	return r.versioned.mutate(ctx, id, mutate, r.UpdateIfVersion)
}

func (r *paymentRepo) SettlePending(
	ctx context.Context,
	checkoutRequestID string,
	status models.PaymentStatus,
	transactionID *string,
	notes string,
) (*models.Payment, error) {
	return scanPayment(r.db.QueryRow(ctx, `
        UPDATE payments SET
            status=$1,
            transaction_id=COALESCE($2, transaction_id),
            notes=CASE WHEN $3 = '' THEN notes ELSE $3 END,
            updated_at=NOW(), row_version=row_version+1
        WHERE checkout_request_id=$4 AND status='pending'
        RETURNING `+paymentColumns,
		status, transactionID, notes, checkoutRequestID,
	))
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

const paymentColumns = `
    id, bill_id, amount, method, status, reference,
    transaction_id, checkout_request_id, idempotency_key,
    payment_date, notes, created_by,
    created_at, updated_at, row_version
`

func baseSelectPayment() string {
	return "SELECT " + paymentColumns + " FROM payments "
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.BillID, &p.Amount, &p.Method, &p.Status, &p.Reference,
		&p.TransactionID, &p.CheckoutRequestID, &p.IdempotencyKey,
		&p.PaymentDate, &p.Notes, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.RowVersion,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
