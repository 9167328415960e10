package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type BillRepository interface {
	Create(ctx context.Context, b *models.Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bill, error)

	// ListVisibleTo returns bills the user created or owes, newest due first.
	// A nil status returns every status.
	ListVisibleTo(ctx context.Context, userID uuid.UUID, status *models.BillStatus) ([]*models.Bill, error)
	StatsVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.BillStatusStat, error)

	// ListDueForOverdue returns pending bills whose due date is before now.
	ListDueForOverdue(ctx context.Context, now time.Time) ([]*models.Bill, error)

	UpdateIfVersion(ctx context.Context, b *models.Bill, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Bill) error) error

	// LockForUpdate takes the bill's row lock until the surrounding
	// transaction ends. Writers that lock first queue behind each other
	// instead of racing on row_version. It returns pgx.ErrNoRows when the
	// bill does not exist.
	LockForUpdate(ctx context.Context, id uuid.UUID) error

	Delete(ctx context.Context, id uuid.UUID) error
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type billRepo struct {
	versioned *versionedRows[*models.Bill]
	db DB
}

func NewBillRepository(db DB) BillRepository {
	r := &billRepo{db: db}
	selectStmt := baseSelectBill() + " WHERE id=$1"
	r.versioned = newVersionedRows(db, "bill", selectStmt, scanBill)
	return r
}

func (r *billRepo) Create(ctx context.Context, b *models.Bill) error {
	if b.PaymentHistory == nil {
		b.PaymentHistory = []models.PaymentEntry{}
	}
	history, err := json.Marshal(b.PaymentHistory)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
        INSERT INTO bills (
            id, tenant_user_id, tenant_id, property_id, room_id, created_by,
            type, description, amount, due_date, status, payment_history,
            created_at, updated_at, row_version
        ) VALUES (
            $1,$2,$3,$4,$5,$6,
            $7,$8,$9,$10,$11,$12,
            NOW(), NOW(), 1
        )
    `,
		b.ID, b.TenantUserID, b.TenantID, b.PropertyID, b.RoomID, b.CreatedBy,
		b.Type, b.Description, b.Amount, b.DueDate, b.Status, history,
	)
	if err == nil {
		b.RowVersion = 1
	}
	return err
}

func (r *billRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	return r.versioned.get(ctx, id)
}

func (r *billRepo) ListVisibleTo(ctx context.Context, userID uuid.UUID, status *models.BillStatus) ([]*models.Bill, error) {
	q := baseSelectBill() + " WHERE (created_by=$1 OR tenant_user_id=$1)"
	args := []any{userID}
	if status != nil {
		q += " AND status=$2"
		args = append(args, *status)
	}
	q += " ORDER BY due_date DESC, created_at DESC"
	return r.list(ctx, q, args...)
}

func (r *billRepo) ListDueForOverdue(ctx context.Context, now time.Time) ([]*models.Bill, error) {
	return r.list(ctx, baseSelectBill()+`
        WHERE status='pending' AND due_date < $1
        ORDER BY due_date
    `, now)
}

func (r *billRepo) list(ctx context.Context, q string, args ...any) ([]*models.Bill, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *billRepo) StatsVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.BillStatusStat, error) {
	rows, err := r.db.Query(ctx, `
        SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
        FROM bills
        WHERE created_by=$1 OR tenant_user_id=$1
        GROUP BY status
        ORDER BY status
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BillStatusStat
	for rows.Next() {
		var s models.BillStatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *billRepo) UpdateIfVersion(ctx context.Context, b *models.Bill, expected int64) (pgconn.CommandTag, error) {
	history, err := json.Marshal(b.PaymentHistory)
	if err != nil {
		return nil, err
	}
	return r.db.Exec(ctx, `
        UPDATE bills SET
            type=$1, description=$2, amount=$3, due_date=$4,
            status=$5, payment_history=$6,
            updated_at=NOW(), row_version=row_version+1
        WHERE id=$7 AND row_version=$8
    `,
		b.Type, b.Description, b.Amount, b.DueDate,
		b.Status, history,
		b.ID, expected,
	)
}

func (r *billRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Bill) error) error {
	return r.versioned.mutate(ctx, id, mutate, r.UpdateIfVersion)
}

func (r *billRepo) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	return r.db.QueryRow(ctx, `SELECT id FROM bills WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
}

func (r *billRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bills WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

func baseSelectBill() string {
	return `
        SELECT
            id, tenant_user_id, tenant_id, property_id, room_id, created_by,
            type, description, amount, due_date, status, payment_history,
            created_at, updated_at, row_version
        FROM bills
    `
}

func scanBill(row pgx.Row) (*models.Bill, error) {
	var (
		b        models.Bill
		historyB []byte
	)
	err := row.Scan(
		&b.ID, &b.TenantUserID, &b.TenantID, &b.PropertyID, &b.RoomID, &b.CreatedBy,
		&b.Type, &b.Description, &b.Amount, &b.DueDate, &b.Status, &historyB,
		&b.CreatedAt, &b.UpdatedAt, &b.RowVersion,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.PaymentHistory = []models.PaymentEntry{}
	if len(historyB) > 0 {
		if err := json.Unmarshal(historyB, &b.PaymentHistory); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
