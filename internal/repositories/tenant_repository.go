package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type TenantRepository interface {
	// CreateWithRoomClaim inserts the tenant, claims its room and opens the
	// lease in one transaction. Nothing is written unless all three succeed.
	CreateWithRoomClaim(ctx context.Context, t *models.Tenant, lease *models.Lease) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Tenant, error)
	ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error)
	ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.Tenant, error)

	// Update writes the descriptive fields and, when moveTo is set, moves the
	// tenant into that room of its property. Both happen in one transaction,
	// so a failed move leaves the fields untouched.
	Update(ctx context.Context, t *models.Tenant, moveTo *uuid.UUID) error

	// Delete releases the tenant's room and removes the tenant. A login
	// identity is removed with it only when UserID durably links one.
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAllByLandlordID(ctx context.Context, landlordID uuid.UUID) (int64, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type tenantRepo struct {
	db DB
}

func NewTenantRepository(db DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) CreateWithRoomClaim(ctx context.Context, t *models.Tenant, lease *models.Lease) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := checkTenantUnique(ctx, tx, t.Phone, t.NationalID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO tenants (
                id, landlord_id, user_id, name, email, phone, national_id,
                property_id, room_id, lease_start, lease_end, status, notes,
                created_at, updated_at
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, NOW(), NOW())
        `,
			t.ID, t.LandlordID, t.UserID, t.Name, t.Email, t.Phone, t.NationalID,
			t.PropertyID, t.RoomID, t.LeaseStart, t.LeaseEnd, t.Status, t.Notes,
		)
		if err != nil {
			return mapTenantUniqueViolation(err)
		}

		if t.RoomID != nil {
			if err := claimRoom(ctx, tx, t.PropertyID, *t.RoomID, t.ID); err != nil {
				return err
			}
		}
		return insertLease(ctx, tx, lease)
	})
}

func checkTenantUnique(ctx context.Context, db DB, phone, nationalID string) error {
	var samePhone, sameNationalID bool
	err := db.QueryRow(ctx, `
        SELECT
            COALESCE(bool_or(phone = $1), FALSE),
            COALESCE(bool_or(national_id = $2), FALSE)
        FROM tenants
        WHERE phone = $1 OR national_id = $2
    `, phone, nationalID).Scan(&samePhone, &sameNationalID)
	if err != nil {
		return err
	}
	switch {
	case samePhone:
		return utils.ErrPhoneExists
	case sameNationalID:
		return utils.ErrNationalIDExists
	}
	return nil
}

func mapTenantUniqueViolation(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	if strings.Contains(constraint, "national_id") {
		return utils.ErrNationalIDExists
	}
	return utils.ErrPhoneExists
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx, baseSelectTenant()+" WHERE id=$1", id))
}

func (r *tenantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx,
		baseSelectTenant()+" WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1", userID))
}

func (r *tenantRepo) ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Tenant, error) {
	return r.list(ctx, baseSelectTenant()+" WHERE landlord_id=$1 ORDER BY created_at", landlordID)
}

func (r *tenantRepo) ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.Tenant, error) {
	return r.list(ctx, baseSelectTenant()+" WHERE property_id=$1 ORDER BY created_at", propertyID)
}

func (r *tenantRepo) list(ctx context.Context, q string, args ...any) ([]*models.Tenant, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant, moveTo *uuid.UUID) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE tenants SET
                name=$1, email=$2, phone=$3, national_id=$4,
                lease_start=$5, lease_end=$6, status=$7, notes=$8,
                updated_at=NOW()
            WHERE id=$9
        `,
			t.Name, t.Email, t.Phone, t.NationalID,
			t.LeaseStart, t.LeaseEnd, t.Status, t.Notes,
			t.ID,
		)
		if err != nil {
			return mapTenantUniqueViolation(err)
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if moveTo == nil {
			return nil
		}
		return moveTenant(ctx, tx, t.PropertyID, *moveTo, t.ID)
	})
}

func (r *tenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var userID *uuid.UUID
		err := tx.QueryRow(ctx, `SELECT user_id FROM tenants WHERE id=$1 FOR UPDATE`, id).Scan(&userID)
		if err != nil {
			return err
		}
		if err := releaseRoomsOfTenant(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id=$1`, id); err != nil {
			return err
		}
		if userID != nil {
			_, err = tx.Exec(ctx, `DELETE FROM users WHERE id=$1 AND role='tenant'`, *userID)
		}
		return err
	})
}

func (r *tenantRepo) DeleteAllByLandlordID(ctx context.Context, landlordID uuid.UUID) (int64, error) {
	var n int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            UPDATE rooms SET is_occupied=FALSE, tenant_id=NULL, updated_at=NOW()
            WHERE tenant_id IN (SELECT id FROM tenants WHERE landlord_id=$1)
        `, landlordID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `DELETE FROM tenants WHERE landlord_id=$1 RETURNING user_id`, landlordID)
		if err != nil {
			return err
		}
		var linked []uuid.UUID
		for rows.Next() {
			var userID *uuid.UUID
			if err := rows.Scan(&userID); err != nil {
				rows.Close()
				return err
			}
			n++
			if userID != nil {
				linked = append(linked, *userID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(linked) > 0 {
			_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = ANY($1) AND role='tenant'`, linked)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

func baseSelectTenant() string {
	return `
        SELECT
            id, landlord_id, user_id, name, email, phone, national_id,
            property_id, room_id, lease_start, lease_end, status, notes,
            created_at, updated_at
        FROM tenants
    `
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.ID, &t.LandlordID, &t.UserID, &t.Name, &t.Email, &t.Phone, &t.NationalID,
		&t.PropertyID, &t.RoomID, &t.LeaseStart, &t.LeaseEnd, &t.Status, &t.Notes,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
