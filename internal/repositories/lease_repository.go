package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

type LeaseRepository interface {
	ListByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*models.Lease, error)
}

type leaseRepo struct {
	db DB
}

func NewLeaseRepository(db DB) LeaseRepository {
	return &leaseRepo{db: db}
}

func (r *leaseRepo) ListByTenantID(ctx context.Context, tenantID uuid.UUID) ([]*models.Lease, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, tenant_id, property_id, room_id, lease_start, lease_end,
               status, notes, created_at, updated_at
        FROM leases
        WHERE tenant_id=$1
        ORDER BY lease_start DESC
    `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertLease(ctx context.Context, db DB, l *models.Lease) error {
	_, err := db.Exec(ctx, `
        INSERT INTO leases (
            id, tenant_id, property_id, room_id, lease_start, lease_end,
            status, notes, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW(), NOW())
    `, l.ID, l.TenantID, l.PropertyID, l.RoomID, l.LeaseStart, l.LeaseEnd, l.Status, l.Notes)
	return err
}

func scanLease(row pgx.Row) (*models.Lease, error) {
	var l models.Lease
	err := row.Scan(
		&l.ID, &l.TenantID, &l.PropertyID, &l.RoomID, &l.LeaseStart, &l.LeaseEnd,
		&l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
