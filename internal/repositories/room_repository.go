package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// RoomRepository owns the occupancy primitives. Every write that flips a
// room's occupancy goes through claimRoom or releaseRoom so the
// is_occupied/tenant_id pair is always changed in a single statement.
type RoomRepository interface {
	GetByID(ctx context.Context, propertyID, roomID uuid.UUID) (*models.Room, error)

	// Claim marks a free room as occupied by tenantID. ErrRoomOccupied when
	// another tenant holds it, ErrRoomNotFound when it does not exist.
	Claim(ctx context.Context, propertyID, roomID, tenantID uuid.UUID) error

	// AssignTenant moves an existing tenant into roomID, releasing the room
	// it held before and opening a new lease, in one transaction.
	AssignTenant(ctx context.Context, propertyID, roomID, tenantID uuid.UUID) error

	// Release frees the room and unbinds whichever tenant held it. The
	// returned id is the tenant that was released, nil if the room was free.
	Release(ctx context.Context, propertyID, roomID uuid.UUID) (*uuid.UUID, error)
}

type roomRepo struct {
	db DB
}

func NewRoomRepository(db DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) GetByID(ctx context.Context, propertyID, roomID uuid.UUID) (*models.Room, error) {
	return scanRoom(r.db.QueryRow(ctx,
		baseSelectRoom()+" WHERE id=$1 AND property_id=$2", roomID, propertyID))
}

func (r *roomRepo) Claim(ctx context.Context, propertyID, roomID, tenantID uuid.UUID) error {
	return claimRoom(ctx, r.db, propertyID, roomID, tenantID)
}

func (r *roomRepo) AssignTenant(ctx context.Context, propertyID, roomID, tenantID uuid.UUID) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		return moveTenant(ctx, tx, propertyID, roomID, tenantID)
	})
}

func (r *roomRepo) Release(ctx context.Context, propertyID, roomID uuid.UUID) (*uuid.UUID, error) {
	var released *uuid.UUID
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		released, err = releaseRoom(ctx, tx, propertyID, roomID)
		if err != nil || released == nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            UPDATE tenants SET room_id=NULL, updated_at=NOW() WHERE id=$1
        `, *released)
		if err != nil {
			return err
		}
		return endActiveLeases(ctx, tx, *released)
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

/* ------------------------------------------------------------------
   Occupancy primitives (usable inside any transaction)
------------------------------------------------------------------ */

// moveTenant releases whatever room the tenant holds, ends its active
// leases, claims roomID and opens a new lease. It is a no-op when the tenant
// already holds roomID.
func moveTenant(ctx context.Context, tx pgx.Tx, propertyID, roomID, tenantID uuid.UUID) error {
	var (
		currentRoom *uuid.UUID
		lease       models.Lease
	)
	err := tx.QueryRow(ctx, `
        SELECT room_id, lease_start, lease_end, notes
        FROM tenants WHERE id=$1
        FOR UPDATE
    `, tenantID).Scan(&currentRoom, &lease.LeaseStart, &lease.LeaseEnd, &lease.Notes)
	if err != nil {
		return err
	}
	if currentRoom != nil && *currentRoom == roomID {
		return nil
	}

	if err := releaseRoomsOfTenant(ctx, tx, tenantID); err != nil {
		return err
	}
	if err := endActiveLeases(ctx, tx, tenantID); err != nil {
		return err
	}
	if err := claimRoom(ctx, tx, propertyID, roomID, tenantID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
        UPDATE tenants SET property_id=$1, room_id=$2, status='active', updated_at=NOW()
        WHERE id=$3
    `, propertyID, roomID, tenantID); err != nil {
		return err
	}

	lease.ID = uuid.New()
	lease.TenantID = tenantID
	lease.PropertyID = propertyID
	lease.RoomID = &roomID
	lease.Status = models.TenantStatusActive
	return insertLease(ctx, tx, &lease)
}

// claimRoom is the single conditional update that binds a room. Concurrent
// claims on the same row serialise on its lock, and the loser re-evaluates
// NOT is_occupied and matches nothing.
func claimRoom(ctx context.Context, db DB, propertyID, roomID, tenantID uuid.UUID) error {
	tag, err := db.Exec(ctx, `
        UPDATE rooms
        SET is_occupied=TRUE, tenant_id=$1, updated_at=NOW()
        WHERE id=$2 AND property_id=$3 AND NOT is_occupied
    `, tenantID, roomID, propertyID)
	if _, ok := uniqueViolation(err); ok {
		// tenant already bound to another room
		return utils.ErrRoomOccupied
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id=$1 AND property_id=$2)`, roomID, propertyID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return utils.ErrRoomNotFound
	}
	return utils.ErrRoomOccupied
}

func releaseRoom(ctx context.Context, db DB, propertyID, roomID uuid.UUID) (*uuid.UUID, error) {
	var prev *uuid.UUID
	err := db.QueryRow(ctx, `
        WITH prev AS (
            SELECT id, tenant_id FROM rooms
            WHERE id=$1 AND property_id=$2
            FOR UPDATE
        )
        UPDATE rooms r
        SET is_occupied=FALSE, tenant_id=NULL, updated_at=NOW()
        FROM prev
        WHERE r.id = prev.id
        RETURNING prev.tenant_id
    `, roomID, propertyID).Scan(&prev)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return prev, nil
}

func releaseRoomsOfTenant(ctx context.Context, db DB, tenantID uuid.UUID) error {
	_, err := db.Exec(ctx, `
        UPDATE rooms SET is_occupied=FALSE, tenant_id=NULL, updated_at=NOW()
        WHERE tenant_id=$1
    `, tenantID)
	return err
}

func endActiveLeases(ctx context.Context, db DB, tenantID uuid.UUID) error {
	_, err := db.Exec(ctx, `
        UPDATE leases
        SET status='inactive', lease_end=LEAST(lease_end, NOW()), updated_at=NOW()
        WHERE tenant_id=$1 AND status='active'
    `, tenantID)
	return err
}
