package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error)
	ListAllProperties(ctx context.Context) ([]*models.Property, error)

	UpdateIfVersion(ctx context.Context, p *models.Property, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error
	// Delete removes the property with its floors and rooms. It refuses
	// (returns false) while any room is occupied or a tenant record still
	// points at the property.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	AddFloor(ctx context.Context, f *models.Floor) error
	AddRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	// DeleteRoom only deletes an unoccupied room; false means it was occupied
	// or absent.
	DeleteRoom(ctx context.Context, propertyID, roomID uuid.UUID) (bool, error)

	BackfillDefaults(ctx context.Context) (int64, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type propertyRepo struct {
	versioned *versionedRows[*models.Property]
	db DB
}

func NewPropertyRepository(db DB) PropertyRepository {
	r := &propertyRepo{db: db}
	selectStmt := baseSelectProperty() + " WHERE id=$1"
	r.versioned = newVersionedRows(db, "property", selectStmt, scanProperty)
	return r
}

func (r *propertyRepo) Create(ctx context.Context, p *models.Property) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO properties (
                id, landlord_id, name, address, rent_amount,
                created_at, updated_at, row_version
            ) VALUES ($1,$2,$3,$4,$5, NOW(), NOW(), 1)
        `, p.ID, p.LandlordID, p.Name, p.Address, p.RentAmount)
		if err != nil {
			return err
		}
		p.RowVersion = 1

		for fi, f := range p.Floors {
			f.PropertyID = p.ID
			if err := insertFloor(ctx, tx, f, fi); err != nil {
				return err
			}
			for ri, room := range f.Rooms {
				room.PropertyID = p.ID
				room.FloorID = f.ID
				if err := insertRoom(ctx, tx, room, ri); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func insertFloor(ctx context.Context, db DB, f *models.Floor, position int) error {
	_, err := db.Exec(ctx, `
        INSERT INTO floors (id, property_id, number, position, created_at)
        VALUES ($1,$2,$3,$4, NOW())
    `, f.ID, f.PropertyID, f.Number, position)
	return err
}

func insertRoom(ctx context.Context, db DB, room *models.Room, position int) error {
	_, err := db.Exec(ctx, `
        INSERT INTO rooms (
            id, property_id, floor_id, label, rent_amount,
            is_occupied, tenant_id, position, created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5, FALSE, NULL, $6, NOW(), NOW())
    `, room.ID, room.PropertyID, room.FloorID, room.Label, room.RentAmount, position)
	return err
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := r.versioned.get(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if err := r.loadLayout(ctx, []*models.Property{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *propertyRepo) ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Property, error) {
	return r.list(ctx, baseSelectProperty()+" WHERE landlord_id=$1 ORDER BY created_at", landlordID)
}

func (r *propertyRepo) ListAllProperties(ctx context.Context) ([]*models.Property, error) {
	return r.list(ctx, baseSelectProperty()+" ORDER BY created_at")
}

func (r *propertyRepo) list(ctx context.Context, q string, args ...any) ([]*models.Property, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLayout(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadLayout attaches floors and rooms, both in their stored order.
func (r *propertyRepo) loadLayout(ctx context.Context, props []*models.Property) error {
	if len(props) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(props))
	byID := make(map[uuid.UUID]*models.Property, len(props))
	for _, p := range props {
		p.Floors = []*models.Floor{}
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	floorRows, err := r.db.Query(ctx, `
        SELECT id, property_id, number, created_at
        FROM floors
        WHERE property_id = ANY($1)
        ORDER BY position, number
    `, ids)
	if err != nil {
		return err
	}
	floors := make(map[uuid.UUID]*models.Floor)
	for floorRows.Next() {
		f := &models.Floor{Rooms: []*models.Room{}}
		if err := floorRows.Scan(&f.ID, &f.PropertyID, &f.Number, &f.CreatedAt); err != nil {
			floorRows.Close()
			return err
		}
		floors[f.ID] = f
		byID[f.PropertyID].Floors = append(byID[f.PropertyID].Floors, f)
	}
	floorRows.Close()
	if err := floorRows.Err(); err != nil {
		return err
	}

	roomRows, err := r.db.Query(ctx, baseSelectRoom()+`
        WHERE property_id = ANY($1)
        ORDER BY position, created_at
    `, ids)
	if err != nil {
		return err
	}
	defer roomRows.Close()
	for roomRows.Next() {
		room, err := scanRoom(roomRows)
		if err != nil {
			return err
		}
		if f, ok := floors[room.FloorID]; ok {
			f.Rooms = append(f.Rooms, room)
		}
	}
	return roomRows.Err()
}

func (r *propertyRepo) UpdateIfVersion(ctx context.Context, p *models.Property, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE properties SET
            name=$1, address=$2, rent_amount=$3,
            updated_at=NOW(), row_version=row_version+1
        WHERE id=$4 AND row_version=$5
    `, p.Name, p.Address, p.RentAmount, p.ID, expected)
}

func (r *propertyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error {
	return r.versioned.mutate(ctx, id, mutate, r.UpdateIfVersion)
}

func (r *propertyRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM properties
        WHERE id=$1
          AND NOT EXISTS (SELECT 1 FROM rooms WHERE property_id=$1 AND is_occupied)
          AND NOT EXISTS (SELECT 1 FROM tenants WHERE property_id=$1)
    `, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

/* ---------- floors & rooms ---------- */

func (r *propertyRepo) AddFloor(ctx context.Context, f *models.Floor) error {
	var position int
	if err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM floors WHERE property_id=$1`, f.PropertyID,
	).Scan(&position); err != nil {
		return err
	}
	f.CreatedAt = time.Now()
	return insertFloor(ctx, r.db, f, position)
}

func (r *propertyRepo) AddRoom(ctx context.Context, room *models.Room) error {
	var position int
	if err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM rooms WHERE floor_id=$1`, room.FloorID,
	).Scan(&position); err != nil {
		return err
	}
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	return insertRoom(ctx, r.db, room, position)
}

func (r *propertyRepo) UpdateRoom(ctx context.Context, room *models.Room) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE rooms SET label=$1, rent_amount=$2, updated_at=NOW()
        WHERE id=$3 AND property_id=$4
    `, room.Label, room.RentAmount, room.ID, room.PropertyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *propertyRepo) DeleteRoom(ctx context.Context, propertyID, roomID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        DELETE FROM rooms WHERE id=$1 AND property_id=$2 AND NOT is_occupied
    `, roomID, propertyID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// BackfillDefaults fills legacy rows missing an address.
func (r *propertyRepo) BackfillDefaults(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE properties
        SET address = 'Unknown Address', updated_at = NOW(), row_version = row_version + 1
        WHERE btrim(address) = ''
    `)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

func baseSelectProperty() string {
	return `
        SELECT
            id, landlord_id, name, address, rent_amount,
            created_at, updated_at, row_version
        FROM properties
    `
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID, &p.LandlordID, &p.Name, &p.Address, &p.RentAmount,
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

func baseSelectRoom() string {
	return `
        SELECT id, property_id, floor_id, label, rent_amount,
               is_occupied, tenant_id, created_at, updated_at
        FROM rooms
    `
}

func scanRoom(row pgx.Row) (*models.Room, error) {
	var room models.Room
	err := row.Scan(
		&room.ID, &room.PropertyID, &room.FloorID, &room.Label, &room.RentAmount,
		&room.IsOccupied, &room.TenantID, &room.CreatedAt, &room.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}
