package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
)

type ComplaintRepository interface {
	Create(ctx context.Context, c *models.Complaint) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Complaint, error)
	ListByAuthorID(ctx context.Context, authorID uuid.UUID) ([]*models.Complaint, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ComplaintStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type complaintRepo struct {
	db DB
}

func NewComplaintRepository(db DB) ComplaintRepository {
	return &complaintRepo{db: db}
}

func (r *complaintRepo) Create(ctx context.Context, c *models.Complaint) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO complaints (
            id, property_id, landlord_id, author_id, title, description, status,
            created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7, NOW(), NOW())
    `, c.ID, c.PropertyID, c.LandlordID, c.AuthorID, c.Title, c.Description, c.Status)
	return err
}

func (r *complaintRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	return scanComplaint(r.db.QueryRow(ctx, baseSelectComplaint()+" WHERE id=$1", id))
}

func (r *complaintRepo) ListByLandlordID(ctx context.Context, landlordID uuid.UUID) ([]*models.Complaint, error) {
	return r.list(ctx, baseSelectComplaint()+" WHERE landlord_id=$1 ORDER BY created_at DESC", landlordID)
}

func (r *complaintRepo) ListByAuthorID(ctx context.Context, authorID uuid.UUID) ([]*models.Complaint, error) {
	return r.list(ctx, baseSelectComplaint()+" WHERE author_id=$1 ORDER BY created_at DESC", authorID)
}

func (r *complaintRepo) list(ctx context.Context, q string, args ...any) ([]*models.Complaint, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *complaintRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ComplaintStatus) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE complaints SET status=$1, updated_at=NOW() WHERE id=$2
    `, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *complaintRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM complaints WHERE id=$1`, id)
	return err
}

func baseSelectComplaint() string {
	return `
        SELECT id, property_id, landlord_id, author_id, title, description, status,
               created_at, updated_at
        FROM complaints
    `
}

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(
		&c.ID, &c.PropertyID, &c.LandlordID, &c.AuthorID, &c.Title, &c.Description, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
