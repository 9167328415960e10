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

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RenameRole(ctx context.Context, from, to string) (int64, error)
	DeleteUnlinkedNonLandlords(ctx context.Context) (int64, error)
	CountUnlinkedNonLandlords(ctx context.Context) (int64, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type userRepo struct {
	db DB
}

func NewUserRepository(db DB) UserRepository {
	return &userRepo{db: db}
}

func baseSelectUser() string {
	return `
        SELECT id, name, email, phone, password_hash, role, created_at, updated_at
        FROM users
    `
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO users (id, name, email, phone, password_hash, role, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6, NOW(), NOW())
    `, u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role)
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "email") {
			return utils.ErrEmailExists
		}
		return utils.ErrPhoneExists
	}
	return err
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, baseSelectUser()+" WHERE id=$1", id))
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, baseSelectUser()+" WHERE phone=$1", phone))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, baseSelectUser()+" WHERE lower(email)=lower($1)", email))
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2
    `, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

/* ---------- administrative maintenance ---------- */

// RenameRole rewrites legacy role values (e.g. owner → landlord).
func (r *userRepo) RenameRole(ctx context.Context, from, to string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role=$1, updated_at=NOW() WHERE role=$2`, to, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const unlinkedNonLandlords = `
    FROM users u
    WHERE u.role NOT IN ('landlord','admin')
      AND NOT EXISTS (SELECT 1 FROM tenants t WHERE t.user_id = u.id)
`

func (r *userRepo) CountUnlinkedNonLandlords(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+unlinkedNonLandlords).Scan(&n)
	return n, err
}

// DeleteUnlinkedNonLandlords removes non-landlord identities that no tenant
// record durably references.
func (r *userRepo) DeleteUnlinkedNonLandlords(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM users WHERE id IN (SELECT u.id "+unlinkedNonLandlords+")")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
