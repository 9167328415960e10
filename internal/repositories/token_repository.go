package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// GetRefreshToken returns live and rotated rows alike; nil when the hash
	// is unknown.
	GetRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error)
	// MarkRefreshTokenRotated flags a live token as exchanged. False when it
	// was already rotated or removed.
	MarkRefreshTokenRotated(ctx context.Context, id uuid.UUID) (bool, error)
	RemoveRefreshToken(ctx context.Context, id uuid.UUID) error
	// RemoveLiveRefreshTokensByUserID drops the user's unrotated tokens and
	// keeps rotated ones for reuse detection.
	RemoveLiveRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error
	RemoveAllRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error
	CleanupExpiredRefreshTokens(ctx context.Context) error

	CreatePasswordReset(ctx context.Context, pr *models.PasswordReset) error
	// ConsumePasswordReset deletes and returns the live reset row for the raw
	// token; nil when the token is unknown or expired.
	ConsumePasswordReset(ctx context.Context, rawToken string) (*models.PasswordReset, error)
	RemovePasswordResetsByUserID(ctx context.Context, userID uuid.UUID) error
	CleanupExpiredPasswordResets(ctx context.Context) error
}

type tokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) TokenRepository {
	return &tokenRepository{db: db}
}

// ----------------------------
// Refresh tokens
// ----------------------------

func (r *tokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	query := `
        INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.UserID,
		utils.HashToken(token.Token),
		token.ExpiresAt,
	)
	return err
}

func (r *tokenRepository) GetRefreshToken(ctx context.Context, rawToken string) (*models.RefreshToken, error) {
	query := `
        SELECT id, user_id, expires_at, created_at, rotated_at
        FROM refresh_tokens
        WHERE token_hash = $1
    `
	var rt models.RefreshToken
	err := r.db.QueryRow(ctx, query, utils.HashToken(rawToken)).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.ExpiresAt,
		&rt.CreatedAt,
		&rt.RotatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rt, nil
}

func (r *tokenRepository) MarkRefreshTokenRotated(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE refresh_tokens SET rotated_at = NOW()
        WHERE id = $1 AND rotated_at IS NULL
    `, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *tokenRepository) RemoveLiveRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1 AND rotated_at IS NULL`, userID)
	return err
}

func (r *tokenRepository) RemoveRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	return err
}

func (r *tokenRepository) RemoveAllRefreshTokensByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *tokenRepository) CleanupExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	return err
}

// ----------------------------
// Password resets
// ----------------------------

func (r *tokenRepository) CreatePasswordReset(ctx context.Context, pr *models.PasswordReset) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `, pr.ID, pr.UserID, pr.TokenHash, pr.ExpiresAt)
	return err
}

func (r *tokenRepository) ConsumePasswordReset(ctx context.Context, rawToken string) (*models.PasswordReset, error) {
	var pr models.PasswordReset
	err := r.db.QueryRow(ctx, `
        DELETE FROM password_resets
        WHERE token_hash = $1 AND expires_at > $2
        RETURNING id, user_id, token_hash, expires_at, created_at
    `, utils.HashToken(rawToken), time.Now()).Scan(
		&pr.ID, &pr.UserID, &pr.TokenHash, &pr.ExpiresAt, &pr.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (r *tokenRepository) RemovePasswordResetsByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
	return err
}

func (r *tokenRepository) CleanupExpiredPasswordResets(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE expires_at < NOW()`)
	return err
}
