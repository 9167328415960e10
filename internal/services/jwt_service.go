package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// ---------------------------------------------------------------------
// JWTService interface
// ---------------------------------------------------------------------

type JWTService interface {
	GenerateAccessToken(user *models.User) (string, error)

	// GenerateRefreshToken replaces the user's live refresh token with a
	// fresh one, so a user has at most one live refresh credential.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (*models.RefreshToken, error)

	// RefreshToken rotates a refresh token and returns the user with a new
	// access/refresh pair. Presenting a token that was already rotated
	// revokes all of that user's refresh tokens; an unknown token revokes
	// nothing.
	RefreshToken(ctx context.Context, refreshTokenString string) (*models.User, string, string, error)

	Logout(ctx context.Context, refreshTokenString string) error
}

// ---------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------

type jwtService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	tokenRepo     repositories.TokenRepository
	userRepo      repositories.UserRepository
}

func NewJWTService(
	cfg *config.Config,
	tokenRepo repositories.TokenRepository,
	userRepo repositories.UserRepository,
) JWTService {
	return &jwtService{
		secret:        cfg.JWTSecret,
		accessExpiry:  cfg.AccessTokenExpiry,
		refreshExpiry: cfg.RefreshTokenExpiry,
		tokenRepo:     tokenRepo,
		userRepo:      userRepo,
	}
}

// ---------------------------------------------------------------------
// GenerateAccessToken
// ---------------------------------------------------------------------

func (j *jwtService) GenerateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  constants.TokenIssuer,
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"exp":  now.Add(j.accessExpiry).Unix(),
		"iat":  now.Unix(),
		"jti":  uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// ---------------------------------------------------------------------
// GenerateRefreshToken
// ---------------------------------------------------------------------

func (j *jwtService) GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (*models.RefreshToken, error) {
	if err := j.tokenRepo.RemoveLiveRefreshTokensByUserID(ctx, userID); err != nil {
		return nil, err
	}

	rt := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     fmt.Sprintf("%s.%s", userID, utils.SecureToken(constants.RefreshTokenLength)),
		ExpiresAt: time.Now().Add(j.refreshExpiry),
		CreatedAt: time.Now(),
	}
	if err := j.tokenRepo.CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// ---------------------------------------------------------------------
// RefreshToken
// ---------------------------------------------------------------------

func (j *jwtService) RefreshToken(ctx context.Context, refreshTokenString string) (*models.User, string, string, error) {
	oldToken, err := j.tokenRepo.GetRefreshToken(ctx, refreshTokenString)
	if err != nil {
		return nil, "", "", err
	}
	if oldToken == nil {
		return nil, "", "", utils.ErrInvalidToken
	}
	if oldToken.IsRotated() {
		j.revokeFamily(ctx, oldToken.UserID)
		return nil, "", "", utils.ErrInvalidToken
	}
	if oldToken.IsExpired() {
		_ = j.tokenRepo.RemoveRefreshToken(ctx, oldToken.ID)
		return nil, "", "", utils.ErrInvalidToken
	}

	// Two exchanges racing on one token: only the first marks it.
	rotated, err := j.tokenRepo.MarkRefreshTokenRotated(ctx, oldToken.ID)
	if err != nil {
		return nil, "", "", err
	}
	if !rotated {
		j.revokeFamily(ctx, oldToken.UserID)
		return nil, "", "", utils.ErrInvalidToken
	}

	user, err := j.userRepo.GetByID(ctx, oldToken.UserID)
	if err != nil {
		return nil, "", "", err
	}
	if user == nil {
		return nil, "", "", utils.ErrInvalidToken
	}

	access, err := j.GenerateAccessToken(user)
	if err != nil {
		return nil, "", "", err
	}
	newRT, err := j.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, "", "", err
	}
	return user, access, newRT.Token, nil
}

// ---------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------

func (j *jwtService) Logout(ctx context.Context, refreshTokenString string) error {
	oldToken, err := j.tokenRepo.GetRefreshToken(ctx, refreshTokenString)
	if err != nil {
		utils.Logger.WithError(err).Error("logout fetch refresh token error in jwtService")
		return errors.New("logout server error")
	}
	if oldToken == nil || oldToken.IsRotated() {
		// already gone or superseded => no-op
		return nil
	}
	return j.tokenRepo.RemoveRefreshToken(ctx, oldToken.ID)
}

func (j *jwtService) revokeFamily(ctx context.Context, userID uuid.UUID) {
	utils.Logger.WithField("userID", userID).Warn("refresh token reuse detected; revoking all refresh tokens")
	if err := j.tokenRepo.RemoveAllRefreshTokensByUserID(ctx, userID); err != nil {
		utils.Logger.WithError(err).Error("failed to revoke refresh tokens after reuse")
	}
}
