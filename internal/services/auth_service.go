package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"

	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// AuthService covers registration, login, token rotation and password reset.
type AuthService interface {
	Register(ctx context.Context, req dtos.RegisterRequest) (*dtos.AuthResponse, error)
	Login(ctx context.Context, req dtos.LoginRequest) (*dtos.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dtos.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)

	RequestPasswordReset(ctx context.Context, req dtos.RequestPasswordResetRequest) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type authService struct {
	cfg          *config.Config
	userRepo     repositories.UserRepository
	tokenRepo    repositories.TokenRepository
	jwtService   JWTService
	notifier     Notifier
	twilioClient *twilio.RestClient
}

func NewAuthService(
	cfg *config.Config,
	userRepo repositories.UserRepository,
	tokenRepo repositories.TokenRepository,
	jwtService JWTService,
	notifier Notifier,
	twilioClient *twilio.RestClient,
) AuthService {
	return &authService{
		cfg:          cfg,
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		jwtService:   jwtService,
		notifier:     notifier,
		twilioClient: twilioClient,
	}
}

func invalidCredentials() *utils.AppError {
	return &utils.AppError{
		StatusCode: http.StatusUnauthorized,
		Code:       utils.ErrCodeInvalidCredentials,
		Message:    "Invalid credentials",
		Err:        utils.ErrInvalidCredentials,
	}
}

// ---------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------
func (s *authService) Register(ctx context.Context, req dtos.RegisterRequest) (*dtos.AuthResponse, error) {
	role := models.RoleLandlord
	if req.Role != "" {
		role = models.Role(req.Role)
	}
	if role == models.RoleAdmin {
		return nil, utils.NewNotPermittedError("admin accounts cannot be self-registered")
	}

	phone := req.ResolvedPhone()
	ok, err := utils.ValidatePhoneNumber(ctx, phone, s.cfg.LDFlag_ValidatePhoneWithTwilio, s.twilioClient)
	if err != nil {
		return nil, externalFailure("Phone validation is unavailable", err)
	}
	if !ok {
		return nil, utils.NewValidationError("phone must be in E.164 format, e.g. +254700000000", utils.ErrInvalidPhone)
	}

	var email *string
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email = utils.Ptr(strings.ToLower(strings.TrimSpace(*req.Email)))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, utils.NewInternalError("Failed to hash password", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, utils.ErrPhoneExists):
			return nil, utils.NewConflictError("A user with this phone already exists", err)
		case errors.Is(err, utils.ErrEmailExists):
			return nil, utils.NewConflictError("A user with this email already exists", err)
		}
		return nil, utils.NewInternalError("Failed to create user", err)
	}

	utils.Logger.WithField("userID", user.ID).WithField("role", user.Role).Info("user registered")
	return s.issueTokens(ctx, user)
}

// ---------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------
func (s *authService) Login(ctx context.Context, req dtos.LoginRequest) (*dtos.AuthResponse, error) {
	var (
		user *models.User
		err  error
	)
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user, err = s.userRepo.GetByPhone(ctx, phone)
	} else {
		user, err = s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	}
	if err != nil {
		return nil, utils.NewInternalError("Failed to look up user", err)
	}
	if user == nil || !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, invalidCredentials()
	}
	return s.issueTokens(ctx, user)
}

// issueTokens mints an access token and replaces the user's refresh token.
func (s *authService) issueTokens(ctx context.Context, user *models.User) (*dtos.AuthResponse, error) {
	access, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, utils.NewInternalError("Failed to generate access token", err)
	}
	rt, err := s.jwtService.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to generate refresh token", err)
	}
	return &dtos.AuthResponse{User: user, AccessToken: access, RefreshToken: rt.Token}, nil
}

// ---------------------------------------------------------------------
// RefreshToken / Logout / Me
// ---------------------------------------------------------------------
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*dtos.AuthResponse, error) {
	user, access, refresh, err := s.jwtService.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidToken) {
			return nil, utils.NewUnauthorizedError("Invalid or expired refresh token")
		}
		return nil, utils.NewInternalError("Failed to refresh token", err)
	}
	return &dtos.AuthResponse{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.jwtService.Logout(ctx, refreshToken); err != nil {
		return utils.NewInternalError("Failed to log out", err)
	}
	return nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, utils.NewInternalError("Failed to load user", err)
	}
	if user == nil {
		return nil, utils.NewNotFoundError("User not found")
	}
	return user, nil
}

// ---------------------------------------------------------------------
// Password reset
// ---------------------------------------------------------------------

// RequestPasswordReset issues a single-use token and delivers it by email
// when the user has one, by SMS otherwise. Unknown accounts succeed
// silently so the endpoint cannot be used to enumerate users.
func (s *authService) RequestPasswordReset(ctx context.Context, req dtos.RequestPasswordResetRequest) error {
	var (
		user *models.User
		err  error
	)
	if email := strings.TrimSpace(req.Email); email != "" {
		user, err = s.userRepo.GetByEmail(ctx, email)
	} else {
		user, err = s.userRepo.GetByPhone(ctx, strings.TrimSpace(req.Phone))
	}
	if err != nil {
		return utils.NewInternalError("Failed to look up user", err)
	}
	if user == nil {
		utils.Logger.Info("password reset requested for unknown account")
		return nil
	}

	if err := s.tokenRepo.RemovePasswordResetsByUserID(ctx, user.ID); err != nil {
		return utils.NewInternalError("Failed to prepare password reset", err)
	}
	raw := utils.SecureToken(constants.PasswordResetTokenLength)
	pr := &models.PasswordReset{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: time.Now().Add(s.cfg.PasswordResetExpiry),
	}
	if err := s.tokenRepo.CreatePasswordReset(ctx, pr); err != nil {
		return utils.NewInternalError("Failed to store password reset", err)
	}

	if sendErr := s.deliverReset(ctx, user, raw); sendErr != nil {
		utils.Logger.WithError(sendErr).WithField("userID", user.ID).Error("password reset delivery failed")
		if rmErr := s.tokenRepo.RemovePasswordResetsByUserID(ctx, user.ID); rmErr != nil {
			utils.Logger.WithError(rmErr).Error("failed to remove undelivered password reset")
		}
		return externalFailure("Could not deliver the password reset", sendErr)
	}
	return nil
}

func (s *authService) deliverReset(ctx context.Context, user *models.User, raw string) error {
	if user.Email != nil && *user.Email != "" {
		link := strings.TrimRight(s.cfg.PasswordResetURL, "/") + "/" + raw
		return s.notifier.SendEmail(
			ctx,
			user.Name,
			*user.Email,
			constants.EmailSubjectPasswordReset,
			fmt.Sprintf(constants.EmailPasswordResetTemplate, link),
			fmt.Sprintf(passwordResetEmailHTML, user.Name, link),
		)
	}
	return s.notifier.SendSMS(ctx, user.Phone, fmt.Sprintf(constants.SMSPasswordResetTemplate, raw))
}

// ResetPassword consumes the token, sets the new password and signs the
// user out everywhere.
func (s *authService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	pr, err := s.tokenRepo.ConsumePasswordReset(ctx, rawToken)
	if err != nil {
		return utils.NewInternalError("Failed to read password reset", err)
	}
	if pr == nil {
		return utils.NewValidationError("Invalid or expired reset token", utils.ErrInvalidToken)
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.NewInternalError("Failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, pr.UserID, hash); err != nil {
		return utils.NewInternalError("Failed to update password", err)
	}
	if err := s.tokenRepo.RemoveAllRefreshTokensByUserID(ctx, pr.UserID); err != nil {
		utils.Logger.WithError(err).Error("failed to revoke refresh tokens after password reset")
	}
	return nil
}

// externalFailure renders a mail/SMS/lookup provider failure as 424.
func externalFailure(msg string, err error) *utils.AppError {
	return &utils.AppError{
		StatusCode: http.StatusFailedDependency,
		Code:       utils.ErrCodeExternalServiceFailure,
		Message:    msg,
		Err:        err,
	}
}
