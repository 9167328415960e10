package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgconn"

	"github.com/Ndunguuu01/kodipay/internal/repositories"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// One retry on transient network errors (EOF, closed connection).
var cleanupRetryDelay = 3 * time.Second

// TokenCleanupService removes expired refresh and password-reset tokens.
type TokenCleanupService interface {
	CleanupDaily(ctx context.Context) error
}

type tokenCleanupService struct {
	tokenRepo repositories.TokenRepository
}

func NewTokenCleanupService(tokenRepo repositories.TokenRepository) TokenCleanupService {
	return &tokenCleanupService{tokenRepo: tokenRepo}
}

// runWithRetry executes op and, if it fails with a transient network error
// (EOF, pgconn safe-to-retry, or a closed connection), waits and retries once.
func runWithRetry(ctx context.Context, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || pgconn.SafeToRetry(err) ||
		strings.Contains(err.Error(), "connection was closed") {
		utils.Logger.WithError(err).Warn("cleanup hit transient DB error; retrying once")
		select {
		case <-time.After(cleanupRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		return op(ctx)
	}
	return err
}

func (s *tokenCleanupService) CleanupDaily(ctx context.Context) error {
	logger := utils.Logger

	if err := runWithRetry(ctx, s.tokenRepo.CleanupExpiredRefreshTokens); err != nil {
		logger.WithError(err).Error("Failed to cleanup expired refresh_tokens")
		return err
	}
	if err := runWithRetry(ctx, s.tokenRepo.CleanupExpiredPasswordResets); err != nil {
		logger.WithError(err).Error("Failed to cleanup expired password_resets")
		return err
	}

	logger.Info("Token cleanup (expired only) completed successfully.")
	return nil
}
