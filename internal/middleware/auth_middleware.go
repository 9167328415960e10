package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type contextKey string

const (
	ContextKeyUserID = contextKey("userID")
	ContextKeyRole   = contextKey("role")
)

// AuthMiddleware – for normal-protected endpoints. If the bearer token is
// missing or invalid, returns 401.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := extractAccessToken(r)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil,
				)
				return
			}

			id, vErr := IdentityFromToken(tokenStr, secret)
			if vErr != nil {
				if errors.Is(vErr, jwt.ErrTokenExpired) {
					utils.RespondErrorWithCode(
						w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, vErr,
					)
					return
				}
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, vErr,
				)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRoles must sit behind AuthMiddleware. Callers whose role is not
// listed get 401 with code not_permitted.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing identity", nil,
				)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.RespondErrorWithCode(
				w, http.StatusUnauthorized, utils.ErrCodeNotPermitted, "Insufficient permissions", nil,
			)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, id.UserID.String())
	return context.WithValue(ctx, ContextKeyRole, string(id.Role))
}

// IdentityFromContext reads what AuthMiddleware stored.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	sub, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return Identity{}, false
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, false
	}
	role, _ := ctx.Value(ContextKeyRole).(string)
	return Identity{UserID: userID, Role: models.Role(role)}, true
}

// helper: read the token from Authorization: Bearer ...
func extractAccessToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing Authorization header")
	}
	return strings.TrimPrefix(h, "Bearer "), nil
}
