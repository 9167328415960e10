package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/models"
)

// Identity is who a verified access token speaks for.
type Identity = models.Actor

// ValidateToken checks the token's HMAC signature and its standard claims.
// Any deviation returns a descriptive error; expiry is reported as
// jwt.ErrTokenExpired so callers can tell it apart.
func ValidateToken(tokenString string, secret []byte) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	// ─── Standard claim checks ──────────────────────────────────────────────
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, errors.New("missing expiration claim")
	}
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return nil, jwt.ErrTokenExpired
	}

	iss, ok := claims["iss"].(string)
	if !ok {
		return nil, errors.New("missing issuer claim")
	}
	if iss != constants.TokenIssuer {
		return nil, errors.New("invalid token issuer")
	}

	return token, nil
}

// IdentityFromToken validates the token and extracts subject and role.
func IdentityFromToken(tokenString string, secret []byte) (Identity, error) {
	tok, err := ValidateToken(tokenString, secret)
	if err != nil {
		return Identity{}, err
	}
	claims := tok.Claims.(jwt.MapClaims)

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, errors.New("missing subject")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, errors.New("malformed subject")
	}
	role, _ := claims["role"].(string)
	if !models.Role(role).Valid() {
		return Identity{}, errors.New("missing or unknown role claim")
	}
	return Identity{UserID: userID, Role: models.Role(role)}, nil
}
