package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"users-service/internal/models"
	"users-service/internal/port"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Codec signs tokens with HS256 and a shared secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	copied := *c
	copied.now = now
	return &copied
}

func (c *Codec) ttl(kind models.TokenKind) (time.Duration, error) {
	switch kind {
	case models.TokenAccess:
		return c.accessTTL, nil
	case models.TokenRefresh:
		return c.refreshTTL, nil
	default:
		return 0, fmt.Errorf("unknown token kind %q", kind)
	}
}

// CreateToken signs {user_id, username} with an expiry of now plus the TTL
// of kind. Every token carries a fresh jti so that two tokens issued in the
// same second stay distinct.
func (c *Codec) CreateToken(user models.User, kind models.TokenKind) (string, error) {
	ttl, err := c.ttl(kind)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// DecodeToken verifies the signature and expiry and returns the user id.
// Every failure is reported as port.ErrInvalidToken.
func (c *Codec) DecodeToken(token string) (int64, error) {
	if token == "" {
		return 0, port.ErrInvalidToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", port.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return 0, port.ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: missing user_id claim", port.ErrInvalidToken)
	}
	if claims.Subject != "" && claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return 0, fmt.Errorf("%w: subject mismatch", port.ErrInvalidToken)
	}
	return claims.UserID, nil
}

// IsInvalid reports whether err came from DecodeToken rejecting a token.
func IsInvalid(err error) bool {
	return errors.Is(err, port.ErrInvalidToken)
}
