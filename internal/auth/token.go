package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hongminglow/kinder-admin/internal/models"
)

// DefaultConfirmationTTL is how long a confirmation token stays valid.
const DefaultConfirmationTTL = 3600 * time.Second

// TokenManager issues and verifies signed, time-limited confirmation tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type confirmClaims struct {
	Confirm int64 `json:"confirm"`
	jwt.RegisteredClaims
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultConfirmationTTL
	}
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate issues a token encoding the user id and the issue time.
func (t *TokenManager) Generate(user models.User) (string, error) {
	now := t.now()
	claims := confirmClaims{
		Confirm: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature, payload and age and returns the encoded user id.
// Every failure is reported as ErrTokenInvalid or ErrTokenExpired.
func (t *TokenManager) Verify(token string) (int64, error) {
	claims := &confirmClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Confirm <= 0 || claims.IssuedAt == nil {
		return 0, ErrTokenInvalid
	}
	// Age is measured from iat against the current lifetime, not only exp.
	if t.now().Sub(claims.IssuedAt.Time) > t.ttl {
		return 0, ErrTokenExpired
	}
	return claims.Confirm, nil
}
