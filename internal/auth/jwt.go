package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned by Verify for any token it will not accept.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the set of facts a token asserts about its holder.
type Identity struct {
	UserID   int64
	TenantID int64
	Role     string
	Email    string
}

// Claims is the JWT payload: the holder's identity plus the registered
// exp, iat and jti claims.
type Claims struct {
	UserID   int64  `json:"userId"`
	TenantID int64  `json:"tenantId"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:   c.UserID,
		TenantID: c.TenantID,
		Role:     c.Role,
		Email:    c.Email,
	}
}

// Manager issues and verifies HS256 tokens with a single shared secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs id with HS256. Every call stamps a fresh iat/exp and jti.
func (m *Manager) Issue(id Identity) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		UserID:   id.UserID,
		TenantID: id.TenantID,
		Role:     id.Role,
		Email:    id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify returns the claims of a correctly signed, unexpired token. Any
// failure is reported as ErrInvalidToken; the cause is deliberately dropped.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
