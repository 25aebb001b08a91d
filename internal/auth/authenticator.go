package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/notehub/internal/domain/user"
)

// Failure kinds returned by Authenticate. Callers are expected to collapse
// all of them into a single unauthorized response.
var (
	ErrMissingHeader = errors.New("missing authorization header")
	ErrMissingToken  = errors.New("missing bearer token")
	ErrUnknownUser   = errors.New("token subject no longer exists")
)

type UserResolver interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Principal is the authenticated caller, built from the live user record.
type Principal struct {
	User     user.User
	TenantID int64
	Role     user.Role
}

func (p Principal) UserID() int64 {
	return p.User.ID
}

func (p Principal) IsAdmin() bool {
	return p.Role == user.RoleAdmin
}

type Authenticator struct {
	tokens TokenVerifier
	users  UserResolver
}

func NewAuthenticator(tokens TokenVerifier, users UserResolver) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves an Authorization header value to a Principal.
// Tenant and role always come from the store, not from the token.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Principal, error) {
	if strings.TrimSpace(header) == "" {
		return Principal{}, ErrMissingHeader
	}

	raw, err := bearerToken(header)
	if err != nil {
		return Principal{}, err
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}

	u, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Principal{}, ErrUnknownUser
		}
		return Principal{}, fmt.Errorf("resolve user %d: %w", claims.UserID, err)
	}

	return Principal{
		User:     u,
		TenantID: u.TenantID,
		Role:     u.Role,
	}, nil
}

func bearerToken(header string) (string, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}

	raw := strings.TrimSpace(rest)
	if raw == "" {
		return "", ErrMissingToken
	}

	return raw, nil
}
