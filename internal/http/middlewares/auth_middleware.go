package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/notehub/internal/actorctx"
	"github.com/geocoder89/notehub/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Principal, error)
}

type AuthMiddleware struct {
	authn Authenticator
	log   *slog.Logger
}

func NewAuthMiddleware(authn Authenticator, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{authn: authn, log: log}
}

const unauthorizedMessage = "Unauthorized or invalid request."

// RequireAuth admits requests whose bearer token resolves to a live user.
// Every failure gets the same 401 body; the cause only goes to the log.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := m.authn.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			m.logFailure(c, err)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", unauthorizedMessage)
			return
		}

		SetPrincipal(c, p)

		c.Next()
	}
}

func (m *AuthMiddleware) logFailure(c *gin.Context, err error) {
	reqID, _ := c.Get(CtxRequestID)

	switch {
	case errors.Is(err, auth.ErrMissingHeader),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrUnknownUser):
		m.log.DebugContext(c.Request.Context(), "auth.rejected", "reason", err.Error(), "request_id", reqID)
	default:
		m.log.ErrorContext(c.Request.Context(), "auth.resolve_failed", "err", err, "request_id", reqID)
	}
}

// SetPrincipal attaches p to both the gin context and the request context,
// so loggers and stores below see the same caller.
func SetPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(ctxPrincipal, p)
	c.Request = c.Request.WithContext(actorctx.WithPrincipal(c.Request.Context(), p))
}

// PrincipalFromContext returns the caller set by RequireAuth.
func PrincipalFromContext(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
