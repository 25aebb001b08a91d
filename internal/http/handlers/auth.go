package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/notehub/internal/auth"
	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/geocoder89/notehub/internal/security"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type TenantReader interface {
	GetByID(ctx context.Context, id int64) (tenant.Tenant, error)
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type AuthHandler struct {
	users   UserReader
	tenants TenantReader
	tokens  TokenIssuer
	prom    *observability.Prom
	log     *slog.Logger
}

func NewAuthHandler(users UserReader, tenants TenantReader, tokens TokenIssuer, prom *observability.Prom, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:   users,
		tenants: tenants,
		tokens:  tokens,
		prom:    prom,
		log:     log,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TenantView struct {
	ID   int64       `json:"id"`
	Slug string      `json:"slug"`
	Plan tenant.Plan `json:"plan"`
}

type UserView struct {
	ID     int64      `json:"id"`
	Email  string     `json:"email"`
	Role   user.Role  `json:"role"`
	Tenant TenantView `json:"tenant"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func newUserView(u user.User, t tenant.Tenant) UserView {
	return UserView{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Tenant: TenantView{
			ID:   t.ID,
			Slug: t.Slug,
			Plan: t.Plan,
		},
	}
}

const invalidCredentialsMessage = "Email or password is incorrect."

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	email := strings.TrimSpace(req.Email)

	foundUser, err := h.users.GetByEmail(cctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// keep the unknown-email path as slow as a wrong password
			security.BurnPasswordCheck(req.Password)
			h.prom.IncLogin("invalid")
			RespondUnauthorized(ctx, "invalid_credentials", invalidCredentialsMessage)
			return
		}

		h.log.ErrorContext(cctx, "auth.login.lookup_failed", "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		h.prom.IncLogin("invalid")
		RespondUnauthorized(ctx, "invalid_credentials", invalidCredentialsMessage)
		return
	}

	t, err := h.tenants.GetByID(cctx, foundUser.TenantID)
	if err != nil {
		h.log.ErrorContext(cctx, "auth.login.tenant_lookup_failed", "err", err, "user_id", foundUser.ID)
		RespondInternal(ctx, "Could not log in")
		return
	}

	token, err := h.tokens.Issue(auth.Identity{
		UserID:   foundUser.ID,
		TenantID: foundUser.TenantID,
		Role:     string(foundUser.Role),
		Email:    foundUser.Email,
	})
	if err != nil {
		h.log.ErrorContext(cctx, "auth.login.issue_failed", "err", err)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.prom.IncLogin("success")
	h.log.InfoContext(cctx, "auth.login", "user_id", foundUser.ID, "tenant_id", t.ID)

	ctx.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  newUserView(foundUser, t),
	})
}

// Me returns the caller as the store currently sees them.
func (h *AuthHandler) Me(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized or invalid request.")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	t, err := h.tenants.GetByID(cctx, p.TenantID)
	if err != nil {
		h.log.ErrorContext(cctx, "auth.me.tenant_lookup_failed", "err", err)
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, newUserView(p.User, t))
}
