package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/gin-gonic/gin"
)

type TenantUpgrader interface {
	UpgradeToPro(ctx context.Context, tenantID int64, slug string) (tenant.Tenant, bool, error)
}

type TenantsHandler struct {
	tenants TenantUpgrader
	prom    *observability.Prom
	log     *slog.Logger
}

func NewTenantsHandler(tenants TenantUpgrader, prom *observability.Prom, log *slog.Logger) *TenantsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TenantsHandler{tenants: tenants, prom: prom, log: log}
}

type UpgradeResponse struct {
	OK      bool          `json:"ok"`
	Message string        `json:"message"`
	Tenant  tenant.Tenant `json:"tenant"`
}

// Upgrade moves the caller's own tenant to PRO. The admin check is done by
// RequireRole before this runs, so a member never learns whether a slug
// exists.
func (h *TenantsHandler) Upgrade(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized or invalid request.")
		return
	}

	slug := ctx.Param("slug")

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	t, upgraded, err := h.tenants.UpgradeToPro(cctx, p.TenantID, slug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			h.prom.IncUpgrade("not_found")
			RespondNotFound(ctx, "Tenant not found")
			return
		}

		h.prom.IncUpgrade("error")
		h.log.ErrorContext(cctx, "tenants.upgrade_failed", "err", err, "slug", slug)
		RespondInternal(ctx, "Could not upgrade tenant")
		return
	}

	if !upgraded {
		h.prom.IncUpgrade("already_pro")
		ctx.JSON(http.StatusOK, UpgradeResponse{
			OK:      true,
			Message: "Tenant is already on the PRO plan",
			Tenant:  t,
		})
		return
	}

	h.prom.IncUpgrade("upgraded")
	h.log.InfoContext(cctx, "tenants.upgraded", "tenant_id", t.ID, "slug", t.Slug)

	ctx.JSON(http.StatusOK, UpgradeResponse{
		OK:      true,
		Message: "Tenant upgraded to PRO",
		Tenant:  t,
	})
}
