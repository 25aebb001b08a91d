package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks       map[string]Pinger
	shuttingDown func() bool
	log          *slog.Logger
}

// create a new instance of the health handler
func NewHealthHandler(checks map[string]Pinger, shuttingDown func() bool, log *slog.Logger) *HealthHandler {
	if shuttingDown == nil {
		shuttingDown = func() bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{checks: checks, shuttingDown: shuttingDown, log: log}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	// stop taking traffic while draining
	if h.shuttingDown() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
	defer cancel()

	failed := gin.H{}
	for name, ping := range h.checks {
		if ping == nil {
			continue
		}
		if err := ping(cctx); err != nil {
			h.log.WarnContext(cctx, "readyz.check_failed", "check", name, "err", err)
			failed[name] = "down"
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": failed})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
