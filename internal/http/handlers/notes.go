package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/notehub/internal/auth"
	"github.com/geocoder89/notehub/internal/config"
	"github.com/geocoder89/notehub/internal/domain/note"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/http/middlewares"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// NotesStore is every note operation the handlers need. All of them are
// scoped by tenant.
type NotesStore interface {
	ListByTenant(ctx context.Context, tenantID int64) ([]note.Note, error)
	Get(ctx context.Context, tenantID, id int64) (note.Note, error)
	CreateWithinQuota(ctx context.Context, in note.NewNote) (note.Note, error)
	Update(ctx context.Context, tenantID, id int64, p note.Patch) (note.Note, error)
	Delete(ctx context.Context, tenantID, id int64) error
}

type NotesHandler struct {
	notes NotesStore
	prom  *observability.Prom
	log   *slog.Logger
}

func NewNotesHandler(notes NotesStore, prom *observability.Prom, log *slog.Logger) *NotesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotesHandler{notes: notes, prom: prom, log: log}
}

const storeTimeout = 3 * time.Second

func (h *NotesHandler) principal(ctx *gin.Context) (auth.Principal, bool) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized or invalid request.")
	}
	return p, ok
}

func (h *NotesHandler) ListNotes(ctx *gin.Context) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	notes, err := h.notes.ListByTenant(cctx, p.TenantID)
	if err != nil {
		h.log.ErrorContext(cctx, "notes.list_failed", "err", err)
		RespondInternal(ctx, "Could not list notes")
		return
	}

	if notes == nil {
		notes = []note.Note{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, notes)
}

func (h *NotesHandler) CreateNote(ctx *gin.Context) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	var req note.CreateNoteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	n, err := h.notes.CreateWithinQuota(cctx, note.NewNote{
		Title:    req.Title,
		Content:  req.Content,
		TenantID: p.TenantID,
		OwnerID:  p.UserID(),
	})
	if err != nil {
		switch {
		case errors.Is(err, note.ErrQuotaExceeded):
			h.prom.IncQuotaRejection(string(tenant.PlanFree))
			RespondError(ctx, http.StatusForbidden, "quota_exceeded",
				"Free plan limit reached. Upgrade to Pro to create more notes.", gin.H{"limit": tenant.FreeNoteLimit})
		case errors.Is(err, tenant.ErrNotFound):
			RespondError(ctx, http.StatusBadRequest, "invalid_tenant", "Invalid tenant", nil)
		default:
			h.log.ErrorContext(cctx, "notes.create_failed", "err", err)
			RespondInternal(ctx, "Could not create note")
		}
		return
	}

	ctx.JSON(http.StatusCreated, n)
}

func (h *NotesHandler) GetNote(ctx *gin.Context) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	n, err := h.notes.Get(cctx, p.TenantID, id)
	if err != nil {
		h.respondStoreErr(ctx, err, "Could not fetch note")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, n)
}

func (h *NotesHandler) UpdateNote(ctx *gin.Context) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req note.UpdateNoteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	patch := req.Normalize()
	if patch.IsEmpty() {
		RespondBadRequest(ctx, "Provide a non-empty title or content", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	n, err := h.notes.Update(cctx, p.TenantID, id, patch)
	if err != nil {
		h.respondStoreErr(ctx, err, "Could not update note")
		return
	}

	ctx.JSON(http.StatusOK, n)
}

func (h *NotesHandler) DeleteNote(ctx *gin.Context) {
	p, ok := h.principal(ctx)
	if !ok {
		return
	}

	id, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.notes.Delete(cctx, p.TenantID, id); err != nil {
		h.respondStoreErr(ctx, err, "Could not delete note")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Another tenant's note and a missing note are reported identically.
func (h *NotesHandler) respondStoreErr(ctx *gin.Context, err error, internalMsg string) {
	if errors.Is(err, note.ErrNotFound) {
		RespondNotFound(ctx, "Note not found")
		return
	}

	h.log.ErrorContext(ctx.Request.Context(), "notes.store_failed", "err", err)
	RespondInternal(ctx, internalMsg)
}
