package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/geocoder89/notehub/internal/db"
	"github.com/geocoder89/notehub/internal/domain/note"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/geocoder89/notehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func setupStore(t *testing.T) (*postgres.Store, *observability.Prom) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(dsn, 5)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE notes, users, tenants RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	prom := observability.NewProm(prometheus.NewRegistry())
	store := postgres.NewStore(pool, prom)

	if err := db.SeedDemo(ctx, store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// seeding twice must be harmless
	if err := db.SeedDemo(ctx, store); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	return store, prom
}

func TestStore_TenantScopingAndQuota(t *testing.T) {
	store, prom := setupStore(t)
	ctx := context.Background()

	acmeAdmin, err := store.Users.GetByEmail(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	globexUser, err := store.Users.GetByEmail(ctx, "user@globex.test")
	if err != nil {
		t.Fatalf("get globex user: %v", err)
	}

	var first note.Note
	for i := 0; i < tenant.FreeNoteLimit; i++ {
		n, err := store.Notes.CreateWithinQuota(ctx, note.NewNote{
			Title: "t", Content: "c", TenantID: acmeAdmin.TenantID, OwnerID: acmeAdmin.ID,
		})
		if err != nil {
			t.Fatalf("create %d: %v", i+1, err)
		}
		if i == 0 {
			first = n
		}
	}

	_, err = store.Notes.CreateWithinQuota(ctx, note.NewNote{
		Title: "t", Content: "c", TenantID: acmeAdmin.TenantID, OwnerID: acmeAdmin.ID,
	})
	if !errors.Is(err, note.ErrQuotaExceeded) {
		t.Fatalf("4th create: got %v, want ErrQuotaExceeded", err)
	}

	if _, err := store.Notes.Get(ctx, globexUser.TenantID, first.ID); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant get: %v", err)
	}
	title := "x"
	if _, err := store.Notes.Update(ctx, globexUser.TenantID, first.ID, note.Patch{Title: &title}); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant update: %v", err)
	}
	if err := store.Notes.Delete(ctx, globexUser.TenantID, first.ID); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant delete: %v", err)
	}

	content := "new"
	updated, err := store.Notes.Update(ctx, acmeAdmin.TenantID, first.ID, note.Patch{Content: &content})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != first.Title || updated.Content != "new" {
		t.Fatalf("updated = %+v", updated)
	}

	_, err = store.Notes.CreateWithinQuota(ctx, note.NewNote{Title: "t", Content: "c", TenantID: 9999, OwnerID: acmeAdmin.ID})
	if !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("unknown tenant: got %v", err)
	}

	// not-found lookups are not counted as db errors
	if _, err := store.Users.GetByID(ctx, 9999); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
	if got := testutil.CollectAndCount(prom.DbErrorsTotal); got != 0 {
		t.Fatalf("expected no db error series, got %d", got)
	}
}

func TestStore_UpgradeToPro(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	admin, err := store.Users.GetByEmail(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}

	if _, _, err := store.Tenants.UpgradeToPro(ctx, admin.TenantID, "globex"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("foreign slug: %v", err)
	}

	got, upgraded, err := store.Tenants.UpgradeToPro(ctx, admin.TenantID, "acme")
	if err != nil || !upgraded || got.Plan != tenant.PlanPro {
		t.Fatalf("first upgrade: %+v %v %v", got, upgraded, err)
	}

	got, upgraded, err = store.Tenants.UpgradeToPro(ctx, admin.TenantID, "acme")
	if err != nil || upgraded || got.Plan != tenant.PlanPro {
		t.Fatalf("second upgrade: %+v %v %v", got, upgraded, err)
	}

	for i := 0; i < tenant.FreeNoteLimit+2; i++ {
		if _, err := store.Notes.CreateWithinQuota(ctx, note.NewNote{
			Title: "t", Content: "c", TenantID: admin.TenantID, OwnerID: admin.ID,
		}); err != nil {
			t.Fatalf("PRO create %d: %v", i+1, err)
		}
	}
}
