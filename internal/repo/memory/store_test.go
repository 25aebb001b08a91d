package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/geocoder89/notehub/internal/db"
	"github.com/geocoder89/notehub/internal/domain/note"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/repo/memory"
)

func seeded(t *testing.T) (*memory.Store, tenant.Tenant, tenant.Tenant, user.User) {
	t.Helper()

	s := memory.NewStore()
	ctx := context.Background()

	acme, _ := s.UpsertTenant(ctx, "Acme", "acme", tenant.PlanFree)
	globex, _ := s.UpsertTenant(ctx, "Globex", "globex", tenant.PlanFree)

	u, err := s.UpsertUser(ctx, "admin@acme.test", "hash", user.RoleAdmin, acme.ID)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	return s, acme, globex, u
}

func TestCreateWithinQuota_FreeBlocksFourthNote(t *testing.T) {
	s, acme, _, u := seeded(t)
	ctx := context.Background()
	notes := s.Notes()

	for i := 0; i < tenant.FreeNoteLimit; i++ {
		if _, err := notes.CreateWithinQuota(ctx, note.NewNote{Title: "t", Content: "c", TenantID: acme.ID, OwnerID: u.ID}); err != nil {
			t.Fatalf("note %d: %v", i+1, err)
		}
	}

	_, err := notes.CreateWithinQuota(ctx, note.NewNote{Title: "t", Content: "c", TenantID: acme.ID, OwnerID: u.ID})
	if !errors.Is(err, note.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	list, _ := notes.ListByTenant(ctx, acme.ID)
	if len(list) != tenant.FreeNoteLimit {
		t.Fatalf("rejected note must not be persisted, have %d", len(list))
	}
}

func TestCreateWithinQuota_ConcurrentCreatorsCannotOvershoot(t *testing.T) {
	s, acme, _, u := seeded(t)
	ctx := context.Background()
	notes := s.Notes()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = notes.CreateWithinQuota(ctx, note.NewNote{Title: "t", Content: "c", TenantID: acme.ID, OwnerID: u.ID})
		}()
	}
	wg.Wait()

	list, _ := notes.ListByTenant(ctx, acme.ID)
	if len(list) != tenant.FreeNoteLimit {
		t.Fatalf("got %d notes for FREE tenant, want %d", len(list), tenant.FreeNoteLimit)
	}
}

func TestCreateWithinQuota_ProIsUnlimited(t *testing.T) {
	s, acme, _, u := seeded(t)
	ctx := context.Background()

	if _, _, err := s.Tenants().UpgradeToPro(ctx, acme.ID, "acme"); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	for i := 0; i < 10; i++ {
		if _, err := s.Notes().CreateWithinQuota(ctx, note.NewNote{Title: "t", Content: "c", TenantID: acme.ID, OwnerID: u.ID}); err != nil {
			t.Fatalf("note %d: %v", i+1, err)
		}
	}
}

func TestNotes_TenantScoped(t *testing.T) {
	s, acme, globex, u := seeded(t)
	ctx := context.Background()
	notes := s.Notes()

	n, err := notes.CreateWithinQuota(ctx, note.NewNote{Title: "a", Content: "b", TenantID: acme.ID, OwnerID: u.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := notes.Get(ctx, globex.ID, n.ID); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant get = %v, want ErrNotFound", err)
	}

	title := "hijack"
	if _, err := notes.Update(ctx, globex.ID, n.ID, note.Patch{Title: &title}); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant update = %v, want ErrNotFound", err)
	}
	if err := notes.Delete(ctx, globex.ID, n.ID); !errors.Is(err, note.ErrNotFound) {
		t.Fatalf("cross-tenant delete = %v, want ErrNotFound", err)
	}

	got, err := notes.Get(ctx, acme.ID, n.ID)
	if err != nil || got.Title != "a" {
		t.Fatalf("note should be untouched, got %+v err=%v", got, err)
	}

	if list, _ := notes.ListByTenant(ctx, globex.ID); len(list) != 0 {
		t.Fatalf("globex should see no notes, got %d", len(list))
	}
}

func TestUpgradeToPro(t *testing.T) {
	s, acme, globex, _ := seeded(t)
	ctx := context.Background()
	tenants := s.Tenants()

	if _, _, err := tenants.UpgradeToPro(ctx, acme.ID, "globex"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("foreign slug should be not found, got %v", err)
	}

	up, upgraded, err := tenants.UpgradeToPro(ctx, acme.ID, "acme")
	if err != nil || !upgraded || up.Plan != tenant.PlanPro {
		t.Fatalf("first upgrade: %+v upgraded=%v err=%v", up, upgraded, err)
	}

	for i := 0; i < 3; i++ {
		again, upgraded, err := tenants.UpgradeToPro(ctx, acme.ID, "acme")
		if err != nil || upgraded || again.Plan != tenant.PlanPro {
			t.Fatalf("repeat upgrade: %+v upgraded=%v err=%v", again, upgraded, err)
		}
	}

	g, _ := tenants.GetByID(ctx, globex.ID)
	if g.Plan != tenant.PlanFree {
		t.Fatalf("globex must stay FREE")
	}
}

func TestSeedDemo_Idempotent(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := db.SeedDemo(ctx, s); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}

	admin, err := s.Users().GetByEmail(ctx, "admin@acme.test")
	if err != nil {
		t.Fatalf("admin missing: %v", err)
	}
	if admin.Role != user.RoleAdmin {
		t.Fatalf("admin role = %s", admin.Role)
	}

	member, err := s.Users().GetByEmail(ctx, "user@globex.test")
	if err != nil {
		t.Fatalf("globex member missing: %v", err)
	}
	if member.TenantID == admin.TenantID {
		t.Fatalf("globex member must not share acme's tenant")
	}
}
