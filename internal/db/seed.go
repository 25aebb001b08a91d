package db

import (
	"context"
	"fmt"

	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/security"
)

// Provisioner is implemented by every store that can be seeded.
type Provisioner interface {
	UpsertTenant(ctx context.Context, name, slug string, plan tenant.Plan) (tenant.Tenant, error)
	UpsertUser(ctx context.Context, email, passwordHash string, role user.Role, tenantID int64) (user.User, error)
}

const DemoPassword = "password"

type demoUser struct {
	email  string
	role   user.Role
	tenant string
}

var demoTenants = []struct{ name, slug string }{
	{"Acme", "acme"},
	{"Globex", "globex"},
}

var demoUsers = []demoUser{
	{"admin@acme.test", user.RoleAdmin, "acme"},
	{"user@acme.test", user.RoleMember, "acme"},
	{"admin@globex.test", user.RoleAdmin, "globex"},
	{"user@globex.test", user.RoleMember, "globex"},
}

// SeedDemo provisions the two demo tenants on the FREE plan and one admin
// and one member for each, all with DemoPassword. Existing rows are left
// alone, so it is safe to run on every start.
func SeedDemo(ctx context.Context, p Provisioner) error {
	hash, err := security.HashPassword(DemoPassword)
	if err != nil {
		return err
	}

	ids := make(map[string]int64, len(demoTenants))

	for _, dt := range demoTenants {
		t, err := p.UpsertTenant(ctx, dt.name, dt.slug, tenant.PlanFree)
		if err != nil {
			return fmt.Errorf("seed tenant %s: %w", dt.slug, err)
		}
		ids[dt.slug] = t.ID
	}

	for _, du := range demoUsers {
		if _, err := p.UpsertUser(ctx, du.email, hash, du.role, ids[du.tenant]); err != nil {
			return fmt.Errorf("seed user %s: %w", du.email, err)
		}
	}

	return nil
}
