package postgres

import (
	"context"

	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store groups the repositories that share one pool.
type Store struct {
	Tenants *TenantsRepo
	Users   *UsersRepo
	Notes   *NotesRepo
}

func NewStore(pool *pgxpool.Pool, prom *observability.Prom) *Store {
	return &Store{
		Tenants: NewTenantsRepo(pool, prom),
		Users:   NewUsersRepo(pool, prom),
		Notes:   NewNotesRepo(pool, prom),
	}
}

func (s *Store) UpsertTenant(ctx context.Context, name, slug string, plan tenant.Plan) (tenant.Tenant, error) {
	return s.Tenants.Upsert(ctx, name, slug, plan)
}

func (s *Store) UpsertUser(ctx context.Context, email, passwordHash string, role user.Role, tenantID int64) (user.User, error) {
	return s.Users.Upsert(ctx, email, passwordHash, role, tenantID)
}
