package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTenantsRepo(pool *pgxpool.Pool, prom *observability.Prom) *TenantsRepo {
	return &TenantsRepo{pool: pool, prom: prom}
}

func (r *TenantsRepo) GetByID(ctx context.Context, id int64) (tenant.Tenant, error) {
	var t tenant.Tenant

	err := r.prom.ObserveDB("tenants.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, name, slug, plan FROM tenants WHERE id = $1`, id,
		).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Tenant{}, tenant.ErrNotFound
		}
		return tenant.Tenant{}, err
	}

	return t, nil
}

// UpgradeToPro moves the tenant identified by both id and slug to PRO.
// upgraded is false when the tenant was already on PRO and nothing was
// written. A slug that does not belong to tenantID yields tenant.ErrNotFound.
func (r *TenantsRepo) UpgradeToPro(ctx context.Context, tenantID int64, slug string) (t tenant.Tenant, upgraded bool, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.prom.ObserveDB("tenants.upgrade.lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, name, slug, plan
			FROM tenants
			WHERE id = $1 AND slug = $2
			FOR UPDATE
		`, tenantID, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = tenant.ErrNotFound
		}
		return
	}

	if t.Plan == tenant.PlanPro {
		return t, false, nil
	}

	err = r.prom.ObserveDB("tenants.upgrade.update", func() error {
		return tx.QueryRow(ctx, `
			UPDATE tenants SET plan = $2
			WHERE id = $1
			RETURNING id, name, slug, plan
		`, t.ID, tenant.PlanPro).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan)
	})
	if err != nil {
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	return t, true, nil
}

// Upsert creates the tenant if its slug is unknown; an existing row is
// returned untouched.
func (r *TenantsRepo) Upsert(ctx context.Context, name, slug string, plan tenant.Plan) (tenant.Tenant, error) {
	var t tenant.Tenant

	err := r.prom.ObserveDB("tenants.upsert", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO tenants (name, slug, plan)
			VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
			RETURNING id, name, slug, plan
		`, name, slug, plan).Scan(&t.ID, &t.Name, &t.Slug, &t.Plan)
	})

	return t, err
}
