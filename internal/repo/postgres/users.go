package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/notehub/internal/domain/user"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, email, password_hash, role, tenant_id`

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.TenantID)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email), &u)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.get_by_id", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

// Upsert creates the user if the email is unknown. An existing user keeps
// its password, role and tenant.
func (r *UsersRepo) Upsert(ctx context.Context, email, passwordHash string, role user.Role, tenantID int64) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.upsert", func() error {
		return scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (email, password_hash, role, tenant_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
			RETURNING `+userColumns,
			email, passwordHash, role, tenantID), &u)
	})

	return u, err
}
