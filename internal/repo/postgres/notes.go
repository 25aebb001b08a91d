package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/notehub/internal/domain/note"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotesRepo scopes every query by tenant_id in addition to the note id.
type NotesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotesRepo {
	return &NotesRepo{pool: pool, prom: prom}
}

const noteColumns = `id, title, content, tenant_id, owner_id, created_at`

func scanNote(row pgx.Row, n *note.Note) error {
	return row.Scan(&n.ID, &n.Title, &n.Content, &n.TenantID, &n.OwnerID, &n.CreatedAt)
}

func (r *NotesRepo) ListByTenant(ctx context.Context, tenantID int64) ([]note.Note, error) {
	out := make([]note.Note, 0)

	err := r.prom.ObserveDB("notes.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+noteColumns+` FROM notes WHERE tenant_id = $1 ORDER BY id ASC`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n note.Note
			if err := scanNote(rows, &n); err != nil {
				return err
			}
			out = append(out, n)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *NotesRepo) Get(ctx context.Context, tenantID, id int64) (note.Note, error) {
	var n note.Note

	err := r.prom.ObserveDB("notes.get", func() error {
		return scanNote(r.pool.QueryRow(ctx,
			`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND tenant_id = $2`, id, tenantID), &n)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return note.Note{}, note.ErrNotFound
		}
		return note.Note{}, err
	}

	return n, nil
}

// CreateWithinQuota inserts the note unless the tenant's plan is already at
// its limit. The tenant row is locked for the duration of the transaction,
// so concurrent creators for one tenant are serialized and cannot both pass
// the count check.
func (r *NotesRepo) CreateWithinQuota(ctx context.Context, in note.NewNote) (n note.Note, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var plan tenant.Plan

	err = r.prom.ObserveDB("notes.create.lock_tenant", func() error {
		return tx.QueryRow(ctx,
			`SELECT plan FROM tenants WHERE id = $1 FOR UPDATE`, in.TenantID).Scan(&plan)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = tenant.ErrNotFound
		}
		return
	}

	if limit := plan.NoteLimit(); limit > 0 {
		var count int

		err = r.prom.ObserveDB("notes.create.count", func() error {
			return tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, in.TenantID).Scan(&count)
		})
		if err != nil {
			return
		}

		if count >= limit {
			err = note.ErrQuotaExceeded
			return
		}
	}

	err = r.prom.ObserveDB("notes.create.insert", func() error {
		return scanNote(tx.QueryRow(ctx, `
			INSERT INTO notes (title, content, tenant_id, owner_id)
			VALUES ($1, $2, $3, $4)
			RETURNING `+noteColumns,
			in.Title, in.Content, in.TenantID, in.OwnerID), &n)
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// Update applies p to the note in one statement; nil patch fields keep the
// stored value.
func (r *NotesRepo) Update(ctx context.Context, tenantID, id int64, p note.Patch) (note.Note, error) {
	var n note.Note

	err := r.prom.ObserveDB("notes.update", func() error {
		return scanNote(r.pool.QueryRow(ctx, `
			UPDATE notes
			SET title = COALESCE($3, title),
				content = COALESCE($4, content)
			WHERE id = $1 AND tenant_id = $2
			RETURNING `+noteColumns,
			id, tenantID, p.Title, p.Content), &n)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return note.Note{}, note.ErrNotFound
		}
		return note.Note{}, err
	}

	return n, nil
}

func (r *NotesRepo) Delete(ctx context.Context, tenantID, id int64) error {
	var affected int64

	err := r.prom.ObserveDB("notes.delete", func() error {
		tag, err := r.pool.Exec(ctx,
			`DELETE FROM notes WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}

	// nothing deleted: absent or owned by another tenant
	if affected == 0 {
		return note.ErrNotFound
	}

	return nil
}
