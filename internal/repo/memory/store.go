package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/notehub/internal/domain/note"
	"github.com/geocoder89/notehub/internal/domain/tenant"
	"github.com/geocoder89/notehub/internal/domain/user"
)

// Store is an in-process stand-in for the relational store. All views share
// one lock, which also makes the quota check and insert atomic.
type Store struct {
	mu sync.RWMutex

	tenants map[int64]tenant.Tenant
	users   map[int64]user.User
	notes   map[int64]note.Note

	nextTenantID int64
	nextUserID   int64
	nextNoteID   int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		tenants: make(map[int64]tenant.Tenant),
		users:   make(map[int64]user.User),
		notes:   make(map[int64]note.Note),
		now:     time.Now,
	}
}

func (s *Store) Tenants() *TenantsRepo { return &TenantsRepo{s: s} }
func (s *Store) Users() *UsersRepo     { return &UsersRepo{s: s} }
func (s *Store) Notes() *NotesRepo     { return &NotesRepo{s: s} }

func (s *Store) UpsertTenant(_ context.Context, name, slug string, plan tenant.Plan) (tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}

	s.nextTenantID++
	t := tenant.Tenant{ID: s.nextTenantID, Name: name, Slug: slug, Plan: plan}
	s.tenants[t.ID] = t

	return t, nil
}

func (s *Store) UpsertUser(_ context.Context, email, passwordHash string, role user.Role, tenantID int64) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}

	if _, ok := s.tenants[tenantID]; !ok {
		return user.User{}, tenant.ErrNotFound
	}

	s.nextUserID++
	u := user.User{ID: s.nextUserID, Email: email, PasswordHash: passwordHash, Role: role, TenantID: tenantID}
	s.users[u.ID] = u

	return u, nil
}

// DeleteUser removes a user; tokens already issued to it stop working.
func (s *Store) DeleteUser(id int64) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

// SetRole changes a user's role in place.
func (s *Store) SetRole(id int64, role user.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Role = role
		s.users[id] = u
	}
}

type TenantsRepo struct{ s *Store }

func (r *TenantsRepo) GetByID(_ context.Context, id int64) (tenant.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tenants[id]
	if !ok {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	return t, nil
}

func (r *TenantsRepo) UpgradeToPro(_ context.Context, tenantID int64, slug string) (tenant.Tenant, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tenants[tenantID]
	if !ok || t.Slug != slug {
		return tenant.Tenant{}, false, tenant.ErrNotFound
	}

	if t.Plan == tenant.PlanPro {
		return t, false, nil
	}

	t.Plan = tenant.PlanPro
	r.s.tenants[t.ID] = t

	return t, true, nil
}

type UsersRepo struct{ s *Store }

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

type NotesRepo struct{ s *Store }

func (r *NotesRepo) ListByTenant(_ context.Context, tenantID int64) ([]note.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]note.Note, 0)
	for _, n := range r.s.notes {
		if n.TenantID == tenantID {
			out = append(out, n)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *NotesRepo) Get(_ context.Context, tenantID, id int64) (note.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.notes[id]
	if !ok || n.TenantID != tenantID {
		return note.Note{}, note.ErrNotFound
	}
	return n, nil
}

func (r *NotesRepo) CreateWithinQuota(_ context.Context, in note.NewNote) (note.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tenants[in.TenantID]
	if !ok {
		return note.Note{}, tenant.ErrNotFound
	}

	if limit := t.Plan.NoteLimit(); limit > 0 {
		count := 0
		for _, n := range r.s.notes {
			if n.TenantID == in.TenantID {
				count++
			}
		}

		if count >= limit {
			return note.Note{}, note.ErrQuotaExceeded
		}
	}

	r.s.nextNoteID++
	n := note.Note{
		ID:        r.s.nextNoteID,
		Title:     in.Title,
		Content:   in.Content,
		TenantID:  in.TenantID,
		OwnerID:   in.OwnerID,
		CreatedAt: r.s.now().UTC(),
	}
	r.s.notes[n.ID] = n

	return n, nil
}

func (r *NotesRepo) Update(_ context.Context, tenantID, id int64, p note.Patch) (note.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notes[id]
	if !ok || n.TenantID != tenantID {
		return note.Note{}, note.ErrNotFound
	}

	n = p.Apply(n)
	r.s.notes[id] = n

	return n, nil
}

func (r *NotesRepo) Delete(_ context.Context, tenantID, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notes[id]
	if !ok || n.TenantID != tenantID {
		return note.ErrNotFound
	}

	delete(r.s.notes, id)
	return nil
}
