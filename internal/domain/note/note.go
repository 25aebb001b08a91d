package note

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("note not found")
	// the tenant's plan does not allow another note
	ErrQuotaExceeded = errors.New("note quota exceeded")
)

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	TenantID  int64     `json:"tenantId"`
	OwnerID   int64     `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Length limits in characters. The binding tags below repeat them.
const (
	MaxTitleLen   = 200
	MaxContentLen = 10000
)

type CreateNoteRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content" binding:"required,max=10000"`
}

// NewNote is what the store persists; tenant and owner come from the
// authenticated principal, never from the request body.
type NewNote struct {
	Title    string
	Content  string
	TenantID int64
	OwnerID  int64
}

// UpdateNoteRequest distinguishes an omitted field (nil) from one sent
// explicitly.
type UpdateNoteRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Content *string `json:"content" binding:"omitempty,max=10000"`
}

// Patch is the normalized form of UpdateNoteRequest: a nil field keeps the
// stored value.
type Patch struct {
	Title   *string
	Content *string
}

// Normalize drops fields that are absent or empty. An empty string is
// treated the same as an omitted field, so {"title":""} leaves the title
// unchanged.
func (r UpdateNoteRequest) Normalize() Patch {
	return Patch{
		Title:   nonEmpty(r.Title),
		Content: nonEmpty(r.Content),
	}
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// Apply returns n with the patch applied.
func (p Patch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	return n
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
