package tenant

import "errors"

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

// FreeNoteLimit is the number of notes a FREE tenant may hold.
const FreeNoteLimit = 3

var ErrNotFound = errors.New("tenant not found")

type Tenant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan Plan   `json:"plan"`
}

// NoteLimit returns the maximum note count for the plan, or 0 for unlimited.
func (p Plan) NoteLimit() int {
	if p == PlanFree {
		return FreeNoteLimit
	}
	return 0
}

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}
