package user

import "errors"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // never expose hash in JSON
	Role         Role   `json:"role"`
	TenantID     int64  `json:"tenantId"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
