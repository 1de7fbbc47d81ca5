package models

import (
	"fmt"
	"time"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Permission is a capability a role may hold.
type Permission string

const (
	PermViewDrafts  Permission = "posts:view-drafts"
	PermWritePosts  Permission = "posts:write"
	PermDeletePosts Permission = "posts:delete"
	PermViewAudit   Permission = "audit:view"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermViewDrafts:  true,
		PermWritePosts:  true,
		PermDeletePosts: true,
		PermViewAudit:   true,
	},
	RoleUser: {},
}

// ParseRole validates a stored or supplied role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := rolePermissions[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Can reports whether the role grants p. Unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	return rolePermissions[r][p]
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
