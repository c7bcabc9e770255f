// Package model defines domain entities for the application.
package model

import "time"

// Role is the kind of account stored on the profile record.
type Role string

const (
	// RoleChef can publish and edit recipes.
	RoleChef Role = "chef"
	// RoleUser is a plain user who only browses. It is the default the
	// remote sign-up trigger writes on the profile row.
	RoleUser Role = "user"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleChef || r == RoleUser
}

// User is the application-owned profile row in the users table.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// IsChef reports whether the profile belongs to a chef.
func (u *User) IsChef() bool {
	return u != nil && u.Role == RoleChef
}

// Owns reports whether the user is the chef that owns the recipe.
// This is an advisory check; the remote access rules are authoritative.
func (u *User) Owns(r *Recipe) bool {
	return u != nil && r != nil && u.ID != "" && r.ChefID == u.ID
}

// Identity is the identity-service account, distinct from the profile row.
type Identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}
