// Package domain contains core domain types for the study planner.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the closed set of privilege levels a user can hold.
type Role int

const (
	// RoleStandard is an ordinary user.
	RoleStandard Role = iota
	// RoleAdmin may manage other users.
	RoleAdmin
)

// String returns the persisted text form of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// ParseRole converts the persisted text form back into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleStandard, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleStandard, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalJSON encodes the role as its text form.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role from its text form.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is an account that owns study data.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal is the authenticated identity resolved from a session token.
// Role reflects the user's role at validation time, not at login time.
type Principal struct {
	UserID int64
	Role   Role
}
