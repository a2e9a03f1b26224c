package models

import (
	"time"
)

// Role distinguishes sellers from platform staff.
type Role string

const (
	RoleSeller Role = "seller"
	RoleStaff  Role = "staff"
)

// User is the identity record behind a dashboard session. A seller's
// profile document shares the user's _id.
type User struct {
	Base              `bson:",inline"`
	Email             string     `bson:"email" json:"email"`
	PasswordHash      string     `bson:"password" json:"-"`
	Role              Role       `bson:"role" json:"role"`
	Disabled          bool       `bson:"disabled" json:"disabled"`
	PasswordChangedAt *time.Time `bson:"password_changed_at,omitempty" json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsStaff reports whether the user may view other sellers' dashboards.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}
