package model

import "time"

// Role is the closed set of workflow roles.
type Role string

const (
	RoleProjectManager Role = "project_manager"
	RoleMechanicalHead Role = "mechanical_head"
)

// User is an actor in the approval workflow. Identity is supplied by the
// caller; this service performs no authentication.
type User struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Role      Role   `gorm:"size:32;not null" json:"role"`
	SiteID    *int64 `gorm:"index" json:"siteId"` // nil for roles not tied to one site
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
