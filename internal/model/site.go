package model

import "time"

// Site represents a project site or equipment yard.
type Site struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Region    string    `gorm:"size:128" json:"region"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	// Associations
	Machines []Machine `gorm:"foreignKey:SiteID" json:"-"`
}
