package model

import "time"

// Machine represents one piece of fleet equipment.
type Machine struct {
	ID           int64     `gorm:"primaryKey" json:"id"` // Telematics unit ID where synced
	SiteID       int64     `gorm:"index;not null" json:"siteId"`
	Name         string    `gorm:"size:256;not null" json:"name"`
	MachineType  string    `gorm:"size:64;index" json:"machineType"`
	AssetCode    string    `gorm:"size:64;uniqueIndex" json:"assetCode"`
	Manufacturer string    `gorm:"size:128" json:"manufacturer"`
	ModelName    string    `gorm:"size:128" json:"model"`
	Status       string    `gorm:"size:32" json:"status"`
	EngineHours  float64   `json:"engineHours"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`

	// Associations
	Site Site `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// MachineUsage is a telematics snapshot of a machine at a point in time.
// Rows are append-only; the latest row per machine backs the inventory view.
type MachineUsage struct {
	ID          int64     `gorm:"autoIncrement;primaryKey"`
	MachineID   int64     `gorm:"not null;index"`
	ObservedAt  time.Time `gorm:"not null;index"`
	StateCode   int       `gorm:"not null"`
	Status      string    `gorm:"size:32;not null"`
	EngineHours float64   `gorm:"not null"`
}

// MaintenanceLog records one service action performed on a machine.
type MaintenanceLog struct {
	ID          int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	MachineID   int64     `gorm:"not null;index" json:"machineId"`
	PerformedAt time.Time `gorm:"not null" json:"performedAt"`
	Kind        string    `gorm:"size:64;not null" json:"kind"` // e.g. "service", "repair", "inspection"
	Description string    `gorm:"type:text" json:"description"`
	Cost        float64   `json:"cost"`
	PerformedBy string    `gorm:"size:128" json:"performedBy"`
	CreatedAt   time.Time `json:"-"`
}
