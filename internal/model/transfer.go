package model

import "time"

// TransferRequest is one requested machine relocation, tracked through the
// approval pipeline. It is never deleted; rejection is a terminal status.
type TransferRequest struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	RequestingSiteID int64      `gorm:"not null;index" json:"requestingSiteId"`
	SourceSiteID     *int64     `gorm:"index" json:"sourceSiteId"` // set by the assign-source-site transition only
	MachineID        *int64     `json:"machineId"`                 // set by the source-PM approval only
	MachineType      string     `gorm:"size:64" json:"machineType"`
	Status           Status     `gorm:"size:32;not null;default:'pending_pm_approval';index" json:"status"`
	Purpose          string     `gorm:"type:text" json:"purpose"`
	DurationDays     *int       `json:"durationDays"`
	RequiredBy       *time.Time `json:"requiredBy"`
	Notes            string     `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updatedAt"`

	// Associations
	RequestingSite Site            `gorm:"foreignKey:RequestingSiteID" json:"-"`
	History        []TransferEvent `gorm:"foreignKey:TransferRequestID" json:"history,omitempty"`
}

// TransferEvent is one append-only audit record of a transition. Entries
// are never updated, reordered, or removed.
type TransferEvent struct {
	ID                int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	TransferRequestID int64     `gorm:"not null;index" json:"-"`
	Status            Status    `gorm:"size:32;not null" json:"status"`
	ActorID           int64     `gorm:"not null" json:"actorId"`
	ActorName         string    `gorm:"size:128;not null" json:"actorName"`
	Notes             string    `gorm:"type:text" json:"notes"`
	CreatedAt         time.Time `gorm:"not null" json:"createdAt"`
}
