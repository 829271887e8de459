package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers follow sites; a transfer transition notifies every
// subscription covering the requesting or source site.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Sites []*Site `gorm:"many2many:subscription_site_mapping;"`
}
