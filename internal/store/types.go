package store

import "time"

// FeedItem represents a single unit record from the telematics provider.
type FeedItem struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	AssetCode      string     `json:"assetCode"`
	Manufacturer   string     `json:"manufacturer"`
	Model          string     `json:"model"`
	State          int        `json:"state"`
	EngineHours    float64    `json:"engineHours"`
	LastSeen       *string    `json:"lastSeen"`
	LastSeenParsed *time.Time `json:"-"`
}

// UnitStateType defines the recognized operating states of a fleet unit.
type UnitStateType string

const (
	StateTypeActive  UnitStateType = "active"
	StateTypeIdle    UnitStateType = "idle"
	StateTypeDown    UnitStateType = "down"
	StateTypeUnknown UnitStateType = "unknown"
)
