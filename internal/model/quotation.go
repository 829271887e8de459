package model

import "time"

// Quotation statuses. Approval locks the comparison against further edits.
const (
	QuotationDraft    = "draft"
	QuotationApproved = "approved"
	QuotationLocked   = "locked"
)

// Quotation is one vendor quotation in a procurement comparison.
type Quotation struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	Reference string     `gorm:"size:64;not null;index" json:"reference"` // comparison the quotation belongs to
	Vendor    string     `gorm:"size:128;not null" json:"vendor"`
	Item      string     `gorm:"size:256;not null" json:"item"`
	Amount    float64    `gorm:"not null" json:"amount"`
	Status    string     `gorm:"size:32;not null;default:'draft'" json:"status"`
	DecidedBy *int64     `json:"decidedBy"`
	DecidedAt *time.Time `json:"decidedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
