package models

import "time"

// Exchange request states.
const (
	ExchangePending  = "pending"
	ExchangeApproved = "approved"
)

// ExchangeRequest asks the admin to take back a sold item for gift credit.
type ExchangeRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ItemID      uint64  `gorm:"not null;index"`                                   // Item to exchange.
	RequesterID int64   `gorm:"not null;index"`                                   // Item owner.
	Status      string  `gorm:"type:varchar(16);not null;default:'pending';index"` // Request state.
	GiftID      *uint64 // Compensation gift, set on approval.

	CreatedAt  time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	ResolvedAt *time.Time // Approval time.
}
