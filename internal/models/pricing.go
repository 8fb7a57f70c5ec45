package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is the unit price of one item category.
type Price struct {
	Category  string          `gorm:"type:varchar(64);primaryKey"` // Category key.
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Unit price.
	UpdatedBy int64           `gorm:"not null;default:0"`          // Last admin to change it.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime"`     // Last update timestamp.
}

// Promotion overrides the unit price for a limited number of sales.
type Promotion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Price             decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Promotional unit price.
	TotalQuantity     int             `gorm:"not null"`                    // Units offered.
	RemainingQuantity int             `gorm:"not null"`                    // Units left.
	Active            bool            `gorm:"not null;default:true;index"` // Cleared when exhausted or replaced.
	CreatedBy         int64           `gorm:"not null;default:0"`          // Admin that created it.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
