package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gift sources.
const (
	GiftSourceAdmin    = "admin"
	GiftSourceExchange = "exchange"
)

// Gift is a single-use code redeemable for balance credit.
type Gift struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code   string          `gorm:"type:varchar(32);not null;uniqueIndex"` // Redemption code.
	Amount decimal.Decimal `gorm:"type:decimal(20,2);not null"`           // Credit value.
	Source string          `gorm:"type:varchar(16);not null;default:'admin'"`

	Used      bool       `gorm:"not null;default:false;index"` // Set once on redemption.
	Expired   bool       `gorm:"not null;default:false"`       // Set by the expiry sweep.
	ExpiresAt *time.Time `gorm:"index"`                        // Expiry time, if any.

	UsedBy    *int64     `gorm:"index"` // Redeeming user.
	UsedAt    *time.Time // Redemption time.
	CreatedBy int64      `gorm:"not null;default:0"` // Minting admin, 0 for system.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
