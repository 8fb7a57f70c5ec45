package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a store customer keyed by the Telegram user id.
type User struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"` // Telegram user id.

	Username string          `gorm:"type:text"`                            // Last seen Telegram username.
	Balance  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Spendable balance.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // First contact.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last balance change.
}
