package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeStatus is the payment state of a PIX charge.
// created -> pending -> {paid | expired | failed}
type ChargeStatus string

const (
	ChargeCreated ChargeStatus = "created"
	ChargePending ChargeStatus = "pending"
	ChargePaid    ChargeStatus = "paid"
	ChargeExpired ChargeStatus = "expired"
	ChargeFailed  ChargeStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ChargeStatus) Terminal() bool {
	return s == ChargePaid || s == ChargeExpired || s == ChargeFailed
}

// Charge is a balance top-up request sent to the payment provider.
type Charge struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID.

	UserID       int64           `gorm:"not null;index"`              // Paying user.
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Amount charged.
	CreditAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"` // Amount credited when paid.
	BonusApplied bool            `gorm:"not null;default:false"`      // Recharge bonus active at creation.

	ProviderChargeID *string `gorm:"type:varchar(128);uniqueIndex"` // Provider order id.
	DisplayCode      string  `gorm:"type:text"`                     // PIX copy-and-paste code.
	QRCodeURL        string  `gorm:"type:text"`                     // QR code image URL.

	Status     ChargeStatus `gorm:"type:varchar(16);not null;index"` // Payment state.
	Credited   bool         `gorm:"not null;default:false"`          // Set once when the balance is credited.
	CreditedAt *time.Time   // Credit time.
	ExpiresAt  *time.Time   // Provider expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// WebhookDelivery deduplicates provider webhook credits.
type WebhookDelivery struct {
	IdempotencyKey string          `gorm:"type:varchar(128);primaryKey"` // Provider or caller supplied key.
	UserID         int64           `gorm:"not null;index"`               // Credited user.
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null"`  // Credited amount.
	Status         string          `gorm:"type:varchar(32);not null"`    // Reported status.
	ReceivedAt     time.Time       `gorm:"not null;autoCreateTime"`      // First delivery time.
}
