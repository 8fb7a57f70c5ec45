package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies ledger entries.
type TransactionKind string

const (
	TransactionCredit   TransactionKind = "credit"
	TransactionDebit    TransactionKind = "debit"
	TransactionPurchase TransactionKind = "purchase"
	TransactionGift     TransactionKind = "gift"
	TransactionRefund   TransactionKind = "refund"
)

// Transaction is an append-only record of a balance movement.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID int64           `gorm:"not null;index:idx_transactions_user_created,priority:1"` // Owner.
	Kind   TransactionKind `gorm:"type:varchar(16);not null"`                              // Entry kind.
	Amount decimal.Decimal `gorm:"type:decimal(20,2);not null"`                            // Absolute amount.
	Detail string          `gorm:"type:text"`                                              // Human readable detail.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_transactions_user_created,priority:2"` // Creation timestamp.
}
