package models

import "time"

// ItemKind groups items into separately listed catalogues.
type ItemKind string

const (
	ItemKindCode    ItemKind = "code"
	ItemKindAccount ItemKind = "account"
)

// ItemStatus is the lifecycle state of an item.
// Transitions are strictly available -> sold -> exchanged.
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
	ItemStatusExchanged ItemStatus = "exchanged"
)

// Item is a single sellable unit of digital goods.
type Item struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Kind     ItemKind `gorm:"type:varchar(32);not null;index:idx_items_listing,priority:2"` // Catalogue kind.
	Category string   `gorm:"type:varchar(64);not null;index:idx_items_listing,priority:3"` // Price table key.
	Label    string   `gorm:"type:text;not null"`                                           // Public description.
	Payload  string   `gorm:"type:text;not null"`                                           // Delivery data, revealed on sale.

	Status ItemStatus `gorm:"type:varchar(16);not null;default:'available';index:idx_items_listing,priority:1"` // Lifecycle state.

	OwnerID     *int64     `gorm:"index"` // Buyer, set on sale.
	SoldAt      *time.Time // Sale time.
	ExchangedAt *time.Time // Exchange approval time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Ingestion time.
}
