package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminLog records an action performed by the store administrator.
type AdminLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AdminID int64          `gorm:"not null;index"`     // Telegram id of the admin.
	Action  string         `gorm:"type:text;not null"` // Short action name.
	Details datatypes.JSON `gorm:"type:jsonb"`         // Action arguments.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
