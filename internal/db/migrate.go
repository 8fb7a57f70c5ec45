package db

import (
	"fmt"

	"github.com/router-for-me/PixStore/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every store table.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: migrate: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Gift{},
		&models.Transaction{},
		&models.Price{},
		&models.Promotion{},
		&models.Setting{},
		&models.Charge{},
		&models.WebhookDelivery{},
		&models.ExchangeRequest{},
		&models.AdminLog{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
