// Package pricing manages category prices and the single active promotion.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPriceNotSet is returned for a category without a price.
	ErrPriceNotSet = apperr.New(apperr.ErrNotFound, "price not set for category")
	// ErrInvalidPrice is returned for negative prices or empty categories.
	ErrInvalidPrice = apperr.New(apperr.ErrInvalid, "invalid price")
	// ErrInvalidQuantity is returned for promotions without units.
	ErrInvalidQuantity = apperr.New(apperr.ErrInvalid, "invalid promotion quantity")
)

// NormalizeCategory upper-cases and trims a category key.
func NormalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

// Price returns the unit price of a category. conn may be a transaction.
func Price(ctx context.Context, conn *gorm.DB, category string) (decimal.Decimal, error) {
	var row models.Price
	if errFind := conn.WithContext(ctx).Where("category = ?", NormalizeCategory(category)).Limit(1).Find(&row).Error; errFind != nil {
		return decimal.Zero, fmt.Errorf("pricing: read price: %w", errFind)
	}
	if row.Category == "" {
		return decimal.Zero, ErrPriceNotSet
	}
	return row.Amount, nil
}

// SetPrice upserts the unit price of a category.
func SetPrice(ctx context.Context, conn *gorm.DB, category string, amount decimal.Decimal, adminID int64) (*models.Price, error) {
	category = NormalizeCategory(category)
	if category == "" || amount.IsNegative() {
		return nil, ErrInvalidPrice
	}
	row := models.Price{
		Category:  category,
		Amount:    amount.Round(2),
		UpdatedBy: adminID,
		UpdatedAt: time.Now().UTC(),
	}
	if errSave := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_by", "updated_at"}),
	}).Create(&row).Error; errSave != nil {
		return nil, fmt.Errorf("pricing: set price: %w", errSave)
	}
	return &row, nil
}

// ListPrices returns every category price ordered by category.
func ListPrices(ctx context.Context, conn *gorm.DB) ([]models.Price, error) {
	var rows []models.Price
	if errFind := conn.WithContext(ctx).Order("category ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("pricing: list prices: %w", errFind)
	}
	return rows, nil
}

// CreatePromotion replaces any active promotion with a new one.
func CreatePromotion(ctx context.Context, conn *gorm.DB, price decimal.Decimal, quantity int, adminID int64) (*models.Promotion, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	promo := models.Promotion{
		Price:             price.Round(2),
		TotalQuantity:     quantity,
		RemainingQuantity: quantity,
		Active:            true,
		CreatedBy:         adminID,
	}
	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&models.Promotion{}).Where("active = ?", true).
			Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.Create(&promo).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("pricing: create promotion: %w", errTx)
	}
	return &promo, nil
}

// ActivePromotion returns the active promotion, or nil when none runs.
func ActivePromotion(ctx context.Context, conn *gorm.DB) (*models.Promotion, error) {
	var promo models.Promotion
	if errFind := conn.WithContext(ctx).
		Where("active = ? AND remaining_quantity > 0", true).
		Order("id DESC").
		Limit(1).
		Find(&promo).Error; errFind != nil {
		return nil, fmt.Errorf("pricing: active promotion: %w", errFind)
	}
	if promo.ID == 0 {
		return nil, nil
	}
	return &promo, nil
}

// ConsumePromotionTx takes one unit of the active promotion inside tx.
// It returns the promotional price and true, or false when no unit was available.
// The promotion is deactivated when its last unit is taken.
func ConsumePromotionTx(ctx context.Context, tx *gorm.DB) (decimal.Decimal, bool, error) {
	promo, err := ActivePromotion(ctx, tx)
	if err != nil || promo == nil {
		return decimal.Zero, false, err
	}
	res := tx.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ? AND active = ? AND remaining_quantity > 0", promo.ID, true).
		Updates(map[string]any{
			"remaining_quantity": gorm.Expr("remaining_quantity - 1"),
			"active":             gorm.Expr("CASE WHEN remaining_quantity - 1 > 0 THEN ? ELSE ? END", true, false),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return decimal.Zero, false, fmt.Errorf("pricing: consume promotion: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return decimal.Zero, false, nil
	}
	return promo.Price, true, nil
}
