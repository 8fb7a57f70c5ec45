package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Receipt describes a completed single-item purchase.
type Receipt struct {
	Item        models.Item
	Price       decimal.Decimal
	Promotional bool
	Balance     decimal.Decimal
}

// BatchReceipt describes a completed batch purchase.
type BatchReceipt struct {
	Items   []models.Item
	Total   decimal.Decimal
	Balance decimal.Decimal
}

// ReserveAndSell moves an available item to sold for buyerID and returns it
// with its payload. Any other starting state, or a missing item, yields
// ErrItemUnavailable.
func (s *Service) ReserveAndSell(ctx context.Context, itemID uint64, buyerID int64) (*models.Item, error) {
	var item *models.Item
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errSell error
		item, errSell = sellTx(ctx, tx, itemID, buyerID, s.now())
		return errSell
	})
	if errTx != nil {
		return nil, errTx
	}
	return item, nil
}

func sellTx(ctx context.Context, tx *gorm.DB, itemID uint64, buyerID int64, now time.Time) (*models.Item, error) {
	res := tx.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND status = ?", itemID, models.ItemStatusAvailable).
		Updates(map[string]any{
			"status":   models.ItemStatusSold,
			"owner_id": buyerID,
			"sold_at":  now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("inventory: sell item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, ErrItemUnavailable
	}
	var item models.Item
	if errFind := tx.WithContext(ctx).First(&item, itemID).Error; errFind != nil {
		return nil, fmt.Errorf("inventory: reload item %d: %w", itemID, errFind)
	}
	return &item, nil
}

// unitPriceTx takes one promotional unit if a promotion runs, otherwise the category price.
func unitPriceTx(ctx context.Context, tx *gorm.DB, category string) (decimal.Decimal, bool, error) {
	promoPrice, ok, err := pricing.ConsumePromotionTx(ctx, tx)
	if err != nil {
		return decimal.Zero, false, err
	}
	if ok {
		return promoPrice, true, nil
	}
	price, err := pricing.Price(ctx, tx, category)
	if err != nil {
		return decimal.Zero, false, err
	}
	return price, false, nil
}

// Purchase debits the item price from buyerID and sells the item in one
// transaction. On insufficient balance the item stays available.
func (s *Service) Purchase(ctx context.Context, itemID uint64, buyerID int64) (*Receipt, error) {
	var receipt Receipt
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Item
		if errFind := tx.First(&current, itemID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrItemUnavailable
			}
			return fmt.Errorf("inventory: find item %d: %w", itemID, errFind)
		}
		if current.Status != models.ItemStatusAvailable {
			return ErrItemUnavailable
		}

		price, promotional, errPrice := unitPriceTx(ctx, tx, current.Category)
		if errPrice != nil {
			return errPrice
		}
		balance, errDebit := ledger.AdjustTx(ctx, tx, buyerID, price.Neg())
		if errDebit != nil {
			return errDebit
		}
		sold, errSell := sellTx(ctx, tx, itemID, buyerID, s.now())
		if errSell != nil {
			return errSell
		}
		receipt = Receipt{Item: *sold, Price: price, Promotional: promotional, Balance: balance}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	_ = s.ledger.Record(ctx, ledger.Entry{
		UserID: buyerID,
		Kind:   models.TransactionPurchase,
		Amount: receipt.Price,
		Detail: fmt.Sprintf("item %d (%s)", receipt.Item.ID, receipt.Item.Category),
	})
	s.broadcast(ctx, fmt.Sprintf("New sale: 1x %s for %s", receipt.Item.Category, money(receipt.Price)))
	return &receipt, nil
}

// SellBatch sells quantity available items (optionally of one kind) to
// buyerID at priceEach. All items are sold and the total debited in one
// transaction, or nothing changes.
func (s *Service) SellBatch(ctx context.Context, buyerID int64, quantity int, priceEach decimal.Decimal, kind models.ItemKind) (*BatchReceipt, error) {
	if quantity <= 0 || quantity > MaxBatchSize {
		return nil, ErrInvalidQuantity
	}
	total := priceEach.Mul(decimal.NewFromInt(int64(quantity))).Round(2)

	var receipt BatchReceipt
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, errLock := ledger.LockUserTx(ctx, tx, buyerID); errLock != nil {
			return errLock
		}
		query := tx.Scopes(db.LockSkipLocked).Model(&models.Item{}).
			Where("status = ?", models.ItemStatusAvailable)
		if kind != "" {
			query = query.Where("kind = ?", kind)
		}
		var ids []uint64
		if errPluck := query.Order("id ASC").Limit(quantity).Pluck("id", &ids).Error; errPluck != nil {
			return fmt.Errorf("inventory: select batch: %w", errPluck)
		}
		if len(ids) < quantity {
			return ErrInsufficientInventory
		}

		balance, errDebit := ledger.AdjustTx(ctx, tx, buyerID, total.Neg())
		if errDebit != nil {
			return errDebit
		}

		res := tx.Model(&models.Item{}).
			Where("id IN ? AND status = ?", ids, models.ItemStatusAvailable).
			Updates(map[string]any{
				"status":   models.ItemStatusSold,
				"owner_id": buyerID,
				"sold_at":  s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("inventory: sell batch: %w", res.Error)
		}
		if res.RowsAffected != int64(quantity) {
			return ErrItemUnavailable
		}

		if errFind := tx.Where("id IN ?", ids).Order("id ASC").Find(&receipt.Items).Error; errFind != nil {
			return fmt.Errorf("inventory: reload batch: %w", errFind)
		}
		receipt.Total = total
		receipt.Balance = balance
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	_ = s.ledger.Record(ctx, ledger.Entry{
		UserID: buyerID,
		Kind:   models.TransactionPurchase,
		Amount: total,
		Detail: fmt.Sprintf("batch of %d items", quantity),
	})
	s.broadcast(ctx, fmt.Sprintf("New sale: %dx mixed items for %s", quantity, money(total)))
	return &receipt, nil
}

// Quote returns the price the next single purchase in category would pay and
// whether it is promotional. Nothing is consumed.
func (s *Service) Quote(ctx context.Context, category string) (decimal.Decimal, bool, error) {
	promo, err := pricing.ActivePromotion(ctx, s.db)
	if err != nil {
		return decimal.Zero, false, err
	}
	if promo != nil && promo.RemainingQuantity > 0 {
		return promo.Price, true, nil
	}
	price, err := pricing.Price(ctx, s.db, category)
	if err != nil {
		return decimal.Zero, false, err
	}
	return price, false, nil
}
