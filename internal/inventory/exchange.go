package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/PixStore/internal/gift"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/pricing"
	"gorm.io/gorm"
)

// ExchangeResult describes an approved exchange.
type ExchangeResult struct {
	Item models.Item
	Gift models.Gift
}

// RequestExchange records the owner's request to exchange a sold item and
// notifies the admin. The item itself is not modified. A second request for
// the same item returns the pending one.
func (s *Service) RequestExchange(ctx context.Context, itemID uint64, requesterID int64) (*models.ExchangeRequest, error) {
	item, err := s.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID == nil || *item.OwnerID != requesterID {
		return nil, ErrExchangeNotAllowed
	}
	switch item.Status {
	case models.ItemStatusExchanged:
		return nil, ErrAlreadyExchanged
	case models.ItemStatusSold:
	default:
		return nil, ErrExchangeNotAllowed
	}

	var request models.ExchangeRequest
	if errFind := s.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, models.ExchangePending).
		Limit(1).Find(&request).Error; errFind != nil {
		return nil, fmt.Errorf("inventory: find exchange request: %w", errFind)
	}
	if request.ID != 0 {
		return &request, nil
	}

	request = models.ExchangeRequest{ItemID: itemID, RequesterID: requesterID, Status: models.ExchangePending}
	if errCreate := s.db.WithContext(ctx).Create(&request).Error; errCreate != nil {
		return nil, fmt.Errorf("inventory: create exchange request: %w", errCreate)
	}

	s.notifier.Notify(ctx, notify.Message{
		ChatID: s.audience.AdminID,
		Text: fmt.Sprintf("Exchange requested by %d for item %d (%s): %s",
			requesterID, item.ID, item.Category, item.Label),
		Buttons: [][]notify.Button{{{Text: "Approve exchange", Data: fmt.Sprintf("approve:%d", item.ID)}}},
	})
	return &request, nil
}

// ApproveExchange moves a sold item to exchanged and mints a gift worth the
// item's category price, in one transaction. Only the admin may approve.
func (s *Service) ApproveExchange(ctx context.Context, itemID uint64, approverID int64) (*ExchangeResult, error) {
	if s.audience.AdminID == 0 || approverID != s.audience.AdminID {
		return nil, ErrNotAdmin
	}

	var result ExchangeResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Model(&models.Item{}).
			Where("id = ? AND status = ?", itemID, models.ItemStatusSold).
			Updates(map[string]any{"status": models.ItemStatusExchanged, "exchanged_at": now})
		if res.Error != nil {
			return fmt.Errorf("inventory: exchange item %d: %w", itemID, res.Error)
		}
		if res.RowsAffected != 1 {
			return classifyUnexchangeable(tx, itemID)
		}
		if errFind := tx.First(&result.Item, itemID).Error; errFind != nil {
			return fmt.Errorf("inventory: reload item %d: %w", itemID, errFind)
		}

		compensation, errPrice := pricing.Price(ctx, tx, result.Item.Category)
		if errPrice != nil {
			return errPrice
		}
		minted, errMint := gift.MintTx(ctx, tx, now, compensation, gift.MintOptions{
			Source:    models.GiftSourceExchange,
			CreatedBy: approverID,
		})
		if errMint != nil {
			return errMint
		}
		result.Gift = *minted

		return tx.Model(&models.ExchangeRequest{}).
			Where("item_id = ? AND status = ?", itemID, models.ExchangePending).
			Updates(map[string]any{"status": models.ExchangeApproved, "gift_id": minted.ID, "resolved_at": now}).Error
	})
	if errTx != nil {
		return nil, errTx
	}

	if owner := result.Item.OwnerID; owner != nil {
		s.notifier.Notify(ctx, notify.Message{
			ChatID: *owner,
			Text: fmt.Sprintf("Your exchange for item %d was approved. Gift code worth %s: %s\nRedeem it with /redeem %s",
				result.Item.ID, money(result.Gift.Amount), result.Gift.Code, result.Gift.Code),
		})
	}
	return &result, nil
}

func classifyUnexchangeable(tx *gorm.DB, itemID uint64) error {
	var item models.Item
	if errFind := tx.First(&item, itemID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("inventory: find item %d: %w", itemID, errFind)
	}
	if item.Status == models.ItemStatusExchanged {
		return ErrAlreadyExchanged
	}
	return ErrExchangeNotAllowed
}
