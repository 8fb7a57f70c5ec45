// Package admin implements the store administrator's commands.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/gift"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/settings"
	"github.com/router-for-me/PixStore/internal/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotAdmin is returned when a command is issued by anyone but the admin.
var ErrNotAdmin = apperr.New(apperr.ErrForbidden, "admin only")

// Admin action names recorded in the activity log.
const (
	ActionSetPrice    = "set_price"
	ActionPromotion   = "create_promotion"
	ActionMintGift    = "mint_gift"
	ActionToggleBonus = "toggle_bonus"
)

// Service runs admin commands on behalf of the configured admin.
type Service struct {
	db       *gorm.DB
	gifts    *gift.Engine
	notifier notify.Notifier
	audience notify.Audience
	now      func() time.Time
}

// NewService constructs a Service. A nil notifier discards notifications.
func NewService(conn *gorm.DB, gifts *gift.Engine, notifier notify.Notifier, audience notify.Audience) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		db:       conn,
		gifts:    gifts,
		notifier: notifier,
		audience: audience,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IsAdmin reports whether userID is the configured admin.
func (s *Service) IsAdmin(userID int64) bool {
	return s.audience.AdminID != 0 && userID == s.audience.AdminID
}

func (s *Service) authorize(userID int64) error {
	if !s.IsAdmin(userID) {
		return ErrNotAdmin
	}
	return nil
}

// SetPrice sets the unit price of a category.
func (s *Service) SetPrice(ctx context.Context, adminID int64, category string, amount decimal.Decimal) (*models.Price, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	price, err := pricing.SetPrice(ctx, s.db, category, amount, adminID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionSetPrice, map[string]any{
		"category": price.Category,
		"amount":   price.Amount.StringFixed(2),
	})
	return price, nil
}

// CreatePromotion starts a promotion selling the next quantity items at price.
func (s *Service) CreatePromotion(ctx context.Context, adminID int64, price decimal.Decimal, quantity int) (*models.Promotion, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	promo, err := pricing.CreatePromotion(ctx, s.db, price, quantity, adminID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionPromotion, map[string]any{
		"promotion_id": promo.ID,
		"price":        promo.Price.StringFixed(2),
		"quantity":     promo.TotalQuantity,
	})
	if s.audience.GroupID != 0 {
		s.notifier.Notify(ctx, s.audience.Group(fmt.Sprintf(
			"Promotion: the next %d items cost %s each", promo.TotalQuantity, util.Money(promo.Price))))
	}
	return promo, nil
}

// MintGift creates a gift code worth amount. Unless noExpire is set the code
// expires after the configured number of hours.
func (s *Service) MintGift(ctx context.Context, adminID int64, amount decimal.Decimal, noExpire bool) (*models.Gift, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	hours, errHours := settings.Int(ctx, s.db, settings.GiftExpiryHoursKey, settings.DefaultGiftExpiryHours)
	if errHours != nil {
		return nil, errHours
	}
	if hours <= 0 {
		hours = settings.DefaultGiftExpiryHours
	}
	minted, err := s.gifts.Mint(ctx, amount, gift.MintOptions{
		Expires:   !noExpire,
		Lifetime:  time.Duration(hours) * time.Hour,
		Source:    models.GiftSourceAdmin,
		CreatedBy: adminID,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionMintGift, map[string]any{
		"gift_id":   minted.ID,
		"amount":    minted.Amount.StringFixed(2),
		"no_expire": noExpire,
	})
	return minted, nil
}

// ToggleBonus flips the recharge doubling flag and returns the new state.
func (s *Service) ToggleBonus(ctx context.Context, adminID int64) (bool, error) {
	if err := s.authorize(adminID); err != nil {
		return false, err
	}
	enabled, err := settings.ToggleBool(ctx, s.db, settings.RechargeBonusKey, settings.DefaultRechargeBonus)
	if err != nil {
		return false, err
	}
	s.record(ctx, adminID, ActionToggleBonus, map[string]any{"enabled": enabled})
	if enabled && s.audience.GroupID != 0 {
		s.notifier.Notify(ctx, s.audience.Group("2x bonus is on: PIX recharges are credited double"))
	}
	return enabled, nil
}

// RecentLogs returns the newest admin log entries.
func (s *Service) RecentLogs(ctx context.Context, adminID int64, limit int) ([]models.AdminLog, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []models.AdminLog
	if errFind := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("admin: list logs: %w", errFind)
	}
	return rows, nil
}

// record appends to the activity log; failures are logged and ignored.
func (s *Service) record(ctx context.Context, adminID int64, action string, details map[string]any) {
	payload, errMarshal := json.Marshal(details)
	if errMarshal != nil {
		log.WithError(errMarshal).Warnf("admin: encode %s details", action)
		payload = nil
	}
	row := models.AdminLog{AdminID: adminID, Action: action, Details: datatypes.JSON(payload)}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Warnf("admin: record %s", action)
	}
}
