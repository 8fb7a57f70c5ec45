// Package inventory sells items from the finite item pool.
//
// Every status change is a single conditional write on the current status,
// so two buyers racing for the same item can never both succeed.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/settings"
	"github.com/router-for-me/PixStore/internal/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrItemUnavailable is returned when the item is not (or no longer) available.
	ErrItemUnavailable = apperr.New(apperr.ErrConflict, "item unavailable")
	// ErrItemNotFound is returned when the item does not exist.
	ErrItemNotFound = apperr.New(apperr.ErrNotFound, "item not found")
	// ErrAlreadyExchanged is returned when approving an exchange twice.
	ErrAlreadyExchanged = apperr.New(apperr.ErrConflict, "item already exchanged")
	// ErrExchangeNotAllowed is returned when the requester does not own a sold item.
	ErrExchangeNotAllowed = apperr.New(apperr.ErrForbidden, "exchange not allowed for this item")
	// ErrNotAdmin is returned when a non-admin tries to approve an exchange.
	ErrNotAdmin = apperr.New(apperr.ErrForbidden, "only the admin can approve exchanges")
	// ErrInsufficientInventory is returned when a batch cannot be filled.
	ErrInsufficientInventory = apperr.New(apperr.ErrInsufficientInventory, "not enough items available")
	// ErrInvalidQuantity is returned for batch sizes outside 1..MaxBatchSize.
	ErrInvalidQuantity = apperr.New(apperr.ErrInvalid, "invalid quantity")
)

// MaxBatchSize bounds a single batch purchase.
const MaxBatchSize = 100

// Filter selects available items for listing.
type Filter struct {
	Kind     models.ItemKind
	Category string
	Limit    int
	Offset   int
}

// Service is the inventory manager.
type Service struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	notifier notify.Notifier
	audience notify.Audience
	now      func() time.Time
}

// NewService constructs a Service. A nil notifier discards notifications.
func NewService(conn *gorm.DB, l *ledger.Ledger, notifier notify.Notifier, audience notify.Audience) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		db:       conn,
		ledger:   l,
		notifier: notifier,
		audience: audience,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListAvailable returns available items ordered by id, stable across calls.
func (s *Service) ListAvailable(ctx context.Context, filter Filter) ([]models.Item, error) {
	query := s.db.WithContext(ctx).Where("status = ?", models.ItemStatusAvailable)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if category := pricing.NormalizeCategory(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var items []models.Item
	if errFind := query.Order("id ASC").Find(&items).Error; errFind != nil {
		return nil, fmt.Errorf("inventory: list available: %w", errFind)
	}
	return items, nil
}

// CategorySummary is the available stock of one category.
type CategorySummary struct {
	Category  string
	Available int64
	Price     *decimal.Decimal
}

// Categories summarizes available stock per category for a kind.
func (s *Service) Categories(ctx context.Context, kind models.ItemKind) ([]CategorySummary, error) {
	var rows []struct {
		Category  string
		Available int64
	}
	query := s.db.WithContext(ctx).Model(&models.Item{}).
		Select("category, COUNT(*) AS available").
		Where("status = ?", models.ItemStatusAvailable)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if errScan := query.Group("category").Order("category ASC").Scan(&rows).Error; errScan != nil {
		return nil, fmt.Errorf("inventory: categories: %w", errScan)
	}

	prices, errPrices := pricing.ListPrices(ctx, s.db)
	if errPrices != nil {
		return nil, errPrices
	}
	byCategory := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		byCategory[p.Category] = p.Amount
	}

	out := make([]CategorySummary, 0, len(rows))
	for _, row := range rows {
		summary := CategorySummary{Category: row.Category, Available: row.Available}
		if price, ok := byCategory[row.Category]; ok {
			summary.Price = &price
		}
		out = append(out, summary)
	}
	return out, nil
}

// Item returns an item by id.
func (s *Service) Item(ctx context.Context, itemID uint64) (*models.Item, error) {
	var item models.Item
	if errFind := s.db.WithContext(ctx).First(&item, itemID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("inventory: find item: %w", errFind)
	}
	return &item, nil
}

// OwnedItems returns sold items owned by userID, newest sale first.
func (s *Service) OwnedItems(ctx context.Context, userID int64, limit int) ([]models.Item, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []models.Item
	if errFind := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", userID, models.ItemStatusSold).
		Order("sold_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error; errFind != nil {
		return nil, fmt.Errorf("inventory: owned items: %w", errFind)
	}
	return items, nil
}

// AddItems ingests new available items.
func (s *Service) AddItems(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].Status = models.ItemStatusAvailable
		items[i].Category = pricing.NormalizeCategory(items[i].Category)
		items[i].OwnerID = nil
		items[i].SoldAt = nil
		items[i].ExchangedAt = nil
		if items[i].Kind == "" || items[i].Category == "" || strings.TrimSpace(items[i].Payload) == "" {
			return apperr.New(apperr.ErrInvalid, fmt.Sprintf("item %d: kind, category and payload are required", i))
		}
	}
	if errCreate := s.db.WithContext(ctx).CreateInBatches(items, 200).Error; errCreate != nil {
		return fmt.Errorf("inventory: add items: %w", errCreate)
	}
	return nil
}

// broadcast sends a group notice when sales broadcasting is enabled.
func (s *Service) broadcast(ctx context.Context, text string) {
	if s.audience.GroupID == 0 {
		return
	}
	enabled, err := settings.Bool(ctx, s.db, settings.SalesBroadcastKey, settings.DefaultSalesBroadcast)
	if err != nil {
		log.WithError(err).Warn("inventory: read broadcast setting")
		return
	}
	if enabled {
		s.notifier.Notify(ctx, s.audience.Group(text))
	}
}

func money(d decimal.Decimal) string { return util.Money(d) }
