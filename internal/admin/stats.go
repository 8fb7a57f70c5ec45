package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/settings"
	"github.com/shopspring/decimal"
)

// Stats is the admin summary.
type Stats struct {
	Users           int64
	NewUsers24h     int64
	Available       map[models.ItemKind]int64
	Sold            int64
	Revenue         decimal.Decimal
	Credited        decimal.Decimal
	Transactions24h int64
	BonusEnabled    bool
	Promotion       *models.Promotion
}

type kindCount struct {
	Kind  models.ItemKind
	Total int64
}

// Stats summarizes users, stock and money flows.
func (s *Service) Stats(ctx context.Context, adminID int64) (*Stats, error) {
	if err := s.authorize(adminID); err != nil {
		return nil, err
	}
	conn := s.db.WithContext(ctx)
	since := s.now().Add(-24 * time.Hour)
	out := &Stats{Available: make(map[models.ItemKind]int64)}

	if errCount := conn.Model(&models.User{}).Count(&out.Users).Error; errCount != nil {
		return nil, fmt.Errorf("admin: count users: %w", errCount)
	}
	if errCount := conn.Model(&models.User{}).Where("created_at >= ?", since).Count(&out.NewUsers24h).Error; errCount != nil {
		return nil, fmt.Errorf("admin: count new users: %w", errCount)
	}

	var counts []kindCount
	if errGroup := conn.Model(&models.Item{}).
		Select("kind, COUNT(*) AS total").
		Where("status = ?", models.ItemStatusAvailable).
		Group("kind").
		Scan(&counts).Error; errGroup != nil {
		return nil, fmt.Errorf("admin: count stock: %w", errGroup)
	}
	for _, c := range counts {
		out.Available[c.Kind] = c.Total
	}
	if errCount := conn.Model(&models.Item{}).Where("status <> ?", models.ItemStatusAvailable).Count(&out.Sold).Error; errCount != nil {
		return nil, fmt.Errorf("admin: count sold: %w", errCount)
	}

	var errSum error
	if out.Revenue, errSum = s.sumTransactions(ctx, models.TransactionPurchase); errSum != nil {
		return nil, errSum
	}
	if out.Credited, errSum = s.sumTransactions(ctx, models.TransactionCredit); errSum != nil {
		return nil, errSum
	}
	if errCount := conn.Model(&models.Transaction{}).Where("created_at >= ?", since).Count(&out.Transactions24h).Error; errCount != nil {
		return nil, fmt.Errorf("admin: count transactions: %w", errCount)
	}

	bonus, errBonus := settings.Bool(ctx, s.db, settings.RechargeBonusKey, settings.DefaultRechargeBonus)
	if errBonus != nil {
		return nil, errBonus
	}
	out.BonusEnabled = bonus
	promo, errPromo := pricing.ActivePromotion(ctx, s.db)
	if errPromo != nil {
		return nil, errPromo
	}
	out.Promotion = promo
	return out, nil
}

func (s *Service) sumTransactions(ctx context.Context, kind models.TransactionKind) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if errPluck := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("kind = ?", kind).
		Pluck("amount", &amounts).Error; errPluck != nil {
		return decimal.Zero, fmt.Errorf("admin: sum %s: %w", kind, errPluck)
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total, nil
}
