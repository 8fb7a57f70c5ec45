// Package gift mints and redeems single-use balance gift codes.
package gift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrCodeNotFound is returned for codes that were never minted.
	ErrCodeNotFound = apperr.New(apperr.ErrNotFound, "gift code not found")
	// ErrAlreadyUsed is returned when the code was redeemed before.
	ErrAlreadyUsed = apperr.New(apperr.ErrConflict, "gift code already used")
	// ErrExpired is returned when the code expired before redemption.
	ErrExpired = apperr.New(apperr.ErrExpired, "gift code expired")
	// ErrInvalidAmount is returned when minting a non-positive gift.
	ErrInvalidAmount = apperr.New(apperr.ErrInvalid, "gift amount must be positive")
)

// DefaultLifetime is how long an expiring gift stays redeemable.
const DefaultLifetime = 24 * time.Hour

// MintOptions controls how a gift is minted.
type MintOptions struct {
	// Expires sets an expiry Lifetime after minting.
	Expires bool
	// Lifetime overrides DefaultLifetime when Expires is set.
	Lifetime time.Duration
	// Source is models.GiftSourceAdmin or models.GiftSourceExchange.
	Source    string
	CreatedBy int64
}

// Redemption is the outcome of a successful redeem.
type Redemption struct {
	Gift    models.Gift
	Balance decimal.Decimal
}

// Engine mints and redeems gifts.
type Engine struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(conn *gorm.DB, l *ledger.Ledger) *Engine {
	return &Engine{db: conn, ledger: l, now: func() time.Time { return time.Now().UTC() }}
}

// Mint creates a new unused gift.
func (e *Engine) Mint(ctx context.Context, amount decimal.Decimal, opts MintOptions) (*models.Gift, error) {
	return MintTx(ctx, e.db, e.now(), amount, opts)
}

// MintTx creates a gift on conn, which may be a transaction.
func MintTx(ctx context.Context, conn *gorm.DB, now time.Time, amount decimal.Decimal, opts MintOptions) (*models.Gift, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	code, errCode := generateCode(CodeLength)
	if errCode != nil {
		return nil, fmt.Errorf("gift: generate code: %w", errCode)
	}
	source := opts.Source
	if source == "" {
		source = models.GiftSourceAdmin
	}
	row := models.Gift{
		Code:      code,
		Amount:    amount,
		Source:    source,
		CreatedBy: opts.CreatedBy,
	}
	if opts.Expires {
		lifetime := opts.Lifetime
		if lifetime <= 0 {
			lifetime = DefaultLifetime
		}
		expiresAt := now.Add(lifetime)
		row.ExpiresAt = &expiresAt
	}
	if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("gift: mint: %w", errCreate)
	}
	return &row, nil
}

// Redeem marks the code used and credits its amount to userID in one
// transaction: either both happen or neither does.
func (e *Engine) Redeem(ctx context.Context, code string, userID int64) (*Redemption, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}
	now := e.now()

	var result Redemption
	errTx := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Gift{}).
			Where("code = ? AND used = ? AND expired = ?", code, false, false).
			Where("expires_at IS NULL OR expires_at > ?", now).
			Updates(map[string]any{"used": true, "used_by": userID, "used_at": now})
		if res.Error != nil {
			return fmt.Errorf("gift: mark used: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return classifyUnredeemable(tx, code, now)
		}

		if errFind := tx.Where("code = ?", code).First(&result.Gift).Error; errFind != nil {
			return fmt.Errorf("gift: reload: %w", errFind)
		}
		balance, errAdjust := ledger.AdjustTx(ctx, tx, userID, result.Gift.Amount)
		if errAdjust != nil {
			return errAdjust
		}
		result.Balance = balance
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	_ = e.ledger.Record(ctx, ledger.Entry{
		UserID: userID,
		Kind:   models.TransactionGift,
		Amount: result.Gift.Amount,
		Detail: "gift " + result.Gift.Code,
	})
	return &result, nil
}

// classifyUnredeemable explains why the conditional update matched nothing.
func classifyUnredeemable(tx *gorm.DB, code string, now time.Time) error {
	var row models.Gift
	if errFind := tx.Where("code = ?", code).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("gift: lookup: %w", errFind)
	}
	if row.Used {
		return ErrAlreadyUsed
	}
	if row.Expired || (row.ExpiresAt != nil && !row.ExpiresAt.After(now)) {
		return ErrExpired
	}
	// The row changed between the update and this read.
	return ErrAlreadyUsed
}

// ExpireDue flags unused gifts whose expiry passed. Rows are never deleted.
func (e *Engine) ExpireDue(ctx context.Context) (int64, error) {
	res := e.db.WithContext(ctx).Model(&models.Gift{}).
		Where("used = ? AND expired = ? AND expires_at IS NOT NULL AND expires_at <= ?", false, false, e.now()).
		Update("expired", true)
	if res.Error != nil {
		return 0, fmt.Errorf("gift: expire due: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Lookup returns a gift by code.
func (e *Engine) Lookup(ctx context.Context, code string) (*models.Gift, error) {
	var row models.Gift
	if errFind := e.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("gift: lookup: %w", errFind)
	}
	return &row, nil
}
