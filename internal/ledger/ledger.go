// Package ledger owns user balances and the transaction log.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxBalance is the largest balance a user may hold.
var MaxBalance = decimal.RequireFromString("99999999.99")

var (
	// ErrInsufficientBalance is returned when a debit would make the balance negative.
	ErrInsufficientBalance = apperr.New(apperr.ErrInsufficientFunds, "insufficient balance")
	// ErrBalanceConflict is returned when the balance changed between read and write.
	ErrBalanceConflict = apperr.New(apperr.ErrConflict, "balance changed concurrently")
	// ErrInvalidUser is returned for a zero user id.
	ErrInvalidUser = apperr.New(apperr.ErrInvalid, "invalid user id")
)

// Ledger reads and adjusts balances.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger.
func New(conn *gorm.DB) *Ledger {
	return &Ledger{db: conn}
}

// EnsureUser provisions the user on first contact and refreshes the username.
// Concurrent first contact never creates two rows.
func (l *Ledger) EnsureUser(ctx context.Context, userID int64, username string) (*models.User, error) {
	return ensureUser(ctx, l.db, userID, username)
}

// GetBalance returns the user's balance, provisioning the user at zero if unknown.
func (l *Ledger) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := ensureUser(ctx, l.db, userID, "")
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Adjust applies delta to the balance in its own transaction and returns the new balance.
func (l *Ledger) Adjust(ctx context.Context, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errAdjust error
		balance, errAdjust = AdjustTx(ctx, tx, userID, delta)
		return errAdjust
	})
	if errTx != nil {
		return decimal.Zero, errTx
	}
	return balance, nil
}

// AdjustTx applies delta inside the caller's transaction.
//
// A debit that would take the balance below zero fails with
// ErrInsufficientBalance and leaves it unchanged. Otherwise the new balance is
// clamp(round(balance+delta, 2), 0, MaxBalance), written with a compare-and-set
// on the value that was read.
func AdjustTx(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	user, errLock := LockUserTx(ctx, tx, userID)
	if errLock != nil {
		return decimal.Zero, errLock
	}

	sum := user.Balance.Add(delta)
	if delta.IsNegative() && sum.IsNegative() {
		return user.Balance, ErrInsufficientBalance
	}
	next := Clamp(sum.Round(2))

	res := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND balance = ?", userID, user.Balance).
		Updates(map[string]any{"balance": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("ledger: update balance %d: %w", userID, res.Error)
	}
	if res.RowsAffected != 1 {
		return decimal.Zero, ErrBalanceConflict
	}
	return next, nil
}

// LockUserTx provisions the user if needed and locks its row until the
// caller's transaction ends. Transactions touching both a user and items take
// this lock first.
func LockUserTx(ctx context.Context, tx *gorm.DB, userID int64) (*models.User, error) {
	if _, errEnsure := ensureUser(ctx, tx, userID, ""); errEnsure != nil {
		return nil, errEnsure
	}
	var user models.User
	if errFind := tx.WithContext(ctx).Scopes(db.LockForUpdate).Where("id = ?", userID).First(&user).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: lock user %d: %w", userID, errFind)
	}
	return &user, nil
}

// Clamp bounds a balance to [0, MaxBalance].
func Clamp(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(MaxBalance) {
		return MaxBalance
	}
	return v
}

func ensureUser(ctx context.Context, conn *gorm.DB, userID int64, username string) (*models.User, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	seed := models.User{ID: userID, Username: username, Balance: decimal.Zero}
	if errCreate := conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; errCreate != nil {
		return nil, fmt.Errorf("ledger: provision user %d: %w", userID, errCreate)
	}

	var user models.User
	if errFind := conn.WithContext(ctx).Where("id = ?", userID).First(&user).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: read user %d: %w", userID, errFind)
	}
	if username != "" && user.Username != username {
		if errUpdate := conn.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
			Update("username", username).Error; errUpdate != nil {
			log.WithError(errUpdate).Warnf("ledger: refresh username for %d", userID)
		} else {
			user.Username = username
		}
	}
	return &user, nil
}
