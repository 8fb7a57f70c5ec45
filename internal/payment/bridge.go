// Package payment turns PIX charges into balance credit.
//
// A charge moves created -> pending -> {paid | expired | failed}. The credit
// step flips the charge's credited flag with a conditional write in the same
// transaction as the balance update, so polling, webhooks and restarts can
// observe "paid" any number of times and the user is credited once.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/settings"
	"github.com/router-for-me/PixStore/internal/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrAmountTooLow is returned for charges below the minimum.
	ErrAmountTooLow = apperr.New(apperr.ErrInvalid, "charge amount below minimum")
	// ErrChargeNotFound is returned for unknown charge ids.
	ErrChargeNotFound = apperr.New(apperr.ErrNotFound, "charge not found")
	// ErrUserMismatch is returned when a webhook names a different user than the charge.
	ErrUserMismatch = apperr.New(apperr.ErrConflict, "charge belongs to another user")
	// ErrChargeNotPayable is returned for charges that never reached the provider.
	ErrChargeNotPayable = apperr.New(apperr.ErrConflict, "charge was never issued")
)

// creditableStatuses are the states a charge may be credited from. Failed and
// created charges have no issued PIX code.
var creditableStatuses = []models.ChargeStatus{models.ChargePending, models.ChargeExpired}

// Options configures a Bridge.
type Options struct {
	MinAmount    decimal.Decimal
	PixExpiresIn time.Duration
}

// Bridge creates charges and credits paid ones.
type Bridge struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	provider Provider
	notifier notify.Notifier
	audience notify.Audience
	opts     Options
	now      func() time.Time
}

// NewBridge constructs a Bridge. A nil notifier discards notifications.
func NewBridge(conn *gorm.DB, l *ledger.Ledger, provider Provider, notifier notify.Notifier, audience notify.Audience, opts Options) *Bridge {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if !opts.MinAmount.IsPositive() {
		opts.MinAmount = decimal.NewFromInt(10)
	}
	return &Bridge{
		db:       conn,
		ledger:   l,
		provider: provider,
		notifier: notifier,
		audience: audience,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MinAmount returns the smallest accepted charge.
func (b *Bridge) MinAmount() decimal.Decimal { return b.opts.MinAmount }

// CreateCharge registers a charge of amount for userID with the provider.
// The recharge bonus setting is read now and, when on, doubles the amount
// that will be credited; the amount charged is unchanged.
func (b *Bridge) CreateCharge(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Charge, error) {
	amount = amount.Round(2)
	if amount.LessThan(b.opts.MinAmount) {
		return nil, ErrAmountTooLow
	}
	if _, errEnsure := b.ledger.EnsureUser(ctx, userID, ""); errEnsure != nil {
		return nil, errEnsure
	}

	bonus, errBonus := settings.Bool(ctx, b.db, settings.RechargeBonusKey, settings.DefaultRechargeBonus)
	if errBonus != nil {
		return nil, errBonus
	}
	credit := amount
	if bonus {
		credit = amount.Mul(decimal.NewFromInt(2))
	}

	charge := models.Charge{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		CreditAmount: credit,
		BonusApplied: bonus,
		Status:       models.ChargeCreated,
	}
	if errCreate := b.db.WithContext(ctx).Create(&charge).Error; errCreate != nil {
		return nil, fmt.Errorf("payment: store charge: %w", errCreate)
	}

	created, errProvider := b.provider.CreateCharge(ctx, ChargeRequest{
		Reference:   charge.ID,
		AmountCents: ToMinorUnits(amount),
		Description: "Balance recharge " + util.Money(amount),
		UserID:      userID,
		ExpiresIn:   b.opts.PixExpiresIn,
	})
	if errProvider != nil {
		b.transition(ctx, charge.ID, models.ChargeFailed, models.ChargeCreated)
		if apperr.Kind(errProvider) == nil {
			errProvider = fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, errProvider)
		}
		return nil, fmt.Errorf("payment: create charge: %w", errProvider)
	}

	providerID := created.ID
	updates := map[string]any{
		"provider_charge_id": providerID,
		"display_code":       created.Code,
		"qr_code_url":        created.QRCodeURL,
		"expires_at":         created.ExpiresAt,
		"status":             models.ChargePending,
		"updated_at":         b.now(),
	}
	if errUpdate := b.db.WithContext(ctx).Model(&models.Charge{}).
		Where("id = ? AND status = ?", charge.ID, models.ChargeCreated).
		Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("payment: mark charge pending: %w", errUpdate)
	}

	charge.ProviderChargeID = &providerID
	charge.DisplayCode = created.Code
	charge.QRCodeURL = created.QRCodeURL
	charge.ExpiresAt = created.ExpiresAt
	charge.Status = models.ChargePending
	log.WithFields(log.Fields{
		"charge_id": charge.ID,
		"user_id":   userID,
		"amount":    amount.StringFixed(2),
		"bonus":     bonus,
	}).Info("pix charge created")
	return &charge, nil
}

// Charge loads a charge by local id or provider id.
func (b *Bridge) Charge(ctx context.Context, id string) (*models.Charge, error) {
	var charge models.Charge
	errFind := b.db.WithContext(ctx).
		Where("id = ? OR provider_charge_id = ?", id, id).
		First(&charge).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrChargeNotFound
		}
		return nil, fmt.Errorf("payment: load charge: %w", errFind)
	}
	return &charge, nil
}

// PollStatus asks the provider for the charge status and applies it.
// Credited and terminal charges are returned without contacting the provider.
func (b *Bridge) PollStatus(ctx context.Context, chargeID string) (*models.Charge, error) {
	charge, err := b.Charge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge.Credited || charge.Status.Terminal() || charge.ProviderChargeID == nil {
		return charge, nil
	}

	status, errStatus := b.provider.GetStatus(ctx, *charge.ProviderChargeID)
	if errStatus != nil {
		if apperr.Kind(errStatus) == nil {
			errStatus = fmt.Errorf("%w: %v", apperr.ErrUpstreamUnavailable, errStatus)
		}
		return charge, fmt.Errorf("payment: poll %s: %w", charge.ID, errStatus)
	}

	switch status {
	case ProviderPaid:
		if _, errCredit := b.creditCharge(ctx, charge.ID); errCredit != nil {
			return charge, errCredit
		}
	case ProviderCanceled, ProviderFailed:
		b.transition(ctx, charge.ID, models.ChargeFailed, models.ChargePending)
	case ProviderExpired:
		b.transition(ctx, charge.ID, models.ChargeExpired, models.ChargePending)
	}
	return b.Charge(ctx, charge.ID)
}

// ExpireCharge marks a charge that was never paid as expired.
func (b *Bridge) ExpireCharge(ctx context.Context, chargeID string) error {
	if !b.transition(ctx, chargeID, models.ChargeExpired, models.ChargeCreated, models.ChargePending) {
		return nil
	}
	log.WithField("charge_id", chargeID).Info("pix charge expired without payment")
	return nil
}

// transition moves an uncredited charge from one of the given states to next.
func (b *Bridge) transition(ctx context.Context, chargeID string, next models.ChargeStatus, from ...models.ChargeStatus) bool {
	res := b.db.WithContext(ctx).Model(&models.Charge{}).
		Where("id = ? AND credited = ? AND status IN ?", chargeID, false, from).
		Updates(map[string]any{"status": next, "updated_at": b.now()})
	if res.Error != nil {
		log.WithError(res.Error).WithField("charge_id", chargeID).Warnf("payment: transition to %s failed", next)
		return false
	}
	return res.RowsAffected == 1
}

// creditCharge credits the charge once. It reports whether this call did the credit.
func (b *Bridge) creditCharge(ctx context.Context, chargeID string) (bool, error) {
	var (
		charge  models.Charge
		balance decimal.Decimal
		applied bool
	)
	errTx := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := b.now()
		res := tx.Model(&models.Charge{}).
			Where("id = ? AND credited = ? AND status IN ? AND provider_charge_id IS NOT NULL", chargeID, false, creditableStatuses).
			Updates(map[string]any{
				"credited":    true,
				"credited_at": now,
				"status":      models.ChargePaid,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("payment: mark credited: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if errFind := tx.Where("id = ?", chargeID).First(&charge).Error; errFind != nil {
			return fmt.Errorf("payment: reload charge: %w", errFind)
		}
		var errAdjust error
		balance, errAdjust = ledger.AdjustTx(ctx, tx, charge.UserID, charge.CreditAmount)
		if errAdjust != nil {
			return errAdjust
		}
		applied = true
		return nil
	})
	if errTx != nil {
		return false, errTx
	}
	if !applied {
		return false, nil
	}

	detail := "pix " + charge.ID
	if charge.BonusApplied {
		detail += " (2x bonus)"
	}
	_ = b.ledger.Record(ctx, ledger.Entry{
		UserID: charge.UserID,
		Kind:   models.TransactionCredit,
		Amount: charge.CreditAmount,
		Detail: detail,
	})
	b.announceCredit(ctx, charge.UserID, charge.CreditAmount, balance)
	log.WithFields(log.Fields{
		"charge_id": charge.ID,
		"user_id":   charge.UserID,
		"credit":    charge.CreditAmount.StringFixed(2),
	}).Info("pix charge credited")
	return true, nil
}

func (b *Bridge) announceCredit(ctx context.Context, userID int64, credit, balance decimal.Decimal) {
	b.notifier.Notify(ctx, notify.Message{
		ChatID: userID,
		Text:   fmt.Sprintf("Payment confirmed: %s credited. Balance: %s", util.Money(credit), util.Money(balance)),
	})
	if b.audience.GroupID == 0 {
		return
	}
	enabled, err := settings.Bool(ctx, b.db, settings.SalesBroadcastKey, settings.DefaultSalesBroadcast)
	if err != nil {
		log.WithError(err).Warn("payment: read broadcast setting")
		return
	}
	if enabled {
		b.notifier.Notify(ctx, b.audience.Group("New recharge of "+util.Money(credit)))
	}
}
