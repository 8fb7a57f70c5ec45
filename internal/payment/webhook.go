package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMissingIdempotencyKey is returned for direct webhook credits without a key.
	ErrMissingIdempotencyKey = apperr.New(apperr.ErrInvalid, "idempotency key required")
	// ErrInvalidWebhook is returned for webhook payloads without a user or amount.
	ErrInvalidWebhook = apperr.New(apperr.ErrInvalid, "webhook requires user and positive amount")
)

// Webhook is an external payment confirmation.
type Webhook struct {
	UserID         int64
	Amount         decimal.Decimal
	Status         string
	ChargeID       string
	IdempotencyKey string
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult string

const (
	WebhookCredited  WebhookResult = "credited"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
)

// HandleWebhook credits a confirmed payment at most once.
//
// A webhook naming a known charge goes through the same credit path as
// polling. Otherwise the delivery is keyed by its idempotency key; a repeated
// key is a no-op.
func (b *Bridge) HandleWebhook(ctx context.Context, hook Webhook) (WebhookResult, error) {
	if !strings.EqualFold(strings.TrimSpace(hook.Status), string(ProviderPaid)) {
		return WebhookIgnored, nil
	}

	if chargeID := strings.TrimSpace(hook.ChargeID); chargeID != "" {
		charge, err := b.Charge(ctx, chargeID)
		if err != nil {
			return "", err
		}
		if hook.UserID != 0 && hook.UserID != charge.UserID {
			return "", ErrUserMismatch
		}
		if charge.Status == models.ChargeFailed || charge.Status == models.ChargeCreated {
			log.WithFields(log.Fields{"charge_id": charge.ID, "status": charge.Status}).Warn("payment: webhook for a charge that was never issued")
			return "", ErrChargeNotPayable
		}
		credited, err := b.creditCharge(ctx, charge.ID)
		if err != nil {
			return "", err
		}
		if !credited {
			return WebhookDuplicate, nil
		}
		return WebhookCredited, nil
	}

	key := strings.TrimSpace(hook.IdempotencyKey)
	if key == "" {
		return "", ErrMissingIdempotencyKey
	}
	amount := hook.Amount.Round(2)
	if hook.UserID == 0 || !amount.IsPositive() {
		return "", ErrInvalidWebhook
	}

	var (
		balance   decimal.Decimal
		duplicate bool
	)
	errTx := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		delivery := models.WebhookDelivery{
			IdempotencyKey: key,
			UserID:         hook.UserID,
			Amount:         amount,
			Status:         string(ProviderPaid),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery)
		if res.Error != nil {
			return fmt.Errorf("payment: record webhook: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			duplicate = true
			return nil
		}
		var errAdjust error
		balance, errAdjust = ledger.AdjustTx(ctx, tx, hook.UserID, amount)
		return errAdjust
	})
	if errTx != nil {
		return "", errTx
	}
	if duplicate {
		return WebhookDuplicate, nil
	}

	_ = b.ledger.Record(ctx, ledger.Entry{
		UserID: hook.UserID,
		Kind:   models.TransactionCredit,
		Amount: amount,
		Detail: "pix webhook " + key,
	})
	b.announceCredit(ctx, hook.UserID, amount, balance)
	return WebhookCredited, nil
}
