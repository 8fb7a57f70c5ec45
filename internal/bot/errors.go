package bot

import (
	"errors"
	"fmt"

	"github.com/router-for-me/PixStore/internal/admin"
	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/gift"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/payment"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/session"
	"github.com/router-for-me/PixStore/internal/util"
	log "github.com/sirupsen/logrus"
)

// errorText maps an operation error to the message shown to the user.
func (h *Handler) errorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "Insufficient balance. Top up with /pix <amount>."
	case errors.Is(err, ledger.ErrBalanceConflict):
		return "Your balance changed meanwhile. Please try again."
	case errors.Is(err, inventory.ErrItemUnavailable):
		return "This item is no longer available. Pick another one."
	case errors.Is(err, inventory.ErrInsufficientInventory):
		return "Not enough items in stock for this purchase."
	case errors.Is(err, inventory.ErrInvalidQuantity):
		return fmt.Sprintf("Quantity must be between 1 and %d.", inventory.MaxBatchSize)
	case errors.Is(err, inventory.ErrExchangeNotAllowed):
		return "Only the owner of a sold item can request an exchange."
	case errors.Is(err, inventory.ErrAlreadyExchanged):
		return "This item was already exchanged."
	case errors.Is(err, gift.ErrCodeNotFound):
		return "Gift code not found."
	case errors.Is(err, gift.ErrAlreadyUsed):
		return "This gift code was already used."
	case errors.Is(err, gift.ErrExpired):
		return "This gift code has expired."
	case errors.Is(err, payment.ErrAmountTooLow):
		if h.deps.Payments != nil {
			return "Minimum recharge is " + util.Money(h.deps.Payments.MinAmount()) + "."
		}
		return "Recharge amount is too low."
	case errors.Is(err, payment.ErrProviderRejected):
		log.WithError(err).Error("bot: payment provider rejected a charge")
		return "Recharges are unavailable right now. Use /support to reach the store."
	case errors.Is(err, pricing.ErrPriceNotSet):
		return "This category has no price yet."
	case errors.Is(err, session.ErrNoSession):
		return "Your browsing session expired. Open the /shop again."
	case errors.Is(err, util.ErrInvalidAmount):
		return "Invalid amount. Use a value like 10 or 10,50."
	case errors.Is(err, admin.ErrNotAdmin):
		return "Admin only."
	}

	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return "Not found."
	case apperr.ErrInvalid:
		return "Invalid input."
	case apperr.ErrForbidden:
		return "Not allowed."
	case apperr.ErrUpstreamUnavailable:
		return "The payment provider is unavailable. Try again in a few minutes."
	case apperr.ErrExpired:
		return "Expired."
	case apperr.ErrConflict:
		return "This was already processed."
	}
	log.WithError(err).Error("bot: unexpected error")
	return "Something went wrong. Please try again."
}
