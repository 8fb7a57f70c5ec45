package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderStatus is the charge status reported by the payment provider.
type ProviderStatus string

const (
	ProviderPending  ProviderStatus = "pending"
	ProviderPaid     ProviderStatus = "paid"
	ProviderCanceled ProviderStatus = "canceled"
	ProviderFailed   ProviderStatus = "failed"
	ProviderExpired  ProviderStatus = "expired"
)

// ChargeRequest asks the provider for a PIX charge.
type ChargeRequest struct {
	// Reference is the local charge id, echoed back by the provider.
	Reference string
	// AmountCents is the amount in minor currency units.
	AmountCents int64
	Description string
	UserID      int64
	ExpiresIn   time.Duration
}

// ProviderCharge is the provider's view of a created charge.
type ProviderCharge struct {
	ID        string
	Code      string
	QRCodeURL string
	ExpiresAt *time.Time
	Status    ProviderStatus
}

// Provider creates and inspects PIX charges.
type Provider interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ProviderCharge, error)
	GetStatus(ctx context.Context, providerChargeID string) (ProviderStatus, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
