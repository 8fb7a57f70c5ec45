package settings

// DB setting keys and defaults.
const (
	// RechargeBonusKey toggles doubling of credited PIX recharges.
	RechargeBonusKey = "RECHARGE_BONUS_ENABLED"
	// DefaultRechargeBonus is the fallback recharge bonus state.
	DefaultRechargeBonus = false
	// GiftExpiryHoursKey controls how long minted gifts stay redeemable.
	GiftExpiryHoursKey = "GIFT_EXPIRY_HOURS"
	// DefaultGiftExpiryHours is the fallback gift lifetime.
	DefaultGiftExpiryHours = 24
	// SalesBroadcastKey toggles group announcements of sales and recharges.
	SalesBroadcastKey = "SALES_BROADCAST_ENABLED"
	// DefaultSalesBroadcast is the fallback broadcast state.
	DefaultSalesBroadcast = true
)
