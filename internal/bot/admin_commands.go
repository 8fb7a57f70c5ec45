package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/util"
)

func (h *Handler) cmdPromo(ctx context.Context, req request) {
	if len(req.args) != 2 {
		h.reply(req.chatID, "Usage: /promo <price> <quantity>")
		return
	}
	price, errPrice := util.ParseAmount(req.args[0])
	if errPrice != nil {
		h.fail(req.chatID, errPrice)
		return
	}
	quantity, errQty := strconv.Atoi(req.args[1])
	if errQty != nil {
		h.reply(req.chatID, "Quantity must be a number.")
		return
	}
	promo, err := h.deps.Admin.CreatePromotion(ctx, req.userID, price, quantity)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("Promotion #%d active: %d items at %s.", promo.ID, promo.TotalQuantity, util.Money(promo.Price)))
}

func (h *Handler) cmdSetPrice(ctx context.Context, req request) {
	if len(req.args) != 2 {
		h.reply(req.chatID, "Usage: /setprice <CATEGORY> <price>")
		return
	}
	amount, errAmount := util.ParseAmount(req.args[1])
	if errAmount != nil {
		h.fail(req.chatID, errAmount)
		return
	}
	price, err := h.deps.Admin.SetPrice(ctx, req.userID, req.args[0], amount)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("Price of %s set to %s.", price.Category, util.Money(price.Amount)))
}

func (h *Handler) cmdGift(ctx context.Context, req request) {
	if len(req.args) == 0 || len(req.args) > 2 {
		h.reply(req.chatID, "Usage: /gift <value> [noexpire]")
		return
	}
	amount, errAmount := util.ParseAmount(req.args[0])
	if errAmount != nil {
		h.fail(req.chatID, errAmount)
		return
	}
	noExpire := len(req.args) == 2 && strings.EqualFold(req.args[1], "noexpire")
	minted, err := h.deps.Admin.MintGift(ctx, req.userID, amount, noExpire)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	expiry := "never expires"
	if minted.ExpiresAt != nil {
		expiry = "expires " + minted.ExpiresAt.Format("2006-01-02 15:04 UTC")
	}
	h.reply(req.chatID, fmt.Sprintf("Gift code %s worth %s (%s).\nRedeem with /redeem %s",
		minted.Code, util.Money(minted.Amount), expiry, minted.Code))
}

func (h *Handler) cmdToggleBonus(ctx context.Context, req request) {
	enabled, err := h.deps.Admin.ToggleBonus(ctx, req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	if enabled {
		h.reply(req.chatID, "2x recharge bonus enabled.")
		return
	}
	h.reply(req.chatID, "2x recharge bonus disabled.")
}

func (h *Handler) cmdStats(ctx context.Context, req request) {
	stats, err := h.deps.Admin.Stats(ctx, req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Users: %d (+%d in 24h)\n", stats.Users, stats.NewUsers24h)
	fmt.Fprintf(&b, "Stock: %d codes, %d accounts\n", stats.Available[models.ItemKindCode], stats.Available[models.ItemKindAccount])
	fmt.Fprintf(&b, "Sold: %d\n", stats.Sold)
	fmt.Fprintf(&b, "Revenue: %s\n", util.Money(stats.Revenue))
	fmt.Fprintf(&b, "Credited via PIX: %s\n", util.Money(stats.Credited))
	fmt.Fprintf(&b, "Transactions in 24h: %d\n", stats.Transactions24h)
	bonus := "off"
	if stats.BonusEnabled {
		bonus = "on"
	}
	fmt.Fprintf(&b, "2x bonus: %s", bonus)
	if stats.Promotion != nil {
		fmt.Fprintf(&b, "\nPromotion: %d of %d left at %s",
			stats.Promotion.RemainingQuantity, stats.Promotion.TotalQuantity, util.Money(stats.Promotion.Price))
	}
	h.reply(req.chatID, b.String())
}

func (h *Handler) cmdPost(ctx context.Context, req request) {
	if req.text == "" {
		h.reply(req.chatID, "Usage: /post <announcement>")
		return
	}
	queued, err := h.deps.Admin.Broadcast(ctx, req.userID, req.text)
	if err != nil {
		h.reply(req.chatID, fmt.Sprintf("Broadcast stopped after %d messages: %s", queued, h.errorText(err)))
		return
	}
	h.reply(req.chatID, fmt.Sprintf("Announcement queued for %d chats.", queued))
}

func (h *Handler) cmdAdminLog(ctx context.Context, req request) {
	limit := 10
	if len(req.args) == 1 {
		n, errParse := strconv.Atoi(req.args[0])
		if errParse != nil || n <= 0 {
			h.reply(req.chatID, "Usage: /adminlog [count]")
			return
		}
		limit = n
	}
	entries, err := h.deps.Admin.RecentLogs(ctx, req.userID, limit)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	if len(entries) == 0 {
		h.reply(req.chatID, "No admin activity yet.")
		return
	}
	var b strings.Builder
	b.WriteString("Recent admin activity:\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s %s", entry.CreatedAt.UTC().Format("2006-01-02 15:04"), entry.Action)
		if len(entry.Details) > 0 {
			fmt.Fprintf(&b, " %s", string(entry.Details))
		}
		b.WriteString("\n")
	}
	h.reply(req.chatID, strings.TrimRight(b.String(), "\n"))
}

func (h *Handler) cmdCheckGift(ctx context.Context, req request) {
	if len(req.args) != 1 {
		h.reply(req.chatID, "Usage: /checkgift <code>")
		return
	}
	g, err := h.deps.Gifts.Lookup(ctx, req.args[0])
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	state := "unused"
	switch {
	case g.Used:
		state = "used"
		if g.UsedBy != nil {
			state = fmt.Sprintf("used by %d", *g.UsedBy)
		}
	case g.Expired || (g.ExpiresAt != nil && !g.ExpiresAt.After(time.Now())):
		state = "expired"
	}
	expiry := "never expires"
	if g.ExpiresAt != nil {
		expiry = "expires " + g.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	h.reply(req.chatID, fmt.Sprintf("Gift %s: %s, %s, %s.", g.Code, util.Money(g.Amount), state, expiry))
}
