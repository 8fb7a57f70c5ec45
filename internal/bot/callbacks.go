package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/session"
	"github.com/router-for-me/PixStore/internal/util"
	log "github.com/sirupsen/logrus"
)

// Callback data is "action" or "action:arg[:arg]".
func (h *Handler) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		h.answer(query.ID, "")
		return
	}
	if _, errEnsure := h.deps.Ledger.EnsureUser(ctx, query.From.ID, displayName(query.From)); errEnsure != nil {
		log.WithError(errEnsure).Warnf("bot: register user %d", query.From.ID)
	}
	h.answer(query.ID, "")

	chatID := query.Message.Chat.ID
	userID := query.From.ID
	action, arg, _ := strings.Cut(query.Data, ":")
	req := request{chatID: chatID, userID: userID}

	switch action {
	case "balance":
		h.cmdBalance(ctx, req)
	case "history":
		h.cmdHistory(ctx, req)
	case "shop":
		kind, ok := parseKind(arg)
		if !ok {
			return
		}
		h.showCategories(ctx, chatID, kind)
	case "cat":
		kindRaw, category, found := strings.Cut(arg, ":")
		kind, ok := parseKind(kindRaw)
		if !found || !ok {
			return
		}
		h.openCategory(ctx, chatID, userID, query.Message.MessageID, kind, category)
	case "nav":
		delta := 1
		if arg == "prev" {
			delta = -1
		}
		h.navigate(ctx, chatID, userID, query.Message.MessageID, delta)
	case "buy":
		if itemID, ok := parseID(arg); ok {
			h.buy(ctx, chatID, userID, itemID)
		}
	case "exchange":
		if itemID, ok := parseID(arg); ok {
			h.requestExchange(ctx, chatID, userID, itemID)
		}
	case "approve":
		if itemID, ok := parseID(arg); ok {
			h.approveExchange(ctx, chatID, userID, itemID)
		}
	default:
		log.Debugf("bot: unknown callback %q", query.Data)
	}
}

func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	return id, err == nil && id > 0
}

// openCategory snapshots the available ids of a category and shows the first.
func (h *Handler) openCategory(ctx context.Context, chatID, userID int64, messageID int, kind models.ItemKind, category string) {
	items, err := h.deps.Inventory.ListAvailable(ctx, inventory.Filter{Kind: kind, Category: category, Limit: h.opts.SnapshotSize})
	if err != nil {
		h.fail(chatID, err)
		return
	}
	cursor := &session.Cursor{Kind: kind, Category: pricing.NormalizeCategory(category)}
	for _, item := range items {
		cursor.ItemIDs = append(cursor.ItemIDs, item.ID)
	}
	h.showCurrent(ctx, chatID, userID, messageID, cursor)
}

func (h *Handler) navigate(ctx context.Context, chatID, userID int64, messageID int, delta int) {
	cursor, err := h.deps.Sessions.Get(ctx, userID)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	cursor.Move(delta)
	h.showCurrent(ctx, chatID, userID, messageID, cursor)
}

// showCurrent renders the item under the cursor, skipping items sold since
// the snapshot was taken, and stores the cursor.
func (h *Handler) showCurrent(ctx context.Context, chatID, userID int64, messageID int, cursor *session.Cursor) {
	for {
		itemID, ok := cursor.Current()
		if !ok {
			_ = h.deps.Sessions.Delete(ctx, userID)
			h.edit(chatID, messageID, notify.Message{ChatID: chatID, Text: "No items left in this category."})
			return
		}
		item, err := h.deps.Inventory.Item(ctx, itemID)
		if err != nil && !errors.Is(err, inventory.ErrItemNotFound) {
			h.fail(chatID, err)
			return
		}
		if err != nil || item.Status != models.ItemStatusAvailable {
			cursor.Remove(itemID)
			continue
		}

		price, promotional, errQuote := h.deps.Inventory.Quote(ctx, item.Category)
		if errQuote != nil {
			h.fail(chatID, errQuote)
			return
		}
		if errPut := h.deps.Sessions.Put(ctx, userID, cursor); errPut != nil {
			log.WithError(errPut).Warnf("bot: store cursor for %d", userID)
		}

		text := fmt.Sprintf("%s | item %d of %d\n%s\nPrice: %s", item.Category, cursor.Index+1, len(cursor.ItemIDs), item.Label, util.Money(price))
		if promotional {
			text += " (promotion)"
		}
		h.edit(chatID, messageID, notify.Message{
			ChatID: chatID,
			Text:   text,
			Buttons: [][]notify.Button{{
				{Text: "<", Data: "nav:prev"},
				{Text: "Buy " + util.Money(price), Data: fmt.Sprintf("buy:%d", item.ID)},
				{Text: ">", Data: "nav:next"},
			}},
		})
		return
	}
}

func (h *Handler) buy(ctx context.Context, chatID, userID int64, itemID uint64) {
	receipt, err := h.deps.Inventory.Purchase(ctx, itemID, userID)
	if cursor, errGet := h.deps.Sessions.Get(ctx, userID); errGet == nil {
		if err == nil || errors.Is(err, inventory.ErrItemUnavailable) {
			cursor.Remove(itemID)
			if errPut := h.deps.Sessions.Put(ctx, userID, cursor); errPut != nil {
				log.WithError(errPut).Warnf("bot: store cursor for %d", userID)
			}
		}
	}
	if err != nil {
		h.fail(chatID, err)
		return
	}

	item := receipt.Item
	text := fmt.Sprintf("Purchase complete!\n\n#%d %s %s\n%s\n\nPaid: %s\nBalance: %s",
		item.ID, item.Category, item.Label, item.Payload, util.Money(receipt.Price), util.Money(receipt.Balance))
	h.send(notify.Message{
		ChatID:  chatID,
		Text:    text,
		Buttons: [][]notify.Button{{{Text: "Request exchange", Data: fmt.Sprintf("exchange:%d", item.ID)}}},
	})
}

func (h *Handler) requestExchange(ctx context.Context, chatID, userID int64, itemID uint64) {
	if _, err := h.deps.Inventory.RequestExchange(ctx, itemID, userID); err != nil {
		h.fail(chatID, err)
		return
	}
	h.reply(chatID, fmt.Sprintf("Exchange requested for item #%d. You will be notified when it is reviewed.", itemID))
}

func (h *Handler) approveExchange(ctx context.Context, chatID, userID int64, itemID uint64) {
	result, err := h.deps.Inventory.ApproveExchange(ctx, itemID, userID)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	owner := int64(0)
	if result.Item.OwnerID != nil {
		owner = *result.Item.OwnerID
	}
	h.reply(chatID, fmt.Sprintf("Exchange of item #%d approved. Gift %s worth %s sent to %d.",
		result.Item.ID, result.Gift.Code, util.Money(result.Gift.Amount), owner))
}
