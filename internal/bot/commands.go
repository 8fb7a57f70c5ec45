package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/util"
	log "github.com/sirupsen/logrus"
)

const helpText = `Commands:
/balance - show your balance
/shop [code|account] - browse the catalogue
/mix <n> - buy n random codes at the mix price
/pix <amount> - top up your balance with PIX
/redeem <code> - redeem a gift code
/items - your purchased items
/history - recent transactions
/export - download your transactions as CSV
/support - how to reach the store`

func (h *Handler) cmdStart(ctx context.Context, req request) {
	balance, err := h.deps.Ledger.GetBalance(ctx, req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.send(notify.Message{
		ChatID: req.chatID,
		Text:   fmt.Sprintf("Welcome! Your balance: %s\n\n%s", util.Money(balance), helpText),
		Buttons: [][]notify.Button{
			{{Text: "Codes", Data: "shop:" + string(models.ItemKindCode)}, {Text: "Accounts", Data: "shop:" + string(models.ItemKindAccount)}},
			{{Text: "Balance", Data: "balance"}, {Text: "History", Data: "history"}},
		},
	})
}

func (h *Handler) cmdBalance(ctx context.Context, req request) {
	balance, err := h.deps.Ledger.GetBalance(ctx, req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.reply(req.chatID, "Your balance: "+util.Money(balance))
}

func (h *Handler) cmdShop(ctx context.Context, req request) {
	if len(req.args) == 0 {
		h.send(notify.Message{
			ChatID: req.chatID,
			Text:   "What are you looking for?",
			Buttons: [][]notify.Button{{
				{Text: "Codes", Data: "shop:" + string(models.ItemKindCode)},
				{Text: "Accounts", Data: "shop:" + string(models.ItemKindAccount)},
			}},
		})
		return
	}
	kind, ok := parseKind(req.args[0])
	if !ok {
		h.reply(req.chatID, "Usage: /shop [code|account]")
		return
	}
	h.showCategories(ctx, req.chatID, kind)
}

func parseKind(raw string) (models.ItemKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "code", "codes", "codigo", "codigos":
		return models.ItemKindCode, true
	case "account", "accounts", "conta", "contas":
		return models.ItemKindAccount, true
	default:
		return "", false
	}
}

func (h *Handler) showCategories(ctx context.Context, chatID int64, kind models.ItemKind) {
	summaries, err := h.deps.Inventory.Categories(ctx, kind)
	if err != nil {
		h.fail(chatID, err)
		return
	}
	if len(summaries) == 0 {
		h.reply(chatID, "Out of stock right now. Check back later.")
		return
	}
	rows := make([][]notify.Button, 0, len(summaries))
	for _, summary := range summaries {
		label := fmt.Sprintf("%s (%d)", summary.Category, summary.Available)
		if summary.Price != nil {
			label += " " + util.Money(*summary.Price)
		}
		rows = append(rows, []notify.Button{{Text: label, Data: fmt.Sprintf("cat:%s:%s", kind, summary.Category)}})
	}
	h.send(notify.Message{ChatID: chatID, Text: "Choose a category:", Buttons: rows})
}

func (h *Handler) cmdMix(ctx context.Context, req request) {
	if len(req.args) != 1 {
		h.reply(req.chatID, fmt.Sprintf("Usage: /mix <quantity> (%s each)", util.Money(h.opts.MixPrice)))
		return
	}
	quantity, errParse := strconv.Atoi(req.args[0])
	if errParse != nil {
		h.reply(req.chatID, "Quantity must be a number.")
		return
	}
	receipt, err := h.deps.Inventory.SellBatch(ctx, req.userID, quantity, h.opts.MixPrice, models.ItemKindCode)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Purchased %d items for %s.\n\n", len(receipt.Items), util.Money(receipt.Total))
	for _, item := range receipt.Items {
		fmt.Fprintf(&b, "#%d %s %s\n%s\n\n", item.ID, item.Category, item.Label, item.Payload)
	}
	fmt.Fprintf(&b, "Balance: %s", util.Money(receipt.Balance))
	h.reply(req.chatID, b.String())
}

func (h *Handler) cmdPix(ctx context.Context, req request) {
	if h.deps.Payments == nil {
		h.reply(req.chatID, "Recharges are not available right now.")
		return
	}
	if len(req.args) == 0 {
		h.reply(req.chatID, "Usage: /pix <amount>, minimum "+util.Money(h.deps.Payments.MinAmount()))
		return
	}
	amount, errParse := util.ParseAmount(strings.Join(req.args, " "))
	if errParse != nil {
		h.fail(req.chatID, errParse)
		return
	}
	charge, err := h.deps.Payments.CreateCharge(ctx, req.userID, amount)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.deps.Watcher.Watch(ctx, charge)

	var b strings.Builder
	fmt.Fprintf(&b, "PIX charge of %s created.\n", util.Money(charge.Amount))
	if charge.BonusApplied {
		fmt.Fprintf(&b, "2x bonus active: you will receive %s.\n", util.Money(charge.CreditAmount))
	}
	fmt.Fprintf(&b, "\nCopy and paste code:\n%s\n", charge.DisplayCode)
	if charge.QRCodeURL != "" {
		fmt.Fprintf(&b, "\nQR code: %s\n", charge.QRCodeURL)
	}
	b.WriteString("\nYour balance is credited automatically once the payment is confirmed.")
	h.reply(req.chatID, b.String())
}

func (h *Handler) cmdRedeem(ctx context.Context, req request) {
	if len(req.args) != 1 {
		h.reply(req.chatID, "Usage: /redeem <code>")
		return
	}
	redemption, err := h.deps.Gifts.Redeem(ctx, req.args[0], req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("Gift of %s redeemed. Balance: %s",
		util.Money(redemption.Gift.Amount), util.Money(redemption.Balance)))
}

func (h *Handler) cmdHistory(ctx context.Context, req request) {
	entries, err := h.deps.Ledger.History(ctx, req.userID, 0)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	if len(entries) == 0 {
		h.reply(req.chatID, "No transactions yet.")
		return
	}
	var b strings.Builder
	b.WriteString("Recent transactions:\n")
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s %s %s", entry.CreatedAt.Format("2006-01-02 15:04"), entry.Kind, util.Money(entry.Amount))
		if entry.Detail != "" {
			b.WriteString(" " + entry.Detail)
		}
		b.WriteString("\n")
	}
	h.reply(req.chatID, strings.TrimRight(b.String(), "\n"))
}

func (h *Handler) cmdExport(ctx context.Context, req request) {
	var buf bytes.Buffer
	n, err := h.deps.Ledger.ExportCSV(ctx, &buf, req.userID)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	if n == 0 {
		h.reply(req.chatID, "No transactions yet.")
		return
	}
	doc := tgbotapi.NewDocument(req.chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102")),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("%d transactions", n)
	if _, errSend := h.api.Send(doc); errSend != nil {
		log.WithError(errSend).Warnf("bot: send export to %d", req.chatID)
	}
}

func (h *Handler) cmdItems(ctx context.Context, req request) {
	items, err := h.deps.Inventory.OwnedItems(ctx, req.userID, 10)
	if err != nil {
		h.fail(req.chatID, err)
		return
	}
	if len(items) == 0 {
		h.reply(req.chatID, "You have no items yet.")
		return
	}
	for _, item := range items {
		h.send(notify.Message{
			ChatID:  req.chatID,
			Text:    fmt.Sprintf("#%d %s %s\n%s", item.ID, item.Category, item.Label, item.Payload),
			Buttons: [][]notify.Button{{{Text: "Request exchange", Data: fmt.Sprintf("exchange:%d", item.ID)}}},
		})
	}
}

func (h *Handler) cmdSupport(_ context.Context, req request) {
	if h.opts.SupportContact == "" {
		h.reply(req.chatID, "Support is not available right now.")
		return
	}
	h.reply(req.chatID, "Support: "+h.opts.SupportContact)
}
