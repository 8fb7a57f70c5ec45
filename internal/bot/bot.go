// Package bot adapts Telegram updates to store operations.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/router-for-me/PixStore/internal/admin"
	"github.com/router-for-me/PixStore/internal/gift"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/payment"
	"github.com/router-for-me/PixStore/internal/session"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// API is the subset of *tgbotapi.BotAPI the handler uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the services behind the chat commands.
type Deps struct {
	Ledger    *ledger.Ledger
	Inventory *inventory.Service
	Gifts     *gift.Engine
	Payments  *payment.Bridge
	Watcher   *payment.Watcher
	Admin     *admin.Service
	Sessions  session.Store
}

// Options tunes the handler.
type Options struct {
	// MixPrice is the unit price of /mix batch purchases.
	MixPrice decimal.Decimal
	// SnapshotSize caps how many items one browsing session can page through.
	SnapshotSize int
	// Concurrency bounds how many updates are processed at once.
	Concurrency int
	// SupportContact is shown by /support.
	SupportContact string
}

const (
	defaultSnapshotSize = 50
	defaultConcurrency  = 8
)

// Handler dispatches updates to commands and button callbacks.
type Handler struct {
	api  API
	deps Deps
	opts Options
	wg   sync.WaitGroup
}

// NewHandler constructs a Handler.
func NewHandler(api API, deps Deps, opts Options) *Handler {
	if opts.SnapshotSize <= 0 {
		opts.SnapshotSize = defaultSnapshotSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if !opts.MixPrice.IsPositive() {
		opts.MixPrice = decimal.NewFromInt(5)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewMemoryStore(0)
	}
	return &Handler{api: api, deps: deps, opts: opts}
}

// Run consumes updates until ctx is canceled or the channel closes, then
// waits for in-flight updates.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	sem := make(chan struct{}, h.opts.Concurrency)
	defer h.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			h.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer h.wg.Done()
				defer func() { <-sem }()
				h.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate processes a single update.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("bot: panic handling update %d: %v", update.UpdateID, r)
		}
	}()
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil || !message.IsCommand() {
		return
	}
	if _, errEnsure := h.deps.Ledger.EnsureUser(ctx, message.From.ID, displayName(message.From)); errEnsure != nil {
		log.WithError(errEnsure).Warnf("bot: register user %d", message.From.ID)
	}

	command := strings.ToLower(message.Command())
	if canonical, ok := aliases[command]; ok {
		command = canonical
	}
	args := strings.Fields(message.CommandArguments())
	req := request{
		chatID: message.Chat.ID,
		userID: message.From.ID,
		args:   args,
		text:   strings.TrimSpace(message.CommandArguments()),
	}

	if fn, ok := h.adminCommands()[command]; ok {
		if !h.deps.Admin.IsAdmin(req.userID) {
			return
		}
		fn(ctx, req)
		return
	}
	if fn, ok := h.userCommands()[command]; ok {
		fn(ctx, req)
		return
	}
	h.reply(req.chatID, "Unknown command. Send /help for the list of commands.")
}

// request is a parsed command invocation.
type request struct {
	chatID int64
	userID int64
	args   []string
	text   string // raw arguments
}

type commandFunc func(ctx context.Context, req request)

// aliases maps the Portuguese command names to their canonical form.
var aliases = map[string]string{
	"saldo":     "balance",
	"loja":      "shop",
	"resgata":   "redeem",
	"resgatar":  "redeem",
	"historico": "history",
	"exportar":  "export",
	"itens":     "items",
	"ajuda":     "help",
	"suporte":   "support",
}

func (h *Handler) userCommands() map[string]commandFunc {
	return map[string]commandFunc{
		"start":   h.cmdStart,
		"help":    h.cmdStart,
		"balance": h.cmdBalance,
		"shop":    h.cmdShop,
		"mix":     h.cmdMix,
		"pix":     h.cmdPix,
		"redeem":  h.cmdRedeem,
		"history": h.cmdHistory,
		"export":  h.cmdExport,
		"items":   h.cmdItems,
		"support": h.cmdSupport,
	}
}

func (h *Handler) adminCommands() map[string]commandFunc {
	return map[string]commandFunc{
		"promo":     h.cmdPromo,
		"setprice":  h.cmdSetPrice,
		"gift":      h.cmdGift,
		"2x":        h.cmdToggleBonus,
		"admin":     h.cmdStats,
		"adminlog":  h.cmdAdminLog,
		"checkgift": h.cmdCheckGift,
		"post":      h.cmdPost,
	}
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// reply sends plain text.
func (h *Handler) reply(chatID int64, text string) {
	h.send(notify.Message{ChatID: chatID, Text: text})
}

func (h *Handler) send(msg notify.Message) {
	if _, errSend := h.api.Send(notify.BuildMessage(msg)); errSend != nil {
		log.WithError(errSend).Warnf("bot: send to %d", msg.ChatID)
	}
}

// edit replaces the text and buttons of a previously sent message.
func (h *Handler) edit(chatID int64, messageID int, msg notify.Message) {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	if markup, ok := notify.InlineKeyboard(msg.Buttons); ok {
		cfg.ReplyMarkup = &markup
	}
	if _, errSend := h.api.Send(cfg); errSend != nil {
		log.WithError(errSend).Debugf("bot: edit message %d, sending new one", messageID)
		h.send(msg)
	}
}

func (h *Handler) answer(queryID, text string) {
	if _, errReq := h.api.Request(tgbotapi.NewCallback(queryID, text)); errReq != nil {
		log.WithError(errReq).Debug("bot: answer callback")
	}
}

// fail tells the user what went wrong.
func (h *Handler) fail(chatID int64, err error) {
	h.reply(chatID, h.errorText(err))
}
