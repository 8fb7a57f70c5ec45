package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/router-for-me/PixStore/internal/admin"
	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/gift"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/payment"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/router-for-me/PixStore/internal/session"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	adminID int64 = 1
	buyerID int64 = 500
)

type stubAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
}

func (s *stubAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, nil
}

func (s *stubAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every sent message or edit.
func (s *stubAPI) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		case tgbotapi.DocumentConfig:
			out = append(out, "document:"+v.Caption)
		}
	}
	return out
}

func (s *stubAPI) last() string {
	texts := s.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type stubProvider struct{}

func (stubProvider) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.ProviderCharge, error) {
	return &payment.ProviderCharge{ID: "or_" + req.Reference, Code: "000201PIXCODE", Status: payment.ProviderPending}, nil
}

func (stubProvider) GetStatus(context.Context, string) (payment.ProviderStatus, error) {
	return payment.ProviderPending, nil
}

type fixture struct {
	conn    *gorm.DB
	api     *stubAPI
	handler *Handler
	ledger  *ledger.Ledger
	inv     *inventory.Service
	gifts   *gift.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := db.OpenTest(t)
	l := ledger.New(conn)
	audience := notify.Audience{AdminID: adminID}
	inv := inventory.NewService(conn, l, nil, audience)
	gifts := gift.NewEngine(conn, l)
	bridge := payment.NewBridge(conn, l, stubProvider{}, nil, audience, payment.Options{MinAmount: decimal.NewFromInt(10)})
	api := &stubAPI{}
	handler := NewHandler(api, Deps{
		Ledger:    l,
		Inventory: inv,
		Gifts:     gifts,
		Payments:  bridge,
		Admin:     admin.NewService(conn, gifts, nil, audience),
		Sessions:  session.NewMemoryStore(0),
	}, Options{MixPrice: decimal.NewFromInt(5)})
	return &fixture{conn: conn, api: api, handler: handler, ledger: l, inv: inv, gifts: gifts}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func command(userID int64, text string) tgbotapi.Update {
	name, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID)},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func (f *fixture) do(u tgbotapi.Update) string {
	f.handler.HandleUpdate(context.Background(), u)
	return f.api.last()
}

func (f *fixture) fund(t *testing.T, userID int64, amount string) {
	t.Helper()
	if _, err := f.ledger.Adjust(context.Background(), userID, dec(amount)); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f *fixture) stock(t *testing.T, category string, n int) []models.Item {
	t.Helper()
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{Kind: models.ItemKindCode, Category: category, Label: category + " voucher", Payload: fmt.Sprintf("SECRET-%s-%d", category, i)}
	}
	if err := f.inv.AddItems(context.Background(), items); err != nil {
		t.Fatalf("add items: %v", err)
	}
	if _, err := pricing.SetPrice(context.Background(), f.conn, category, dec("7"), adminID); err != nil {
		t.Fatalf("set price: %v", err)
	}
	return items
}

func TestStartRegistersUser(t *testing.T) {
	f := newFixture(t)
	out := f.do(command(buyerID, "/start"))
	if !strings.Contains(out, "R$ 0.00") {
		t.Fatalf("expected zero balance in welcome, got %q", out)
	}
	var user models.User
	if err := f.conn.First(&user, buyerID).Error; err != nil {
		t.Fatalf("user not registered: %v", err)
	}
	if user.Username != fmt.Sprintf("user%d", buyerID) {
		t.Fatalf("unexpected username %q", user.Username)
	}
}

func TestPortugueseAliases(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, "12.5")
	if out := f.do(command(buyerID, "/saldo")); !strings.Contains(out, "R$ 12.50") {
		t.Fatalf("unexpected /saldo reply %q", out)
	}
	if out := f.do(command(buyerID, "/historico")); !strings.Contains(out, "No transactions") {
		t.Fatalf("unexpected /historico reply %q", out)
	}
}

func TestBrowseAndBuy(t *testing.T) {
	f := newFixture(t)
	items := f.stock(t, "GOLD", 2)
	f.fund(t, buyerID, "10")

	out := f.do(callback(buyerID, "cat:code:GOLD"))
	if !strings.Contains(out, "item 1 of 2") || !strings.Contains(out, "R$ 7.00") {
		t.Fatalf("unexpected listing %q", out)
	}
	if strings.Contains(out, "SECRET") {
		t.Fatal("payload must not be shown before purchase")
	}
	if out = f.do(callback(buyerID, "nav:next")); !strings.Contains(out, "item 2 of 2") {
		t.Fatalf("unexpected page %q", out)
	}

	out = f.do(callback(buyerID, fmt.Sprintf("buy:%d", items[1].ID)))
	if !strings.Contains(out, "SECRET-GOLD-1") || !strings.Contains(out, "Balance: R$ 3.00") {
		t.Fatalf("unexpected receipt %q", out)
	}

	out = f.do(callback(buyerID, fmt.Sprintf("buy:%d", items[0].ID)))
	if !strings.Contains(out, "Insufficient balance") {
		t.Fatalf("expected insufficient balance, got %q", out)
	}
	item, err := f.inv.Item(context.Background(), items[0].ID)
	if err != nil || item.Status != models.ItemStatusAvailable {
		t.Fatalf("item must stay available, got %+v err=%v", item, err)
	}

	cursor, err := f.handler.deps.Sessions.Get(context.Background(), buyerID)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if len(cursor.ItemIDs) != 1 || cursor.ItemIDs[0] != items[0].ID {
		t.Fatalf("sold item should leave the cursor, got %+v", cursor.ItemIDs)
	}
}

func TestBrowseSkipsItemsSoldMeanwhile(t *testing.T) {
	f := newFixture(t)
	items := f.stock(t, "GOLD", 2)
	f.do(callback(buyerID, "cat:code:GOLD"))

	if _, err := f.inv.ReserveAndSell(context.Background(), items[1].ID, 999); err != nil {
		t.Fatalf("sell: %v", err)
	}
	out := f.do(callback(buyerID, "nav:next"))
	if !strings.Contains(out, "item 1 of 1") {
		t.Fatalf("expected sold item to be skipped, got %q", out)
	}
}

func TestNavigateWithoutSession(t *testing.T) {
	f := newFixture(t)
	if out := f.do(callback(buyerID, "nav:next")); !strings.Contains(out, "session expired") {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestMixPurchase(t *testing.T) {
	f := newFixture(t)
	f.stock(t, "GOLD", 3)
	f.fund(t, buyerID, "10")

	if out := f.do(command(buyerID, "/mix 3")); !strings.Contains(out, "Insufficient balance") {
		t.Fatalf("expected insufficient balance, got %q", out)
	}
	if out := f.do(command(buyerID, "/mix 4")); !strings.Contains(out, "Not enough items") {
		t.Fatalf("expected insufficient inventory, got %q", out)
	}
	out := f.do(command(buyerID, "/mix 2"))
	if !strings.Contains(out, "Purchased 2 items") || strings.Count(out, "SECRET-GOLD") != 2 {
		t.Fatalf("unexpected mix receipt %q", out)
	}
}

func TestPixCreatesCharge(t *testing.T) {
	f := newFixture(t)
	if out := f.do(command(buyerID, "/pix 5")); !strings.Contains(out, "Minimum recharge is R$ 10.00") {
		t.Fatalf("unexpected reply %q", out)
	}
	if out := f.do(command(buyerID, "/pix abc")); !strings.Contains(out, "Invalid amount") {
		t.Fatalf("unexpected reply %q", out)
	}
	out := f.do(command(buyerID, "/pix 15,50"))
	if !strings.Contains(out, "000201PIXCODE") || !strings.Contains(out, "R$ 15.50") {
		t.Fatalf("unexpected charge reply %q", out)
	}
	var count int64
	if err := f.conn.Model(&models.Charge{}).Where("user_id = ? AND status = ?", buyerID, models.ChargePending).Count(&count).Error; err != nil {
		t.Fatalf("count charges: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one pending charge, got %d", count)
	}
}

func TestRedeemGift(t *testing.T) {
	f := newFixture(t)
	minted, err := f.gifts.Mint(context.Background(), dec("20"), gift.MintOptions{CreatedBy: adminID})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	out := f.do(command(buyerID, "/resgata "+strings.ToLower(minted.Code)))
	if !strings.Contains(out, "Balance: R$ 20.00") {
		t.Fatalf("unexpected redeem reply %q", out)
	}
	if out = f.do(command(buyerID, "/redeem "+minted.Code)); !strings.Contains(out, "already used") {
		t.Fatalf("expected already used, got %q", out)
	}
	if out = f.do(command(buyerID, "/redeem NOPE12345")); !strings.Contains(out, "not found") {
		t.Fatalf("expected not found, got %q", out)
	}
}

func TestExportSendsDocument(t *testing.T) {
	f := newFixture(t)
	if out := f.do(command(buyerID, "/export")); !strings.Contains(out, "No transactions") {
		t.Fatalf("unexpected reply %q", out)
	}
	_ = f.ledger.Record(context.Background(), ledger.Entry{UserID: buyerID, Kind: models.TransactionCredit, Amount: dec("10")})
	if out := f.do(command(buyerID, "/exportar")); out != "document:1 transactions" {
		t.Fatalf("expected csv document, got %q", out)
	}
}

func TestAdminCommandsIgnoredForUsers(t *testing.T) {
	f := newFixture(t)
	f.do(command(buyerID, "/start"))
	before := len(f.api.texts())
	f.do(command(buyerID, "/gift 10"))
	if len(f.api.texts()) != before {
		t.Fatal("non-admin /gift must be ignored silently")
	}
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)

	if out := f.do(command(adminID, "/setprice gold 9,90")); !strings.Contains(out, "GOLD set to R$ 9.90") {
		t.Fatalf("unexpected /setprice reply %q", out)
	}
	if out := f.do(command(adminID, "/promo 3 2")); !strings.Contains(out, "2 items at R$ 3.00") {
		t.Fatalf("unexpected /promo reply %q", out)
	}
	out := f.do(command(adminID, "/gift 25 noexpire"))
	if !strings.Contains(out, "R$ 25.00") || !strings.Contains(out, "never expires") {
		t.Fatalf("unexpected /gift reply %q", out)
	}
	if out = f.do(command(adminID, "/2x")); !strings.Contains(out, "enabled") {
		t.Fatalf("unexpected /2x reply %q", out)
	}
	if out = f.do(command(adminID, "/admin")); !strings.Contains(out, "2x bonus: on") || !strings.Contains(out, "Promotion: 2 of 2") {
		t.Fatalf("unexpected /admin reply %q", out)
	}
}

func TestPostBroadcastsToUsers(t *testing.T) {
	f := newFixture(t)
	f.do(command(buyerID, "/start"))

	before := len(f.api.texts())
	f.do(command(buyerID, "/post hi"))
	if len(f.api.texts()) != before {
		t.Fatal("non-admin /post must be ignored silently")
	}
	if out := f.do(command(adminID, "/post")); !strings.Contains(out, "Usage: /post") {
		t.Fatalf("unexpected empty /post reply %q", out)
	}
	if out := f.do(command(adminID, "/post New stock  tonight")); out != "Announcement queued for 2 chats." {
		t.Fatalf("unexpected /post reply %q", out)
	}
	if out := f.do(command(adminID, "/adminlog")); !strings.Contains(out, "broadcast") {
		t.Fatalf("expected broadcast in /adminlog, got %q", out)
	}
}

func TestSupportContact(t *testing.T) {
	f := newFixture(t)
	if out := f.do(command(buyerID, "/support")); !strings.Contains(out, "not available") {
		t.Fatalf("unexpected /support reply without contact %q", out)
	}
	f.handler.opts.SupportContact = "@storehelp"
	if out := f.do(command(buyerID, "/suporte")); out != "Support: @storehelp" {
		t.Fatalf("unexpected /suporte reply %q", out)
	}
}

func TestAdminLogAndCheckGift(t *testing.T) {
	f := newFixture(t)
	if out := f.do(command(adminID, "/adminlog")); out != "No admin activity yet." {
		t.Fatalf("unexpected empty /adminlog reply %q", out)
	}
	f.do(command(adminID, "/setprice gold 5"))
	if out := f.do(command(adminID, "/adminlog 5")); !strings.Contains(out, "set_price") || !strings.Contains(out, "GOLD") {
		t.Fatalf("unexpected /adminlog reply %q", out)
	}

	minted, err := f.gifts.Mint(context.Background(), dec("8"), gift.MintOptions{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if out := f.do(command(adminID, "/checkgift "+strings.ToLower(minted.Code))); !strings.Contains(out, "unused") {
		t.Fatalf("unexpected /checkgift reply %q", out)
	}
	f.do(command(buyerID, "/redeem "+minted.Code))
	if out := f.do(command(adminID, "/checkgift "+minted.Code)); !strings.Contains(out, fmt.Sprintf("used by %d", buyerID)) {
		t.Fatalf("unexpected /checkgift reply after redeem %q", out)
	}
	if out := f.do(command(adminID, "/checkgift NOPE1234")); out != "Gift code not found." {
		t.Fatalf("unexpected /checkgift reply for unknown code %q", out)
	}
}

func TestExchangeFlow(t *testing.T) {
	f := newFixture(t)
	items := f.stock(t, "GOLD", 1)
	f.fund(t, buyerID, "7")
	f.do(callback(buyerID, fmt.Sprintf("buy:%d", items[0].ID)))

	if out := f.do(callback(buyerID+1, fmt.Sprintf("exchange:%d", items[0].ID))); !strings.Contains(out, "Only the owner") {
		t.Fatalf("expected ownership error, got %q", out)
	}
	if out := f.do(callback(buyerID, fmt.Sprintf("exchange:%d", items[0].ID))); !strings.Contains(out, "Exchange requested") {
		t.Fatalf("unexpected reply %q", out)
	}
	if out := f.do(callback(buyerID, fmt.Sprintf("approve:%d", items[0].ID))); !strings.Contains(out, "Admin only") && !strings.Contains(out, "Not allowed") {
		t.Fatalf("non-admin approval must fail, got %q", out)
	}
	out := f.do(callback(adminID, fmt.Sprintf("approve:%d", items[0].ID)))
	if !strings.Contains(out, "approved") || !strings.Contains(out, "R$ 7.00") {
		t.Fatalf("unexpected approval reply %q", out)
	}
	item, err := f.inv.Item(context.Background(), items[0].ID)
	if err != nil || item.Status != models.ItemStatusExchanged {
		t.Fatalf("expected exchanged item, got %+v err=%v", item, err)
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(t)
	updates := make(chan tgbotapi.Update, 2)
	updates <- command(buyerID, "/balance")
	updates <- command(buyerID+1, "/balance")
	close(updates)
	f.handler.Run(context.Background(), updates)
	if len(f.api.texts()) != 2 {
		t.Fatalf("expected two replies, got %v", f.api.texts())
	}
}
