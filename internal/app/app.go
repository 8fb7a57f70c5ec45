// Package app wires configuration, storage and services into runnable commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/PixStore/internal/admin"
	"github.com/router-for-me/PixStore/internal/bot"
	"github.com/router-for-me/PixStore/internal/config"
	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/gift"
	storehttp "github.com/router-for-me/PixStore/internal/http"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/logging"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/payment"
	"github.com/router-for-me/PixStore/internal/security"
	"github.com/router-for-me/PixStore/internal/session"
	"github.com/router-for-me/PixStore/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	relayWorkers   = 4
	relayQueueSize = 256
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("database migrated")
	return nil
}

// RunServer starts the Telegram bot, the webhook listener and the background
// workers, and blocks until ctx is canceled or a component fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if errValidate := conf.Validate(); errValidate != nil {
		return errValidate
	}
	logCloser, err := logging.Setup(conf.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	api, err := tgbotapi.NewBotAPI(conf.Telegram.Token)
	if err != nil {
		return fmt.Errorf("app: telegram login: %w", err)
	}
	api.Debug = conf.Telegram.Debug
	log.Infof("telegram bot authorized as @%s", api.Self.UserName)

	relay := notify.NewRelay(notify.NewTelegramSender(api), relayWorkers, relayQueueSize)
	relay.Start()
	defer relay.Close()

	sessions, closeSessions, err := openSessionStore(ctx, conf)
	if err != nil {
		return err
	}
	defer closeSessions()

	audience := notify.Audience{AdminID: conf.Telegram.AdminID, GroupID: conf.Telegram.GroupID}
	services := buildServices(conn, conf, relay, audience)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gift.NewSweeper(services.gifts, time.Minute).Start(runCtx)
	if _, errResume := services.watcher.Resume(runCtx); errResume != nil {
		log.WithError(errResume).Warn("payment watcher: resume pending charges")
	}

	if conf.Webhook.Secret == "" {
		log.Warn("webhook.secret is empty: POST /webhook-pix will reject every request")
	}
	router := storehttp.NewRouter(storehttp.RouterDeps{
		DB:            conn,
		Payments:      services.payments,
		WebhookSecret: conf.Webhook.Secret,
	})
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- storehttp.Serve(runCtx, conf.HTTP.Addr, router)
	}()

	handler := bot.NewHandler(api, bot.Deps{
		Ledger:    services.ledger,
		Inventory: services.inventory,
		Gifts:     services.gifts,
		Payments:  services.payments,
		Watcher:   services.watcher,
		Admin:     services.admin,
		Sessions:  sessions,
	}, bot.Options{
		MixPrice:       conf.Store.MixPrice,
		SnapshotSize:   conf.Store.PageSize,
		SupportContact: conf.Store.SupportContact,
	})

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 60
	updateCfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(updateCfg)

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		handler.Run(runCtx, updates)
	}()
	log.Info("pixstore is running")

	var runErr error
	select {
	case <-ctx.Done():
	case errServe := <-httpErr:
		if errServe != nil {
			runErr = fmt.Errorf("app: http server: %w", errServe)
		}
	}
	cancel()
	api.StopReceivingUpdates()
	<-botDone
	services.watcher.Wait()
	if runErr == nil {
		if errServe := <-httpErr; errServe != nil {
			runErr = fmt.Errorf("app: http server: %w", errServe)
		}
	}
	log.Info("pixstore stopped")
	return runErr
}

type storeServices struct {
	ledger    *ledger.Ledger
	inventory *inventory.Service
	gifts     *gift.Engine
	payments  *payment.Bridge
	watcher   *payment.Watcher
	admin     *admin.Service
}

func buildServices(conn *gorm.DB, conf *config.Config, notifier notify.Notifier, audience notify.Audience) *storeServices {
	l := ledger.New(conn)
	gifts := gift.NewEngine(conn, l)
	provider := payment.NewPagarmeProvider(conf.Payment.BaseURL, conf.Payment.APIKey, nil)
	bridge := payment.NewBridge(conn, l, provider, notifier, audience, payment.Options{
		MinAmount:    conf.Payment.MinAmount,
		PixExpiresIn: conf.Payment.PixExpiresIn,
	})
	log.Infof("payment provider %s (key %s)", conf.Payment.BaseURL, util.HideSecret(conf.Payment.APIKey))
	return &storeServices{
		ledger:    l,
		inventory: inventory.NewService(conn, l, notifier, audience),
		gifts:     gifts,
		payments:  bridge,
		watcher:   payment.NewWatcher(bridge, conf.Payment.PollInterval, conf.Payment.PollWindow),
		admin:     admin.NewService(conn, gifts, notifier, audience),
	}
}

// openSessionStore uses Redis when configured and an in-process store otherwise.
func openSessionStore(ctx context.Context, conf *config.Config) (session.Store, func(), error) {
	if conf.Redis.Addr == "" {
		return session.NewMemoryStore(conf.Store.SessionTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("app: redis ping %s: %w", conf.Redis.Addr, errPing)
	}
	log.Infof("session store: redis %s", conf.Redis.Addr)
	return session.NewRedisStore(client, conf.Store.SessionTTL), func() { _ = client.Close() }, nil
}

// ExportHistory writes the transaction log as CSV. userID 0 exports every user.
func ExportHistory(ctx context.Context, cfg config.AppConfig, w io.Writer, userID int64) (int, error) {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return 0, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close(conn) }()
	return ledger.New(conn).ExportCSV(ctx, w, userID)
}

// WebhookToken signs a bearer token for the payment webhook.
func WebhookToken(cfg config.AppConfig, caller string, ttl time.Duration) (string, error) {
	conf, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return "", err
	}
	if conf.Webhook.Secret == "" {
		return "", errors.New("app: webhook.secret is not configured")
	}
	return security.GenerateWebhookToken(conf.Webhook.Secret, caller, ttl)
}

// GenerateWebhookSecret returns a fresh secret for webhook.secret.
func GenerateWebhookSecret() (string, error) {
	return security.GenerateSecret()
}
