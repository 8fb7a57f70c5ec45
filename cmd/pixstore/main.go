package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/router-for-me/PixStore/internal/app"
	"github.com/router-for-me/PixStore/internal/config"
	log "github.com/sirupsen/logrus"
)

const usage = `Usage: pixstore <command> [flags]

Commands:
  serve            run the bot, the PIX webhook listener and background workers
  migrate          create or update the database tables
  seed             load prices and items from a YAML file
  export           write the transaction log as CSV
  webhook-token    sign a bearer token for POST /webhook-pix
  webhook-secret   print a fresh value for webhook.secret

Common flags:
  -c, -config <path>   config file (default: $PIXSTORE_CONFIG or config.yaml)

Run "pixstore <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = runServe(ctx, args)
	case "migrate":
		err = runMigrate(ctx, args)
	case "seed":
		err = runSeed(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "webhook-token":
		err = runWebhookToken(args)
	case "webhook-secret":
		err = runWebhookSecret()
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.WithError(err).Error("pixstore failed")
		os.Exit(1)
	}
}

func newFlagSet(name string) (*flag.FlagSet, *config.AppConfig) {
	fs := flag.NewFlagSet("pixstore "+name, flag.ContinueOnError)
	cfg := &config.AppConfig{}
	fs.StringVar(&cfg.ConfigPath, "config", "", "config file path")
	fs.StringVar(&cfg.ConfigPath, "c", "", "config file path (shorthand)")
	return fs, cfg
}

func parse(fs *flag.FlagSet, args []string) error {
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs, cfg := newFlagSet("serve")
	if errParse := parse(fs, args); errParse != nil {
		return errParse
	}
	return app.RunServer(ctx, *cfg)
}

func runMigrate(ctx context.Context, args []string) error {
	fs, cfg := newFlagSet("migrate")
	if errParse := parse(fs, args); errParse != nil {
		return errParse
	}
	return app.Migrate(ctx, *cfg)
}

func runSeed(ctx context.Context, args []string) error {
	fs, cfg := newFlagSet("seed")
	var path string
	fs.StringVar(&path, "file", "seed.yaml", "seed file path")
	fs.StringVar(&path, "f", "seed.yaml", "seed file path (shorthand)")
	if errParse := parse(fs, args); errParse != nil {
		return errParse
	}
	result, errSeed := app.SeedItems(ctx, *cfg, path)
	if errSeed != nil {
		return errSeed
	}
	fmt.Fprintf(os.Stdout, "seeded %d prices and %d items\n", result.Prices, result.Items)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs, cfg := newFlagSet("export")
	var userID int64
	var out string
	fs.Int64Var(&userID, "user", 0, "telegram user id (0 exports every user)")
	fs.StringVar(&out, "out", "", "output file (default: stdout)")
	fs.StringVar(&out, "o", "", "output file (shorthand)")
	if errParse := parse(fs, args); errParse != nil {
		return errParse
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, errCreate := os.Create(out)
		if errCreate != nil {
			return fmt.Errorf("export: %w", errCreate)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	n, errExport := app.ExportHistory(ctx, *cfg, w, userID)
	if errExport != nil {
		return errExport
	}
	fmt.Fprintf(os.Stderr, "exported %d transactions\n", n)
	return nil
}

func runWebhookToken(args []string) error {
	fs, cfg := newFlagSet("webhook-token")
	var caller string
	var ttl time.Duration
	fs.StringVar(&caller, "caller", "pagarme", "caller name stored in the token")
	fs.DurationVar(&ttl, "ttl", 0, "token lifetime (0 never expires)")
	if errParse := parse(fs, args); errParse != nil {
		return errParse
	}
	token, errToken := app.WebhookToken(*cfg, caller, ttl)
	if errToken != nil {
		return errToken
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}

func runWebhookSecret() error {
	secret, errGen := app.GenerateWebhookSecret()
	if errGen != nil {
		return errGen
	}
	fmt.Fprintln(os.Stdout, secret)
	return nil
}
