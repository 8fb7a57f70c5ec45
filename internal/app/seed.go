package app

import (
	"context"
	"fmt"
	"os"

	"github.com/router-for-me/PixStore/internal/config"
	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/inventory"
	"github.com/router-for-me/PixStore/internal/ledger"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	"github.com/router-for-me/PixStore/internal/pricing"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// SeedFile is the YAML layout accepted by the seed command.
//
//	prices:
//	  GOLD: 7.50
//	items:
//	  - kind: code
//	    category: GOLD
//	    label: Gold voucher
//	    payload: XXXX-YYYY
type SeedFile struct {
	Prices map[string]decimal.Decimal `yaml:"prices"`
	Items  []SeedItem                  `yaml:"items"`
}

// SeedItem is one inventory entry in a seed file.
type SeedItem struct {
	Kind     string `yaml:"kind"`
	Category string `yaml:"category"`
	Label    string `yaml:"label"`
	Payload  string `yaml:"payload"`
}

// SeedResult summarizes an applied seed file.
type SeedResult struct {
	Prices int
	Items  int
}

// LoadSeedFile parses a seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, errRead)
	}
	var file SeedFile
	if errDecode := yaml.Unmarshal(data, &file); errDecode != nil {
		return nil, fmt.Errorf("seed: decode %s: %w", path, errDecode)
	}
	return &file, nil
}

// SeedItems loads path into the configured database.
func SeedItems(ctx context.Context, cfg config.AppConfig, path string) (*SeedResult, error) {
	file, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	dsn, err := config.LoadDatabaseDSN(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	return ApplySeed(ctx, conn, file)
}

// ApplySeed writes prices then items. Prices are recorded with admin id 0.
func ApplySeed(ctx context.Context, conn *gorm.DB, file *SeedFile) (*SeedResult, error) {
	result := &SeedResult{}
	if file == nil {
		return result, nil
	}
	for category, amount := range file.Prices {
		if _, errSet := pricing.SetPrice(ctx, conn, category, amount, 0); errSet != nil {
			return result, fmt.Errorf("seed: price %s: %w", category, errSet)
		}
		result.Prices++
	}
	items := make([]models.Item, 0, len(file.Items))
	for _, entry := range file.Items {
		items = append(items, models.Item{
			Kind:     models.ItemKind(entry.Kind),
			Category: entry.Category,
			Label:    entry.Label,
			Payload:  entry.Payload,
		})
	}
	svc := inventory.NewService(conn, ledger.New(conn), nil, notify.Audience{})
	if errAdd := svc.AddItems(ctx, items); errAdd != nil {
		return result, errAdd
	}
	result.Items = len(items)
	log.Infof("seed applied: %d prices, %d items", result.Prices, result.Items)
	return result, nil
}
