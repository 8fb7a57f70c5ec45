package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// tzConfig holds timezone configuration for PostgreSQL sessions.
type tzConfig struct {
	dbTimeZone   string
	scanLocation *time.Location
}

var (
	globalTZOnce   sync.Once
	globalTZConfig tzConfig
)

// openPostgres opens a PostgreSQL pool through pgx with host timezone handling.
func openPostgres(dsn string) (*gorm.DB, error) {
	sqlDB, err := openPostgresSQLDB(dsn, loadGlobalTimeZone())
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:  newGormLogger(),
		NowFunc: nowUTC,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open postgres: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if errPing := ping(sqlDB); errPing != nil {
		return nil, errPing
	}
	return conn, nil
}

// openPostgresSQLDB builds a database/sql pool whose timestamp codecs scan into the host zone.
func openPostgresSQLDB(dsn string, tz tzConfig) (*sql.DB, error) {
	cfg, errParse := pgx.ParseConfig(dsn)
	if errParse != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", errParse)
	}
	if tz.dbTimeZone != "" {
		cfg.RuntimeParams["timezone"] = tz.dbTimeZone
	}

	var options []stdlib.OptionOpenDB
	if loc := tz.scanLocation; loc != nil {
		options = append(options, stdlib.OptionAfterConnect(func(_ context.Context, conn *pgx.Conn) error {
			typeMap := conn.TypeMap()
			typeMap.RegisterType(&pgtype.Type{
				Name:  "timestamp",
				OID:   pgtype.TimestampOID,
				Codec: &pgtype.TimestampCodec{ScanLocation: loc},
			})
			typeMap.RegisterType(&pgtype.Type{
				Name:  "timestamptz",
				OID:   pgtype.TimestamptzOID,
				Codec: &pgtype.TimestamptzCodec{ScanLocation: loc},
			})
			return nil
		}))
	}
	return stdlib.OpenDB(*cfg, options...), nil
}

// loadGlobalTimeZone resolves the host timezone once per process.
func loadGlobalTimeZone() tzConfig {
	globalTZOnce.Do(func() {
		if name, ok := hostTimeZoneName(); ok {
			if loc, errLoad := time.LoadLocation(name); errLoad == nil {
				globalTZConfig = tzConfig{dbTimeZone: name, scanLocation: loc}
				return
			}
		}
		_, offset := time.Now().Zone()
		name := formatUTCOffset(offset)
		globalTZConfig = tzConfig{dbTimeZone: name, scanLocation: time.FixedZone(name, offset)}
	})
	return globalTZConfig
}

// hostTimeZoneName reads TZ, /etc/timezone or the /etc/localtime link.
func hostTimeZoneName() (string, bool) {
	if name, ok := validTimeZone(os.Getenv("TZ")); ok {
		return name, true
	}
	if data, errRead := os.ReadFile("/etc/timezone"); errRead == nil {
		if name, ok := validTimeZone(string(data)); ok {
			return name, true
		}
	}
	if link, errLink := os.Readlink("/etc/localtime"); errLink == nil {
		if name, ok := validTimeZone(zoneFromZoneinfoPath(link)); ok {
			return name, true
		}
	}
	return "", false
}

func validTimeZone(name string) (string, bool) {
	name = strings.TrimPrefix(strings.TrimSpace(name), ":")
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "/zoneinfo/") {
		name = zoneFromZoneinfoPath(name)
	}
	if _, errLoad := time.LoadLocation(name); errLoad != nil {
		return "", false
	}
	return name, true
}

func zoneFromZoneinfoPath(path string) string {
	const marker = "/zoneinfo/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	out := strings.Trim(strings.TrimSpace(path[idx+len(marker):]), "/")
	out = strings.TrimPrefix(out, "posix/")
	return strings.TrimPrefix(out, "right/")
}

// formatUTCOffset formats seconds east of UTC as "+HH:MM".
func formatUTCOffset(offsetSeconds int) string {
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetSeconds/3600, (offsetSeconds%3600)/60)
}
