// Package settings reads and writes DB-backed global flags.
//
// Values are read from the settings table every time they are needed so that
// every process serving the store observes the same state.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/db"
	"github.com/router-for-me/PixStore/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Raw returns the stored JSON for key; ok is false when the key is unset.
// conn may be a transaction.
func Raw(ctx context.Context, conn *gorm.DB, key string) (json.RawMessage, bool, error) {
	if conn == nil {
		return nil, false, errors.New("settings: nil db")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errors.New("settings: empty key")
	}
	var row models.Setting
	errFind := conn.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&row).Error
	if errFind != nil {
		return nil, false, fmt.Errorf("settings: read %s: %w", key, errFind)
	}
	if row.Key == "" {
		return nil, false, nil
	}
	return json.RawMessage(row.Value), true, nil
}

// Bool returns the boolean value of key, or def when unset or unparsable.
func Bool(ctx context.Context, conn *gorm.DB, key string, def bool) (bool, error) {
	raw, ok, err := Raw(ctx, conn, key)
	if err != nil || !ok {
		return def, err
	}
	if parsed, okParse := parseBool(raw); okParse {
		return parsed, nil
	}
	return def, nil
}

// Int returns the integer value of key, or def when unset or unparsable.
func Int(ctx context.Context, conn *gorm.DB, key string, def int) (int, error) {
	raw, ok, err := Raw(ctx, conn, key)
	if err != nil || !ok {
		return def, err
	}
	if parsed, okParse := parseInt(raw); okParse {
		return parsed, nil
	}
	return def, nil
}

// Set upserts key with the JSON encoding of value.
func Set(ctx context.Context, conn *gorm.DB, key string, value any) error {
	if conn == nil {
		return errors.New("settings: nil db")
	}
	encoded, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("settings: encode %s: %w", key, errMarshal)
	}
	row := models.Setting{Key: strings.TrimSpace(key), Value: datatypes.JSON(encoded), UpdatedAt: time.Now().UTC()}
	errSave := conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if errSave != nil {
		return fmt.Errorf("settings: write %s: %w", key, errSave)
	}
	return nil
}

// ToggleBool flips a boolean setting in one transaction and returns the new value.
func ToggleBool(ctx context.Context, conn *gorm.DB, key string, def bool) (bool, error) {
	var next bool
	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Setting
		if errFind := tx.Scopes(db.LockForUpdate).Where("key = ?", key).Limit(1).Find(&row).Error; errFind != nil {
			return errFind
		}
		current := def
		if row.Key != "" {
			if parsed, ok := parseBool(json.RawMessage(row.Value)); ok {
				current = parsed
			}
		}
		next = !current
		return Set(ctx, tx, key, next)
	})
	if errTx != nil {
		return false, fmt.Errorf("settings: toggle %s: %w", key, errTx)
	}
	return next, nil
}

func parseBool(raw json.RawMessage) (bool, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if errUnmarshal := json.Unmarshal(raw, &b); errUnmarshal == nil {
		return b, true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.ParseBool(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
		return false, false
	}
	if n, ok := parseInt(raw); ok {
		return n != 0, true
	}
	return false, false
}

func parseInt(raw json.RawMessage) (int, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil {
			return parsed, true
		}
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return parseInt(wrapper.Value)
	}
	return 0, false
}
