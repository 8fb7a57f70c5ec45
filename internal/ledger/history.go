package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/PixStore/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is the number of entries shown by History when limit <= 0.
const DefaultHistoryLimit = 10

// Entry describes a transaction to append.
type Entry struct {
	UserID int64
	Kind   models.TransactionKind
	Amount decimal.Decimal
	Detail string
}

// Record appends a transaction log entry. It runs outside any balance
// transaction: a failure is logged as a warning and returned, and the balance
// change it describes stands.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	row := models.Transaction{
		UserID: entry.UserID,
		Kind:   entry.Kind,
		Amount: entry.Amount.Abs().Round(2),
		Detail: strings.TrimSpace(entry.Detail),
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithFields(log.Fields{
			"user_id": entry.UserID,
			"kind":    entry.Kind,
			"amount":  entry.Amount.StringFixed(2),
		}).Warn("ledger: transaction log append failed")
		return fmt.Errorf("ledger: record: %w", errCreate)
	}
	return nil
}

// History returns the newest transactions of a user.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []models.Transaction
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: history: %w", errFind)
	}
	return rows, nil
}

// ExportCSV writes every transaction of a user, oldest first. userID 0 exports all users.
func (l *Ledger) ExportCSV(ctx context.Context, w io.Writer, userID int64) (int, error) {
	query := l.db.WithContext(ctx).Model(&models.Transaction{}).Order("created_at ASC, id ASC")
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	var rows []models.Transaction
	if errFind := query.Find(&rows).Error; errFind != nil {
		return 0, fmt.Errorf("ledger: export: %w", errFind)
	}

	writer := csv.NewWriter(w)
	if errWrite := writer.Write([]string{"id", "user_id", "kind", "amount", "detail", "created_at"}); errWrite != nil {
		return 0, errWrite
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatUint(row.ID, 10),
			strconv.FormatInt(row.UserID, 10),
			string(row.Kind),
			row.Amount.StringFixed(2),
			row.Detail,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if errWrite := writer.Write(record); errWrite != nil {
			return 0, errWrite
		}
	}
	writer.Flush()
	if errFlush := writer.Error(); errFlush != nil {
		return 0, errFlush
	}
	return len(rows), nil
}
