package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/router-for-me/PixStore/internal/apperr"
	"github.com/router-for-me/PixStore/internal/models"
	"github.com/router-for-me/PixStore/internal/notify"
	log "github.com/sirupsen/logrus"
)

// ActionBroadcast is recorded for every announcement.
const ActionBroadcast = "broadcast"

const broadcastPageSize = 500

// ErrEmptyAnnouncement is returned for a broadcast without text.
var ErrEmptyAnnouncement = apperr.New(apperr.ErrInvalid, "announcement text is empty")

// Broadcast queues text for every known user and the group, and returns how
// many messages were queued. Delivery is best effort; a canceled ctx stops the
// walk and reports what was queued so far.
func (s *Service) Broadcast(ctx context.Context, adminID int64, text string) (int, error) {
	if err := s.authorize(adminID); err != nil {
		return 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyAnnouncement
	}

	queued := 0
	var walkErr error
	var lastID int64
	first := true
	for walkErr == nil {
		query := s.db.WithContext(ctx).Model(&models.User{}).Order("id ASC").Limit(broadcastPageSize)
		if !first {
			query = query.Where("id > ?", lastID)
		}
		var ids []int64
		if errPluck := query.Pluck("id", &ids).Error; errPluck != nil {
			walkErr = fmt.Errorf("admin: list users: %w", errPluck)
			break
		}
		for _, id := range ids {
			if errEnqueue := notify.Enqueue(ctx, s.notifier, notify.Message{ChatID: id, Text: text}); errEnqueue != nil {
				walkErr = errEnqueue
				break
			}
			queued++
		}
		if len(ids) < broadcastPageSize {
			break
		}
		first = false
		lastID = ids[len(ids)-1]
	}
	if walkErr == nil && s.audience.GroupID != 0 {
		if errEnqueue := notify.Enqueue(ctx, s.notifier, s.audience.Group(text)); errEnqueue != nil {
			walkErr = errEnqueue
		} else {
			queued++
		}
	}

	s.record(ctx, adminID, ActionBroadcast, map[string]any{
		"queued":   queued,
		"length":   len(text),
		"complete": walkErr == nil,
	})
	if walkErr != nil {
		log.WithError(walkErr).Warnf("admin: broadcast stopped after %d messages", queued)
		return queued, walkErr
	}
	log.Infof("admin: broadcast queued %d messages", queued)
	return queued, nil
}
