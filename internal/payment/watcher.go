package payment

import (
	"context"
	"sync"
	"time"

	"github.com/router-for-me/PixStore/internal/models"
	log "github.com/sirupsen/logrus"
)

// Watcher polls pending charges until they settle or their window closes.
type Watcher struct {
	bridge   *Bridge
	interval time.Duration
	window   time.Duration
	wg       sync.WaitGroup
}

// NewWatcher constructs a Watcher.
func NewWatcher(bridge *Bridge, interval, window time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Watcher{bridge: bridge, interval: interval, window: window}
}

// Watch polls chargeID in the background until it is paid, failed or
// expired, the window measured from its creation closes, or ctx ends.
// A charge still unpaid when the window closes is expired.
func (w *Watcher) Watch(ctx context.Context, charge *models.Charge) {
	if w == nil || charge == nil {
		return
	}
	deadline := charge.CreatedAt.Add(w.window)
	if charge.CreatedAt.IsZero() {
		deadline = w.bridge.now().Add(w.window)
	}
	w.wg.Add(1)
	go w.run(ctx, charge.ID, deadline)
}

// Resume restarts watching every unsettled charge, e.g. after a restart.
func (w *Watcher) Resume(ctx context.Context) (int, error) {
	var charges []models.Charge
	if errFind := w.bridge.db.WithContext(ctx).
		Where("credited = ? AND status IN ?", false, []models.ChargeStatus{models.ChargeCreated, models.ChargePending}).
		Order("created_at ASC").
		Find(&charges).Error; errFind != nil {
		return 0, errFind
	}
	for i := range charges {
		w.Watch(ctx, &charges[i])
	}
	if len(charges) > 0 {
		log.Infof("payment watcher resumed %d charges", len(charges))
	}
	return len(charges), nil
}

// Wait blocks until every watch loop has returned.
func (w *Watcher) Wait() { w.wg.Wait() }

func (w *Watcher) run(ctx context.Context, chargeID string, deadline time.Time) {
	defer w.wg.Done()
	logger := log.WithField("charge_id", chargeID)
	for {
		if !w.bridge.now().Before(deadline) {
			if errExpire := w.bridge.ExpireCharge(ctx, chargeID); errExpire != nil {
				logger.WithError(errExpire).Warn("payment watcher: expire failed")
			}
			return
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		charge, err := w.bridge.PollStatus(ctx, chargeID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("payment watcher: poll failed")
			continue
		}
		if charge.Credited || charge.Status.Terminal() {
			return
		}
	}
}
