package gift

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically flags expired gifts.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

// NewSweeper constructs a Sweeper; interval <= 0 uses one minute.
func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if engine == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{engine: engine, interval: interval}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("gift expiry sweeper started (interval=%s)", s.interval)
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.sweepOnce(ctx)
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	n, err := s.engine.ExpireDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("gift expiry sweeper: sweep failed")
		}
		return
	}
	if n > 0 {
		log.Infof("gift expiry sweeper: expired %d gifts", n)
	}
}
