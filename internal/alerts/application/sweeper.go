package application

import (
	"context"
	"log"
	"time"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
)

// DefaultSweepInterval is how often box freshness is re-checked.
const DefaultSweepInterval = time.Minute

// StaleSweeper periodically checks every transport box for missing telemetry.
type StaleSweeper struct {
	boxes    masterdata.BoxRepository
	monitor  *Monitor
	interval time.Duration
	logger   *log.Logger
}

// NewStaleSweeper constructs a StaleSweeper.
func NewStaleSweeper(boxes masterdata.BoxRepository, monitor *Monitor, interval time.Duration, logger *log.Logger) *StaleSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &StaleSweeper{
		boxes:    boxes,
		monitor:  monitor,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop and blocks until the context is cancelled.
func (s *StaleSweeper) Start(ctx context.Context) {
	if s == nil || s.boxes == nil || s.monitor == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StaleSweeper) sweepOnce(ctx context.Context) {
	boxes, err := s.boxes.List(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("stale sweep list error: %v", err)
		}
		return
	}
	for _, box := range boxes {
		if err := s.monitor.CheckBoxFreshness(ctx, box); err != nil && s.logger != nil {
			s.logger.Printf("stale sweep error: box=%s err=%v", box.ID, err)
		}
	}
}
