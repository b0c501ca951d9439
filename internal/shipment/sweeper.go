package shipment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sweeper drives the delivery sweep on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper builds a sweeper.
func NewSweeper(svc *Service, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run sweeps until the context is cancelled. Each sweep gets its own
// instance id so its notifications and marks are correlatable.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			instanceID := uuid.NewString()
			if err := s.svc.UpdateShipment(ctx, instanceID); err != nil {
				s.log.Error("delivery sweep failed",
					slog.String("instance_id", instanceID),
					slog.Any("error", err))
			}
		}
	}
}
