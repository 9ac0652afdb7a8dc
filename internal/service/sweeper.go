package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/tour-marketplace/internal/repository"
)

// Sweeper is the departure lifecycle loop: it periodically flips
// modifiable to false on departures whose free-cancellation window has
// closed. It is the only writer of that transition.
type Sweeper struct {
	departures *repository.DepartureRepo
	interval   time.Duration
	now        func() time.Time
}

// NewSweeper returns a sweeper ticking at the given interval (defaults to
// one hour when non-positive).
func NewSweeper(departures *repository.DepartureRepo, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{departures: departures, interval: interval, now: time.Now}
}

// Run executes sweeps until ctx is cancelled. An error in one iteration
// is logged and the loop continues at the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if n, err := s.SweepOnce(ctx); err != nil {
		log.Printf("departure-sweeper: sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("departure-sweeper: locked %d departures", n)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("departure-sweeper: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("departure-sweeper: locked %d departures", n)
			}
		}
	}
}

// SweepOnce flips every still-modifiable departure whose cutoff has
// passed and returns how many were flipped. The update is batched into a
// single statement.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	candidates, err := s.departures.ListModifiable(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var expired []uint64
	for _, c := range candidates {
		cutoff := c.StartsAt.Add(-time.Duration(c.CutoffHours) * time.Hour)
		if !now.Before(cutoff) {
			expired = append(expired, c.DepartureID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.departures.SetUnmodifiable(ctx, expired); err != nil {
		return 0, err
	}
	return len(expired), nil
}
