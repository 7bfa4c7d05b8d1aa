// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/listsync/internal/logging"
)

// GarbageCollector matches (*store.Store).RunGC.
type GarbageCollector interface {
	RunGC(ratio float64) error
}

// StoreGCService runs badger value log garbage collection on a fixed
// interval. A failed run is logged and retried on the next tick.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
	ratio    float64
	name     string
}

// NewStoreGCService creates a new garbage collection service.
func NewStoreGCService(gc GarbageCollector, interval time.Duration, ratio float64) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &StoreGCService{
		gc:       gc,
		interval: interval,
		ratio:    ratio,
		name:     "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(s.ratio); err != nil {
				logging.Warn().Err(err).Msg("Value log garbage collection failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Value log garbage collection finished")
		}
	}
}

// String implements fmt.Stringer. Suture uses it in log messages.
func (s *StoreGCService) String() string {
	return s.name
}
