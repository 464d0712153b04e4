// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package services

import (
	"context"
	"time"

	"github.com/fieldtrace/fieldtrace/internal/logging"
)

// HistoryPruner matches the database method that drops location
// samples older than the retention window.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, retention time.Duration) (int64, error)
}

// PrunerService periodically deletes expired location history. Raw
// tracks grow without bound otherwise: one employee at a 10s report
// interval is ~8600 rows a day.
type PrunerService struct {
	pruner    HistoryPruner
	retention time.Duration
	interval  time.Duration
	name      string
}

// NewPrunerService creates the pruner. A retention of zero disables
// pruning; Serve then just waits for cancellation so the supervisor
// does not spin.
func NewPrunerService(pruner HistoryPruner, retention time.Duration) *PrunerService {
	interval := time.Hour
	if retention > 0 && retention < 4*time.Hour {
		interval = retention / 4
	}
	return &PrunerService{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		name:      "history-pruner",
	}
}

// Serve implements suture.Service.
func (p *PrunerService) Serve(ctx context.Context) error {
	if p.retention <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().
		Dur("retention", p.retention).
		Dur("interval", p.interval).
		Msg("History pruner started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pruned, err := p.pruner.PruneHistory(ctx, p.retention)
			if err != nil {
				logging.Error().Err(err).Msg("history prune failed")
				continue
			}
			if pruned > 0 {
				logging.Debug().Int64("rows", pruned).Msg("pruned expired location history")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (p *PrunerService) String() string {
	return p.name
}
