// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ingestLimiter throttles position reports per employee. A device
// misconfigured to stream at sensor frequency must not monopolize the
// funnel; one limiter per employee keeps a noisy device from affecting
// anyone else.
type ingestLimiter struct {
	mu       sync.Mutex
	limiters map[string]*employeeLimiter
	interval time.Duration
	burst    int
}

type employeeLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIngestLimiter(minInterval time.Duration, burst int) *ingestLimiter {
	if minInterval <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	l := &ingestLimiter{
		limiters: make(map[string]*employeeLimiter),
		interval: minInterval,
		burst:    burst,
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether an update from employeeID may proceed. A nil
// limiter (throttling disabled) always allows.
func (l *ingestLimiter) Allow(employeeID string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	el, ok := l.limiters[employeeID]
	if !ok {
		el = &employeeLimiter{
			limiter: rate.NewLimiter(rate.Every(l.interval), l.burst),
		}
		l.limiters[employeeID] = el
	}
	el.lastSeen = time.Now()
	l.mu.Unlock()

	return el.limiter.Allow()
}

// cleanupLoop evicts limiters for employees that stopped reporting so
// the map does not grow with churn.
func (l *ingestLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)
		l.mu.Lock()
		for id, el := range l.limiters {
			if el.lastSeen.Before(cutoff) {
				delete(l.limiters, id)
			}
		}
		l.mu.Unlock()
	}
}
