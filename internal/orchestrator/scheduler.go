package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/spendbar/spendbar/internal/core"
)

// Adaptive interval tiers for the local-log provider: the closer the
// 5-hour usage window is to its budget, the faster it refreshes.
const (
	adaptiveFast   = 30 * time.Second
	adaptiveMedium = time.Minute
	adaptiveSlow   = 2 * time.Minute
)

// Run drives the per-provider refresh loops until the context is
// cancelled. Each provider ticks independently; intervals are re-read
// every tick rather than self-rescheduled, and a settings change wakes
// the loop so the stale timer is replaced at once.
func (o *Orchestrator) Run(ctx context.Context) {
	o.RefreshAllProviders(ctx)

	for _, p := range core.AllProviders() {
		go o.runProviderLoop(ctx, p)
	}
	go o.runStalenessSweep(ctx)

	<-ctx.Done()
	log.Printf("[orchestrator] context cancelled, stopping refresh loops")
}

func (o *Orchestrator) runProviderLoop(ctx context.Context, p core.Provider) {
	for {
		interval := o.nextInterval(p)
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-o.reschedule[p]:
			// Settings changed: invalidate and replace the timer.
			timer.Stop()
			continue
		case <-timer.C:
			o.mu.Lock()
			enabled := o.enabled[p]
			o.mu.Unlock()
			if enabled {
				o.RefreshData(ctx, p)
			}
		}
	}
}

// nextInterval re-reads the usage percentage each tick so usage changes
// mid-cycle take effect on the very next schedule decision.
func (o *Orchestrator) nextInterval(p core.Provider) time.Duration {
	o.mu.Lock()
	base := o.refreshInterval
	var pct float64 = -1
	if data, ok := o.spending[p]; ok && data.Usage != nil {
		pct = data.Usage.PercentUsed()
	}
	o.mu.Unlock()

	if p != core.ProviderClaude {
		return base
	}

	// Near-quota users get faster feedback without blanket high-frequency
	// polling for everyone.
	switch {
	case pct >= 90:
		return adaptiveFast
	case pct >= 75:
		return adaptiveMedium
	case pct >= 50:
		return adaptiveSlow
	default:
		return base
	}
}

func (o *Orchestrator) wakeScheduler(p core.Provider) {
	select {
	case o.reschedule[p] <- struct{}{}:
	default:
	}
}

// RequestRefresh is the push-side entry point (log watcher activity);
// it never blocks the caller.
func (o *Orchestrator) RequestRefresh(p core.Provider) {
	go o.RefreshData(context.Background(), p)
}

func (o *Orchestrator) runStalenessSweep(ctx context.Context) {
	ticker := time.NewTicker(backgroundStaleThreshold / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.SweepStaleness(backgroundStaleThreshold)
		}
	}
}
