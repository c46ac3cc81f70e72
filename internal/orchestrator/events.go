package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/rates"
)

// HandleNetworkLost flips every active provider to the no-connection error
// immediately instead of waiting for the next poll to fail.
func (o *Orchestrator) HandleNetworkLost() {
	o.mu.Lock()
	for _, data := range o.spending {
		if data.Status.IsActive() {
			data.Status = core.ErrorStatus(noConnectionMessage)
		}
	}
	o.mu.Unlock()
	o.notifyUpdate()
}

// HandleNetworkRestored re-refreshes exactly the providers whose last
// status was a network-related error or stale, not everything.
func (o *Orchestrator) HandleNetworkRestored(ctx context.Context) {
	o.mu.Lock()
	var retry []core.Provider
	for p, data := range o.spending {
		switch data.Status.Kind {
		case core.StatusStale:
			retry = append(retry, p)
		case core.StatusError:
			if isNetworkRelated(data.Status.Message) {
				retry = append(retry, p)
			}
		}
	}
	o.mu.Unlock()

	for _, p := range retry {
		go o.RefreshData(ctx, p)
	}
}

// SweepStaleness marks connected providers whose last successful refresh
// is older than the threshold as stale. A later successful refresh flips
// them back to connected.
func (o *Orchestrator) SweepStaleness(threshold time.Duration) []core.Provider {
	now := time.Now()

	o.mu.Lock()
	var marked []core.Provider
	for p, data := range o.spending {
		if data.Status.Kind != core.StatusConnected {
			continue
		}
		if data.LastSuccessfulRefresh.IsZero() {
			continue
		}
		if now.Sub(data.LastSuccessfulRefresh) > threshold {
			data.Status = core.Stale()
			marked = append(marked, p)
		}
	}
	o.mu.Unlock()

	if len(marked) > 0 {
		o.notifyUpdate()
	}
	return marked
}

// HandleForeground runs the quick staleness check used when the app
// regains attention: confirm connectivity first, then refresh only the
// providers the sweep marked.
func (o *Orchestrator) HandleForeground(ctx context.Context) {
	marked := o.SweepStaleness(foregroundStaleThreshold)
	if len(marked) == 0 {
		return
	}
	if o.monitor != nil && !o.monitor.IsConnected() {
		return
	}
	for _, p := range marked {
		go o.RefreshData(ctx, p)
	}
}

// UpdateCurrency reconverts every cached figure against fresh rates before
// the new currency code becomes visible, so converted amounts never flash
// in the old currency tagged with the new code.
func (o *Orchestrator) UpdateCurrency(ctx context.Context, code string) {
	rateSet := o.rates.GetRates(ctx)

	o.mu.Lock()
	o.currency = code
	for _, data := range o.spending {
		if data.CurrentSpendingUSD == nil {
			continue
		}
		if converted, ok := rates.Convert(*data.CurrentSpendingUSD, "USD", code, rateSet); ok {
			data.DisplaySpending = converted
			data.DisplayCurrency = code
		} else {
			data.DisplaySpending = *data.CurrentSpendingUSD
			data.DisplayCurrency = "USD"
		}
	}
	o.mu.Unlock()
	o.notifyUpdate()
}

func (o *Orchestrator) reconvertAll(ctx context.Context) {
	o.mu.Lock()
	currency := o.currency
	o.mu.Unlock()
	if currency == "USD" {
		return
	}
	o.UpdateCurrency(ctx, currency)
}

// Logout clears a provider's session, token, and spending data together.
func (o *Orchestrator) Logout(p core.Provider) {
	if err := o.sessions.ClearSession(p); err != nil {
		log.Printf("[orchestrator] logout %s: %v", p, err)
	}
	o.mu.Lock()
	delete(o.spending, p)
	delete(o.lastNotified, p)
	o.mu.Unlock()
	o.notifyUpdate()
}

func (o *Orchestrator) LogoutFromAll() {
	for _, p := range core.AllProviders() {
		o.Logout(p)
	}
}

// SetProviderEnabled flips a provider's registry entry and wakes its timer
// loop. An in-flight fetch for a freshly disabled provider is left to
// finish; it only touches its own state slot.
func (o *Orchestrator) SetProviderEnabled(p core.Provider, enabled bool) {
	o.mu.Lock()
	o.enabled[p] = enabled
	if !enabled {
		delete(o.spending, p)
	}
	o.mu.Unlock()
	o.wakeScheduler(p)
	o.notifyUpdate()
}

// SetRefreshInterval replaces the base interval and invalidates all
// running timers so the change applies immediately.
func (o *Orchestrator) SetRefreshInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	o.mu.Lock()
	o.refreshInterval = d
	o.mu.Unlock()
	for _, p := range core.AllProviders() {
		o.wakeScheduler(p)
	}
}

func (o *Orchestrator) checkAllLimits() {
	for _, p := range core.AllProviders() {
		o.checkLimits(p)
	}
}

// checkLimits fires a notification on upward threshold crossings only;
// dropping back below the warning limit re-arms both.
func (o *Orchestrator) checkLimits(p core.Provider) {
	o.mu.Lock()
	data, ok := o.spending[p]
	if !ok || data.CurrentSpendingUSD == nil {
		o.mu.Unlock()
		return
	}
	spend := *data.CurrentSpendingUSD
	warning := o.warningLimitUSD
	upper := o.upperLimitUSD
	previous := o.lastNotified[p]

	level := limitNone
	switch {
	case upper > 0 && spend >= upper:
		level = limitUpper
	case warning > 0 && spend >= warning:
		level = limitWarning
	}
	o.lastNotified[p] = level
	notifier := o.notifier
	o.mu.Unlock()

	if notifier == nil || level <= previous {
		return
	}
	switch level {
	case limitWarning:
		notifier.WarningLimitReached(p, spend, warning)
	case limitUpper:
		notifier.UpperLimitReached(p, spend, upper)
	}
}
