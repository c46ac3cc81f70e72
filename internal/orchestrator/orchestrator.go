// Package orchestrator coordinates per-provider refresh cycles: timers,
// preconditions, the background fetch, error classification, currency
// conversion, staleness, and limit notifications. All shared state lives
// behind one mutex here; fetch work returns results instead of mutating
// anything directly.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/spendbar/spendbar/internal/connectivity"
	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/fetcher"
	"github.com/spendbar/spendbar/internal/history"
	"github.com/spendbar/spendbar/internal/provider"
	"github.com/spendbar/spendbar/internal/rates"
	"github.com/spendbar/spendbar/internal/session"
)

const (
	// maxUserMessageLen keeps raw error text out of the status display.
	maxUserMessageLen = 50

	noConnectionMessage = "No internet connection"

	// foregroundStaleThreshold triggers a refresh when the app comes back
	// to the foreground; backgroundStaleThreshold drives the periodic sweep.
	foregroundStaleThreshold = 10 * time.Minute
	backgroundStaleThreshold = time.Hour
)

// networkErrorTerms select which failed providers a connectivity-restored
// event retries.
var networkErrorTerms = []string{
	"network", "connection", "internet", "timeout", "timed out",
	"unreachable", "dns", "tls", "offline", "no such host",
}

type limitLevel int

const (
	limitNone limitLevel = iota
	limitWarning
	limitUpper
)

// Notifier receives threshold notifications. Implementations must not call
// back into the orchestrator.
type Notifier interface {
	WarningLimitReached(p core.Provider, spendUSD, limitUSD float64)
	UpperLimitReached(p core.Provider, spendUSD, limitUSD float64)
}

type Options struct {
	Clients  map[core.Provider]provider.Client
	Sessions *session.Store
	Rates    *rates.Cache
	Monitor  *connectivity.Monitor
	History  *history.Store // optional
	Notifier Notifier       // optional

	Currency        string
	WarningLimitUSD float64
	UpperLimitUSD   float64
	RefreshInterval time.Duration
	Enabled         []core.Provider
}

type Orchestrator struct {
	clients  map[core.Provider]provider.Client
	sessions *session.Store
	rates    *rates.Cache
	monitor  *connectivity.Monitor
	history  *history.Store
	notifier Notifier

	mu              sync.Mutex
	currency        string
	warningLimitUSD float64
	upperLimitUSD   float64
	refreshInterval time.Duration
	enabled         map[core.Provider]bool
	spending        map[core.Provider]*core.SpendingData
	refreshing      map[core.Provider]bool
	lastNotified    map[core.Provider]limitLevel
	onUpdate        func(map[core.Provider]core.SpendingData)

	// reschedule wakes the per-provider timer loops after a settings
	// change so stale intervals are replaced immediately.
	reschedule map[core.Provider]chan struct{}
}

func New(opts Options) *Orchestrator {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 5 * time.Minute
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	o := &Orchestrator{
		clients:         opts.Clients,
		sessions:        opts.Sessions,
		rates:           opts.Rates,
		monitor:         opts.Monitor,
		history:         opts.History,
		notifier:        opts.Notifier,
		currency:        opts.Currency,
		warningLimitUSD: opts.WarningLimitUSD,
		upperLimitUSD:   opts.UpperLimitUSD,
		refreshInterval: opts.RefreshInterval,
		enabled:         make(map[core.Provider]bool),
		spending:        make(map[core.Provider]*core.SpendingData),
		refreshing:      make(map[core.Provider]bool),
		lastNotified:    make(map[core.Provider]limitLevel),
		reschedule:      make(map[core.Provider]chan struct{}),
	}
	for _, p := range opts.Enabled {
		o.enabled[p] = true
	}
	for _, p := range core.AllProviders() {
		o.reschedule[p] = make(chan struct{}, 1)
	}

	if opts.Monitor != nil {
		opts.Monitor.OnNetworkRestored(func() { o.HandleNetworkRestored(context.Background()) })
		opts.Monitor.OnNetworkLost(func() { o.HandleNetworkLost() })
	}

	return o
}

// OnUpdate registers the read-only state observer the UI layer consumes.
func (o *Orchestrator) OnUpdate(fn func(map[core.Provider]core.SpendingData)) {
	o.mu.Lock()
	o.onUpdate = fn
	o.mu.Unlock()
}

// Snapshot copies the current per-provider state.
func (o *Orchestrator) Snapshot() map[core.Provider]core.SpendingData {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() map[core.Provider]core.SpendingData {
	out := make(map[core.Provider]core.SpendingData, len(o.spending))
	for p, data := range o.spending {
		out[p] = *data
	}
	return out
}

func (o *Orchestrator) notifyUpdate() {
	o.mu.Lock()
	fn := o.onUpdate
	snaps := o.snapshotLocked()
	o.mu.Unlock()
	if fn != nil {
		fn(snaps)
	}
}

// RefreshData runs one refresh cycle for a provider. Concurrent calls for
// the same provider collapse: the second observes the in-flight guard and
// returns immediately.
func (o *Orchestrator) RefreshData(ctx context.Context, p core.Provider) {
	client, ok := o.clients[p]
	if !ok {
		return
	}

	o.mu.Lock()
	if !o.enabled[p] {
		o.mu.Unlock()
		return
	}
	if o.monitor != nil && !o.monitor.IsConnected() {
		o.setStatusLocked(p, core.ErrorStatus(noConnectionMessage))
		o.mu.Unlock()
		o.notifyUpdate()
		return
	}
	o.mu.Unlock()

	token, err := o.sessions.GetToken(p)
	if err != nil || token == "" {
		// Normal logged-out state, not a failure.
		o.mu.Lock()
		delete(o.spending, p)
		o.mu.Unlock()
		o.notifyUpdate()
		return
	}

	o.mu.Lock()
	if o.refreshing[p] {
		o.mu.Unlock()
		return
	}
	o.refreshing[p] = true
	o.setStatusLocked(p, core.Syncing())
	o.mu.Unlock()
	o.notifyUpdate()

	result, fetchErr := fetcher.ProcessProviderData(ctx, p, token, client)

	if fetchErr != nil {
		o.applyError(p, fetchErr)
	} else {
		o.applySuccess(ctx, p, result)
	}

	o.mu.Lock()
	o.refreshing[p] = false
	o.mu.Unlock()
	o.notifyUpdate()
}

// RefreshAllProviders fans out one concurrent refresh per provider and,
// once all complete, runs a single reconversion and limit-check pass over
// the consistent post-refresh snapshot.
func (o *Orchestrator) RefreshAllProviders(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range core.AllProviders() {
		wg.Add(1)
		go func(p core.Provider) {
			defer wg.Done()
			o.RefreshData(ctx, p)
		}(p)
	}
	wg.Wait()

	o.reconvertAll(ctx)
	o.checkAllLimits()
	o.notifyUpdate()
}

func (o *Orchestrator) applySuccess(ctx context.Context, p core.Provider, result fetcher.Result) {
	sess := core.ProviderSession{
		Provider:  p,
		TeamID:    result.TeamInfo.ID,
		TeamName:  result.TeamInfo.Name,
		UserEmail: result.UserInfo.Email,
	}
	if err := o.sessions.SetSession(sess); err != nil {
		log.Printf("[orchestrator] persisting %s session: %v", p, err)
	}

	spendUSD := result.Invoice.TotalUSD()

	o.mu.Lock()
	currency := o.currency
	o.mu.Unlock()

	display := spendUSD
	displayCurrency := "USD"
	if currency != "USD" {
		if converted, ok := rates.Convert(spendUSD, "USD", currency, o.rates.GetRates(ctx)); ok {
			display = converted
			displayCurrency = currency
		}
		// Missing rate: degrade to USD rather than fail the refresh.
	}

	invoice := result.Invoice
	usage := result.Usage

	o.mu.Lock()
	data := o.ensureSpendingLocked(p)
	data.CurrentSpendingUSD = &spendUSD
	data.DisplaySpending = display
	data.DisplayCurrency = displayCurrency
	data.LatestInvoice = &invoice
	data.Usage = &usage
	data.LastSuccessfulRefresh = time.Now()
	data.Status = core.Connected()
	o.mu.Unlock()

	if result.TeamFellBack {
		log.Printf("[orchestrator] %s refreshed without team data, showing personal spend", p)
	}

	if o.history != nil {
		tokens := 0
		if p == core.ProviderClaude {
			tokens = usage.TotalRequests
		}
		if err := o.history.Record(ctx, p, spendUSD, tokens, time.Now()); err != nil {
			log.Printf("[orchestrator] recording %s history: %v", p, err)
		}
	}

	o.checkLimits(p)
}

func (o *Orchestrator) applyError(p core.Provider, err error) {
	switch {
	case errors.Is(err, provider.ErrUnauthorized):
		// Fatal to the session: session, spend, and token go together.
		log.Printf("[orchestrator] %s unauthorized, clearing session", p)
		if clearErr := o.sessions.ClearSession(p); clearErr != nil {
			log.Printf("[orchestrator] clearing %s session: %v", p, clearErr)
		}
		o.mu.Lock()
		delete(o.spending, p)
		delete(o.lastNotified, p)
		o.mu.Unlock()

	case errors.Is(err, provider.ErrNoTeamFound):
		// Authenticated but teamless; keep session and data, annotate only.
		log.Printf("[orchestrator] %s reports no team, keeping session", p)
		o.mu.Lock()
		o.setStatusLocked(p, core.Connected())
		o.mu.Unlock()

	case errors.Is(err, provider.ErrRateLimited):
		// No retry is scheduled; the next natural tick picks it up.
		o.mu.Lock()
		until := time.Now().Add(o.refreshInterval)
		o.setStatusLocked(p, core.RateLimited(until))
		o.mu.Unlock()

	default:
		// Transient failures must not log the user out.
		o.mu.Lock()
		o.setStatusLocked(p, core.ErrorStatus(truncateMessage(err.Error())))
		o.mu.Unlock()
	}
}

func (o *Orchestrator) ensureSpendingLocked(p core.Provider) *core.SpendingData {
	data, ok := o.spending[p]
	if !ok {
		data = &core.SpendingData{Provider: p, Status: core.Connecting(), DisplayCurrency: "USD"}
		o.spending[p] = data
	}
	return data
}

func (o *Orchestrator) setStatusLocked(p core.Provider, status core.ConnectionStatus) {
	o.ensureSpendingLocked(p).Status = status
}

func truncateMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	if len(msg) > maxUserMessageLen {
		return msg[:maxUserMessageLen-1] + "…"
	}
	return msg
}

// isNetworkRelated matches a stored error message against the retry terms.
func isNetworkRelated(msg string) bool {
	lower := strings.ToLower(msg)
	return lo.SomeBy(networkErrorTerms, func(term string) bool {
		return strings.Contains(lower, term)
	})
}
