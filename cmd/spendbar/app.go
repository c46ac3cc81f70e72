package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spendbar/spendbar/internal/config"
	"github.com/spendbar/spendbar/internal/connectivity"
	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/history"
	"github.com/spendbar/spendbar/internal/orchestrator"
	"github.com/spendbar/spendbar/internal/provider"
	"github.com/spendbar/spendbar/internal/provider/claudecode"
	"github.com/spendbar/spendbar/internal/provider/cursor"
	"github.com/spendbar/spendbar/internal/rates"
	"github.com/spendbar/spendbar/internal/session"
)

type app struct {
	cfg      config.Config
	sessions *session.Store
	monitor  *connectivity.Monitor
	orch     *orchestrator.Orchestrator
	claude   *claudecode.Client
	history  *history.Store
	watcher  *claudecode.Watcher
}

func buildApp(cfg config.Config, notifier orchestrator.Notifier) (*app, error) {
	keyring := session.NewFileKeyring(config.CredentialsPath())
	sessions, err := session.NewStore(config.SessionsPath(), keyring)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	claudeClient := claudecode.New(cfg.ClaudeLogDir)
	clients := map[core.Provider]provider.Client{
		core.ProviderCursor: cursor.New(),
		core.ProviderClaude: claudeClient,
	}

	hist, err := history.Open(config.HistoryPath())
	if err != nil {
		// The history ledger is a nicety; a broken db must not block refreshes.
		log.Printf("[app] history store unavailable: %v", err)
		hist = nil
	}

	monitor := connectivity.NewMonitor()

	var enabled []core.Provider
	for _, p := range core.AllProviders() {
		if cfg.Enabled(p) {
			enabled = append(enabled, p)
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		Clients:         clients,
		Sessions:        sessions,
		Rates:           rates.NewCache(),
		Monitor:         monitor,
		History:         hist,
		Notifier:        notifier,
		Currency:        cfg.Currency,
		WarningLimitUSD: cfg.WarningLimitUSD,
		UpperLimitUSD:   cfg.UpperLimitUSD,
		RefreshInterval: time.Duration(cfg.RefreshIntervalSeconds) * time.Second,
		Enabled:         enabled,
	})

	a := &app{
		cfg:      cfg,
		sessions: sessions,
		monitor:  monitor,
		orch:     orch,
		claude:   claudeClient,
		history:  hist,
	}

	if cfg.Enabled(core.ProviderClaude) {
		watcher, err := claudecode.NewWatcher(claudeClient.ProjectsDir(), func() {
			orch.RequestRefresh(core.ProviderClaude)
		})
		if err != nil {
			log.Printf("[app] log watcher unavailable: %v", err)
		} else {
			a.watcher = watcher
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
}
