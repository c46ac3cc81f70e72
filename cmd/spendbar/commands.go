package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendbar/spendbar/internal/config"
	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/provider/claudecode"
	"github.com/spendbar/spendbar/internal/provider/cursor"
	"github.com/spendbar/spendbar/internal/session"
)

func parseProvider(arg string) (core.Provider, error) {
	p := core.Provider(strings.ToLower(arg))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q (have: cursor, claude)", arg)
	}
	return p, nil
}

func openSessions() (*session.Store, error) {
	keyring := session.NewFileKeyring(config.CredentialsPath())
	return session.NewStore(config.SessionsPath(), keyring)
}

func newLoginCommand(cfg config.Config) *cobra.Command {
	var token string
	var logDir string

	cmd := &cobra.Command{
		Use:   "login <provider>",
		Short: "Store credentials for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := parseProvider(args[0])
			if err != nil {
				return err
			}

			sessions, err := openSessions()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			switch p {
			case core.ProviderCursor:
				if token == "" {
					return fmt.Errorf("cursor login requires --token")
				}
				client := cursor.New()
				if err := client.ValidateToken(ctx, token); err != nil {
					return fmt.Errorf("token rejected: %w", err)
				}
				if err := sessions.SaveToken(p, token); err != nil {
					return err
				}

			case core.ProviderClaude:
				dir := logDir
				if dir == "" {
					dir = cfg.ClaudeLogDir
				}
				client := claudecode.New(dir)
				if err := client.ValidateToken(ctx, ""); err != nil {
					return fmt.Errorf("cannot access Claude log directory: %w", err)
				}
				// The granted directory path stands in for a token.
				grant := dir
				if grant == "" {
					grant = "granted"
				}
				if err := sessions.SaveToken(p, grant); err != nil {
					return err
				}
				if dir != "" && dir != cfg.ClaudeLogDir {
					cfg.ClaudeLogDir = dir
					if err := config.Save(cfg); err != nil {
						return err
					}
				}
			}

			fmt.Printf("Logged in to %s\n", p.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (cursor)")
	cmd.Flags().StringVar(&logDir, "dir", "", "Claude log directory (claude, default ~/.claude)")
	return cmd
}

func newLogoutCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout [provider]",
		Short: "Clear stored credentials for one provider, or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			sessions, err := openSessions()
			if err != nil {
				return err
			}

			targets := core.AllProviders()
			if len(args) == 1 {
				p, err := parseProvider(args[0])
				if err != nil {
					return err
				}
				targets = []core.Provider{p}
			}

			for _, p := range targets {
				if err := sessions.ClearSession(p); err != nil {
					return err
				}
				fmt.Printf("Logged out of %s\n", p.DisplayName())
			}
			return nil
		},
	}
}

func newStatusCommand(cfg config.Config) *cobra.Command {
	var showHistory bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Refresh once and print per-provider spend",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := buildApp(cfg, printNotifier{})
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			a.orch.RefreshAllProviders(ctx)

			snaps := a.orch.Snapshot()
			for _, p := range core.AllProviders() {
				if !cfg.Enabled(p) {
					continue
				}
				snap, ok := snaps[p]
				if !ok {
					fmt.Printf("%-12s logged out\n", p.DisplayName())
					continue
				}
				fmt.Println(renderProviderLine(p, snap))
			}

			if showHistory && a.history != nil {
				for _, p := range core.AllProviders() {
					rows, err := a.history.Recent(ctx, p, 7)
					if err != nil || len(rows) == 0 {
						continue
					}
					fmt.Printf("\n%s, last %d days:\n", p.DisplayName(), len(rows))
					for _, r := range rows {
						fmt.Printf("  %s  $%.2f\n", r.Day, r.SpendUSD)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showHistory, "history", false, "also print the recent daily spend ledger")
	return cmd
}

func newCurrencyCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "currency <code>",
		Short: "Set the display currency (e.g. USD, EUR)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			code := strings.ToUpper(args[0])
			if len(code) != 3 {
				return fmt.Errorf("invalid currency code %q", args[0])
			}
			cfg.Currency = code
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Printf("Display currency set to %s\n", code)
			return nil
		},
	}
}

type printNotifier struct{}

func (printNotifier) WarningLimitReached(p core.Provider, spend, limit float64) {
	fmt.Fprintf(os.Stderr, "warning: %s spend $%.2f passed the $%.0f warning limit\n", p.DisplayName(), spend, limit)
}

func (printNotifier) UpperLimitReached(p core.Provider, spend, limit float64) {
	fmt.Fprintf(os.Stderr, "ALERT: %s spend $%.2f passed the $%.0f upper limit\n", p.DisplayName(), spend, limit)
}
