package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendbar/spendbar/internal/config"
)

func main() {
	if os.Getenv("SPENDBAR_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := cobra.Command{
		Use:   "spendbar",
		Short: "spendbar watches AI coding tool spend and usage from your terminal.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWatch(cfg)
		},
	}

	root.AddCommand(newLoginCommand(cfg))
	root.AddCommand(newLogoutCommand(cfg))
	root.AddCommand(newStatusCommand(cfg))
	root.AddCommand(newCurrencyCommand(cfg))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
