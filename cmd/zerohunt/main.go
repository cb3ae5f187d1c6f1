// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fr4nsys/zerohunt/internal/app"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
	"github.com/fr4nsys/zerohunt/internal/report"
)

var (
	cfgFile  string
	fromFlag string
	toFlag   string
	csvFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "zerohunt",
	Short: "RMM threat hunting against Zero Networks activity",
	Long: `zerohunt cross-references known remote-management software signatures
(domains, process paths, destination ports) against the network activity
recorded by a Zero Networks tenant, and reports every matching connection.`,
}

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Run the hunt over a time window",
	Long: `Hunt every signature in the repository against the tenant's recorded
network activity. The window defaults to the last seven days; --from and
--to accept ISO-8601 timestamps or epoch milliseconds.

Ctrl-C stops new queries but keeps and reports everything gathered so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer log.Sync()

		window, err := app.ResolveWindow(fromFlag, toFlag, time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rep, err := a.RunHunt(ctx, window)
		if err != nil {
			return err
		}
		return a.Export(rep, report.NewConsoleWriter(os.Stdout), csvFlag)
	},
}

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Signature repository commands",
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded signatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer log.Sync()

		sigs, err := a.Signatures()
		if err != nil {
			return err
		}
		for _, s := range sigs {
			fmt.Printf("%-30s %-12s domains=%d processes=%d ports=%d\n",
				s.Name, s.ID, len(s.Domains), len(s.Processes()), len(s.Ports))
		}
		return nil
	},
}

var signaturesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one signature's indicators",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer log.Sync()

		sig, err := a.Signature(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Name: %s\nID:   %s\n", sig.Name, sig.ID)
		if len(sig.Domains) > 0 {
			fmt.Printf("Domains:\n  %s\n", strings.Join(sig.Domains, "\n  "))
		}
		if procs := sig.Processes(); len(procs) > 0 {
			fmt.Printf("Processes:\n  %s\n", strings.Join(procs, "\n  "))
		}
		if len(sig.Ports) > 0 {
			fmt.Printf("Ports: %v\n", sig.Ports)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validation error: %w", err)
		}
		fmt.Println("Configuration is valid")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (sensitive values masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		fmt.Print(cfg.PrintMasked())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(app.VersionString())
	},
}

// buildApp loads and validates configuration and wires the pipeline.
func buildApp() (*app.App, *logger.Logger, error) {
	cfg, err := app.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.NewFromConfig(cfg.Logging.Level, cfg.Logging.Format, logger.OutputConfig{
		Output: cfg.Logging.Output,
		File: logger.FileConfig{
			Path:       cfg.Logging.File.Path,
			MaxSize:    cfg.Logging.File.MaxSize,
			MaxBackups: cfg.Logging.File.MaxBackups,
			Compress:   cfg.Logging.File.Compress,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	huntCmd.Flags().StringVar(&fromFlag, "from", "", "window start (ISO-8601 or epoch ms; default: one week ago)")
	huntCmd.Flags().StringVar(&toFlag, "to", "", "window end (ISO-8601 or epoch ms; default: now)")
	huntCmd.Flags().StringVar(&csvFlag, "csv", "", "export the union set to this CSV file")

	signaturesCmd.AddCommand(signaturesListCmd, signaturesShowCmd)
	configCmd.AddCommand(configCheckCmd, configShowCmd)
	rootCmd.AddCommand(huntCmd, signaturesCmd, configCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
