// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Billetterie Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/billetterie/billetterie/internal/config"
)

// serviceName labels every log record.
const serviceName = "billetterie"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Billetterie CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billetterie",
		Short: "Billetterie - event ticketing API",
		Long: `Billetterie serves the event ticketing API: account registration,
cookie and bearer sessions, password resets, and ticket purchases
backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads configuration for cmd, letting the flags named in
// flagKeys override file and environment values.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	return config.Load(config.LoadOptions{
		File:     configFile,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := cmd.Root().Version
			if v == "" {
				v = version
			}
			cmd.Printf("%s %s\n", serviceName, v)
			return nil
		},
	}
}
