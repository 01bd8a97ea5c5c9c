// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thingful/thingful/internal/config"
	"github.com/thingful/thingful/internal/xdg"
)

// configFile is the --config path shared by all subcommands.
var configFile string

// NewRootCmd creates the root command for the thingful CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thingful",
		Short: "Thingful - user accounts behind HTTP Basic auth",
		Long: `Thingful registers user accounts and verifies HTTP Basic credentials
against bcrypt password digests stored in PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/thingful/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads --config, or the XDG default file when it exists, layered
// under the flags in fs.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(path, fs)
}
