// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/retrobridge/retrobridge/internal/config"
	"github.com/retrobridge/retrobridge/internal/logging"
)

// NewRootCmd creates the root command for the retrobridge CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "retrobridge",
		Short: "RetroBridge - a host for libretro cores",
		Long: `RetroBridge loads libretro cores from shared libraries, feeds them
content and input, and runs their frame loop headless.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/retrobridge/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRunCmd(deps))
	cmd.AddCommand(newProbeCmd(deps))
	cmd.AddCommand(newFetchCmd(deps))
	cmd.AddCommand(newCoresCmd(deps))
	cmd.AddCommand(newSchemaCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, validates it and installs the
// default logger, which writes to the command's error stream.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(logging.Options{
		Service: "retrobridge",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	}, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
