// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/environ"
)

// probeReport describes a core without loading content.
type probeReport struct {
	Path            string          `json:"path" yaml:"path"`
	SessionID       string          `json:"session_id" yaml:"session_id"`
	APIVersion      uint32          `json:"api_version" yaml:"api_version"`
	LibraryName     string          `json:"library_name" yaml:"library_name"`
	LibraryVersion  string          `json:"library_version" yaml:"library_version"`
	ValidExtensions []string        `json:"valid_extensions" yaml:"valid_extensions"`
	NeedFullpath    bool            `json:"need_fullpath" yaml:"need_fullpath"`
	BlockExtract    bool            `json:"block_extract" yaml:"block_extract"`
	SaveStates      bool            `json:"save_states" yaml:"save_states"`
	Optional        map[string]bool `json:"optional" yaml:"optional"`
	Variables       []probeVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

type probeVariable struct {
	Key         string   `json:"key" yaml:"key"`
	Description string   `json:"description" yaml:"description"`
	Values      []string `json:"values" yaml:"values"`
	Current     string   `json:"current" yaml:"current"`
}

func newProbeCmd(deps *Deps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "probe <core>",
		Short: "Load a core, report what it supports and unload it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("output must be 'yaml' or 'json', got %q", output)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := probe(ctx, cmd, args[0], deps)
			if err != nil {
				return err
			}
			return writeReport(cmd, output, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml or json)")
	return cmd
}

func probe(ctx context.Context, cmd *cobra.Command, path string, deps *Deps) (*probeReport, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	env, err := environ.New(cfg.EnvironmentConfig(), environ.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to set up environment: %w", err)
	}
	defer env.Close()

	session := core.NewSession(deps.sessionOptions(
		core.WithLogger(logger),
		core.WithEnvironment(env),
	)...)
	if err := session.Load(ctx, path); err != nil {
		return nil, fmt.Errorf("failed to load core: %w", err)
	}
	defer session.Unload(ctx)

	info := session.SystemInfo()
	report := &probeReport{
		Path:            path,
		SessionID:       session.ID().String(),
		APIVersion:      session.APIVersion(),
		LibraryName:     info.LibraryName,
		LibraryVersion:  info.LibraryVersion,
		ValidExtensions: info.ValidExtensions,
		NeedFullpath:    info.NeedFullpath,
		BlockExtract:    info.BlockExtract,
		SaveStates:      session.CanSerialize(),
		Optional:        map[string]bool{},
	}
	for _, op := range core.OptionalOps() {
		report.Optional[op.String()] = session.Supports(op)
	}
	for _, v := range env.Variables() {
		report.Variables = append(report.Variables, probeVariable{
			Key: v.Key, Description: v.Description, Values: v.Values, Current: v.Value,
		})
	}
	return report, nil
}

func writeReport(cmd *cobra.Command, output string, report any) error {
	out := cmd.OutOrStdout()
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
