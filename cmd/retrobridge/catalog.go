// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/retrobridge/retrobridge/internal/catalog"
	"github.com/retrobridge/retrobridge/internal/config"
	"github.com/retrobridge/retrobridge/internal/fetch"
)

// loadCatalog returns the configured catalog or the built-in one.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog)
}

func newFetchCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <core>",
		Short: "Download, verify and install a core from the catalog",
		Long: `Download a core listed in the catalog into the cores directory. The
stable channel is tried first and the nightly channel second. The core is
loaded once to check it before it is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			entry, ok := cat.Find(args[0])
			if !ok {
				return fmt.Errorf("core %q is not in the catalog", args[0])
			}
			if err := cfg.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}

			opts := []fetch.Option{
				fetch.WithLogger(logger),
				fetch.WithSessionOptions(deps.SessionOptions...),
			}
			fetcher := fetch.New(cfg.Dirs.Cores, append(opts, deps.FetchOptions...)...)
			path, info, err := fetcher.Install(ctx, entry)
			if err != nil {
				return fmt.Errorf("failed to install %s: %w", entry.Name, err)
			}
			cmd.Printf("Installed %s %s to %s\n", info.LibraryName, info.LibraryVersion, path)
			return nil
		},
	}
}

func newCoresCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "cores [content]",
		Short: "List catalog cores, or the cores able to run a piece of content",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}

			entries := cat.Cores
			if len(args) == 1 {
				entries = cat.Recommend(args[0])
				if len(entries) == 0 {
					return fmt.Errorf("no catalog core runs %q", args[0])
				}
			}

			fetcher := fetch.New(cfg.Dirs.Cores, deps.FetchOptions...)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tSYSTEM\tEXTENSIONS\tINSTALLED")
			for _, e := range entries {
				installed := "no"
				if _, err := os.Stat(fetcher.Path(e)); err == nil {
					installed = "yes"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.System, strings.Join(e.Extensions, ","), installed)
			}
			return w.Flush()
		},
	}
}

func newSchemaCmd() *cobra.Command {
	var validate string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the catalog JSON Schema or validate a catalog file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if validate != "" {
				data, err := os.ReadFile(validate) //nolint:gosec // path is chosen by the operator
				if err != nil {
					return fmt.Errorf("failed to read catalog: %w", err)
				}
				if err := catalog.ValidateSchema(data); err != nil {
					cmd.PrintErrln(catalog.FormatSchemaError(err))
					return fmt.Errorf("catalog %s is invalid", validate)
				}
				if _, err := catalog.Parse(data); err != nil {
					return fmt.Errorf("catalog %s is invalid: %w", validate, err)
				}
				cmd.Printf("%s is valid\n", validate)
				return nil
			}
			data, err := catalog.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&validate, "validate", "", "catalog YAML file to validate instead of printing the schema")
	return cmd
}
