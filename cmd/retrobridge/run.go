// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/retrobridge/retrobridge/internal/config"
	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/environ"
	"github.com/retrobridge/retrobridge/internal/frontend"
	"github.com/retrobridge/retrobridge/internal/input"
	"github.com/retrobridge/retrobridge/internal/managed"
	scriptlua "github.com/retrobridge/retrobridge/internal/managed/lua"
	"github.com/retrobridge/retrobridge/internal/observability"
	"github.com/retrobridge/retrobridge/internal/savestate"
)

// runOptions holds flags that only the run command understands.
type runOptions struct {
	loadState string
	saveState string
	resume    bool
}

func newRunCmd(deps *Deps) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <core> <content>",
		Short: "Load a core and content and run its frame loop",
		Long: `Load a libretro core and a piece of content, then run frames until the
frame limit is reached or the process is interrupted. Input comes from the
held buttons or from a Lua script.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd.Context(), cmd, args[0], args[1], opts, deps)
		},
	}

	cmd.Flags().StringVar(&opts.loadState, "load-state", "", "save state file to restore after loading")
	cmd.Flags().StringVar(&opts.saveState, "save-state", "", "file to write a save state to on exit")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "restore and update the resume slot")

	return cmd
}

// newRuntime builds the callback target: a Lua script when configured,
// otherwise a sink that keeps the last frame.
func newRuntime(cfg *config.Config, pad *input.Pad, logger *slog.Logger) (managed.Runtime, func(), *frontend.Sink, error) {
	if cfg.Input.Script == "" {
		sink := frontend.NewSink()
		sink.Pad = pad
		return managed.NewDirect(sink), func() {}, sink, nil
	}
	src, err := os.ReadFile(cfg.Input.Script)
	if err != nil {
		return nil, nil, nil, oops.In("run").With("script", cfg.Input.Script).Wrapf(err, "read input script")
	}
	rt, err := scriptlua.New(filepath.Base(cfg.Input.Script), string(src),
		scriptlua.WithPad(pad), scriptlua.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return rt, rt.Close, nil, nil
}

// runWithDeps runs one core and game with injectable dependencies.
func runWithDeps(ctx context.Context, cmd *cobra.Command, corePath, contentPath string, opts *runOptions, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	pad := input.NewPad()
	buttons, err := input.ParseButtons(cfg.Input.Buttons)
	if err != nil {
		return fmt.Errorf("invalid buttons: %w", err)
	}
	for _, b := range buttons {
		pad.Press(0, b)
	}

	env, err := environ.New(cfg.EnvironmentConfig(), environ.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to set up environment: %w", err)
	}
	defer env.Close()

	rt, closeRuntime, sink, err := newRuntime(cfg, pad, logger)
	if err != nil {
		return fmt.Errorf("failed to set up input: %w", err)
	}
	defer closeRuntime()

	ctx, cancel := deps.SignalContext(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, nil)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	session := core.NewSession(deps.sessionOptions(
		core.WithLogger(logger),
		core.WithRuntime(rt),
		core.WithEnvironment(env),
		core.WithMetrics(metrics),
	)...)
	if obsServer != nil {
		obsServer.SetReadiness(func() bool { return session.State() == core.StateGameLoaded })
	}

	store := savestate.New(cfg.Dirs.States)
	fe := frontend.New(session, frontend.WithLogger(logger), frontend.WithStore(store))
	defer fe.UnloadCore()

	if !fe.LoadCore(corePath) {
		return fmt.Errorf("failed to load core: %w", fe.Err())
	}
	if !fe.LoadGame(contentPath) {
		return fmt.Errorf("failed to load content: %w", fe.Err())
	}
	if err := restoreState(fe, opts); err != nil {
		return err
	}

	info, _ := fe.SystemInfo()
	slog.Info("running",
		"core", info.LibraryName,
		"core_version", info.LibraryVersion,
		"game", fe.Game(),
		"frames", cfg.Run.Frames,
	)

	runner := frontend.NewRunner(fe)
	frames, runErr := runner.Run(ctx, cfg.Run.Frames, cfg.Run.FPS)

	// Saved even after a failed frame.
	saveErr := persistState(fe, opts)

	if sink != nil {
		_, seq := sink.Video.Snapshot()
		slog.Debug("output", "video_frames", seq, "audio_frames", sink.AudioFrames())
	}
	cmd.Printf("Ran %d frames of %s with %s\n", frames, fe.Game(), info.LibraryName)

	if runErr != nil {
		return fmt.Errorf("frame loop failed: %w", runErr)
	}
	return saveErr
}

func restoreState(fe *frontend.Frontend, opts *runOptions) error {
	if opts.loadState != "" {
		data, err := os.ReadFile(opts.loadState)
		if err != nil {
			return fmt.Errorf("failed to read save state: %w", err)
		}
		if !fe.LoadState(data) {
			return fmt.Errorf("failed to restore save state: %w", fe.Err())
		}
	}
	if opts.resume && !fe.LoadSlot(savestate.ResumeSlot) && !errors.Is(fe.Err(), savestate.ErrNoState) {
		return fmt.Errorf("failed to restore resume slot: %w", fe.Err())
	}
	return nil
}

func persistState(fe *frontend.Frontend, opts *runOptions) error {
	if opts.saveState != "" {
		data, ok := fe.SaveState()
		if !ok {
			return fmt.Errorf("failed to capture save state: %w", fe.Err())
		}
		if err := os.WriteFile(opts.saveState, data, 0o600); err != nil {
			return fmt.Errorf("failed to write save state: %w", err)
		}
	}
	if opts.resume && !fe.SaveSlot(savestate.ResumeSlot) {
		return fmt.Errorf("failed to write resume slot: %w", fe.Err())
	}
	return nil
}

// monitorServerErrors watches a server's error channel and cancels ctx on error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
