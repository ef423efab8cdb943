// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/fetch"
	"github.com/retrobridge/retrobridge/internal/observability"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// SessionOptions are applied before the options each command sets.
	// Default: none, so cores are opened with core.DefaultOpener.
	SessionOptions []core.Option

	// FetchOptions are applied after the options the fetch command sets.
	// Default: none
	FetchOptions []fetch.Option

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// SignalContext returns a context that ends on interrupt.
	// Default: signal.NotifyContext for SIGINT and SIGTERM
	SignalContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	SetReadiness(fn observability.ReadinessChecker)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.SignalContext == nil {
		out.SignalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		}
	}
	return &out
}

// sessionOptions returns the injected options followed by opts.
func (d *Deps) sessionOptions(opts ...core.Option) []core.Option {
	out := make([]core.Option, 0, len(d.SessionOptions)+len(opts))
	out = append(out, d.SessionOptions...)
	return append(out, opts...)
}
