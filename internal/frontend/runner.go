// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package frontend

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// DefaultFPS paces a core that reports no frame rate.
const DefaultFPS = 60.0

// Runner drives RunFrame at the game's frame rate.
type Runner struct {
	f *Frontend
	// OnFrame, if set, runs after every frame with the frame count so far.
	OnFrame func(n uint64)
}

// NewRunner returns a runner over f.
func NewRunner(f *Frontend) *Runner {
	return &Runner{f: f}
}

// Run runs frames until limit frames ran (limit 0 means until ctx ends) or a
// frame fails. fps <= 0 paces at the core's reported rate; frames never
// overlap and a cancelled context stops the loop between frames. Run
// returns how many frames completed.
func (r *Runner) Run(ctx context.Context, limit uint64, fps float64) (uint64, error) {
	if fps <= 0 {
		fps = r.f.Session().AVInfo().FPS
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	period := time.Duration(float64(time.Second) / fps)
	if period <= 0 {
		period = time.Nanosecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var n uint64
	for limit == 0 || n < limit {
		if ctx.Err() != nil {
			return n, nil
		}
		if !r.f.RunFrame() {
			return n, oops.In("frontend").With("frames", n).Wrap(r.f.Err())
		}
		n++
		if r.OnFrame != nil {
			r.OnFrame(n)
		}
		if limit != 0 && n == limit {
			break
		}
		select {
		case <-ctx.Done():
			return n, nil
		case <-ticker.C:
		}
	}
	return n, nil
}
