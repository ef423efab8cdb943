// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package managed defines how core callbacks reach the application runtime
// that consumes them.
//
// Callbacks arrive on whatever thread the core runs on. Each callback
// attaches to the runtime on entry and releases the attachment on every exit
// path, so no thread keeps an association past the call that needed it.
package managed

import (
	"sync/atomic"
)

// Env is one attachment of the calling thread to a runtime.
type Env interface {
	// Target returns the object that receives notifications for this call.
	// It may implement any subset of the bridge receiver interfaces.
	Target() any

	// Release ends the attachment. Calls after the first are no-ops.
	Release()
}

// Runtime hands out per-call attachments.
type Runtime interface {
	Attach() (Env, error)
}

// Direct is a Runtime that delivers callbacks straight to a Go value.
type Direct struct {
	target   any
	attached atomic.Int64
}

var _ Runtime = (*Direct)(nil)

// NewDirect returns a runtime delivering to target. A nil target is valid;
// every callback then takes its neutral path.
func NewDirect(target any) *Direct {
	return &Direct{target: target}
}

// Attach implements Runtime.
func (d *Direct) Attach() (Env, error) {
	d.attached.Add(1)
	return &directEnv{rt: d}, nil
}

// Attached reports how many attachments are currently live.
func (d *Direct) Attached() int64 {
	return d.attached.Load()
}

type directEnv struct {
	rt       *Direct
	released atomic.Bool
}

func (e *directEnv) Target() any {
	return e.rt.target
}

func (e *directEnv) Release() {
	if e.released.CompareAndSwap(false, true) {
		e.rt.attached.Add(-1)
	}
}
