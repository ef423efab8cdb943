// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package lua runs core callbacks through a sandboxed Lua script.
//
// A script may define any of these globals:
//
//	on_video_frame(frame)                      -- frame.width, frame.height, frame.pitch, frame:byte(offset)
//	on_input_poll(poll)                        -- poll counts from 1
//	on_input_state(port, device, index, id)    -- returns an integer
//	on_audio_batch(frames)                     -- returns frames consumed
//
// The frame passed to on_video_frame is only readable during the call.
//
// Lua states are not safe for concurrent use, so every attachment borrows a
// state from a pool and returns it on release.
package lua

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/retrobridge/retrobridge/internal/input"
	"github.com/retrobridge/retrobridge/internal/managed"
)

// DefaultMaxStates bounds the state pool when no limit is given.
const DefaultMaxStates = 4

// Runtime is a managed.Runtime backed by a Lua script.
type Runtime struct {
	name    string
	source  string
	factory *StateFactory
	pad     *input.Pad
	logger  *slog.Logger
	max     int

	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*lua.LState
	created int
	closed  bool
}

var _ managed.Runtime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithPad lets the script drive and read a RetroPad. Input the script does
// not answer falls through to the pad.
func WithPad(p *input.Pad) Option {
	return func(r *Runtime) { r.pad = p }
}

// WithLogger sets the logger for script output and errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMaxStates bounds how many Lua states may exist at once.
func WithMaxStates(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.max = n
		}
	}
}

// New compiles source and returns a runtime. name identifies the script in
// logs and errors.
func New(name, source string, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		name:    name,
		source:  source,
		factory: NewStateFactory(),
		logger:  slog.Default(),
		max:     DefaultMaxStates,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("script", name)
	r.cond = sync.NewCond(&r.mu)

	// Validate by building the first state up front.
	L, err := r.newState()
	if err != nil {
		return nil, err
	}
	r.idle = append(r.idle, L)
	r.created = 1
	return r, nil
}

func (r *Runtime) newState() (*lua.LState, error) {
	L, err := r.factory.NewState()
	if err != nil {
		return nil, oops.In("lua").With("script", r.name).Hint("failed to create state").Wrap(err)
	}
	r.registerHostFunctions(L)
	registerFrameType(L)
	chunk, err := L.Load(strings.NewReader(r.source), r.name)
	if err != nil {
		L.Close()
		return nil, oops.In("lua").With("script", r.name).Hint("script failed to compile").Wrap(err)
	}
	L.Push(chunk)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, oops.In("lua").With("script", r.name).Hint("script failed to load").Wrap(err)
	}
	return L, nil
}

// Attach borrows a state for the calling thread. It blocks while every
// state is borrowed and the pool is at its limit.
func (r *Runtime) Attach() (managed.Env, error) {
	r.mu.Lock()
	for {
		if r.closed {
			r.mu.Unlock()
			return nil, oops.In("lua").With("script", r.name).New("runtime is closed")
		}
		if n := len(r.idle); n > 0 {
			L := r.idle[n-1]
			r.idle = r.idle[:n-1]
			r.mu.Unlock()
			return &env{rt: r, L: L}, nil
		}
		if r.created < r.max {
			r.created++
			r.mu.Unlock()
			L, err := r.newState()
			if err != nil {
				r.mu.Lock()
				r.created--
				r.cond.Signal()
				r.mu.Unlock()
				return nil, err
			}
			return &env{rt: r, L: L}, nil
		}
		r.cond.Wait()
	}
}

func (r *Runtime) release(L *lua.LState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.created--
		L.Close()
		return
	}
	L.SetTop(0)
	r.idle = append(r.idle, L)
	r.cond.Signal()
}

// States reports how many Lua states exist and how many are idle.
func (r *Runtime) States() (created, idle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created, len(r.idle)
}

// Close closes idle states. Borrowed states close when released.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, L := range r.idle {
		L.Close()
	}
	r.created -= len(r.idle)
	r.idle = nil
	r.cond.Broadcast()
}

type env struct {
	rt   *Runtime
	L    *lua.LState
	once sync.Once
}

func (e *env) Target() any {
	return &target{rt: e.rt, L: e.L}
}

func (e *env) Release() {
	e.once.Do(func() { e.rt.release(e.L) })
}
