// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package bridge relays callbacks from a libretro core into the managed
// runtime.
//
// Video and input poll are one-way notifications. Input state is a
// synchronous request: the receiver must answer before returning because the
// core consumes the value inline. No failure on the managed side ever
// propagates back into the core; callbacks degrade to neutral results.
package bridge

import (
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/managed"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

// Callback kinds, used for logging and metrics labels.
const (
	KindEnvironment = "environment"
	KindVideo       = "video_refresh"
	KindAudio       = "audio_sample"
	KindAudioBatch  = "audio_sample_batch"
	KindInputPoll   = "input_poll"
	KindInputState  = "input_state"
)

// Frame is a view of one video frame. Data aliases core memory and is only
// valid until OnVideoFrame returns; receivers that keep pixels must copy them.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Pitch  int
}

// VideoReceiver consumes video frames.
type VideoReceiver interface {
	OnVideoFrame(frame Frame)
}

// AudioReceiver consumes interleaved stereo samples. OnAudioBatch returns
// the number of frames (sample pairs) it accepted.
type AudioReceiver interface {
	OnAudioSample(left, right int16)
	OnAudioBatch(samples []int16) int
}

// InputPoller is notified once per frame before input is queried.
type InputPoller interface {
	OnInputPoll()
}

// InputResponder answers input state queries. It must answer synchronously.
type InputResponder interface {
	OnInputState(port, device, index, id int) int
}

// EnvironmentHandler answers environment commands. It returns false for
// commands it does not handle and must leave their payload untouched.
type EnvironmentHandler interface {
	Handle(cmd uint32, data unsafe.Pointer) bool
}

// Observer records callback activity. Implementations must be safe for
// concurrent use.
type Observer interface {
	Callback(kind string)
	FrameDropped()
}

// Bridge dispatches core callbacks to a managed runtime.
type Bridge struct {
	runtime  managed.Runtime
	env      EnvironmentHandler
	logger   *slog.Logger
	observer Observer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for callback failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observer = o
	}
}

// New creates a bridge delivering to rt. Either argument may be nil; the
// affected callbacks then return neutral values.
func New(rt managed.Runtime, env EnvironmentHandler, opts ...Option) *Bridge {
	b := &Bridge{
		runtime: rt,
		env:     env,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Environment answers a core environment command.
func (b *Bridge) Environment(cmd uint32, data unsafe.Pointer) (handled bool) {
	defer b.recoverPanic(KindEnvironment, func() { handled = false })
	b.observe(KindEnvironment)
	if b.env == nil {
		return false
	}
	return b.env.Handle(cmd, data)
}

// VideoRefresh delivers a frame of height rows of pitch bytes. A nil data
// pointer means the core is repeating the previous frame.
func (b *Bridge) VideoRefresh(data unsafe.Pointer, width, height uint32, pitch uintptr) {
	defer b.recoverPanic(KindVideo, nil)
	b.observe(KindVideo)

	env, ok := b.attach(KindVideo)
	if !ok {
		b.dropped()
		return
	}
	defer env.Release()

	recv, ok := env.Target().(VideoReceiver)
	if !ok || data == nil {
		b.dropped()
		return
	}
	size := int(height) * int(pitch)
	recv.OnVideoFrame(Frame{
		Data:   unsafe.Slice((*byte)(data), size),
		Width:  int(width),
		Height: int(height),
		Pitch:  int(pitch),
	})
}

// AudioSample delivers a single stereo sample.
func (b *Bridge) AudioSample(left, right int16) {
	defer b.recoverPanic(KindAudio, nil)
	b.observe(KindAudio)

	env, ok := b.attach(KindAudio)
	if !ok {
		return
	}
	defer env.Release()

	if recv, ok := env.Target().(AudioReceiver); ok {
		recv.OnAudioSample(left, right)
	}
}

// AudioSampleBatch delivers frames interleaved stereo samples and returns how
// many frames were consumed. Without a receiver every frame counts as
// consumed so the core does not stall.
func (b *Bridge) AudioSampleBatch(data *int16, frames uintptr) (consumed uintptr) {
	consumed = frames
	defer b.recoverPanic(KindAudioBatch, nil)
	b.observe(KindAudioBatch)

	if data == nil || frames == 0 {
		return 0
	}
	env, ok := b.attach(KindAudioBatch)
	if !ok {
		return frames
	}
	defer env.Release()

	recv, ok := env.Target().(AudioReceiver)
	if !ok {
		return frames
	}
	n := recv.OnAudioBatch(unsafe.Slice(data, int(frames)*2))
	switch {
	case n < 0:
		return 0
	case uintptr(n) > frames:
		return frames
	default:
		return uintptr(n)
	}
}

// InputPoll notifies the runtime that the core is about to query input.
func (b *Bridge) InputPoll() {
	defer b.recoverPanic(KindInputPoll, nil)
	b.observe(KindInputPoll)

	env, ok := b.attach(KindInputPoll)
	if !ok {
		return
	}
	defer env.Release()

	if p, ok := env.Target().(InputPoller); ok {
		p.OnInputPoll()
	}
}

// InputState asks the runtime for the state of one input. Without a
// responder the answer is 0. Answers outside the int16 range saturate.
func (b *Bridge) InputState(port, device, index, id uint32) (state int16) {
	defer b.recoverPanic(KindInputState, func() { state = 0 })
	b.observe(KindInputState)

	env, ok := b.attach(KindInputState)
	if !ok {
		return 0
	}
	defer env.Release()

	r, ok := env.Target().(InputResponder)
	if !ok {
		return 0
	}
	v := r.OnInputState(int(port), int(device), int(index), int(id))
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

func (b *Bridge) attach(kind string) (managed.Env, bool) {
	if b.runtime == nil {
		return nil, false
	}
	env, err := b.runtime.Attach()
	if err != nil {
		errutil.LogError(b.logger, "attach to managed runtime failed",
			oops.In("bridge").With("callback", kind).Wrap(err))
		return nil, false
	}
	return env, true
}

// recoverPanic stops a panic from unwinding into core frames. onPanic sets
// the neutral return value.
func (b *Bridge) recoverPanic(kind string, onPanic func()) {
	r := recover()
	if r == nil {
		return
	}
	if onPanic != nil {
		onPanic()
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	errutil.LogError(b.logger, "core callback failed",
		oops.In("bridge").Code("CALLBACK_PANIC").With("callback", kind).Wrap(err))
}

func (b *Bridge) observe(kind string) {
	if b.observer != nil {
		b.observer.Callback(kind)
	}
}

func (b *Bridge) dropped() {
	if b.observer != nil {
		b.observer.FrameDropped()
	}
}
