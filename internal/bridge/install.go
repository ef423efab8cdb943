// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package bridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"
)

// ErrBusy is returned by Install while another bridge receives callbacks.
var ErrBusy = errors.New("callbacks already installed for another session")

// CodeSessionActive is the oops code carried by ErrBusy failures.
const CodeSessionActive = "SESSION_ACTIVE"

// Trampolines are the C function pointers handed to a core.
type Trampolines struct {
	Environment      uintptr
	VideoRefresh     uintptr
	AudioSample      uintptr
	AudioSampleBatch uintptr
	InputPoll        uintptr
	InputState       uintptr
}

// libretro callbacks carry no user data, so the trampolines dispatch to the
// one installed bridge.
var (
	active atomic.Pointer[Bridge]

	trampolinesOnce sync.Once
	trampolines     Trampolines
	trampolinesErr  error

	makeTrampolines = newTrampolines
)

// Install publishes b as the receiver of core callbacks and returns the
// function pointers to register with the core. The returned uninstall func
// is idempotent. Only one bridge can be installed at a time.
func Install(b *Bridge) (Trampolines, func(), error) {
	if b == nil {
		panic("bridge.Install: bridge cannot be nil")
	}

	trampolinesOnce.Do(func() {
		trampolines, trampolinesErr = makeTrampolines()
	})
	if trampolinesErr != nil {
		return Trampolines{}, nil, oops.In("bridge").Code("CALLBACKS_UNAVAILABLE").Wrap(trampolinesErr)
	}

	if !active.CompareAndSwap(nil, b) {
		return Trampolines{}, nil, oops.In("bridge").Code(CodeSessionActive).
			Hint("unload the current core first").Wrap(ErrBusy)
	}

	var once sync.Once
	uninstall := func() {
		once.Do(func() { active.CompareAndSwap(b, nil) })
	}
	return trampolines, uninstall, nil
}

// Installed reports whether a bridge currently receives callbacks.
func Installed() bool {
	return active.Load() != nil
}

func dispatchEnvironment(cmd uintptr, data unsafe.Pointer) uintptr {
	b := active.Load()
	if b == nil {
		return 0
	}
	if b.Environment(uint32(cmd), data) {
		return 1
	}
	return 0
}

func dispatchVideoRefresh(data unsafe.Pointer, width, height, pitch uintptr) {
	if b := active.Load(); b != nil {
		b.VideoRefresh(data, uint32(width), uint32(height), pitch)
	}
}

func dispatchAudioSample(left, right uintptr) {
	if b := active.Load(); b != nil {
		b.AudioSample(int16(uint16(left)), int16(uint16(right)))
	}
}

func dispatchAudioSampleBatch(data unsafe.Pointer, frames uintptr) uintptr {
	b := active.Load()
	if b == nil {
		return frames
	}
	return b.AudioSampleBatch((*int16)(data), frames)
}

func dispatchInputPoll() {
	if b := active.Load(); b != nil {
		b.InputPoll()
	}
}

func dispatchInputState(port, device, index, id uintptr) uintptr {
	b := active.Load()
	if b == nil {
		return 0
	}
	return uintptr(uint16(b.InputState(uint32(port), uint32(device), uint32(index), uint32(id))))
}
