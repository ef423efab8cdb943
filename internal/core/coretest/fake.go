// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package coretest provides an in-process fake libretro core for tests.
//
// The fake exports Go closures under libretro symbol names. Its Opener,
// Binder and Installer plug into core.NewSession so sessions can be driven
// without a shared object.
package coretest

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/retro"
)

// Frame geometry produced by every fake run.
const (
	FrameWidth  = 4
	FrameHeight = 3
	FramePitch  = 16
)

// FakeCore is a scripted libretro core.
type FakeCore struct {
	mu sync.Mutex

	// Exclude lists symbols the fake does not export.
	Exclude map[string]bool
	// RejectGame makes retro_load_game return false.
	RejectGame bool
	// OpenErr fails the opener.
	OpenErr error
	// InstallErr fails the installer.
	InstallErr error
	// NeedFullpath is reported through retro_get_system_info.
	NeedFullpath bool
	// Query is the input queried each frame.
	Query [4]uint32

	name, version, exts []byte

	calls      []string
	opened     int
	closed     int
	bridge     *bridge.Bridge
	installed  bool
	callbacks  map[string]uintptr
	frame      []byte
	state      []byte
	saveRAM    []byte
	lastGame   core.Game
	inputSeen  []int16
	systemDir  string
	cheats     map[uint32]string
	frameCount int
}

// New returns a fake core exporting every entry point.
func New() *FakeCore {
	f := &FakeCore{
		Exclude:   map[string]bool{},
		Query:     [4]uint32{0, retro.DeviceJoypad, 0, 8},
		callbacks: map[string]uintptr{},
		frame:     make([]byte, FrameHeight*FramePitch),
		state:     []byte("fake-state-v1"),
		saveRAM:   make([]byte, 32),
		cheats:    map[uint32]string{},
	}
	f.name = cbytes("FakeCore")
	f.version = cbytes("1.2.3")
	f.exts = cbytes("bin|ROM|nes")
	for i := range f.frame {
		f.frame[i] = byte(i)
	}
	return f
}

// RequiredOnly returns a fake exporting only the required entry points.
func RequiredOnly() *FakeCore {
	f := New()
	for _, name := range allSymbols {
		f.Exclude[name] = true
	}
	for _, name := range core.RequiredSymbols() {
		delete(f.Exclude, name)
	}
	return f
}

func cbytes(s string) []byte {
	b, err := retro.CString(s)
	if err != nil {
		panic(err)
	}
	return b
}

var allSymbols = []string{
	"retro_init", "retro_deinit", "retro_api_version", "retro_get_system_info",
	"retro_get_system_av_info", "retro_set_environment", "retro_set_video_refresh",
	"retro_set_audio_sample", "retro_set_audio_sample_batch", "retro_set_input_poll",
	"retro_set_input_state", "retro_set_controller_port_device", "retro_reset",
	"retro_run", "retro_serialize_size", "retro_serialize", "retro_unserialize",
	"retro_cheat_reset", "retro_cheat_set", "retro_load_game", "retro_load_game_special",
	"retro_unload_game", "retro_get_region", "retro_get_memory_data", "retro_get_memory_size",
}

// Opener returns a core.Opener that opens this fake for any path.
func (f *FakeCore) Opener() core.Opener {
	return func(string) (core.Library, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.OpenErr != nil {
			return nil, f.OpenErr
		}
		f.opened++
		return &library{f: f}, nil
	}
}

// Binder returns a core.Binder that binds fake addresses to closures.
func (f *FakeCore) Binder() core.Binder {
	return func(fptr any, addr uintptr) {
		idx := int(addr>>4) - 1
		if idx < 0 || idx >= len(allSymbols) {
			panic("coretest: unknown address")
		}
		fn := f.impl(allSymbols[idx])
		reflect.ValueOf(fptr).Elem().Set(reflect.ValueOf(fn))
	}
}

// Installer returns a core.Installer that hands the bridge to the fake.
func (f *FakeCore) Installer() core.Installer {
	return func(b *bridge.Bridge) (bridge.Trampolines, func(), error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.InstallErr != nil {
			return bridge.Trampolines{}, nil, f.InstallErr
		}
		if f.installed {
			return bridge.Trampolines{}, nil, bridge.ErrBusy
		}
		f.bridge = b
		f.installed = true
		var once sync.Once
		return bridge.Trampolines{
				Environment:      0xe0,
				VideoRefresh:     0xe1,
				AudioSample:      0xe2,
				AudioSampleBatch: 0xe3,
				InputPoll:        0xe4,
				InputState:       0xe5,
			}, func() {
				once.Do(func() {
					f.mu.Lock()
					f.installed = false
					f.mu.Unlock()
				})
			}, nil
	}
}

// Options returns session options wiring the fake in.
func (f *FakeCore) Options() []core.Option {
	return []core.Option{
		core.WithOpener(f.Opener()),
		core.WithBinder(f.Binder()),
		core.WithInstaller(f.Installer()),
	}
}

// Calls returns the entry points invoked so far, in order.
func (f *FakeCore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how often the named entry point ran.
func (f *FakeCore) Count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// Opened counts library opens.
func (f *FakeCore) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Closed counts library closes.
func (f *FakeCore) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Installed reports whether the fake currently holds a bridge.
func (f *FakeCore) Installed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed
}

// Frames counts completed retro_run calls that reached the bridge.
func (f *FakeCore) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frameCount
}

// Callback returns the address registered through the named setter.
func (f *FakeCore) Callback(setter string) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks[setter]
}

// LastGame returns the content passed to the last load call. Data is a copy.
func (f *FakeCore) LastGame() core.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastGame
}

// InputSeen returns every input state value the fake read back.
func (f *FakeCore) InputSeen() []int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int16(nil), f.inputSeen...)
}

// SystemDir returns the system directory the fake queried during init.
func (f *FakeCore) SystemDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.systemDir
}

// Frame returns the fake framebuffer.
func (f *FakeCore) Frame() []byte { return f.frame }

// SaveRAM returns the fake battery RAM.
func (f *FakeCore) SaveRAM() []byte { return f.saveRAM }

// Cheats returns the applied cheat codes by index.
func (f *FakeCore) Cheats() map[uint32]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint32]string, len(f.cheats))
	for k, v := range f.cheats {
		out[k] = v
	}
	return out
}

func (f *FakeCore) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *FakeCore) currentBridge() *bridge.Bridge {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.installed {
		return nil
	}
	return f.bridge
}

type library struct {
	f    *FakeCore
	once sync.Once
}

func (l *library) Symbol(name string) (uintptr, bool) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	if l.f.Exclude[name] {
		return 0, false
	}
	for i, s := range allSymbols {
		if s == name {
			return uintptr(i+1) << 4, true
		}
	}
	return 0, false
}

func (l *library) Close() error {
	closed := false
	l.once.Do(func() {
		l.f.mu.Lock()
		l.f.closed++
		l.f.mu.Unlock()
		closed = true
	})
	if !closed {
		return errors.New("coretest: library closed twice")
	}
	return nil
}

func (f *FakeCore) setter(name string) func(uintptr) {
	return func(cb uintptr) {
		f.record(name)
		f.mu.Lock()
		f.callbacks[name] = cb
		f.mu.Unlock()
	}
}

func (f *FakeCore) impl(name string) any {
	switch name {
	case "retro_init":
		return func() {
			f.record(name)
			if b := f.currentBridge(); b != nil {
				var dir *byte
				if b.Environment(retro.EnvGetSystemDirectory, unsafe.Pointer(&dir)) {
					f.mu.Lock()
					f.systemDir = retro.GoString(dir)
					f.mu.Unlock()
				}
			}
		}
	case "retro_deinit", "retro_reset", "retro_unload_game", "retro_cheat_reset":
		return func() {
			f.record(name)
			if name == "retro_cheat_reset" {
				f.mu.Lock()
				f.cheats = map[uint32]string{}
				f.mu.Unlock()
			}
		}
	case "retro_api_version":
		return func() uint32 { f.record(name); return retro.APIVersion }
	case "retro_get_system_info":
		return func(info *retro.SystemInfo) {
			f.record(name)
			info.LibraryName = &f.name[0]
			info.LibraryVersion = &f.version[0]
			info.ValidExtensions = &f.exts[0]
			info.NeedFullpath = f.NeedFullpath
		}
	case "retro_get_system_av_info":
		return func(info *retro.SystemAVInfo) {
			f.record(name)
			info.Geometry = retro.GameGeometry{BaseWidth: FrameWidth, BaseHeight: FrameHeight, MaxWidth: FrameWidth, MaxHeight: FrameHeight}
			info.Timing = retro.SystemTiming{FPS: 60.0988, SampleRate: 44100}
		}
	case "retro_set_environment", "retro_set_video_refresh", "retro_set_audio_sample",
		"retro_set_audio_sample_batch", "retro_set_input_poll", "retro_set_input_state":
		return f.setter(name)
	case "retro_set_controller_port_device":
		return func(port, device uint32) { f.record(name) }
	case "retro_run":
		return f.run
	case "retro_serialize_size":
		return func() uintptr { f.record(name); return uintptr(len(f.state)) }
	case "retro_serialize":
		return func(data unsafe.Pointer, size uintptr) bool {
			f.record(name)
			if size < uintptr(len(f.state)) {
				return false
			}
			copy(unsafe.Slice((*byte)(data), size), f.state)
			return true
		}
	case "retro_unserialize":
		return func(data unsafe.Pointer, size uintptr) bool {
			f.record(name)
			in := unsafe.Slice((*byte)(data), size)
			if len(in) < 5 || string(in[:5]) != "fake-" {
				return false
			}
			f.mu.Lock()
			f.state = append([]byte(nil), in...)
			f.mu.Unlock()
			return true
		}
	case "retro_cheat_set":
		return func(index uint32, enabled bool, code *byte) {
			f.record(name)
			f.mu.Lock()
			defer f.mu.Unlock()
			if enabled {
				f.cheats[index] = retro.GoString(code)
			} else {
				delete(f.cheats, index)
			}
		}
	case "retro_load_game":
		return func(game *retro.GameInfo) bool {
			f.record(name)
			f.captureGame(game)
			return !f.RejectGame
		}
	case "retro_load_game_special":
		return func(gameType uint32, games *retro.GameInfo, count uintptr) bool {
			f.record(name)
			if count > 0 {
				f.captureGame(games)
			}
			return !f.RejectGame
		}
	case "retro_get_region":
		return func() uint32 { f.record(name); return retro.RegionPAL }
	case "retro_get_memory_data":
		return func(id uint32) unsafe.Pointer {
			f.record(name)
			if id != retro.MemorySaveRAM {
				return nil
			}
			return unsafe.Pointer(&f.saveRAM[0])
		}
	case "retro_get_memory_size":
		return func(id uint32) uintptr {
			f.record(name)
			if id != retro.MemorySaveRAM {
				return 0
			}
			return uintptr(len(f.saveRAM))
		}
	}
	panic("coretest: no implementation for " + name)
}

func (f *FakeCore) captureGame(game *retro.GameInfo) {
	g := core.Game{Path: retro.GoString(game.Path), Meta: retro.GoString(game.Meta)}
	if game.Data != nil {
		g.Data = append([]byte(nil), unsafe.Slice((*byte)(game.Data), game.Size)...)
	}
	f.mu.Lock()
	f.lastGame = g
	f.mu.Unlock()
}

// run emits one frame: input poll, one input query, video, then audio.
func (f *FakeCore) run() {
	f.record("retro_run")
	b := f.currentBridge()
	if b == nil {
		return
	}
	f.mu.Lock()
	f.frameCount++
	q := f.Query
	f.mu.Unlock()

	b.InputPoll()
	v := b.InputState(q[0], q[1], q[2], q[3])
	f.mu.Lock()
	f.inputSeen = append(f.inputSeen, v)
	f.mu.Unlock()

	b.VideoRefresh(unsafe.Pointer(&f.frame[0]), FrameWidth, FrameHeight, FramePitch)

	samples := []int16{1, -1, 2, -2}
	b.AudioSampleBatch(&samples[0], 2)
}
