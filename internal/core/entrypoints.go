// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package core

import (
	"unsafe"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// Op identifies a core entry point.
type Op uint8

// Entry points, required ones first.
const (
	OpInit Op = iota
	OpGetSystemInfo
	OpSetEnvironment
	OpSetVideoRefresh
	OpSetInputPoll
	OpSetInputState
	OpLoadGame
	OpRun
	OpReset
	OpDeinit
	OpAPIVersion
	OpGetSystemAVInfo
	OpSetAudioSample
	OpSetAudioSampleBatch
	OpSetControllerPortDevice
	OpSerializeSize
	OpSerialize
	OpUnserialize
	OpCheatReset
	OpCheatSet
	OpLoadGameSpecial
	OpUnloadGame
	OpGetRegion
	OpGetMemoryData
	OpGetMemorySize
	opCount
)

// String returns the exported symbol name of op.
func (o Op) String() string {
	if o >= opCount {
		return "unknown"
	}
	return symbols[o].name
}

// Required reports whether a core must export op to be loadable.
func (o Op) Required() bool {
	return o < opCount && symbols[o].required
}

// EntryPoints is the typed table of a core's exported functions. A field is
// only callable when Has reports its op present.
type EntryPoints struct {
	Init                    func()
	GetSystemInfo           func(info *retro.SystemInfo)
	SetEnvironment          func(cb uintptr)
	SetVideoRefresh         func(cb uintptr)
	SetInputPoll            func(cb uintptr)
	SetInputState           func(cb uintptr)
	LoadGame                func(game *retro.GameInfo) bool
	Run                     func()
	Reset                   func()
	Deinit                  func()
	APIVersion              func() uint32
	GetSystemAVInfo         func(info *retro.SystemAVInfo)
	SetAudioSample          func(cb uintptr)
	SetAudioSampleBatch     func(cb uintptr)
	SetControllerPortDevice func(port, device uint32)
	SerializeSize           func() uintptr
	Serialize               func(data unsafe.Pointer, size uintptr) bool
	Unserialize             func(data unsafe.Pointer, size uintptr) bool
	CheatReset              func()
	CheatSet                func(index uint32, enabled bool, code *byte)
	LoadGameSpecial         func(gameType uint32, games *retro.GameInfo, count uintptr) bool
	UnloadGame              func()
	GetRegion               func() uint32
	GetMemoryData           func(id uint32) unsafe.Pointer
	GetMemorySize           func(id uint32) uintptr

	present uint32
}

// Has reports whether the core exports op.
func (e *EntryPoints) Has(op Op) bool {
	return e != nil && op < opCount && e.present&(1<<op) != 0
}

type symbol struct {
	name     string
	required bool
	field    func(*EntryPoints) any
}

// symbols is indexed by Op.
var symbols = [opCount]symbol{
	OpInit:                    {"retro_init", true, func(e *EntryPoints) any { return &e.Init }},
	OpGetSystemInfo:           {"retro_get_system_info", true, func(e *EntryPoints) any { return &e.GetSystemInfo }},
	OpSetEnvironment:          {"retro_set_environment", true, func(e *EntryPoints) any { return &e.SetEnvironment }},
	OpSetVideoRefresh:         {"retro_set_video_refresh", true, func(e *EntryPoints) any { return &e.SetVideoRefresh }},
	OpSetInputPoll:            {"retro_set_input_poll", true, func(e *EntryPoints) any { return &e.SetInputPoll }},
	OpSetInputState:           {"retro_set_input_state", true, func(e *EntryPoints) any { return &e.SetInputState }},
	OpLoadGame:                {"retro_load_game", true, func(e *EntryPoints) any { return &e.LoadGame }},
	OpRun:                     {"retro_run", true, func(e *EntryPoints) any { return &e.Run }},
	OpReset:                   {"retro_reset", true, func(e *EntryPoints) any { return &e.Reset }},
	OpDeinit:                  {"retro_deinit", false, func(e *EntryPoints) any { return &e.Deinit }},
	OpAPIVersion:              {"retro_api_version", false, func(e *EntryPoints) any { return &e.APIVersion }},
	OpGetSystemAVInfo:         {"retro_get_system_av_info", false, func(e *EntryPoints) any { return &e.GetSystemAVInfo }},
	OpSetAudioSample:          {"retro_set_audio_sample", false, func(e *EntryPoints) any { return &e.SetAudioSample }},
	OpSetAudioSampleBatch:     {"retro_set_audio_sample_batch", false, func(e *EntryPoints) any { return &e.SetAudioSampleBatch }},
	OpSetControllerPortDevice: {"retro_set_controller_port_device", false, func(e *EntryPoints) any { return &e.SetControllerPortDevice }},
	OpSerializeSize:           {"retro_serialize_size", false, func(e *EntryPoints) any { return &e.SerializeSize }},
	OpSerialize:               {"retro_serialize", false, func(e *EntryPoints) any { return &e.Serialize }},
	OpUnserialize:             {"retro_unserialize", false, func(e *EntryPoints) any { return &e.Unserialize }},
	OpCheatReset:              {"retro_cheat_reset", false, func(e *EntryPoints) any { return &e.CheatReset }},
	OpCheatSet:                {"retro_cheat_set", false, func(e *EntryPoints) any { return &e.CheatSet }},
	OpLoadGameSpecial:         {"retro_load_game_special", false, func(e *EntryPoints) any { return &e.LoadGameSpecial }},
	OpUnloadGame:              {"retro_unload_game", false, func(e *EntryPoints) any { return &e.UnloadGame }},
	OpGetRegion:               {"retro_get_region", false, func(e *EntryPoints) any { return &e.GetRegion }},
	OpGetMemoryData:           {"retro_get_memory_data", false, func(e *EntryPoints) any { return &e.GetMemoryData }},
	OpGetMemorySize:           {"retro_get_memory_size", false, func(e *EntryPoints) any { return &e.GetMemorySize }},
}

// RequiredSymbols returns the names a core must export.
func RequiredSymbols() []string {
	var names []string
	for _, s := range symbols {
		if s.required {
			names = append(names, s.name)
		}
	}
	return names
}

// OptionalOps returns the entry points a core may omit, in table order.
func OptionalOps() []Op {
	var ops []Op
	for op := range opCount {
		if !symbols[op].required {
			ops = append(ops, op)
		}
	}
	return ops
}

// resolve looks up every entry point and binds the ones present. Nothing is
// bound when a required symbol is missing; the missing names are returned
// in table order instead.
func resolve(lib Library, bind Binder) (*EntryPoints, []string) {
	var (
		addrs   [opCount]uintptr
		missing []string
	)
	for op, s := range symbols {
		addr, ok := lib.Symbol(s.name)
		if !ok {
			if s.required {
				missing = append(missing, s.name)
			}
			continue
		}
		addrs[op] = addr
	}
	if len(missing) > 0 {
		return nil, missing
	}

	eps := &EntryPoints{}
	for op, s := range symbols {
		if addrs[op] == 0 {
			continue
		}
		bind(s.field(eps), addrs[op])
		eps.present |= 1 << op
	}
	return eps, nil
}
