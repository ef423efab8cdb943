// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package retro mirrors the parts of the libretro C ABI that the host
// consumes: environment commands, device identifiers, and the structs passed
// across the boundary. Struct layouts must match libretro.h exactly.
package retro

import "unsafe"

// APIVersion is the libretro API version this host implements.
const APIVersion = 1

// Environment commands understood by the host.
const (
	EnvSetRotation             uint32 = 1
	EnvGetOverscan             uint32 = 2
	EnvGetCanDupe              uint32 = 3
	EnvSetMessage              uint32 = 6
	EnvShutdown                uint32 = 7
	EnvSetPerformanceLevel     uint32 = 8
	EnvGetSystemDirectory      uint32 = 9
	EnvSetPixelFormat          uint32 = 10
	EnvSetInputDescriptors     uint32 = 11
	EnvGetVariable             uint32 = 15
	EnvSetVariables            uint32 = 16
	EnvGetVariableUpdate       uint32 = 17
	EnvSetSupportNoGame        uint32 = 18
	EnvGetLogInterface         uint32 = 27
	EnvGetCoreAssetsDirectory  uint32 = 30
	EnvGetSaveDirectory        uint32 = 31
	EnvSetSystemAVInfo         uint32 = 32
	EnvSetControllerInfo       uint32 = 35
	EnvSetGeometry             uint32 = 37
	EnvGetLanguage             uint32 = 39
	EnvExperimental            uint32 = 0x10000
	EnvGetCoreOptionsVersion   uint32 = 52
	EnvSetCoreOptionsDisplay   uint32 = 55
	EnvGetInputBitmasks        uint32 = 51 | EnvExperimental
	EnvGetMessageInterfaceVers uint32 = 59
)

// EnvName returns the lower-case symbolic name of an environment command, or
// "" when the command is not known to the host.
func EnvName(cmd uint32) string {
	return envNames[cmd]
}

var envNames = map[uint32]string{
	EnvSetRotation:             "set_rotation",
	EnvGetOverscan:             "get_overscan",
	EnvGetCanDupe:              "get_can_dupe",
	EnvSetMessage:              "set_message",
	EnvShutdown:                "shutdown",
	EnvSetPerformanceLevel:     "set_performance_level",
	EnvGetSystemDirectory:      "get_system_directory",
	EnvSetPixelFormat:          "set_pixel_format",
	EnvSetInputDescriptors:     "set_input_descriptors",
	EnvGetVariable:             "get_variable",
	EnvSetVariables:            "set_variables",
	EnvGetVariableUpdate:       "get_variable_update",
	EnvSetSupportNoGame:        "set_support_no_game",
	EnvGetLogInterface:         "get_log_interface",
	EnvGetCoreAssetsDirectory:  "get_core_assets_directory",
	EnvGetSaveDirectory:        "get_save_directory",
	EnvSetSystemAVInfo:         "set_system_av_info",
	EnvSetControllerInfo:       "set_controller_info",
	EnvSetGeometry:             "set_geometry",
	EnvGetLanguage:             "get_language",
	EnvGetCoreOptionsVersion:   "get_core_options_version",
	EnvSetCoreOptionsDisplay:   "set_core_options_display",
	EnvGetInputBitmasks:        "get_input_bitmasks",
	EnvGetMessageInterfaceVers: "get_message_interface_version",
}

// Input devices.
const (
	DeviceNone     uint32 = 0
	DeviceJoypad   uint32 = 1
	DeviceMouse    uint32 = 2
	DeviceKeyboard uint32 = 3
	DeviceLightgun uint32 = 4
	DeviceAnalog   uint32 = 5
	DevicePointer  uint32 = 6
)

// DeviceIDJoypadMask queries every joypad button at once as a bitmask.
const DeviceIDJoypadMask uint32 = 256

// Memory regions exposed by retro_get_memory_data.
const (
	MemorySaveRAM   uint32 = 0
	MemoryRTC       uint32 = 1
	MemorySystemRAM uint32 = 2
	MemoryVideoRAM  uint32 = 3
)

// Regions reported by retro_get_region.
const (
	RegionNTSC uint32 = 0
	RegionPAL  uint32 = 1
)

// PixelFormat is the framebuffer format a core renders in.
type PixelFormat uint32

// Pixel formats.
const (
	Pixel0RGB1555 PixelFormat = 0
	PixelXRGB8888 PixelFormat = 1
	PixelRGB565   PixelFormat = 2
)

func (p PixelFormat) String() string {
	switch p {
	case Pixel0RGB1555:
		return "0RGB1555"
	case PixelXRGB8888:
		return "XRGB8888"
	case PixelRGB565:
		return "RGB565"
	default:
		return "unknown"
	}
}

// Valid reports whether p is a format defined by the ABI.
func (p PixelFormat) Valid() bool {
	return p <= PixelRGB565
}

// Log levels passed to retro_log_printf_t.
const (
	LogDebug uint32 = 0
	LogInfo  uint32 = 1
	LogWarn  uint32 = 2
	LogError uint32 = 3
)

// SystemInfo mirrors struct retro_system_info.
type SystemInfo struct {
	LibraryName     *byte
	LibraryVersion  *byte
	ValidExtensions *byte
	NeedFullpath    bool
	BlockExtract    bool
}

// GameInfo mirrors struct retro_game_info.
type GameInfo struct {
	Path *byte
	Data unsafe.Pointer
	Size uintptr
	Meta *byte
}

// GameGeometry mirrors struct retro_game_geometry.
type GameGeometry struct {
	BaseWidth   uint32
	BaseHeight  uint32
	MaxWidth    uint32
	MaxHeight   uint32
	AspectRatio float32
}

// SystemTiming mirrors struct retro_system_timing.
type SystemTiming struct {
	FPS        float64
	SampleRate float64
}

// SystemAVInfo mirrors struct retro_system_av_info.
type SystemAVInfo struct {
	Geometry GameGeometry
	Timing   SystemTiming
}

// LogCallback mirrors struct retro_log_callback.
type LogCallback struct {
	Log uintptr
}

// Variable mirrors struct retro_variable.
type Variable struct {
	Key   *byte
	Value *byte
}
