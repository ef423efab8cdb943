// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package core

import (
	"strings"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// SystemInfo describes a core. It is copied out of core memory once, right
// after init, and never changes while the core stays loaded.
type SystemInfo struct {
	LibraryName     string   `json:"library_name"`
	LibraryVersion  string   `json:"library_version"`
	ValidExtensions []string `json:"valid_extensions"`
	NeedFullpath    bool     `json:"need_fullpath"`
	BlockExtract    bool     `json:"block_extract"`
}

// AcceptsExtension reports whether the core lists ext (with or without the
// leading dot) among its content extensions.
func (i SystemInfo) AcceptsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range i.ValidExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func systemInfoFrom(raw *retro.SystemInfo) SystemInfo {
	info := SystemInfo{
		LibraryName:    retro.GoString(raw.LibraryName),
		LibraryVersion: retro.GoString(raw.LibraryVersion),
		NeedFullpath:   raw.NeedFullpath,
		BlockExtract:   raw.BlockExtract,
	}
	for _, ext := range strings.Split(retro.GoString(raw.ValidExtensions), "|") {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			info.ValidExtensions = append(info.ValidExtensions, ext)
		}
	}
	return info
}

// AVInfo holds the audio and video timing of a loaded game.
type AVInfo struct {
	BaseWidth   int     `json:"base_width"`
	BaseHeight  int     `json:"base_height"`
	MaxWidth    int     `json:"max_width"`
	MaxHeight   int     `json:"max_height"`
	AspectRatio float64 `json:"aspect_ratio"`
	FPS         float64 `json:"fps"`
	SampleRate  float64 `json:"sample_rate"`
}

func avInfoFrom(raw *retro.SystemAVInfo) AVInfo {
	av := AVInfo{
		BaseWidth:   int(raw.Geometry.BaseWidth),
		BaseHeight:  int(raw.Geometry.BaseHeight),
		MaxWidth:    int(raw.Geometry.MaxWidth),
		MaxHeight:   int(raw.Geometry.MaxHeight),
		AspectRatio: float64(raw.Geometry.AspectRatio),
		FPS:         raw.Timing.FPS,
		SampleRate:  raw.Timing.SampleRate,
	}
	if av.AspectRatio <= 0 && av.BaseHeight > 0 {
		av.AspectRatio = float64(av.BaseWidth) / float64(av.BaseHeight)
	}
	return av
}

// Game is content handed to a core. Path, Data, or both may be set; Data is
// only referenced for the duration of the load call.
type Game struct {
	Path string
	Data []byte
	Meta string
}

// Region is the video standard a game runs at.
type Region uint32

// Regions.
const (
	RegionNTSC Region = Region(retro.RegionNTSC)
	RegionPAL  Region = Region(retro.RegionPAL)
)

func (r Region) String() string {
	switch r {
	case RegionNTSC:
		return "ntsc"
	case RegionPAL:
		return "pal"
	default:
		return "unknown"
	}
}
