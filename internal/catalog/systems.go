// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package catalog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// Canonical system names.
const (
	SystemNES     = "nes"
	SystemSNES    = "snes"
	SystemGenesis = "genesis"
	SystemPSX     = "psx"
)

var systemAliases = map[string]string{
	"nes":              SystemNES,
	"famicom":          SystemNES,
	"nintendo":         SystemNES,
	"snes":             SystemSNES,
	"sfc":              SystemSNES,
	"super nintendo":   SystemSNES,
	"super famicom":    SystemSNES,
	"genesis":          SystemGenesis,
	"sega genesis":     SystemGenesis,
	"mega drive":       SystemGenesis,
	"megadrive":        SystemGenesis,
	"sega mega drive":  SystemGenesis,
	"md":               SystemGenesis,
	"psx":              SystemPSX,
	"ps1":              SystemPSX,
	"playstation":      SystemPSX,
	"sony playstation": SystemPSX,
}

// extensionSystems maps ROM extensions to the systems that use them. "bin"
// is ambiguous between cartridge dumps and disc images.
var extensionSystems = map[string][]string{
	"nes": {SystemNES},
	"fds": {SystemNES},
	"unf": {SystemNES},
	"smc": {SystemSNES},
	"sfc": {SystemSNES},
	"fig": {SystemSNES},
	"swc": {SystemSNES},
	"md":  {SystemGenesis},
	"gen": {SystemGenesis},
	"smd": {SystemGenesis},
	"bin": {SystemGenesis, SystemPSX},
	"cue": {SystemPSX},
	"iso": {SystemPSX},
	"img": {SystemPSX},
}

// CanonicalSystem resolves a system name or alias. Unknown names are
// returned lower-cased.
func CanonicalSystem(name string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if s, ok := systemAliases[n]; ok {
		return s
	}
	return n
}

// SystemsFor returns the systems that use a ROM file's extension.
func SystemsFor(romPath string) []string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(romPath), "."))
	return slices.Clone(extensionSystems[ext])
}

// ForSystem returns entries for a system name or alias.
func (c *Catalog) ForSystem(name string) []Entry {
	want := CanonicalSystem(name)
	var out []Entry
	for _, e := range c.Cores {
		if CanonicalSystem(e.System) == want {
			out = append(out, e)
		}
	}
	return out
}

// Recommend returns the entries able to run a ROM, in catalog order. An
// entry matches when it lists the extension or runs a system that uses it.
func (c *Catalog) Recommend(romPath string) []Entry {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(romPath), "."))
	if ext == "" {
		return nil
	}
	systems := extensionSystems[ext]
	var out []Entry
	for _, e := range c.Cores {
		if e.Accepts(ext) || slices.Contains(systems, CanonicalSystem(e.System)) {
			out = append(out, e)
		}
	}
	return out
}

// buildbotPlatform returns the buildbot directory and library suffix for
// the running platform.
func buildbotPlatform() (dir, suffix string) {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "apple/osx/arm64", ".dylib"
		}
		return "apple/osx/x86_64", ".dylib"
	case "windows":
		return "windows/x86_64", ".dll"
	default:
		switch runtime.GOARCH {
		case "arm64":
			return "linux/arm64", ".so"
		case "arm":
			return "linux/armhf", ".so"
		}
		return "linux/x86_64", ".so"
	}
}

// buildbotEntry builds an entry served from the libretro buildbot stable
// channel.
func buildbotEntry(name, system, desc string, exts ...string) Entry {
	dir, suffix := buildbotPlatform()
	file := name + "_libretro" + suffix
	return Entry{
		Name:        name,
		System:      system,
		Filename:    file,
		URL:         fmt.Sprintf("https://buildbot.libretro.com/stable/%s/latest/%s.zip", dir, file),
		Extensions:  exts,
		Description: desc,
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{Cores: []Entry{
		buildbotEntry("nestopia", SystemNES, "Nestopia UE", "nes", "fds", "unf"),
		buildbotEntry("snes9x", SystemSNES, "Snes9x", "smc", "sfc", "fig", "swc"),
		buildbotEntry("genesis_plus_gx", SystemGenesis, "Genesis Plus GX", "md", "gen", "smd", "bin", "sms", "gg"),
	}}
}
