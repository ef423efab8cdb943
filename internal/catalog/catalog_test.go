// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/internal/catalog"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

const sampleCatalog = `
cores:
  - name: nestopia
    system: NES
    filename: nestopia_libretro.so
    url: https://buildbot.libretro.com/stable/linux/x86_64/latest/nestopia_libretro.so.zip
    extensions: [".NES", fds]
    min_version: ">= 1.50"
  - name: snes9x
    system: Super Nintendo
    filename: snes9x_libretro.so
    url: https://buildbot.libretro.com/stable/linux/x86_64/latest/snes9x_libretro.so.zip
    extensions: [smc, sfc]
    checksum: 0000000000000000000000000000000000000000000000000000000000000000
`

func TestParse_ValidCatalog(t *testing.T) {
	c, err := catalog.Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Cores, 2)

	nes := c.Cores[0]
	assert.Equal(t, "nestopia", nes.Name)
	assert.Equal(t, []string{"nes", "fds"}, nes.Extensions, "extensions are normalized")
	assert.True(t, nes.Accepts(".NES"))
	assert.False(t, nes.Accepts("smc"))
}

func TestParse_Errors(t *testing.T) {
	valid := func(mutate string) string {
		return strings.Replace(sampleCatalog, "name: snes9x", mutate, 1)
	}
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not yaml", "cores: [unclosed"},
		{"no cores", "cores: []"},
		{"bad name", valid("name: Snes9x")},
		{"duplicate name", valid("name: nestopia")},
		{"path in filename", strings.Replace(sampleCatalog, "filename: snes9x_libretro.so", "filename: ../snes9x.so", 1)},
		{"relative url", strings.Replace(sampleCatalog, "url: https://buildbot.libretro.com/stable/linux/x86_64/latest/snes9x", "url: /snes9x", 1)},
		{"short checksum", strings.Replace(sampleCatalog, "checksum: 00000000", "checksum: 0", 1)},
		{"bad constraint", strings.Replace(sampleCatalog, ">= 1.50", "soon", 1)},
		{"empty extension", strings.Replace(sampleCatalog, "[smc, sfc]", `[smc, "."]`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.data))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, catalog.CodeBadCatalog)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cores.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	e, ok := c.Find("snes9x")
	require.True(t, ok)
	assert.Equal(t, "snes9x_libretro.so", e.Filename)

	_, ok = c.Find("mame")
	assert.False(t, ok)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEntry_NightlyURL(t *testing.T) {
	e := catalog.Entry{URL: "https://buildbot.libretro.com/stable/linux/x86_64/latest/a.so.zip"}
	assert.Equal(t, "https://buildbot.libretro.com/nightly/linux/x86_64/latest/a.so.zip", e.NightlyURL())

	e.URL = "https://example.com/a.so"
	assert.Equal(t, e.URL, e.NightlyURL())
}

func TestEntry_Compatible(t *testing.T) {
	e := catalog.Entry{Name: "nestopia", MinVersion: ">= 1.50"}
	tests := []struct {
		version string
		want    bool
		wantErr bool
	}{
		{"1.52.0 5cb5bcc", true, false},
		{"v1.51", true, false},
		{"1.49", false, false},
		{"", false, true},
		{"git-abc", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := e.Compatible(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	ok, err := (&catalog.Entry{}).Compatible("anything")
	require.NoError(t, err)
	assert.True(t, ok, "no constraint accepts every version")
}

func TestCanonicalSystem(t *testing.T) {
	assert.Equal(t, catalog.SystemSNES, catalog.CanonicalSystem("Super  Nintendo"))
	assert.Equal(t, catalog.SystemGenesis, catalog.CanonicalSystem("Sega Mega Drive"))
	assert.Equal(t, catalog.SystemNES, catalog.CanonicalSystem("famicom"))
	assert.Equal(t, "atari 2600", catalog.CanonicalSystem("Atari 2600"))
}

func TestForSystem(t *testing.T) {
	c := catalog.Default()
	got := c.ForSystem("mega drive")
	require.Len(t, got, 1)
	assert.Equal(t, "genesis_plus_gx", got[0].Name)

	assert.Empty(t, c.ForSystem("psx"))
}

func TestRecommend(t *testing.T) {
	c := catalog.Default()
	tests := []struct {
		rom  string
		want []string
	}{
		{"/roms/Zelda.NES", []string{"nestopia"}},
		{"mario.sfc", []string{"snes9x"}},
		{"sonic.md", []string{"genesis_plus_gx"}},
		{"sonic.bin", []string{"genesis_plus_gx"}},
		{"game.cue", nil},
		{"readme", nil},
	}
	for _, tt := range tests {
		t.Run(tt.rom, func(t *testing.T) {
			var names []string
			for _, e := range c.Recommend(tt.rom) {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSystemsFor(t *testing.T) {
	assert.Equal(t, []string{catalog.SystemGenesis, catalog.SystemPSX}, catalog.SystemsFor("x.BIN"))
	assert.Equal(t, []string{catalog.SystemSNES}, catalog.SystemsFor("x.fig"))
	assert.Nil(t, catalog.SystemsFor("x.txt"))
}

func TestDefault_IsValid(t *testing.T) {
	c := catalog.Default()
	require.NoError(t, c.Validate())
	for _, e := range c.Cores {
		assert.Contains(t, e.URL, "/stable/")
		assert.Contains(t, e.URL, e.Filename)
	}
}
