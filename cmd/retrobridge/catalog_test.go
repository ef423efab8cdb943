// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/internal/catalog"
	"github.com/retrobridge/retrobridge/internal/core/coretest"
	"github.com/retrobridge/retrobridge/internal/fetch"
)

func TestProbeCommand_YAML(t *testing.T) {
	isolateHome(t)
	fake := coretest.New()

	out, _, err := execute(t, fakeDeps(fake), "probe", "fake_libretro.so")
	require.NoError(t, err)
	assert.Contains(t, out, "library_name: FakeCore")
	assert.Contains(t, out, "library_version: 1.2.3")
	assert.Contains(t, out, "save_states: true")
	assert.Contains(t, out, "retro_serialize: true")
	assert.Equal(t, 1, fake.Closed(), "probe unloads the core")
}

func TestProbeCommand_JSON(t *testing.T) {
	isolateHome(t)

	out, _, err := execute(t, fakeDeps(coretest.RequiredOnly()), "probe", "fake_libretro.so", "-o", "json")
	require.NoError(t, err)

	var report probeReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "FakeCore", report.LibraryName)
	assert.Equal(t, []string{"bin", "rom", "nes"}, report.ValidExtensions)
	assert.False(t, report.SaveStates)
	assert.False(t, report.Optional["retro_get_memory_data"])
	assert.NotEmpty(t, report.SessionID)
}

func TestProbeCommand_Errors(t *testing.T) {
	isolateHome(t)

	_, _, err := execute(t, fakeDeps(coretest.New()), "probe", "core.so", "-o", "xml")
	require.Error(t, err)

	missing := coretest.New()
	missing.Exclude["retro_run"] = true
	_, _, err = execute(t, fakeDeps(missing), "probe", "core.so")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load core")
}

func TestCoresCommand(t *testing.T) {
	isolateHome(t)

	out, _, err := execute(t, nil, "cores")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	for _, name := range []string{"nestopia", "snes9x", "genesis_plus_gx"} {
		assert.Contains(t, out, name)
	}

	out, _, err = execute(t, nil, "cores", "zelda.sfc")
	require.NoError(t, err)
	assert.Contains(t, out, "snes9x")
	assert.NotContains(t, out, "nestopia")

	_, _, err = execute(t, nil, "cores", "notes.txt")
	require.Error(t, err)
}

func TestCoresCommand_ShowsInstalled(t *testing.T) {
	isolateHome(t)
	cores := t.TempDir()
	e, ok := catalog.Default().Find("nestopia")
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(cores, e.Filename), []byte{1}, 0o600))

	out, _, err := execute(t, nil, "cores", "--cores-dir", cores)
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "nestopia"):
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "yes"), line)
		case strings.HasPrefix(line, "snes9x"):
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "no"), line)
		}
	}
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := execute(t, nil, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, catalog.SchemaID)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
}

func TestSchemaCommand_Validate(t *testing.T) {
	valid := writeContent(t, "catalog.yaml", []byte(`cores:
  - name: fceumm
    system: nes
    filename: fceumm_libretro.so
    url: https://example.com/stable/fceumm_libretro.so.zip
    extensions: [nes]
`))
	out, _, err := execute(t, nil, "schema", "--validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	invalid := writeContent(t, "catalog.yaml", []byte("cores:\n  - name: 42\n"))
	_, _, err = execute(t, nil, "schema", "--validate", invalid)
	require.Error(t, err)
}

func TestFetchCommand(t *testing.T) {
	isolateHome(t)

	var body bytes.Buffer
	zw := zip.NewWriter(&body)
	w, err := zw.Create("fake_libretro.so")
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte{0x7f}, 256))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body.Bytes())
	}))
	defer srv.Close()

	cat := writeContent(t, "catalog.yaml", []byte(`cores:
  - name: fake
    system: nes
    filename: fake_libretro.so
    url: `+srv.URL+`/stable/fake_libretro.so.zip
    extensions: [nes]
    min_version: ">= 1.0"
`))
	cores := t.TempDir()

	deps := fakeDeps(coretest.New())
	deps.FetchOptions = []fetch.Option{
		fetch.WithHTTPClient(srv.Client()),
		fetch.WithMinSize(1),
		fetch.WithRetry(1, time.Millisecond),
	}
	out, _, err := execute(t, deps, "fetch", "fake", "--catalog", cat, "--cores-dir", cores)
	require.NoError(t, err)
	assert.Contains(t, out, "Installed FakeCore 1.2.3")
	assert.FileExists(t, filepath.Join(cores, "fake_libretro.so"))

	_, _, err = execute(t, deps, "fetch", "missing", "--catalog", cat, "--cores-dir", cores)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the catalog")
}
