// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package romloader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/pkg/errutil"
)

var testExtensions = []string{"nes", ".FDS"}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func zipBytes(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func tarGzBytes(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var tbuf bytes.Buffer
	tw := tar.NewWriter(&tbuf)
	for _, f := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: f[0], Mode: 0o600, Size: int64(len(f[1])), Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return gzipBytes(t, tbuf.Bytes())
}

func TestLoad_RawROM(t *testing.T) {
	path := writeFile(t, "Zelda.NES", []byte{1, 2, 3, 4, 5})

	rom, err := Load(path, testExtensions)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, rom.Data)
	assert.Equal(t, "Zelda.NES", rom.Name)
	assert.False(t, rom.Archive)
}

func TestLoad_EmptyRawROM(t *testing.T) {
	rom, err := Load(writeFile(t, "empty.nes", nil), testExtensions)
	require.NoError(t, err)
	assert.Empty(t, rom.Data)
}

func TestLoad_ZIP(t *testing.T) {
	path := writeFile(t, "game.zip", zipBytes(t,
		[2]string{"readme.txt", "hello"},
		[2]string{"roms/game.nes", "NES\x1a"},
	))

	rom, err := Load(path, testExtensions)
	require.NoError(t, err)
	assert.Equal(t, "game.nes", rom.Name)
	assert.Equal(t, []byte("NES\x1a"), rom.Data)
	assert.True(t, rom.Archive)
}

func TestLoad_ZIPDetectedByMagicDespiteExtension(t *testing.T) {
	path := writeFile(t, "game.nes", zipBytes(t, [2]string{"inner.fds", "disk"}))

	rom, err := Load(path, testExtensions)
	require.NoError(t, err)
	assert.Equal(t, "inner.fds", rom.Name)
}

func TestLoad_ZIPWithoutROM(t *testing.T) {
	path := writeFile(t, "docs.zip", zipBytes(t, [2]string{"readme.txt", "hello"}))

	_, err := Load(path, testExtensions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoROMFile))
	errutil.AssertErrorCode(t, err, CodeROMLoad)
}

func TestLoad_Gzip(t *testing.T) {
	path := writeFile(t, "game.nes.gz", gzipBytes(t, []byte("rom-data")))

	rom, err := Load(path, testExtensions)
	require.NoError(t, err)
	assert.Equal(t, "game.nes", rom.Name)
	assert.Equal(t, []byte("rom-data"), rom.Data)
}

func TestLoad_TarGz(t *testing.T) {
	path := writeFile(t, "pack.tar.gz", tarGzBytes(t,
		[2]string{"a.txt", "nope"},
		[2]string{"dir/b.nes", "yes"},
	))

	rom, err := Load(path, testExtensions)
	require.NoError(t, err)
	assert.Equal(t, "b.nes", rom.Name)
	assert.Equal(t, []byte("yes"), rom.Data)

	path = writeFile(t, "none.tgz", tarGzBytes(t, [2]string{"a.txt", "nope"}))
	_, err = Load(path, testExtensions)
	assert.True(t, errors.Is(err, ErrNoROMFile))
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "notes.txt", []byte("hello")), testExtensions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeFile(t, "big.nes", bytes.Repeat([]byte{0xff}, 64))

	_, err := New(testExtensions, 32).Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	path = writeFile(t, "big.zip", zipBytes(t, [2]string{"big.nes", string(bytes.Repeat([]byte{1}, 64))}))
	_, err = New(testExtensions, 32).Load(path)
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.nes"), testExtensions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDetect(t *testing.T) {
	l := New(testExtensions, 0)
	tests := []struct {
		name   string
		header []byte
		path   string
		want   format
	}{
		{"zip magic", magicZIP, "x.bin", formatZIP},
		{"empty zip magic", magicZIPEnd, "x.bin", formatZIP},
		{"7z magic", magic7z, "x.bin", format7z},
		{"gzip magic", magicGzip, "x.bin", formatGzip},
		{"rar magic", magicRAR, "x.bin", formatRAR},
		{"zip extension", nil, "x.ZIP", formatZIP},
		{"7z extension", nil, "x.7z", format7z},
		{"tgz extension", nil, "x.tgz", formatGzip},
		{"rar extension", nil, "x.rar", formatRAR},
		{"rom extension", []byte("NES"), "x.fds", formatRaw},
		{"unknown", []byte("MZ"), "x.exe", formatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.detect(tt.header, tt.path))
		})
	}
}

func TestNew_NormalizesExtensions(t *testing.T) {
	l := New([]string{"NES", ".fds", " ", ""}, 0)
	assert.Equal(t, []string{".nes", ".fds"}, l.extensions)
	assert.Equal(t, int64(DefaultMaxSize), l.maxSize)
}
