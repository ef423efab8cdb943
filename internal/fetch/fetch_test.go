// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package fetch_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrobridge/retrobridge/internal/catalog"
	"github.com/retrobridge/retrobridge/internal/core/coretest"
	"github.com/retrobridge/retrobridge/internal/fetch"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

var libBytes = bytes.Repeat([]byte{0x7f, 'E', 'L', 'F'}, 64)

func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildbot serves body on the given channel and 404 everywhere else.
type buildbot struct {
	hits    atomic.Int32
	channel string
	status  int
	fails   int32
	body    []byte
}

func (b *buildbot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := b.hits.Add(1)
	if n <= b.fails {
		w.WriteHeader(b.status)
		return
	}
	if !strings.Contains(r.URL.Path, "/"+b.channel+"/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write(b.body)
}

func entryFor(srv *httptest.Server) catalog.Entry {
	return catalog.Entry{
		Name:       "fake",
		System:     "nes",
		Filename:   "fake_libretro.so",
		URL:        srv.URL + "/stable/linux/x86_64/latest/fake_libretro.so.zip",
		Extensions: []string{"nes"},
	}
}

func newFetcher(t *testing.T, opts ...fetch.Option) (*fetch.Fetcher, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cores")
	opts = append([]fetch.Option{fetch.WithRetry(3, time.Millisecond)}, opts...)
	return fetch.New(dir, opts...), dir
}

func TestFetch_ExtractsLibraryFromZip(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{
		"README.txt":       []byte("hi"),
		"fake_libretro.so": libBytes,
	})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, dir := newFetcher(t)
	path, err := f.Fetch(context.Background(), entryFor(srv))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fake_libretro.so"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, libBytes, got)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFetch_ExistingCoreIsNotDownloaded(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{"fake_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	e := entryFor(srv)
	_, err := f.Fetch(context.Background(), e)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, int32(1), bot.hits.Load())
}

func TestFetch_FallsBackToNightly(t *testing.T) {
	bot := &buildbot{channel: "nightly", body: zipOf(t, map[string][]byte{"cores/other_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	path, err := f.Fetch(context.Background(), entryFor(srv))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, libBytes, got)
	// 404 is not retried, so one stable attempt and one nightly attempt.
	assert.Equal(t, int32(2), bot.hits.Load())
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	bot := &buildbot{channel: "stable", status: http.StatusBadGateway, fails: 2,
		body: zipOf(t, map[string][]byte{"fake_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.Fetch(context.Background(), entryFor(srv))
	require.NoError(t, err)
	assert.Equal(t, int32(3), bot.hits.Load())
}

func TestFetch_AllChannelsFail(t *testing.T) {
	bot := &buildbot{channel: "none"}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, dir := newFetcher(t)
	_, err := f.Fetch(context.Background(), entryFor(srv))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeDownloadFailed)
	_, statErr := os.Stat(filepath.Join(dir, "fake_libretro.so"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestFetch_ChecksumMismatch(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{"fake_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	e := entryFor(srv)
	e.Checksum = fetch.Checksum([]byte("something else"))
	_, err := f.Fetch(context.Background(), e)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeChecksumMismatch)

	e.Checksum = strings.ToUpper(fetch.Checksum(libBytes))
	_, err = f.Fetch(context.Background(), e)
	require.NoError(t, err)
}

func TestFetch_ArchiveWithoutLibrary(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{"README.txt": []byte("hi")})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.Fetch(context.Background(), entryFor(srv))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeBadArchive)
}

func TestFetch_ZipURLWithHTMLBody(t *testing.T) {
	bot := &buildbot{channel: "stable", body: []byte("<html>moved</html>")}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	f, _ := newFetcher(t)
	_, err := f.Fetch(context.Background(), entryFor(srv))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeBadArchive)
}

func TestFetch_CanceledContext(t *testing.T) {
	bot := &buildbot{channel: "stable", status: http.StatusServiceUnavailable, fails: 100}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, _ := newFetcher(t)
	_, err := f.Fetch(ctx, entryFor(srv))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	fake := coretest.New()
	f, dir := newFetcher(t, fetch.WithMinSize(16), fetch.WithSessionOptions(fake.Options()...))
	require.NoError(t, os.MkdirAll(dir, 0o700))

	small := filepath.Join(dir, "small.so")
	require.NoError(t, os.WriteFile(small, []byte("tiny"), 0o600))
	_, err := f.Validate(context.Background(), small)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeInvalidCore)

	good := filepath.Join(dir, "good.so")
	require.NoError(t, os.WriteFile(good, libBytes, 0o600))
	info, err := f.Validate(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "FakeCore", info.LibraryName)
	assert.Equal(t, 1, fake.Opened())
	assert.Equal(t, 1, fake.Closed(), "probe unloads the core")

	_, err = f.Validate(context.Background(), filepath.Join(dir, "missing.so"))
	require.Error(t, err)
}

func TestValidate_ProbeFailure(t *testing.T) {
	fake := coretest.RequiredOnly()
	fake.Exclude["retro_run"] = true
	f, dir := newFetcher(t, fetch.WithMinSize(1), fetch.WithSessionOptions(fake.Options()...))
	require.NoError(t, os.MkdirAll(dir, 0o700))

	p := filepath.Join(dir, "broken.so")
	require.NoError(t, os.WriteFile(p, libBytes, 0o600))
	_, err := f.Validate(context.Background(), p)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MISSING_REQUIRED_SYMBOLS")
}

func TestInstall_RemovesIncompatibleCore(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{"fake_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	fake := coretest.New()
	f, _ := newFetcher(t, fetch.WithMinSize(1), fetch.WithSessionOptions(fake.Options()...))

	e := entryFor(srv)
	e.MinVersion = ">= 2.0"
	_, _, err := f.Install(context.Background(), e)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeInvalidCore)
	_, statErr := os.Stat(f.Path(e))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	e.MinVersion = "~1.2"
	path, info, err := f.Install(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, f.Path(e), path)
	assert.Equal(t, "1.2.3", info.LibraryVersion)
}

func TestInstall_KeepsExistingCoreThatFailsValidation(t *testing.T) {
	bot := &buildbot{channel: "stable", body: zipOf(t, map[string][]byte{"fake_libretro.so": libBytes})}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	fake := coretest.New()
	f, dir := newFetcher(t, fetch.WithMinSize(16), fetch.WithSessionOptions(fake.Options()...))
	require.NoError(t, os.MkdirAll(dir, 0o700))

	e := entryFor(srv)
	require.NoError(t, os.WriteFile(f.Path(e), []byte("tiny"), 0o600))

	_, _, err := f.Install(context.Background(), e)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, fetch.CodeInvalidCore)
	assert.Equal(t, int32(0), bot.hits.Load(), "present core is not downloaded")

	got, err := os.ReadFile(f.Path(e))
	require.NoError(t, err, "hand-placed core survives")
	assert.Equal(t, []byte("tiny"), got)

	e.MinVersion = ">= 2.0"
	require.NoError(t, os.WriteFile(f.Path(e), libBytes, 0o600))
	_, _, err = f.Install(context.Background(), e)
	require.Error(t, err)
	_, statErr := os.Stat(f.Path(e))
	assert.NoError(t, statErr, "too-old core placed by hand survives")
}
