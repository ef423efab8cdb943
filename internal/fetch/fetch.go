// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package fetch downloads catalog cores into the cores directory.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/blake2b"

	"github.com/retrobridge/retrobridge/internal/catalog"
	"github.com/retrobridge/retrobridge/internal/core"
	"github.com/retrobridge/retrobridge/internal/xdg"
)

// Error codes.
const (
	CodeDownloadFailed   = "DOWNLOAD_FAILED"
	CodeChecksumMismatch = "CHECKSUM_MISMATCH"
	CodeBadArchive       = "BAD_ARCHIVE"
	CodeInvalidCore      = "INVALID_CORE"
)

// MinCoreSize is the smallest file accepted as a core. Anything smaller is
// almost always an HTML error page saved under a library name.
const MinCoreSize = 1 << 20

// maxDownloadSize caps a single download.
const maxDownloadSize = 256 << 20

var libSuffixes = []string{".so", ".dylib", ".dll"}

// Fetcher installs cores from a catalog.
type Fetcher struct {
	dir      string
	client   *http.Client
	logger   *slog.Logger
	attempts uint64
	base     time.Duration
	minSize  int64
	session  []core.Option
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRetry sets how often a URL is tried and the first backoff delay.
func WithRetry(attempts uint64, base time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = attempts
		f.base = base
	}
}

// WithMinSize overrides MinCoreSize.
func WithMinSize(n int64) Option {
	return func(f *Fetcher) { f.minSize = n }
}

// WithSessionOptions sets the options of the session used to probe cores.
func WithSessionOptions(opts ...core.Option) Option {
	return func(f *Fetcher) { f.session = opts }
}

// New returns a fetcher installing into dir.
func New(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:      dir,
		client:   &http.Client{Timeout: 5 * time.Minute},
		logger:   slog.Default(),
		attempts: 3,
		base:     500 * time.Millisecond,
		minSize:  MinCoreSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns where e is installed.
func (f *Fetcher) Path(e catalog.Entry) string {
	return filepath.Join(f.dir, e.Filename)
}

// Fetch makes sure e is present in the cores directory and returns its
// path. A missing core is downloaded from its URL, then from the nightly
// channel.
func (f *Fetcher) Fetch(ctx context.Context, e catalog.Entry) (string, error) {
	target, _, err := f.fetch(ctx, e)
	return target, err
}

// fetch is Fetch that also reports whether this call wrote the file.
func (f *Fetcher) fetch(ctx context.Context, e catalog.Entry) (string, bool, error) {
	target := f.Path(e)
	if st, err := os.Stat(target); err == nil && st.Mode().IsRegular() {
		return target, false, nil
	}
	if err := xdg.EnsureDir(f.dir); err != nil {
		return "", false, err
	}

	urls := []string{e.URL}
	if nightly := e.NightlyURL(); nightly != e.URL {
		urls = append(urls, nightly)
	}

	var errs []error
	for _, u := range urls {
		data, err := f.download(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return "", false, oops.Code(CodeDownloadFailed).With("core", e.Name).Wrap(ctx.Err())
			}
			f.logger.Warn("core download failed", "core", e.Name, "url", u, "error", err)
			errs = append(errs, err)
			continue
		}
		lib, err := extract(data, u, e.Filename)
		if err != nil {
			return "", false, oops.With("core", e.Name).With("url", u).Wrap(err)
		}
		if err := verify(lib, e.Checksum); err != nil {
			return "", false, oops.With("core", e.Name).With("url", u).Wrap(err)
		}
		if err := writeAtomic(target, lib); err != nil {
			return "", false, err
		}
		f.logger.Info("core installed", "core", e.Name, "path", target, "bytes", len(lib))
		return target, true, nil
	}
	return "", false, oops.Code(CodeDownloadFailed).With("core", e.Name).
		Hint("check the catalog URL or network access").Wrap(errors.Join(errs...))
}

// download fetches url, retrying network errors and 5xx responses.
func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	backoff := retry.WithMaxRetries(max(f.attempts, 1)-1, retry.NewExponential(f.base))

	var data []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("server returned %s", resp.Status))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("server returned %s", resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
		if err != nil {
			return retry.RetryableError(err)
		}
		if len(body) > maxDownloadSize {
			return fmt.Errorf("download exceeds %d bytes", maxDownloadSize)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, oops.Code(CodeDownloadFailed).With("url", url).Wrap(err)
	}
	return data, nil
}

// extract returns the library inside a zip download, or data itself when
// the download is not an archive. The entry named filename wins over other
// libraries.
func extract(data []byte, url, filename string) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		if strings.HasSuffix(strings.ToLower(url), ".zip") {
			return nil, oops.Code(CodeBadArchive).Errorf("download is not a zip archive")
		}
		return data, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, oops.Code(CodeBadArchive).Wrap(err)
	}
	var pick *zip.File
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		base := path.Base(zf.Name)
		if base == filename {
			pick = zf
			break
		}
		if pick == nil && hasLibSuffix(base) {
			pick = zf
		}
	}
	if pick == nil {
		return nil, oops.Code(CodeBadArchive).Errorf("archive holds no shared library")
	}
	if pick.UncompressedSize64 > maxDownloadSize {
		return nil, oops.Code(CodeBadArchive).With("entry", pick.Name).Errorf("archive entry too large")
	}

	rc, err := pick.Open()
	if err != nil {
		return nil, oops.Code(CodeBadArchive).With("entry", pick.Name).Wrap(err)
	}
	defer func() { _ = rc.Close() }()
	lib, err := io.ReadAll(io.LimitReader(rc, maxDownloadSize))
	if err != nil {
		return nil, oops.Code(CodeBadArchive).With("entry", pick.Name).Wrap(err)
	}
	return lib, nil
}

func hasLibSuffix(name string) bool {
	name = strings.ToLower(name)
	for _, s := range libSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Checksum returns the hex blake2b-256 digest catalogs use.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func verify(lib []byte, want string) error {
	if want == "" {
		return nil
	}
	if got := Checksum(lib); !strings.EqualFold(got, want) {
		return oops.Code(CodeChecksumMismatch).With("want", want).With("got", got).
			Errorf("core checksum mismatch")
	}
	return nil
}

// writeAtomic writes data next to target and renames it into place.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp := filepath.Join(dir, "."+filepath.Base(target)+"."+core.NewULID().String()+".tmp")
	errb := oops.Code("WRITE_FAILED").With("path", target)

	//nolint:gosec // cores must be readable and mappable by the loader
	if err := os.WriteFile(tmp, data, 0o755); err != nil {
		return errb.Wrap(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errb.Wrap(err)
	}
	return nil
}

// Validate checks that path holds a loadable libretro core and returns its
// system info. The core is loaded and unloaded once.
func (f *Fetcher) Validate(ctx context.Context, path string) (core.SystemInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return core.SystemInfo{}, oops.Code(CodeInvalidCore).With("path", path).Wrap(err)
	}
	if st.Size() < f.minSize {
		return core.SystemInfo{}, oops.Code(CodeInvalidCore).With("path", path).With("size", st.Size()).
			Hint("the download may be an error page").Errorf("core file is too small")
	}

	s := core.NewSession(append([]core.Option{core.WithLogger(f.logger)}, f.session...)...)
	if err := s.Load(ctx, path); err != nil {
		return core.SystemInfo{}, oops.Code(CodeInvalidCore).With("path", path).Wrap(err)
	}
	info := s.SystemInfo()
	s.Unload(ctx)
	return info, nil
}

// Install fetches e, validates it and checks its version constraint. A core
// this call downloaded is removed again when it fails validation; a core
// that was already present is left alone.
func (f *Fetcher) Install(ctx context.Context, e catalog.Entry) (string, core.SystemInfo, error) {
	p, downloaded, err := f.fetch(ctx, e)
	if err != nil {
		return "", core.SystemInfo{}, err
	}
	info, err := f.Validate(ctx, p)
	if err == nil {
		var ok bool
		ok, err = e.Compatible(info.LibraryVersion)
		if err == nil && !ok {
			err = oops.Code(CodeInvalidCore).With("version", info.LibraryVersion).
				With("min_version", e.MinVersion).Errorf("core version is too old")
		}
	}
	if err != nil {
		if !downloaded {
			return "", core.SystemInfo{}, oops.With("core", e.Name).With("path", p).Wrap(err)
		}
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			f.logger.Warn("remove invalid core failed", "path", p, "error", rmErr)
		}
		return "", core.SystemInfo{}, oops.With("core", e.Name).Wrap(err)
	}
	return p, info, nil
}
