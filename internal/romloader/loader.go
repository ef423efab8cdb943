// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package romloader reads ROM images into memory, unpacking ZIP, 7z, gzip,
// tar.gz and RAR archives.
package romloader

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// Magic bytes for format detection.
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// DefaultMaxSize caps an unpacked ROM.
const DefaultMaxSize = 64 << 20

// CodeROMLoad marks ROM loading errors.
const CodeROMLoad = "ROM_LOAD_FAILED"

var (
	// ErrNoROMFile is returned when an archive holds no file with a wanted
	// extension.
	ErrNoROMFile = errors.New("no ROM file found in archive")
	// ErrUnsupportedFormat is returned for files that are neither a known
	// archive nor carry a wanted extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when a ROM exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")
)

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

func (f format) String() string {
	switch f {
	case formatRaw:
		return "raw"
	case formatZIP:
		return "zip"
	case format7z:
		return "7z"
	case formatGzip:
		return "gzip"
	case formatRAR:
		return "rar"
	}
	return "unknown"
}

// ROM is an image read into memory.
type ROM struct {
	// Name is the base name of the file the data came from. For archives it
	// is the member name.
	Name string
	Data []byte
	// Archive is true when Data was unpacked from an archive.
	Archive bool
}

// Loader reads ROMs matching a set of extensions.
type Loader struct {
	extensions []string
	maxSize    int64
}

// New returns a loader accepting the given extensions, with or without a
// leading dot. maxSize <= 0 means DefaultMaxSize.
func New(extensions []string, maxSize int64) *Loader {
	l := &Loader{maxSize: maxSize}
	if l.maxSize <= 0 {
		l.maxSize = DefaultMaxSize
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			l.extensions = append(l.extensions, "."+ext)
		}
	}
	return l
}

// Load reads the ROM at path with the default size limit.
func Load(path string, extensions []string) (ROM, error) {
	return New(extensions, 0).Load(path)
}

// Load reads path. Archives are detected by magic bytes first and by
// extension second; the first member with a wanted extension is returned.
func (l *Loader) Load(path string) (ROM, error) {
	errb := oops.In("romloader").Code(CodeROMLoad).With("path", path)

	f, err := os.Open(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return ROM{}, errb.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ROM{}, errb.Wrapf(err, "read header")
	}
	header = header[:n]

	kind := l.detect(header, path)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ROM{}, errb.Wrapf(err, "seek")
	}

	var rom ROM
	switch kind {
	case formatRaw:
		var data []byte
		data, err = l.limitedRead(f)
		rom = ROM{Name: filepath.Base(path), Data: data}
	case formatZIP:
		rom, err = l.fromZIP(path)
	case format7z:
		rom, err = l.from7z(path)
	case formatGzip:
		rom, err = l.fromGzip(f, path)
	case formatRAR:
		rom, err = l.fromRAR(path)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return ROM{}, errb.With("format", kind.String()).Wrap(err)
	}
	rom.Archive = kind != formatRaw
	return rom, nil
}

// detect determines the file format based on magic bytes and extension.
func (l *Loader) detect(header []byte, path string) format {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	}

	lower := strings.ToLower(path)
	switch filepath.Ext(lower) {
	case ".zip":
		return formatZIP
	case ".7z":
		return format7z
	case ".gz", ".tgz":
		return formatGzip
	case ".rar":
		return formatRAR
	}
	if l.wanted(lower) {
		return formatRaw
	}
	return formatUnknown
}

// wanted checks if a file name has one of the loader's extensions.
func (l *Loader) wanted(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range l.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// limitedRead reads r up to the size limit.
func (l *Loader) limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
