// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package dylib opens shared objects and resolves their exported symbols.
//
// A symbol that the object does not export is reported as absent rather than
// as an error, so callers can treat optional entry points as capabilities.
package dylib

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// CodeLoadFailed is the oops code attached to every open failure.
const CodeLoadFailed = "LOAD_FAILED"

// Library is an opened shared object. The zero value is not usable.
type Library struct {
	path   string
	handle uintptr
	closed atomic.Bool
	once   sync.Once
}

// Path returns the path the library was opened from.
func (l *Library) Path() string {
	return l.path
}

// Symbol resolves name to a function address. It returns false when the
// library does not export name or has been closed.
func (l *Library) Symbol(name string) (uintptr, bool) {
	if l == nil || l.closed.Load() || name == "" {
		return 0, false
	}
	addr, err := dlsym(l.handle, name)
	if err != nil || addr == 0 {
		return 0, false
	}
	return addr, true
}

// Close releases the library. Only the first call closes the handle; every
// function resolved from it is invalid afterwards. Later calls return nil.
func (l *Library) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		if cerr := dlclose(l.handle); cerr != nil {
			err = oops.In("dylib").With("path", l.path).Wrapf(cerr, "close library")
		}
	})
	return err
}

// Open loads the shared object at path and binds every symbol immediately so
// unresolved dependencies fail here instead of mid-frame.
//
// A path without a separator is handed to the system loader unchanged and
// resolved through the library search path.
func Open(path string) (*Library, error) {
	errb := oops.In("dylib").Code(CodeLoadFailed).With("path", path)
	if path == "" {
		return nil, errb.Errorf("library path is empty")
	}

	if strings.ContainsRune(path, os.PathSeparator) {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, errb.Hint("check the core path or fetch the core first").Wrapf(err, "library not found")
		case errors.Is(err, fs.ErrPermission):
			return nil, errb.Hint("the library file must be readable").Wrapf(err, "library not readable")
		case err != nil:
			return nil, errb.Wrapf(err, "stat library")
		case info.IsDir():
			return nil, errb.Errorf("library path is a directory")
		}
	}

	handle, err := dlopen(path)
	if err != nil {
		return nil, errb.Hint("the file may be corrupt or built for another platform").Wrapf(err, "open library")
	}
	return &Library{path: path, handle: handle}, nil
}
