// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build !((darwin || freebsd || linux || netbsd) && !android)

package dylib

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("dynamic loading unsupported on " + runtime.GOOS)

func dlopen(string) (uintptr, error) {
	return 0, errUnsupported
}

func dlsym(uintptr, string) (uintptr, error) {
	return 0, errUnsupported
}

func dlclose(uintptr) error {
	return nil
}
