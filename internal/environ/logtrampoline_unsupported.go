// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build !((darwin || freebsd || linux || netbsd) && !android)

package environ

import (
	"errors"
	"runtime"
)

var varargsInRegisters = false

func newLogTrampoline() (uintptr, error) {
	return 0, errors.New("C callbacks unsupported on " + runtime.GOOS)
}
