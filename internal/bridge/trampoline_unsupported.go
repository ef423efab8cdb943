// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build !((darwin || freebsd || linux || netbsd) && !android)

package bridge

import (
	"errors"
	"runtime"
)

func newTrampolines() (Trampolines, error) {
	return Trampolines{}, errors.New("C callbacks unsupported on " + runtime.GOOS)
}
