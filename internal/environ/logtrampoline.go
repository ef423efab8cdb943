// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build (darwin || freebsd || linux || netbsd) && !android

package environ

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// Apple arm64 passes C varargs on the stack, out of reach of the callback
// trampoline. Everywhere else the first integer varargs share registers with
// ordinary arguments.
var varargsInRegisters = runtime.GOOS != "darwin" || runtime.GOARCH != "arm64"

func newLogTrampoline() (uintptr, error) {
	return purego.NewCallback(dispatchLog), nil
}
