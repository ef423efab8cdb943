// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build (darwin || freebsd || linux || netbsd) && !android

package dylib

import "github.com/ebitengine/purego"

func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func dlsym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func dlclose(handle uintptr) error {
	return purego.Dlclose(handle)
}
