// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build unix

package retro

import (
	"golang.org/x/sys/unix"
)

// GoString copies a NUL-terminated C string. A nil pointer yields "".
func GoString(p *byte) string {
	return unix.BytePtrToString(p)
}

// CString returns s as a NUL-terminated byte slice. Strings containing a NUL
// byte cannot cross the boundary and return an error.
func CString(s string) ([]byte, error) {
	return unix.ByteSliceFromString(s)
}
