// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package lua

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/retrobridge/retrobridge/internal/managed"
)

// StateOf exposes the Lua state behind an attachment.
func StateOf(t *testing.T, e managed.Env) *lua.LState {
	t.Helper()
	v, ok := e.(*env)
	if !ok {
		t.Fatalf("unexpected env type %T", e)
	}
	return v.L
}
