// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/retrobridge/retrobridge/internal/input"
)

// registerHostFunctions installs the retrobridge module table.
func (r *Runtime) registerHostFunctions(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(r.logFn))
	L.SetField(mod, "press", L.NewFunction(r.padFn(true)))
	L.SetField(mod, "release", L.NewFunction(r.padFn(false)))
	L.SetField(mod, "release_all", L.NewFunction(r.releaseAllFn))
	L.SetGlobal("retrobridge", mod)
}

func (r *Runtime) logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	switch strings.ToLower(level) {
	case "debug":
		r.logger.Debug(message)
	case "warn":
		r.logger.Warn(message)
	case "error":
		r.logger.Error(message)
	default:
		r.logger.Info(message)
	}
	return 0
}

// padFn returns press or release. Both take a port and a button name.
func (r *Runtime) padFn(pressed bool) lua.LGFunction {
	return func(L *lua.LState) int {
		port := L.CheckInt(1)
		name := L.CheckString(2)
		if r.pad == nil {
			L.RaiseError("no input pad attached")
			return 0
		}
		b, err := input.ParseButton(name)
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		if port < 0 || port >= input.MaxPorts {
			L.ArgError(1, "port out of range")
			return 0
		}
		r.pad.Set(port, b, pressed)
		return 0
	}
}

func (r *Runtime) releaseAllFn(L *lua.LState) int {
	if r.pad != nil {
		r.pad.ReleaseAll()
	}
	return 0
}
