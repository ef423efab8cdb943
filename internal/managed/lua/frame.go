// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/retrobridge/retrobridge/internal/bridge"
)

const frameTypeName = "retrobridge.frame"

// frameValue wraps a frame that aliases core memory. It must not be read
// once the video callback returns.
type frameValue struct {
	frame bridge.Frame
	valid bool
}

func (f *frameValue) invalidate() {
	f.valid = false
	f.frame.Data = nil
}

func registerFrameType(L *lua.LState) {
	mt := L.NewTypeMetatable(frameTypeName)
	L.SetField(mt, "__index", L.NewFunction(frameIndex))
}

func newFrameValue(L *lua.LState, f bridge.Frame) (*lua.LUserData, *frameValue) {
	fr := &frameValue{frame: f, valid: true}
	ud := L.NewUserData()
	ud.Value = fr
	L.SetMetatable(ud, L.GetTypeMetatable(frameTypeName))
	return ud, fr
}

func checkFrame(L *lua.LState) *frameValue {
	ud := L.CheckUserData(1)
	fr, ok := ud.Value.(*frameValue)
	if !ok {
		L.ArgError(1, "frame expected")
		return nil
	}
	if !fr.valid {
		L.RaiseError("frame is no longer valid outside on_video_frame")
		return nil
	}
	return fr
}

func frameIndex(L *lua.LState) int {
	fr := checkFrame(L)
	switch key := L.CheckString(2); key {
	case "width":
		L.Push(lua.LNumber(fr.frame.Width))
	case "height":
		L.Push(lua.LNumber(fr.frame.Height))
	case "pitch":
		L.Push(lua.LNumber(fr.frame.Pitch))
	case "size":
		L.Push(lua.LNumber(len(fr.frame.Data)))
	case "byte":
		L.Push(L.NewFunction(frameByte))
	default:
		L.Push(lua.LNil)
	}
	return 1
}

// frameByte returns the byte at a zero-based offset, or nil out of range.
func frameByte(L *lua.LState) int {
	fr := checkFrame(L)
	off := L.CheckInt(2)
	if off < 0 || off >= len(fr.frame.Data) {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(fr.frame.Data[off]))
	return 1
}
