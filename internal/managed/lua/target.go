// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package lua

import (
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/pkg/errutil"
)

// Script entry points.
const (
	fnVideoFrame = "on_video_frame"
	fnInputPoll  = "on_input_poll"
	fnInputState = "on_input_state"
	fnAudioBatch = "on_audio_batch"
)

// target adapts one borrowed Lua state to the bridge receiver interfaces.
type target struct {
	rt *Runtime
	L  *lua.LState
}

var (
	_ bridge.VideoReceiver  = (*target)(nil)
	_ bridge.AudioReceiver  = (*target)(nil)
	_ bridge.InputPoller    = (*target)(nil)
	_ bridge.InputResponder = (*target)(nil)
)

// handler returns the named global if the script defines it as a function.
func (t *target) handler(name string) *lua.LFunction {
	fn, ok := t.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	return fn
}

// call runs fn and returns its first result. Script errors are logged and
// reported as LNil.
func (t *target) call(name string, fn *lua.LFunction, args ...lua.LValue) lua.LValue {
	top := t.L.GetTop()
	defer t.L.SetTop(top)
	if err := t.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		errutil.LogError(t.rt.logger, "script handler failed",
			oops.In("lua").Code("SCRIPT_ERROR").With("handler", name).Wrap(err))
		return lua.LNil
	}
	return t.L.Get(-1)
}

func (t *target) OnVideoFrame(f bridge.Frame) {
	fn := t.handler(fnVideoFrame)
	if fn == nil {
		return
	}
	ud, fr := newFrameValue(t.L, f)
	defer fr.invalidate()
	t.call(fnVideoFrame, fn, ud)
}

func (t *target) OnAudioSample(left, right int16) {
	fn := t.handler(fnAudioBatch)
	if fn == nil {
		return
	}
	t.call(fnAudioBatch, fn, lua.LNumber(1))
}

func (t *target) OnAudioBatch(samples []int16) int {
	frames := len(samples) / 2
	fn := t.handler(fnAudioBatch)
	if fn == nil {
		return frames
	}
	ret := t.call(fnAudioBatch, fn, lua.LNumber(frames))
	n, ok := ret.(lua.LNumber)
	if !ok {
		return frames
	}
	return min(max(int(n), 0), frames)
}

func (t *target) OnInputPoll() {
	if fn := t.handler(fnInputPoll); fn != nil {
		var poll uint64
		if t.rt.pad != nil {
			poll = t.rt.pad.Polls()
		}
		t.call(fnInputPoll, fn, lua.LNumber(poll+1))
	}
	if t.rt.pad != nil {
		t.rt.pad.OnInputPoll()
	}
}

func (t *target) OnInputState(port, device, index, id int) int {
	if fn := t.handler(fnInputState); fn != nil {
		ret := t.call(fnInputState, fn,
			lua.LNumber(port), lua.LNumber(device), lua.LNumber(index), lua.LNumber(id))
		if n, ok := ret.(lua.LNumber); ok {
			return int(n)
		}
	}
	if t.rt.pad != nil {
		return t.rt.pad.OnInputState(port, device, index, id)
	}
	return 0
}
