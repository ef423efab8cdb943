// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package frontend

import (
	"sync"

	"github.com/retrobridge/retrobridge/internal/bridge"
)

// FrameBuffer keeps a copy of the most recent video frame. Frames handed to
// OnVideoFrame alias core memory, so they are copied before the call
// returns.
type FrameBuffer struct {
	mu     sync.Mutex
	pixels []byte
	width  int
	height int
	pitch  int
	seq    uint64
}

var _ bridge.VideoReceiver = (*FrameBuffer)(nil)

// OnVideoFrame copies f.
func (fb *FrameBuffer) OnVideoFrame(f bridge.Frame) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if cap(fb.pixels) < len(f.Data) {
		fb.pixels = make([]byte, len(f.Data))
	}
	fb.pixels = fb.pixels[:len(f.Data)]
	copy(fb.pixels, f.Data)
	fb.width, fb.height, fb.pitch = f.Width, f.Height, f.Pitch
	fb.seq++
}

// Snapshot returns a private copy of the latest frame and how many frames
// were received. The frame is zero before the first one arrives.
func (fb *FrameBuffer) Snapshot() (bridge.Frame, uint64) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return bridge.Frame{
		Data:   append([]byte(nil), fb.pixels...),
		Width:  fb.width,
		Height: fb.height,
		Pitch:  fb.pitch,
	}, fb.seq
}
