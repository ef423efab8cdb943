// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package frontend

import (
	"sync/atomic"

	"github.com/retrobridge/retrobridge/internal/bridge"
	"github.com/retrobridge/retrobridge/internal/input"
)

// Sink is a callback target for headless runs: video goes to a FrameBuffer,
// input comes from a Pad and audio is counted and discarded.
type Sink struct {
	Video *FrameBuffer
	Pad   *input.Pad

	samples atomic.Uint64
}

var (
	_ bridge.VideoReceiver  = (*Sink)(nil)
	_ bridge.AudioReceiver  = (*Sink)(nil)
	_ bridge.InputPoller    = (*Sink)(nil)
	_ bridge.InputResponder = (*Sink)(nil)
)

// NewSink returns a sink with a fresh frame buffer and pad.
func NewSink() *Sink {
	return &Sink{Video: &FrameBuffer{}, Pad: input.NewPad()}
}

func (s *Sink) OnVideoFrame(f bridge.Frame) { s.Video.OnVideoFrame(f) }

func (s *Sink) OnAudioSample(_, _ int16) { s.samples.Add(1) }

func (s *Sink) OnAudioBatch(samples []int16) int {
	frames := len(samples) / 2
	s.samples.Add(uint64(frames))
	return frames
}

func (s *Sink) OnInputPoll() { s.Pad.OnInputPoll() }

func (s *Sink) OnInputState(port, device, index, id int) int {
	return s.Pad.OnInputState(port, device, index, id)
}

// AudioFrames returns how many stereo frames the core produced.
func (s *Sink) AudioFrames() uint64 { return s.samples.Load() }
