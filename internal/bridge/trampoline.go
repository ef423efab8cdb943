// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

//go:build (darwin || freebsd || linux || netbsd) && !android

package bridge

import (
	"github.com/ebitengine/purego"
)

// newTrampolines creates the C callbacks. purego never frees callbacks, so
// they are created once per process.
func newTrampolines() (Trampolines, error) {
	return Trampolines{
		Environment:      purego.NewCallback(dispatchEnvironment),
		VideoRefresh:     purego.NewCallback(dispatchVideoRefresh),
		AudioSample:      purego.NewCallback(dispatchAudioSample),
		AudioSampleBatch: purego.NewCallback(dispatchAudioSampleBatch),
		InputPoll:        purego.NewCallback(dispatchInputPoll),
		InputState:       purego.NewCallback(dispatchInputState),
	}, nil
}
